package concurrency

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentbus/core/pkg/logger"
)

// MutexConfig names a mutex for diagnostics and optionally enables debug
// instrumentation (hold-time logging on slow acquisitions).
type MutexConfig struct {
	Name      string
	DebugMode bool
	// SlowThreshold is the hold duration above which DebugMode logs a
	// warning. Zero selects a 10ms default.
	SlowThreshold time.Duration
}

func (c MutexConfig) threshold() time.Duration {
	if c.SlowThreshold > 0 {
		return c.SlowThreshold
	}
	return 10 * time.Millisecond
}

// SmartMutex wraps sync.Mutex with optional hold-time diagnostics. It is
// intended for cold-path coordination (lifecycle, config, admin state) —
// never the ring buffer or deque hot paths, which stay lock-free by
// design (spec §5).
type SmartMutex struct {
	cfg      MutexConfig
	mu       sync.Mutex
	acquired int64 // unix nanos, valid only while held; debug mode only
	waits    atomic.Int64
}

func NewSmartMutex(cfg MutexConfig) *SmartMutex {
	return &SmartMutex{cfg: cfg}
}

func (m *SmartMutex) Lock() {
	m.mu.Lock()
	if m.cfg.DebugMode {
		m.acquired = time.Now().UnixNano()
	}
}

func (m *SmartMutex) Unlock() {
	if m.cfg.DebugMode && m.acquired != 0 {
		held := time.Duration(time.Now().UnixNano() - m.acquired)
		if held > m.cfg.threshold() {
			logger.L().Warn("slow mutex hold", "mutex", m.cfg.Name, "held", held)
		}
		m.acquired = 0
	}
	m.mu.Unlock()
}

// SmartRWMutex is the read/write counterpart of SmartMutex.
type SmartRWMutex struct {
	cfg      MutexConfig
	mu       sync.RWMutex
	acquired int64
}

func NewSmartRWMutex(cfg MutexConfig) *SmartRWMutex {
	return &SmartRWMutex{cfg: cfg}
}

func (m *SmartRWMutex) Lock() {
	m.mu.Lock()
	if m.cfg.DebugMode {
		m.acquired = time.Now().UnixNano()
	}
}

func (m *SmartRWMutex) Unlock() {
	if m.cfg.DebugMode && m.acquired != 0 {
		held := time.Duration(time.Now().UnixNano() - m.acquired)
		if held > m.cfg.threshold() {
			logger.L().Warn("slow rwmutex hold", "mutex", m.cfg.Name, "held", held)
		}
		m.acquired = 0
	}
	m.mu.Unlock()
}

func (m *SmartRWMutex) RLock()   { m.mu.RLock() }
func (m *SmartRWMutex) RUnlock() { m.mu.RUnlock() }
