// Package runtime wires the Ring, the Deques, the Producers, the Workers
// and the Topology together into one host-owned aggregate implementing
// the external interface from spec §6. It is the "G" component this
// repository adds around the core so the core is runnable as a library.
package runtime

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/agentbus/core/pkg/checksum"
	"github.com/agentbus/core/pkg/concurrency"
	appErrors "github.com/agentbus/core/pkg/errors"
	"github.com/agentbus/core/pkg/frame"
	"github.com/agentbus/core/pkg/logger"
	"github.com/agentbus/core/pkg/producer"
	"github.com/agentbus/core/pkg/ring"
	"github.com/agentbus/core/pkg/telemetry"
	"github.com/agentbus/core/pkg/topology"
	"github.com/agentbus/core/pkg/worker"
)

// Dispatcher is the host-provided callback boundary (spec §6 item 3).
type Dispatcher = worker.Dispatcher

// Config is the runtime's init-time configuration (spec §6,
// "Configuration"). New checks that RingCapacityBytes and DequeCapacity
// are powers of two and that ProducerSources is empty or has NumProducers
// entries; the range limits in the validate tags are enforced by
// config.Load, not by New.
type Config struct {
	RingCapacityBytes uint64 `env:"RING_CAPACITY_BYTES" env-default:"268435456" validate:"pow2"`
	NumProducers      int    `env:"NUM_PRODUCERS" env-default:"4" validate:"min=1,max=16"`
	NumWorkers        int    `env:"NUM_WORKERS" env-default:"8" validate:"min=1,max=32"`
	PerformanceCores  int    `env:"PERFORMANCE_CORES" env-default:"0"`
	DequeCapacity     uint64 `env:"DEQUE_CAPACITY" env-default:"256" validate:"pow2"`
	BatchSizeProducer int    `env:"BATCH_SIZE_PRODUCER" env-default:"64" validate:"min=1,max=64"`
	BatchSizeWorker   int    `env:"BATCH_SIZE_WORKER" env-default:"64" validate:"min=1,max=64"`
	UseHugePages      bool   `env:"USE_HUGE_PAGES" env-default:"true"`
	LockMemory        bool   `env:"LOCK_MEMORY" env-default:"true"`
	ComputeChecksum   bool   `env:"COMPUTE_CHECKSUM" env-default:"true"`

	Logger    logger.Config
	Telemetry telemetry.Config

	// Checksummer overrides the default CRC32C implementation. Optional.
	Checksummer checksum.Checksummer

	// ProducerSources, if non-empty, must have exactly NumProducers
	// entries; each spawns a synthetic load-generating producer at
	// Start (spec §4.D, load-test mode). Real upstream payloads instead
	// arrive through Enqueue (typically called by an ingress adapter,
	// see pkg/ingress) and never need an entry here.
	ProducerSources []producer.Source
}

// StatisticsSnapshot is the sole supported observation channel (spec §6,
// "Observability interface").
type StatisticsSnapshot struct {
	Ring      ring.Stats
	Backlog   uint64
	Producers []producer.Stats
	Workers   []worker.Stats
}

// Runtime owns one Ring, one Deque per worker, and the goroutines driving
// the configured Producers and Workers for a single process.
type Runtime struct {
	cfg        Config
	ring       *ring.Ring
	topo       []topology.Assignment
	producers  []*producer.Producer
	workers    []*worker.Worker
	dispatcher Dispatcher

	lifecycle *concurrency.SmartMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New validates cfg, allocates the ring, constructs the per-worker deques
// and the topology table, and builds producer/worker state — but starts
// no goroutines (spec §6 item 1: "init(...)  → Runtime | InitError").
func New(cfg Config, dispatcher Dispatcher) (*Runtime, error) {
	if cfg.RingCapacityBytes == 0 || cfg.RingCapacityBytes&(cfg.RingCapacityBytes-1) != 0 {
		return nil, appErrors.CapacityNotPowerOfTwo("ring_capacity_bytes")
	}
	if cfg.DequeCapacity == 0 || cfg.DequeCapacity&(cfg.DequeCapacity-1) != 0 {
		return nil, appErrors.CapacityNotPowerOfTwo("deque_capacity")
	}
	if len(cfg.ProducerSources) != 0 && len(cfg.ProducerSources) != cfg.NumProducers {
		return nil, stderrors.New("runtime: producer_sources length must equal num_producers or be empty")
	}

	performanceCores := cfg.PerformanceCores
	logicalCores := topology.LogicalCoreCount(cfg.NumWorkers)
	if performanceCores <= 0 {
		performanceCores = logicalCores
		if performanceCores > 12 {
			performanceCores = 12
		}
		if performanceCores > cfg.NumWorkers {
			performanceCores = cfg.NumWorkers
		}
	}

	topo, err := topology.Assign(cfg.NumWorkers, performanceCores, logicalCores)
	if err != nil {
		return nil, appErrors.CoreCountExceeded(err)
	}

	sum := cfg.Checksummer
	if sum == nil {
		sum = checksum.CRC32C{}
	}

	r, err := ring.New(cfg.RingCapacityBytes, cfg.UseHugePages, cfg.LockMemory)
	if err != nil {
		return nil, appErrors.AllocationFailed(err)
	}

	rt := &Runtime{
		cfg:        cfg,
		ring:       r,
		topo:       topo,
		dispatcher: dispatcher,
		lifecycle:  concurrency.NewSmartMutex(concurrency.MutexConfig{Name: "runtime.lifecycle"}),
	}

	rt.workers = make([]*worker.Worker, cfg.NumWorkers)
	for i := 0; i < cfg.NumWorkers; i++ {
		i := i
		rt.workers[i] = worker.New(worker.Config{
			ID:            i,
			Assignment:    topo[i],
			Ring:          r,
			DequeCapacity: cfg.DequeCapacity,
			Checksummer:   sum,
			Dispatcher:    dispatcher,
			Peers:         rt.peersExcept,
		})
	}

	rt.producers = make([]*producer.Producer, cfg.NumProducers)
	for i := 0; i < cfg.NumProducers; i++ {
		var src producer.Source
		if len(cfg.ProducerSources) != 0 {
			src = cfg.ProducerSources[i]
		} else {
			src = noopSource
		}
		rt.producers[i] = producer.New(producer.Config{
			ID:              uint16(i),
			Ring:            r,
			CoreID:          logicalCores - 1 - (i % logicalCores),
			Pin:             true,
			Source:          src,
			Checksummer:     sum,
			ComputeChecksum: cfg.ComputeChecksum,
			BatchSize:       cfg.BatchSizeProducer,
		})
	}

	return rt, nil
}

func noopSource() (uint32, []byte, uint8, bool) { return 0, nil, 0, false }

func (rt *Runtime) peersExcept(self int) []worker.Peer {
	out := make([]worker.Peer, 0, len(rt.workers)-1)
	for i, w := range rt.workers {
		if i != self {
			out = append(out, w)
		}
	}
	return out
}

// Start spins up one goroutine per producer and worker, each pinned via
// topology.Pin. Idempotent: a second call while already running is a
// no-op (spec §6 item 2).
func (rt *Runtime) Start(ctx context.Context) error {
	rt.lifecycle.Lock()
	defer rt.lifecycle.Unlock()
	if rt.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	rt.running = true

	log := logger.Component("runtime")
	log.Info("starting runtime", "num_producers", len(rt.producers), "num_workers", len(rt.workers))

	for _, p := range rt.producers {
		p := p
		rt.wg.Add(1)
		go func() {
			defer rt.wg.Done()
			p.Run(runCtx)
		}()
	}
	for _, w := range rt.workers {
		w := w
		rt.wg.Add(1)
		go func() {
			defer rt.wg.Done()
			w.Run(runCtx)
		}()
	}
	return nil
}

// Stop clears the run flag (by canceling the internal context) and joins
// every goroutine, bounded by ctx's deadline if set. Idempotent.
func (rt *Runtime) Stop(ctx context.Context) error {
	rt.lifecycle.Lock()
	if !rt.running {
		rt.lifecycle.Unlock()
		return nil
	}
	rt.running = false
	cancel := rt.cancel
	rt.lifecycle.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		rt.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Statistics samples the ring's advisory counters and every
// worker/producer's counters (spec §6 item 2, §6 "Observability
// interface").
func (rt *Runtime) Statistics() StatisticsSnapshot {
	snap := StatisticsSnapshot{
		Ring:      rt.ring.Stats(),
		Backlog:   rt.ring.Backlog(),
		Producers: make([]producer.Stats, len(rt.producers)),
		Workers:   make([]worker.Stats, len(rt.workers)),
	}
	for i, p := range rt.producers {
		snap.Producers[i] = p.Stats()
	}
	for i, w := range rt.workers {
		snap.Workers[i] = w.Stats()
	}
	return snap
}

// Enqueue builds a single frame and performs reserve/commit on it,
// returning ring.ErrFull verbatim on backpressure (spec §6 item 4). This
// is the path real, non-synthetic producers (see pkg/ingress) use.
func (rt *Runtime) Enqueue(msgType uint32, payload []byte, priority uint8) error {
	sum := rt.cfg.Checksummer
	if sum == nil {
		sum = checksum.CRC32C{}
	}
	h := frame.Header{
		Type:      msgType,
		Timestamp: time.Now().UnixNano(),
		Priority:  priority,
		Checksum:  rt.cfg.ComputeChecksum,
	}
	encoded, err := frame.Encode(h, payload, sum)
	if err != nil {
		return err
	}
	pos, err := rt.ring.Reserve(uint64(len(encoded)))
	if err != nil {
		return err
	}
	rt.ring.Commit(pos, encoded)
	return nil
}

// Close releases the ring's backing allocation. Call only after Stop.
func (rt *Runtime) Close() error {
	return rt.ring.Close()
}
