// Package producer implements the Producer component (spec §3, §4.D): a
// loop that batch-constructs frames, reserves a contiguous span in the
// ring, copies the staged bytes in, and commits them in sequence order.
package producer

import (
	"context"
	"encoding/binary"
	goruntime "runtime"
	"sync/atomic"
	"time"

	"github.com/agentbus/core/pkg/checksum"
	appErrors "github.com/agentbus/core/pkg/errors"
	"github.com/agentbus/core/pkg/frame"
	"github.com/agentbus/core/pkg/logger"
	"github.com/agentbus/core/pkg/ring"
	"github.com/agentbus/core/pkg/topology"
)

// MaxBatch is the largest number of frames staged per loop iteration
// (spec §3, "batch staging buffer (up to 64 frames)").
const MaxBatch = 64

// yieldEvery controls how often the loop calls runtime.Gosched-equivalent
// cooperative yielding to avoid starving low-priority work (spec §4.D
// step 5). It counts loop iterations, not messages.
const yieldEvery = 64

// Source generates the next payload for one staged frame. Producers in
// load-test mode synthesize payloads; producers fed by an ingress adapter
// (pkg/ingress) return the upstream payload instead. A nil, empty return
// ([], false) means "nothing to send this tick".
type Source func() (msgType uint32, payload []byte, priority uint8, ok bool)

// Stats are the producer's advisory counters.
type Stats struct {
	Sent           uint64
	Dropped        uint64
	AffinityFailed uint64
}

// Producer owns a batch staging buffer and reserves/commits frames into a
// shared Ring. One Producer corresponds to one pinned OS thread in the
// runtime; Config.ID becomes the frame's Source field.
type Producer struct {
	id        uint16
	coreID    int
	pin       bool
	ring      *ring.Ring
	source    Source
	checksum  checksum.Checksummer
	useCheck  bool
	batchSize int

	sent           atomic.Uint64
	dropped        atomic.Uint64
	affinityFailed atomic.Uint64
}

// Config configures a single producer.
type Config struct {
	ID   uint16
	Ring *ring.Ring

	// CoreID and Pin control thread placement (spec §3, "Producer State:
	// ... pinned core id"; spec §4.F, "thread pinning is mandatory").
	// Pin defaults to false for producers that don't supply a CoreID
	// (e.g. unit tests constructing a Producer directly).
	CoreID int
	Pin    bool

	Source          Source
	Checksummer     checksum.Checksummer
	ComputeChecksum bool
	BatchSize       int // clamped to [1, MaxBatch]
}

// New constructs a Producer. Checksummer defaults to checksum.CRC32C{}.
func New(cfg Config) *Producer {
	batch := cfg.BatchSize
	if batch <= 0 || batch > MaxBatch {
		batch = MaxBatch
	}
	sum := cfg.Checksummer
	if sum == nil {
		sum = checksum.CRC32C{}
	}
	return &Producer{
		id:        cfg.ID,
		coreID:    cfg.CoreID,
		pin:       cfg.Pin,
		ring:      cfg.Ring,
		source:    cfg.Source,
		checksum:  sum,
		useCheck:  cfg.ComputeChecksum,
		batchSize: batch,
	}
}

// Stats snapshots this producer's advisory counters.
func (p *Producer) Stats() Stats {
	return Stats{Sent: p.sent.Load(), Dropped: p.dropped.Load(), AffinityFailed: p.affinityFailed.Load()}
}

// Run executes the producer's main loop until ctx is canceled. On
// cancellation it flushes any partially-staged batch before returning
// (spec §4.D, "on shutdown... flushes any partial batch and exits").
func (p *Producer) Run(ctx context.Context) {
	log := logger.Component("producer").With("producer_id", p.id)
	log.Info("producer started")
	defer log.Info("producer stopped")

	if p.pin {
		goruntime.LockOSThread()
		if err := topology.Pin(p.coreID); err != nil {
			p.affinityFailed.Add(1)
			log.Warn("failed to pin producer to core", "error", appErrors.AffinityFailed(p.coreID, err))
		}
	}

	staged := make([][]byte, 0, p.batchSize)
	iterations := 0

	flush := func() {
		for _, encoded := range staged {
			p.publish(encoded)
		}
		staged = staged[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		default:
		}

		staged = staged[:0]
		for len(staged) < p.batchSize {
			msgType, payload, priority, ok := p.source()
			if !ok {
				break
			}
			h := frame.Header{
				Type:      msgType,
				Timestamp: time.Now().UnixNano(),
				Source:    p.id,
				Priority:  priority,
				Checksum:  p.useCheck,
			}
			encoded, err := frame.Encode(h, payload, p.checksum)
			if err != nil {
				log.Warn("dropping frame that failed to encode", "error", err)
				continue
			}
			staged = append(staged, encoded)
		}

		flush()

		iterations++
		if iterations%yieldEvery == 0 {
			goruntime.Gosched() // cooperative yield, spec §4.D step 5
		}
		if len(staged) == 0 {
			time.Sleep(time.Microsecond)
		}
	}
}

// publish reserves a span for encoded, copies it in (Reserve/Commit handle
// wrap-around), and updates this producer's counters. On ErrFull it
// counts the drop and returns without retrying — the caller's next loop
// iteration effectively provides the "pause hint and retry" spec §4.D
// describes, since the source is re-polled rather than the same frame
// replayed.
func (p *Producer) publish(encoded []byte) {
	pos, err := p.ring.Reserve(uint64(len(encoded)))
	if err != nil {
		p.dropped.Add(1)
		return
	}
	p.ring.Commit(pos, encoded)
	p.sent.Add(1)
}

// SequenceSource returns a Source that synthesizes fixed-size payloads
// carrying a monotonically increasing sequence number for source-scoped
// testing (spec §8, S1/S2). The sequence number occupies the first 8
// bytes of the payload, little-endian; the remainder is zero-filled to
// payloadSize.
func SequenceSource(msgType uint32, priority uint8, payloadSize int, start, count uint64) Source {
	seq := start
	sent := uint64(0)
	return func() (uint32, []byte, uint8, bool) {
		if sent >= count {
			return 0, nil, 0, false
		}
		payload := make([]byte, payloadSize)
		binary.LittleEndian.PutUint64(payload, seq)
		seq++
		sent++
		return msgType, payload, priority, true
	}
}
