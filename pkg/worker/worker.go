// Package worker implements the Worker component (spec §3, §4.E): a loop
// that prefers local work, claims a batch from the shared Ring when its
// local deque runs dry, and steals from a peer as a last resort before
// idling.
package worker

import (
	"context"
	"math/rand"
	goruntime "runtime"
	"sync/atomic"
	"time"

	"github.com/agentbus/core/pkg/checksum"
	"github.com/agentbus/core/pkg/datastructures/deque"
	appErrors "github.com/agentbus/core/pkg/errors"
	"github.com/agentbus/core/pkg/frame"
	"github.com/agentbus/core/pkg/logger"
	"github.com/agentbus/core/pkg/ring"
	"github.com/agentbus/core/pkg/topology"
)

// ClaimBatchSize is the max number of work items pulled from the ring in
// one ClaimBatch call (spec §4.E step 2).
const ClaimBatchSize = 64

// Dispatcher is the host-provided callback boundary (spec §6 item 3). The
// core calls exactly one of its two methods per delivered message,
// selected by the processing worker's topology class. Both methods must
// be functionally equivalent and must not block on the ring.
type Dispatcher interface {
	DispatchPerformance(h frame.Header, payload []byte)
	DispatchEfficiency(h frame.Header, payload []byte)
}

// Stats are one worker's advisory counters (spec §3, Worker State).
type Stats struct {
	Processed      uint64
	Stolen         uint64
	StealAttempts  uint64
	IdleCycles     uint64
	Corrupt        uint64
	ChecksumFail   uint64
	AffinityFailed uint64
}

// Peer is the subset of another worker's surface a thief may reach into.
type Peer interface {
	StealFrom() (ring.WorkItem, bool)
}

// Worker owns a local Chase-Lev deque and processes items claimed from
// the shared Ring or stolen from a peer. It is pinned to its
// topology.Assignment's core at Run time.
type Worker struct {
	id       int
	class    topology.Class
	coreID   int
	ring     *ring.Ring
	local    *deque.Deque[ring.WorkItem]
	checksum checksum.Checksummer
	dispatch Dispatcher
	peers    func(selfIndex int) []Peer

	processed      atomic.Uint64
	stolen         atomic.Uint64
	stealAttempts  atomic.Uint64
	idleCycles     atomic.Uint64
	corrupt        atomic.Uint64
	checksumFail   atomic.Uint64
	affinityFailed atomic.Uint64
}

// Config configures one worker.
type Config struct {
	ID              int
	Assignment      topology.Assignment
	Ring            *ring.Ring
	DequeCapacity   uint64
	Checksummer     checksum.Checksummer
	Dispatcher      Dispatcher
	// Peers returns every other worker in the runtime, given this
	// worker's index, so Run can pick a random one to steal from. It is
	// supplied by the runtime once all workers exist (spec §4.E step 3:
	// "choose a random peer, excluding self").
	Peers func(selfIndex int) []Peer
}

// New constructs a Worker. Checksummer defaults to checksum.CRC32C{}.
func New(cfg Config) *Worker {
	sum := cfg.Checksummer
	if sum == nil {
		sum = checksum.CRC32C{}
	}
	return &Worker{
		id:       cfg.ID,
		class:    cfg.Assignment.Class,
		coreID:   cfg.Assignment.CoreID,
		ring:     cfg.Ring,
		local:    deque.New[ring.WorkItem](cfg.DequeCapacity),
		checksum: sum,
		dispatch: cfg.Dispatcher,
		peers:    cfg.Peers,
	}
}

// Stats snapshots this worker's advisory counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Processed:      w.processed.Load(),
		Stolen:         w.stolen.Load(),
		StealAttempts:  w.stealAttempts.Load(),
		IdleCycles:     w.idleCycles.Load(),
		Corrupt:        w.corrupt.Load(),
		ChecksumFail:   w.checksumFail.Load(),
		AffinityFailed: w.affinityFailed.Load(),
	}
}

// StealFrom lets another worker steal from this worker's local deque. It
// implements Peer.
func (w *Worker) StealFrom() (ring.WorkItem, bool) {
	return w.local.Steal()
}

// Run pins the calling goroutine's backing OS thread to this worker's
// assigned core (best-effort; a failure is logged, not fatal, since the
// core remains correct with reduced cache locality on unsupported
// platforms — spec §9) and executes the main loop until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	log := logger.Component("worker").With("worker_id", w.id, "core_id", w.coreID, "class", w.class.String())
	log.Info("worker started")
	defer log.Info("worker stopped")

	// Pinning only means something if this goroutine can't migrate to a
	// different OS thread afterward (spec §4.F, "thread pinning is
	// mandatory").
	goruntime.LockOSThread()
	if err := topology.Pin(w.coreID); err != nil {
		w.affinityFailed.Add(1)
		log.Warn("failed to pin worker to core", "error", appErrors.AffinityFailed(w.coreID, err))
	}

	batch := make([]ring.WorkItem, ClaimBatchSize)
	rng := rand.New(rand.NewSource(int64(w.id) + time.Now().UnixNano()))

	for {
		select {
		case <-ctx.Done():
			w.drainLocal()
			return
		default:
		}

		// Step 1: prefer local work.
		if item, ok := w.local.Pop(); ok {
			w.process(item)
			continue
		}

		// Step 2: claim a batch from the shared ring.
		n := w.ring.ClaimBatch(batch)
		if n > 0 {
			w.process(batch[0])
			for i := 1; i < n; i++ {
				w.local.Push(batch[i])
			}
			continue
		}

		// Step 3: steal from a random peer.
		if peers := w.peerList(); len(peers) > 0 {
			w.stealAttempts.Add(1)
			peer := peers[rng.Intn(len(peers))]
			if item, ok := peer.StealFrom(); ok {
				w.stolen.Add(1)
				w.process(item)
				continue
			}
		}

		// Step 4: idle.
		w.idleCycles.Add(1)
		runtimePause()
	}
}

func (w *Worker) peerList() []Peer {
	if w.peers == nil {
		return nil
	}
	return w.peers(w.id)
}

// drainLocal processes every item left in the local deque on shutdown,
// without consulting the ring (spec §5: "workers drain their local
// deques but do not attempt to drain the ring").
func (w *Worker) drainLocal() {
	for {
		item, ok := w.local.Pop()
		if !ok {
			return
		}
		w.process(item)
	}
}

// process loads the header and payload for item, verifies its checksum
// (if present), dispatches it by topology class, and updates counters.
// A checksum mismatch drops the message silently, per spec §7. readPos is
// retired only after the item is fully handled here — never eagerly at
// claim time — so a work item's backing bytes stay valid for exactly as
// long as the ownership rule in spec §3 promises, even while it sits
// queued in a local deque or gets stolen by a peer. Completion can arrive
// out of order (the local deque pops LIFO, and a steal takes an arbitrary
// resident item); AdvanceRead accounts for that by only ever advancing
// readPos across a fully-retired contiguous prefix.
func (w *Worker) process(item ring.WorkItem) {
	defer w.ring.AdvanceRead(item.LinearPos, item.Size)

	h, payload, err := w.ring.ReadFrame(item)
	if err != nil {
		w.corrupt.Add(1)
		return
	}
	if err := frame.Verify(h, payload, w.checksum); err != nil {
		w.checksumFail.Add(1)
		return
	}
	switch w.class {
	case topology.Performance:
		w.dispatch.DispatchPerformance(h, payload)
	default:
		w.dispatch.DispatchEfficiency(h, payload)
	}
	w.processed.Add(1)
}
