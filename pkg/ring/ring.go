// Package ring implements the multi-producer / multi-consumer lock-free
// ring buffer described in spec §3 and §4.B. It is the core of agentbus:
// producers reserve a contiguous span, copy their frame into it, and
// commit it in sequence order; workers claim committed frames one at a
// time via an atomic CAS loop on claimPos, and release capacity back to
// producers by advancing readPos once a frame has been fully processed.
//
// Counters are monotonic and never wrap; only the buffer offset
// (counter & mask) does. This is the same discipline the teacher's
// disruptor.Cursor/Gate pair uses, generalized from single-producer /
// single-consumer to many of each and from an in-place value ring to a
// byte-addressed frame stream.
package ring

import (
	"container/heap"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/agentbus/core/pkg/frame"
)

// ErrFull is returned by Reserve when the ring cannot accept size more
// bytes without overlapping unread data.
var ErrFull = errors.New("ring: full")

// cacheLinePad keeps a hot counter alone on its own cache line so
// producer-side and consumer-side counters never false-share.
const cacheLinePad = 64 - 8

type paddedCounter struct {
	v   atomic.Uint64
	_   [cacheLinePad]byte
}

// completion records that [linearPos, linearPos+size) has finished —
// either a worker processed the frame there, or claim_batch skipped a
// corrupt span it will never hand out. Workers finish claimed items out
// of order (a deque pops LIFO, and steals take an arbitrary resident
// item), so completions cannot simply be merged into readPos as they
// arrive: a later span retiring before an earlier one would let Reserve
// free bytes an earlier, still-unprocessed item still depends on.
// retireHeap holds completions not yet contiguous with readPos, keyed by
// start position, so readPos only ever advances across a fully-retired
// prefix.
type completion struct {
	linearPos uint64
	endPos    uint64
}

type retireHeap []completion

func (h retireHeap) Len() int           { return len(h) }
func (h retireHeap) Less(i, j int) bool { return h[i].linearPos < h[j].linearPos }
func (h retireHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *retireHeap) Push(x any)        { *h = append(*h, x.(completion)) }

func (h *retireHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// WorkItem is a reference into the ring: an offset and size, never a
// pointer. It stays valid as long as readPos <= LinearPos, a guarantee
// the owning worker upholds by calling AdvanceRead only after the frame
// has been fully processed (spec §3, "Ownership").
type WorkItem struct {
	RingOffset uint64 // LinearPos & mask, precomputed for convenience
	LinearPos  uint64
	Size       uint32
	Type       uint32
}

// Stats are advisory, relaxed-ordered counters (spec §3, §6).
type Stats struct {
	Messages uint64
	Bytes    uint64
	Dropped  uint64
	Corrupt  uint64
}

// Ring is the shared byte-addressed circular buffer. It is safe for
// concurrent use by multiple producers and multiple workers.
type Ring struct {
	buf  []byte
	mask uint64
	cap  uint64

	writePos    paddedCounter
	reservedPos paddedCounter
	readPos     paddedCounter
	claimPos    paddedCounter

	retireMu sync.Mutex
	pending  retireHeap

	messages atomic.Uint64
	bytes    atomic.Uint64
	dropped  atomic.Uint64
	corrupt  atomic.Uint64

	release func()
}

// New allocates a ring of capacityBytes, which must be a power of two.
// useHugePages requests huge-page backed allocation; on failure (or when
// unsupported) it transparently falls back to an ordinary page-aligned
// allocation, per spec §9. lockMemory best-effort mlocks the region.
func New(capacityBytes uint64, useHugePages, lockMemory bool) (*Ring, error) {
	if capacityBytes == 0 || capacityBytes&(capacityBytes-1) != 0 {
		return nil, errors.New("ring: capacity must be a power of two")
	}
	buf, release, err := allocate(capacityBytes, useHugePages, lockMemory)
	if err != nil {
		return nil, err
	}
	return &Ring{
		buf:     buf,
		mask:    capacityBytes - 1,
		cap:     capacityBytes,
		release: release,
	}, nil
}

// Close releases the backing allocation. Only called at shutdown.
func (r *Ring) Close() error {
	if r.release != nil {
		r.release()
	}
	return nil
}

// Capacity returns the ring's byte capacity.
func (r *Ring) Capacity() uint64 { return r.cap }

// Stats snapshots the advisory counters.
func (r *Ring) Stats() Stats {
	return Stats{
		Messages: r.messages.Load(),
		Bytes:    r.bytes.Load(),
		Dropped:  r.dropped.Load(),
		Corrupt:  r.corrupt.Load(),
	}
}

// Backlog returns writePos - readPos, the number of committed-but-unread
// bytes currently in flight.
func (r *Ring) Backlog() uint64 {
	return r.writePos.v.Load() - r.readPos.v.Load()
}

// Reserve atomically advances reservedPos by size iff doing so would not
// overrun readPos by more than the ring's capacity. On success it returns
// the pre-advance value: the producer's slot start. On failure it
// increments the dropped counter and returns ErrFull.
func (r *Ring) Reserve(size uint64) (uint64, error) {
	for {
		cur := r.reservedPos.v.Load()
		read := r.readPos.v.Load()
		if cur+size-read > r.cap {
			r.dropped.Add(1)
			return 0, ErrFull
		}
		if r.reservedPos.v.CompareAndSwap(cur, cur+size) {
			return cur, nil
		}
		runtime.Gosched()
	}
}

// Commit copies data (handling wrap-around) into the reserved span
// starting at linearPos, then spin-waits for writePos to reach linearPos
// (the sequential-publication rule) before advancing it past this frame.
// This is what lets consumers treat [readPos, writePos) as a contiguous
// stream of fully-written frames.
func (r *Ring) Commit(linearPos uint64, data []byte) {
	start := linearPos & r.mask
	n := uint64(len(data))
	if start+n <= r.cap {
		copy(r.buf[start:start+n], data)
	} else {
		first := r.cap - start
		copy(r.buf[start:], data[:first])
		copy(r.buf[0:], data[first:])
	}

	for r.writePos.v.Load() != linearPos {
		runtime.Gosched()
	}
	r.writePos.v.Store(linearPos + n)
	r.messages.Add(1)
	r.bytes.Add(n)
}

// readAt copies n bytes starting at the given monotonic position out of
// the ring, handling wrap-around.
func (r *Ring) readAt(pos uint64, n uint64) []byte {
	start := pos & r.mask
	out := make([]byte, n)
	if start+n <= r.cap {
		copy(out, r.buf[start:start+n])
	} else {
		first := r.cap - start
		copy(out, r.buf[start:])
		copy(out[first:], r.buf[0:n-first])
	}
	return out
}

// ClaimBatch loads writePos (acquire), then repeatedly decodes the header
// at claimPos, validates it, and CAS-advances claimPos past the whole
// frame. A bad header (invalid magic or out-of-range length) is resynced
// by scanning forward for the next position that both carries a valid
// magic value and decodes into a header whose frame fits within the
// visible stream (resync), charging exactly one corrupt-frame increment
// for the whole skipped span regardless of how wide it turns out to be
// (spec §8 property 6). The skipped span is retired immediately, since
// no WorkItem is ever handed out for it. It returns once out is full, the
// visible stream is exhausted, or a partial frame is observed.
func (r *Ring) ClaimBatch(out []WorkItem) int {
	writePos := r.writePos.v.Load()
	claimed := 0
	for claimed < len(out) {
		cur := r.claimPos.v.Load()
		if cur >= writePos {
			break
		}
		header := r.readAt(cur, frame.HeaderSize)
		h, err := frame.DecodeHeader(header)
		if err != nil {
			next, found := r.resync(cur, writePos)
			if !found {
				break // no realignment point yet visible; retry on the next call
			}
			if r.claimPos.v.CompareAndSwap(cur, next) {
				r.corrupt.Add(1)
				r.retire(cur, uint32(next-cur))
			}
			continue
		}
		frameSize := uint64(h.Size())
		if cur+frameSize > writePos {
			break // partial frame still being committed
		}
		if !r.claimPos.v.CompareAndSwap(cur, cur+frameSize) {
			continue // another worker won the race; re-read and retry
		}
		out[claimed] = WorkItem{
			RingOffset: cur & r.mask,
			LinearPos:  cur,
			Size:       uint32(frameSize),
			Type:       h.Type,
		}
		claimed++
	}
	return claimed
}

// resync scans forward byte by byte from cur+1 looking for the next
// position that decodes into a plausible header — valid magic, in-range
// length, and a frame that fits entirely within the committed stream
// [*, writePos). It never reads past writePos, since bytes beyond it may
// still be mid-Commit. found is false when no such position is visible
// yet (the caller should retry once more data is committed).
func (r *Ring) resync(cur, writePos uint64) (next uint64, found bool) {
	for probe := cur + 1; probe+frame.HeaderSize <= writePos; probe++ {
		header := r.readAt(probe, frame.HeaderSize)
		h, err := frame.DecodeHeader(header)
		if err != nil {
			continue
		}
		if probe+uint64(h.Size()) > writePos {
			continue // candidate frame would run past committed data
		}
		return probe, true
	}
	return writePos, false
}

// ReadFrame returns the decoded header and payload for a claimed work
// item. Safe to call any time before the corresponding AdvanceRead.
func (r *Ring) ReadFrame(item WorkItem) (frame.Header, []byte, error) {
	raw := r.readAt(item.LinearPos, uint64(item.Size))
	h, err := frame.DecodeHeader(raw[:frame.HeaderSize])
	if err != nil {
		return frame.Header{}, nil, err
	}
	return h, raw[frame.HeaderSize:], nil
}

// AdvanceRead reports that the item spanning [pos, pos+size) has been
// fully processed and retires it. It is legal and expected for readPos to
// lag claimPos while messages sit in worker deques. Items may retire out
// of order — a worker's own deque pops LIFO and a steal can take any
// resident item — so this does not simply store pos+size into readPos;
// it holds out-of-order completions in a small heap and only advances
// readPos across the contiguous prefix that has actually finished,
// upholding the rule that bytes before readPos are never still owned by
// an unprocessed item (spec §3, "Ownership").
func (r *Ring) AdvanceRead(pos uint64, size uint32) {
	r.retire(pos, size)
}

// retire inserts [pos, pos+size) into the pending-completion heap and
// drains every entry that is now contiguous with readPos.
func (r *Ring) retire(pos uint64, size uint32) {
	r.retireMu.Lock()
	defer r.retireMu.Unlock()

	heap.Push(&r.pending, completion{linearPos: pos, endPos: pos + uint64(size)})

	for len(r.pending) > 0 && r.pending[0].linearPos == r.readPos.v.Load() {
		next := heap.Pop(&r.pending).(completion)
		r.readPos.v.Store(next.endPos)
	}
}
