// Package testsupport provides scaffolding the test suite uses to verify
// system-wide properties (spec §8) that no single package can observe on
// its own — at-most-once delivery across every worker in a running
// Runtime, for instance.
package testsupport

import (
	"fmt"

	"github.com/agentbus/core/pkg/concurrency"
)

// DuplicateTracker records every (source, sequence) pair observed by any
// worker and reports whether a pair has already been seen, without a
// single global lock becoming the bottleneck at S2's scale (4 producers x
// 100,000 frames). It adapts the teacher's ShardedMapString directly
// rather than reimplementing sharding.
type DuplicateTracker struct {
	seen *concurrency.ShardedMapString[struct{}]
}

// NewDuplicateTracker constructs an empty tracker.
func NewDuplicateTracker() *DuplicateTracker {
	return &DuplicateTracker{seen: concurrency.NewShardedMapString[struct{}]()}
}

// Observe records (source, sequence) and reports whether it is the first
// time this pair has been seen. A false return means the pair was
// delivered more than once — a violation of spec §8 property 2.
func (t *DuplicateTracker) Observe(source uint16, sequence uint64) (firstSeen bool) {
	key := fmt.Sprintf("%d:%d", source, sequence)
	return t.seen.SetIfAbsent(key, struct{}{})
}

// Count returns the number of distinct pairs observed so far.
func (t *DuplicateTracker) Count() int {
	return t.seen.Len()
}
