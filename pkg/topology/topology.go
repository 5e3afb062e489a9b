// Package topology computes the static worker-to-core placement table
// (spec §4.F) and pins the calling thread to a logical core. Placement
// never assumes a particular hardware core-enumeration order — the
// performance/efficiency ordering is a configuration input, supplied by
// the host, not detected here.
package topology

import (
	"errors"

	"github.com/shirou/gopsutil/v4/cpu"
)

// Class tags a worker's placement as performance- or efficiency-oriented,
// informing which of the two dispatch paths (spec §4.E) it should prefer.
type Class int

const (
	Performance Class = iota
	Efficiency
)

func (c Class) String() string {
	if c == Performance {
		return "performance"
	}
	return "efficiency"
}

// Assignment is one worker's placement.
type Assignment struct {
	WorkerIndex int
	CoreID      int
	Class       Class
}

// ErrCoreCountExceeded is returned when performanceCores exceeds the
// logical core count, or workerCount requires more cores than exist for
// the efficiency tier to round-robin over.
var ErrCoreCountExceeded = errors.New("topology: requested cores exceed logical core count")

// LogicalCoreCount reports the host's logical core count via gopsutil,
// returning the caller-supplied fallback if the detection call fails (hosts without /proc, containers with restricted
// access, and so on).
func LogicalCoreCount(fallback int) int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// Assign computes the static placement table for workerCount workers
// given logicalCores available cores and performanceCores designated as
// the performance tier (default min(logicalCores, 12) is the caller's
// responsibility to compute — this function takes the resolved value).
//
// Worker w is assigned core w for the first performanceCores workers
// (performance class); the rest round-robin over the remaining cores
// starting at performanceCores (efficiency class), exactly as spec §4.F
// describes.
func Assign(workerCount, performanceCores, logicalCores int) ([]Assignment, error) {
	if performanceCores > logicalCores || performanceCores > workerCount {
		return nil, ErrCoreCountExceeded
	}
	if logicalCores <= performanceCores && workerCount > performanceCores {
		return nil, ErrCoreCountExceeded
	}

	out := make([]Assignment, workerCount)
	efficiencySpan := logicalCores - performanceCores
	for w := 0; w < workerCount; w++ {
		if w < performanceCores {
			out[w] = Assignment{WorkerIndex: w, CoreID: w, Class: Performance}
			continue
		}
		core := performanceCores + ((w - performanceCores) % efficiencySpan)
		out[w] = Assignment{WorkerIndex: w, CoreID: core, Class: Efficiency}
	}
	return out, nil
}
