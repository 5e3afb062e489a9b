//go:build !linux

package ring

// allocate falls back to an ordinary page-aligned heap allocation on
// platforms without huge-page / mlock support. The core runs correctly
// here, just with reduced cache locality (spec §9, thread pinning note
// applies equally to this fallback).
func allocate(capacityBytes uint64, useHugePages, lockMemory bool) ([]byte, func(), error) {
	buf := make([]byte, capacityBytes)
	return buf, func() {}, nil
}
