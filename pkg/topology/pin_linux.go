//go:build linux

package topology

import "golang.org/x/sys/unix"

// Pin binds the calling OS thread to coreID. Callers must have already
// locked the goroutine to its OS thread (runtime.LockOSThread) — pinning
// a goroutine that the scheduler is free to migrate is meaningless.
func Pin(coreID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(coreID)
	return unix.SchedSetaffinity(0, &set)
}
