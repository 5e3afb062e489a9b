//go:build linux

package ring

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// allocate maps capacityBytes anonymously. When useHugePages is requested
// it first tries MAP_HUGETLB; on any failure (huge pages not reserved,
// size not huge-page aligned, permission denied) it falls back to an
// ordinary anonymous mapping, which is already page-aligned. When
// lockMemory is set it best-effort mlocks the result — failure there is
// not fatal, since mlock commonly requires a capability the process may
// not have.
func allocate(capacityBytes uint64, useHugePages, lockMemory bool) ([]byte, func(), error) {
	flags := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS
	size := int(capacityBytes)

	var buf []byte
	var err error
	if useHugePages {
		buf, err = unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, flags|unix.MAP_HUGETLB)
	}
	if !useHugePages || err != nil {
		buf, err = unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, flags)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("ring: mmap %d bytes: %w", size, err)
	}

	if lockMemory {
		_ = unix.Mlock(buf) // best-effort; an unprivileged process may not be able to lock RAM
	}

	release := func() {
		if lockMemory {
			_ = unix.Munlock(buf)
		}
		_ = unix.Munmap(buf)
	}
	return buf, release, nil
}
