//go:build !linux

package topology

// Pin is a no-op on platforms without a supported affinity syscall. The
// core still runs correctly, just with reduced cache locality (spec §9).
func Pin(coreID int) error {
	return nil
}
