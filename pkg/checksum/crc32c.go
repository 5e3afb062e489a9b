// Package checksum provides the pluggable integrity primitive the frame
// codec calls out to. The core never hardcodes a checksum algorithm; it
// only depends on the Checksummer interface.
package checksum

import "hash/crc32"

// Checksummer computes an integrity value over a byte range. Implementations
// must be safe for concurrent use by multiple producers and workers.
type Checksummer interface {
	Sum(data []byte) uint32
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C is the default Checksummer: CRC32 with the Castagnoli polynomial,
// the same variant iSCSI, ext4, and most modern wire protocols use. The
// core treats this as an external primitive — any conforming Checksummer
// may be substituted (a hardware-accelerated one, an HMAC, and so on).
type CRC32C struct{}

func (CRC32C) Sum(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}
