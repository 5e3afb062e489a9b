// Package frame implements the fixed-layout binary message frame: a
// 32-byte header plus a variable-length payload. It is the only durable
// on-the-wire contract the ring buffer depends on. Every field is written
// little-endian regardless of the host's byte order.
package frame

import (
	"encoding/binary"
	"errors"

	"github.com/agentbus/core/pkg/checksum"
)

// Magic resynchronizes the consumer on corruption. Its hex digits spell
// "AGEN" read most-significant byte first; written little-endian, the
// wire bytes are "NEGA".
const Magic uint32 = 0x4147454E

// HeaderSize is the fixed header length in bytes. It never changes shape.
// To fit every named header field (magic, type, length, timestamp,
// source, target, flags, checksum, priority) into exactly 32 bytes,
// Source/Target are packed as two uint16 halves of one word and Priority
// is packed into the low bits of Flags rather than carrying its own
// 4-byte slot — see DESIGN.md "header layout" for why.
const HeaderSize = 32

// MaxPayload is the largest payload a frame may carry.
const MaxPayload = 2048

const (
	// flagChecksumPresent is bit 0 of Flags.
	flagChecksumPresent uint32 = 1 << 0
	// priority occupies bits 1-3 of Flags (values 0..5 fit in 3 bits).
	priorityShift = 1
	priorityMask  = 0x7
)

var (
	// ErrCorruptFrame reports an invalid magic or out-of-range length
	// observed while decoding a header. ring.ClaimBatch recovers locally
	// by scanning forward to the next position that decodes as a valid
	// header.
	ErrCorruptFrame = errors.New("frame: corrupt header")

	// ErrChecksumMismatch reports a verified checksum that does not
	// match the recomputed value.
	ErrChecksumMismatch = errors.New("frame: checksum mismatch")

	// ErrPayloadTooLarge reports a payload outside [0, MaxPayload].
	ErrPayloadTooLarge = errors.New("frame: payload exceeds maximum length")
)

// Header is the fixed 32-byte prefix of every frame.
type Header struct {
	Type      uint32
	Length    uint32
	Timestamp int64
	Source    uint16
	Target    uint16
	Priority  uint8 // 0..5
	Checksum  bool  // whether a checksum is present
	ChecksumV uint32
}

// Size returns the total frame size (header + payload) for this header.
func (h Header) Size() int {
	return HeaderSize + int(h.Length)
}

func (h Header) flags() uint32 {
	f := uint32(0)
	if h.Checksum {
		f |= flagChecksumPresent
	}
	f |= (uint32(h.Priority) & priorityMask) << priorityShift
	return f
}

func fromFlags(f uint32) (checksumPresent bool, priority uint8) {
	checksumPresent = f&flagChecksumPresent != 0
	priority = uint8((f >> priorityShift) & priorityMask)
	return
}

// Encode writes header and payload into a fresh byte slice. If h.Checksum
// is set, it computes the checksum over the header (with the checksum
// word zeroed) plus the payload using sum, and stores the result in the
// returned bytes.
func Encode(h Header, payload []byte, sum checksum.Checksummer) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	h.Length = uint32(len(payload))

	out := make([]byte, HeaderSize+len(payload))
	putHeader(out, h, 0)
	copy(out[HeaderSize:], payload)

	if h.Checksum {
		c := sum.Sum(out)
		binary.LittleEndian.PutUint32(out[24:28], c)
	}
	return out, nil
}

// putHeader writes the 32-byte header into b[:HeaderSize]. checksumValue
// is written verbatim into the checksum word (callers zero it first when
// computing a checksum over the header).
func putHeader(b []byte, h Header, checksumValue uint32) {
	binary.LittleEndian.PutUint32(b[0:4], Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Type)
	binary.LittleEndian.PutUint32(b[8:12], h.Length)
	binary.LittleEndian.PutUint64(b[12:20], uint64(h.Timestamp))
	binary.LittleEndian.PutUint16(b[20:22], h.Source)
	binary.LittleEndian.PutUint16(b[22:24], h.Target)
	binary.LittleEndian.PutUint32(b[24:28], checksumValue)
	binary.LittleEndian.PutUint32(b[28:32], h.flags())
}

// DecodeHeader parses a HeaderSize-byte prefix. It validates Magic and
// the length bound only — it does not verify the checksum (see Verify).
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrCorruptFrame
	}
	magic := binary.LittleEndian.Uint32(b[0:4])
	length := binary.LittleEndian.Uint32(b[8:12])
	if magic != Magic || length > MaxPayload {
		return Header{}, ErrCorruptFrame
	}
	checksumPresent, priority := fromFlags(binary.LittleEndian.Uint32(b[28:32]))
	h := Header{
		Type:      binary.LittleEndian.Uint32(b[4:8]),
		Length:    length,
		Timestamp: int64(binary.LittleEndian.Uint64(b[12:20])),
		Source:    binary.LittleEndian.Uint16(b[20:22]),
		Target:    binary.LittleEndian.Uint16(b[22:24]),
		Checksum:  checksumPresent,
		Priority:  priority,
		ChecksumV: binary.LittleEndian.Uint32(b[24:28]),
	}
	return h, nil
}

// Verify recomputes the checksum over header (with the checksum word
// zeroed) plus payload and compares it to h.ChecksumV. It is a no-op,
// always returning nil, if h.Checksum is clear.
func Verify(h Header, payload []byte, sum checksum.Checksummer) error {
	if !h.Checksum {
		return nil
	}
	buf := make([]byte, HeaderSize+len(payload))
	putHeader(buf, h, 0)
	copy(buf[HeaderSize:], payload)
	if sum.Sum(buf) != h.ChecksumV {
		return ErrChecksumMismatch
	}
	return nil
}
