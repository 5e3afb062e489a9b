package frame

import (
	"testing"

	"github.com/agentbus/core/pkg/checksum"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{Type: 7, Timestamp: 1234, Source: 1, Target: 2, Priority: 3, Checksum: true}
	payload := []byte("hello agentbus")

	raw, err := Encode(h, payload, checksum.CRC32C{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(raw) != HeaderSize+len(payload) {
		t.Fatalf("size mismatch: got %d want %d", len(raw), HeaderSize+len(payload))
	}

	got, err := DecodeHeader(raw[:HeaderSize])
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got.Type != h.Type || got.Source != h.Source || got.Target != h.Target || got.Priority != h.Priority {
		t.Fatalf("decoded header mismatch: %+v", got)
	}
	if int(got.Length) != len(payload) {
		t.Fatalf("length mismatch: got %d want %d", got.Length, len(payload))
	}

	if err := Verify(got, raw[HeaderSize:], checksum.CRC32C{}); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyNoChecksumIsNoop(t *testing.T) {
	h := Header{Type: 1, Checksum: false}
	raw, err := Encode(h, []byte("x"), checksum.CRC32C{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeHeader(raw[:HeaderSize])
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(got, raw[HeaderSize:], checksum.CRC32C{}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestVerifyMismatch(t *testing.T) {
	h := Header{Type: 1, Checksum: true}
	raw, err := Encode(h, []byte("payload"), checksum.CRC32C{})
	if err != nil {
		t.Fatal(err)
	}
	raw[HeaderSize] ^= 0xFF // corrupt payload byte

	got, err := DecodeHeader(raw[:HeaderSize])
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(got, raw[HeaderSize:], checksum.CRC32C{}); err != ErrChecksumMismatch {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestDecodeHeaderCorruptMagic(t *testing.T) {
	raw, err := Encode(Header{}, nil, checksum.CRC32C{})
	if err != nil {
		t.Fatal(err)
	}
	raw[0] ^= 0xFF
	if _, err := DecodeHeader(raw[:HeaderSize]); err != ErrCorruptFrame {
		t.Fatalf("expected ErrCorruptFrame, got %v", err)
	}
}

func TestDecodeHeaderLengthOutOfRange(t *testing.T) {
	h := Header{}
	raw := make([]byte, HeaderSize)
	putHeader(raw, h, 0)
	// Force an out-of-range length directly into the wire bytes.
	raw[8], raw[9], raw[10], raw[11] = 0xFF, 0xFF, 0xFF, 0x7F
	if _, err := DecodeHeader(raw); err != ErrCorruptFrame {
		t.Fatalf("expected ErrCorruptFrame, got %v", err)
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(Header{}, make([]byte, MaxPayload+1), checksum.CRC32C{})
	if err != ErrPayloadTooLarge {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}
