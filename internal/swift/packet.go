package swift

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// -------------------------------------------------------------------------
// Wire header — spec.md section 3 / section 6.1
// -------------------------------------------------------------------------

// HeaderSize is the fixed Swift header size in bytes: source port (1),
// destination port (1), length (2, network byte order).
const HeaderSize = 4

// MaxDatagramSize bounds a single transmit/receive buffer. It is not a
// protocol limit (the IP layer may fragment), only an allocation bound
// for PacketPool.
const MaxDatagramSize = 65535

// Header is a decoded Swift header (spec.md section 3).
type Header struct {
	// Src is the source port. MUST be nonzero on the wire.
	Src uint8

	// Dst is the destination port. MUST be nonzero on the wire.
	Dst uint8

	// Length is the total datagram length (header + payload), in bytes.
	Length uint16
}

// Sentinel errors for header and address-record encoding/decoding.
var (
	// ErrHeaderTooShort indicates fewer than HeaderSize bytes were supplied.
	ErrHeaderTooShort = errors.New("swift header: buffer shorter than header size")

	// ErrHeaderBadLength indicates the Length field is below HeaderSize or
	// exceeds the buffer that carried it.
	ErrHeaderBadLength = errors.New("swift header: invalid length field")

	// ErrHeaderBadPort indicates Src or Dst is zero (spec.md: both MUST be
	// nonzero on the wire).
	ErrHeaderBadPort = errors.New("swift header: src or dst port is zero")

	// ErrBufTooSmall indicates the destination buffer passed to
	// MarshalHeader cannot hold HeaderSize bytes.
	ErrBufTooSmall = errors.New("swift header: buffer too small to marshal")
)

// MarshalHeader writes h into buf in wire order: src (1 byte), dst
// (1 byte), length (2 bytes, big-endian / network byte order per
// spec.md section 6.1). buf must be at least HeaderSize bytes.
func MarshalHeader(h Header, buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("marshal header: need %d bytes, got %d: %w",
			HeaderSize, len(buf), ErrBufTooSmall)
	}

	buf[0] = h.Src
	buf[1] = h.Dst
	binary.BigEndian.PutUint16(buf[2:4], h.Length)

	return nil
}

// UnmarshalHeader decodes a Swift header from the front of buf and
// validates it against spec.md section 4.3:
//
//   - buf must carry at least HeaderSize bytes;
//   - Length must be >= HeaderSize;
//   - Length must not exceed len(buf) (excess bytes are the caller's to
//     trim, see TrimToLength);
//   - Src and Dst must both be nonzero.
//
// Any violation is reported as an error; callers on the receive path
// treat every UnmarshalHeader error as "drop the datagram, never surface
// it to a socket" (spec.md section 7).
func UnmarshalHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("unmarshal header: %d bytes, need %d: %w",
			len(buf), HeaderSize, ErrHeaderTooShort)
	}

	h := Header{
		Src:    buf[0],
		Dst:    buf[1],
		Length: binary.BigEndian.Uint16(buf[2:4]),
	}

	if int(h.Length) < HeaderSize || int(h.Length) > len(buf) {
		return Header{}, fmt.Errorf(
			"unmarshal header: length field %d, buffer %d bytes: %w",
			h.Length, len(buf), ErrHeaderBadLength)
	}

	if h.Src == 0 || h.Dst == 0 {
		return Header{}, fmt.Errorf("unmarshal header: src=%d dst=%d: %w",
			h.Src, h.Dst, ErrHeaderBadPort)
	}

	return h, nil
}

// TrimToLength returns buf trimmed to h.Length bytes, dropping any excess
// the encapsulation delivered beyond the declared length (spec.md section
// 4.3: "excess bytes are trimmed before delivery").
func TrimToLength(buf []byte, h Header) []byte {
	return buf[:h.Length]
}

// -------------------------------------------------------------------------
// PacketPool — reusable transmit/receive buffers
// -------------------------------------------------------------------------

// PacketPool provides reusable MaxDatagramSize buffers for the send and
// receive paths, avoiding a per-datagram allocation on the hot path.
var PacketPool = sync.Pool{
	New: func() any {
		buf := make([]byte, MaxDatagramSize)
		return &buf
	},
}
