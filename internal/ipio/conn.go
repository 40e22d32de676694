package ipio

import (
	"errors"
	"net/netip"
)

// ProtocolNumber is the IP protocol number this transport registers
// under (spec.md section 6.1: "IPPROTO_SWIFT / IPPROTO_MPTP, an
// implementation constant"). 144-252 are unassigned/experimental in the
// IANA protocol registry; this implementation uses 143.
const ProtocolNumber = 143

// Datagram is one inbound record read off a Conn: the raw bytes (header
// still attached; swift.HandleInbound parses it) plus the source address
// from the IP header.
type Datagram struct {
	Payload []byte
	SrcAddr netip.Addr
}

// Conn abstracts Swift/MPTP packet send/receive over a raw IP socket.
// The interface is intentionally minimal so that tests can substitute
// LoopbackConn without CAP_NET_RAW.
type Conn interface {
	// ReadDatagram reads a single datagram into buf, returning the
	// number of bytes read and the sender's address.
	ReadDatagram(buf []byte) (n int, src netip.Addr, err error)

	// WriteDatagram sends buf to dst. buf already carries the Swift
	// header; the IP header is added by the kernel/Transmitter.
	WriteDatagram(buf []byte, dst netip.Addr) error

	// Close releases the underlying socket.
	Close() error

	// LocalAddr reports the address the socket is bound to.
	LocalAddr() netip.Addr
}

// ErrSocketClosed indicates an operation on a closed Conn.
var ErrSocketClosed = errors.New("ipio: socket closed")

// ErrUnsupportedPlatform indicates raw-socket transport was requested on
// a platform this package does not implement it for.
var ErrUnsupportedPlatform = errors.New("ipio: raw IP transport not implemented on this platform")
