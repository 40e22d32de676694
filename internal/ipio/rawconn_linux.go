//go:build linux

package ipio

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// RawConn implements Conn over a raw IPv4 socket using the Swift/MPTP
// protocol number (spec.md section 6.1). It wraps
// golang.org/x/net/ipv4.RawConn, which exposes the IP_HDRINCL-capable
// socket needed to send and receive whole IP datagrams under a
// non-standard protocol number, the same way the reference sender wraps
// a UDP socket for BFD's transport.
type RawConn struct {
	pconn     net.PacketConn
	raw       *ipv4.RawConn
	localAddr netip.Addr

	mu     sync.Mutex
	closed bool
}

// NewRawConn opens a raw IPv4 socket bound to localAddr under
// ProtocolNumber. SO_REUSEADDR is set so that multiple processes can
// bind during test/restart races, matching the reference sender's
// socket option set.
func NewRawConn(localAddr netip.Addr) (*RawConn, error) {
	pconn, err := net.ListenPacket(fmt.Sprintf("ip4:%d", ProtocolNumber), localAddr.String())
	if err != nil {
		return nil, fmt.Errorf("open raw IP socket: %w", err)
	}

	raw, err := ipv4.NewRawConn(pconn)
	if err != nil {
		pconn.Close()
		return nil, fmt.Errorf("wrap raw IP socket: %w", err)
	}

	if err := setReuseAddr(pconn); err != nil {
		pconn.Close()
		return nil, err
	}

	return &RawConn{pconn: pconn, raw: raw, localAddr: localAddr}, nil
}

func setReuseAddr(pconn net.PacketConn) error {
	sc, ok := pconn.(syscall.Conn)
	if !ok {
		return nil
	}

	rc, err := sc.SyscallConn()
	if err != nil {
		return fmt.Errorf("raw conn: %w", err)
	}

	var sockErr error
	err = rc.Control(func(fd uintptr) {
		//nolint:gosec // G115: kernel FDs are always small positive integers.
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return fmt.Errorf("raw conn control: %w", err)
	}

	if sockErr != nil {
		return fmt.Errorf("set SO_REUSEADDR: %w", sockErr)
	}

	return nil
}

// ReadDatagram reads one IPv4 packet and strips the IP header, returning
// the Swift datagram payload and the source address.
func (c *RawConn) ReadDatagram(buf []byte) (int, netip.Addr, error) {
	iph, payload, _, err := c.raw.ReadFrom(buf)
	if err != nil {
		return 0, netip.Addr{}, fmt.Errorf("raw read: %w", err)
	}

	src, ok := netip.AddrFromSlice(iph.Src.To4())
	if !ok {
		return 0, netip.Addr{}, fmt.Errorf("raw read: invalid source address %s", iph.Src)
	}

	n := copy(buf, payload)

	return n, src, nil
}

// WriteDatagram sends buf to dst with an IP header the kernel fills in
// (TTL default, protocol ProtocolNumber, source the bound local
// address).
func (c *RawConn) WriteDatagram(buf []byte, dst netip.Addr) error {
	iph := &ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TotalLen: ipv4.HeaderLen + len(buf),
		TTL:      64,
		Protocol: ProtocolNumber,
		Dst:      dst.AsSlice(),
	}

	if err := c.raw.WriteTo(iph, buf, nil); err != nil {
		return fmt.Errorf("raw write to %s: %w", dst, err)
	}

	return nil
}

// Close releases the underlying socket.
func (c *RawConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.pconn.Close(); err != nil {
		return fmt.Errorf("close raw socket: %w", err)
	}

	return nil
}

// LocalAddr reports the bound local address.
func (c *RawConn) LocalAddr() netip.Addr {
	return c.localAddr
}
