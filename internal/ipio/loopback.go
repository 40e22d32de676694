package ipio

import (
	"net/netip"
	"sync"
)

// LoopbackConn implements Conn in memory, letting tests exercise
// Receiver and the send path without CAP_NET_RAW or a real socket.
// Datagrams written to one LoopbackConn are delivered to its peer (set
// via Pipe), mirroring the reference netio package's MockPacketConn
// approach of an injectable, lock-guarded test double.
type LoopbackConn struct {
	mu        sync.Mutex
	localAddr netip.Addr
	inbox     chan loopbackDatagram
	peer      *LoopbackConn
	closed    bool

	// Written records every datagram sent via WriteDatagram, for tests
	// that want to inspect outbound traffic instead of piping it to a peer.
	Written []WrittenDatagram
}

// WrittenDatagram records one WriteDatagram call.
type WrittenDatagram struct {
	Data []byte
	Dst  netip.Addr
}

type loopbackDatagram struct {
	data []byte
	src  netip.Addr
}

// NewLoopbackConn creates an unconnected LoopbackConn bound to localAddr.
// Use Pipe to connect two LoopbackConns so writes on one arrive as reads
// on the other.
func NewLoopbackConn(localAddr netip.Addr) *LoopbackConn {
	return &LoopbackConn{
		localAddr: localAddr,
		inbox:     make(chan loopbackDatagram, 64),
	}
}

// Pipe connects a and b so that WriteDatagram on one delivers to
// ReadDatagram on the other, addressed from its own localAddr.
func Pipe(a, b *LoopbackConn) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()

	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

// ReadDatagram blocks until a datagram is delivered or the connection is
// closed.
func (c *LoopbackConn) ReadDatagram(buf []byte) (int, netip.Addr, error) {
	d, ok := <-c.inbox
	if !ok {
		return 0, netip.Addr{}, ErrSocketClosed
	}

	n := copy(buf, d.data)

	return n, d.src, nil
}

// WriteDatagram records the datagram and, if a peer is connected via
// Pipe, delivers it to the peer's inbox.
func (c *LoopbackConn) WriteDatagram(buf []byte, dst netip.Addr) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSocketClosed
	}

	data := make([]byte, len(buf))
	copy(data, buf)
	c.Written = append(c.Written, WrittenDatagram{Data: data, Dst: dst})
	peer := c.peer
	local := c.localAddr
	c.mu.Unlock()

	if peer != nil {
		peer.deliver(loopbackDatagram{data: data, src: local})
	}

	return nil
}

func (c *LoopbackConn) deliver(d loopbackDatagram) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return
	}

	c.inbox <- d
}

// Close unblocks any pending ReadDatagram and marks the conn unusable.
func (c *LoopbackConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.inbox)

	return nil
}

// LocalAddr reports the configured local address.
func (c *LoopbackConn) LocalAddr() netip.Addr {
	return c.localAddr
}

var _ Conn = (*LoopbackConn)(nil)
