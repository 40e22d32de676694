package ipio

import (
	"fmt"
	"net/netip"

	"github.com/mptpnet/swiftmptp/internal/swift"
)

// ConnTransmitter implements swift.Transmitter by handing the finished
// datagram to a Conn (spec.md section 6.4: "transmit primitive ... emits
// the packet"). It ignores route.NextHop: a raw IPv4 socket already
// knows how to reach dst via the kernel's own routing table, so the
// cached Route only needs to prove "already resolved" to the send path.
type ConnTransmitter struct {
	Conn Conn
}

// Transmit sends datagram to dst over the wrapped Conn.
func (t ConnTransmitter) Transmit(dst netip.Addr, _ swift.Route, datagram []byte) error {
	if err := t.Conn.WriteDatagram(datagram, dst); err != nil {
		return fmt.Errorf("transmit to %s: %w", dst, err)
	}

	return nil
}

var _ swift.Transmitter = ConnTransmitter{}

// IPLayer bundles DialRouteResolver and ConnTransmitter behind the single
// swift.IPLayer interface the socket layer consumes.
type IPLayer struct {
	DialRouteResolver
	ConnTransmitter
}

// NewIPLayer builds the IPLayer a Socket uses to resolve routes and
// transmit over conn.
func NewIPLayer(conn Conn) IPLayer {
	return IPLayer{ConnTransmitter: ConnTransmitter{Conn: conn}}
}

var _ swift.IPLayer = IPLayer{}
