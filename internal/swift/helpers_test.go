package swift_test

import (
	"net/netip"

	"github.com/mptpnet/swiftmptp/internal/swift"
)

// testPeerAddr is a documentation IPv4 address (RFC 5737) used as a peer
// throughout these tests.
var testPeerAddr = netip.MustParseAddr("192.0.2.1")

// testIPLayer is a swift.IPLayer stub recording every Transmit call
// without touching the network, for tests that only exercise socket and
// port-table bookkeeping.
type testIPLayer struct {
	transmitted *[]transmittedDatagram
	transmitErr error
	resolveErr  error
}

type transmittedDatagram struct {
	dst  netip.Addr
	data []byte
}

func newTestIPLayer() *testIPLayer {
	sent := make([]transmittedDatagram, 0)
	return &testIPLayer{transmitted: &sent}
}

func (l testIPLayer) Resolve(dst netip.Addr) (swift.Route, error) {
	if l.resolveErr != nil {
		return swift.Route{}, l.resolveErr
	}
	return swift.Route{Resolved: true, NextHop: dst}, nil
}

func (l testIPLayer) Transmit(dst netip.Addr, route swift.Route, datagram []byte) error {
	if l.transmitErr != nil {
		return l.transmitErr
	}
	if l.transmitted != nil {
		cp := make([]byte, len(datagram))
		copy(cp, datagram)
		*l.transmitted = append(*l.transmitted, transmittedDatagram{dst: dst, data: cp})
	}
	return nil
}
