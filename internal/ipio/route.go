package ipio

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/mptpnet/swiftmptp/internal/swift"
)

// DialRouteResolver implements swift.RouteResolver using the kernel's own
// routing table via the standard "connect a UDP socket, read back the
// chosen local address" trick: no library in the reference corpus
// exposes generic Linux route-table lookup (gobgp speaks BGP, not the
// kernel FIB; libovsdb speaks OVSDB) for an arbitrary destination, so
// this one piece is deliberately built on net.Dial rather than invented
// as a third-party dependency that does not exist in the pack.
type DialRouteResolver struct{}

// Resolve asks the kernel which local address/interface it would use to
// reach dst, and returns that as the Route's opaque NextHop (spec.md
// section 6.4: "route lookup by destination IPv4 address").
func (DialRouteResolver) Resolve(dst netip.Addr) (swift.Route, error) {
	conn, err := net.Dial("udp4", net.JoinHostPort(dst.String(), "0"))
	if err != nil {
		return swift.Route{}, fmt.Errorf("resolve route to %s: %w", dst, err)
	}
	defer conn.Close()

	local := conn.LocalAddr().(*net.UDPAddr)

	return swift.Route{Resolved: true, NextHop: local.IP.String()}, nil
}

var _ swift.RouteResolver = DialRouteResolver{}
