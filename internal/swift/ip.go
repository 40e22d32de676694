package swift

import "net/netip"

// Route is an opaque, cacheable result of resolving a destination address
// to a next hop. Its contents are only meaningful to the Transmitter that
// produced it (spec.md section 9: "cached route per socket").
type Route struct {
	// Resolved is false for the zero value, so an unset CachedRoute field
	// is never mistaken for a valid cache hit.
	Resolved bool

	// NextHop is an implementation-defined opaque token (e.g. an
	// interface index or gateway address) that the Transmitter
	// understands; swift itself never interprets it.
	NextHop any
}

// RouteResolver resolves a destination IPv4 address to a Route that the
// Transmitter can later reuse (spec.md section 6.4: "route lookup by
// destination IPv4 address").
type RouteResolver interface {
	Resolve(dst netip.Addr) (Route, error)
}

// Transmitter hands a finished Swift datagram (already framed with its
// header) to the IP layer for transmission (spec.md section 6.4:
// "transmit primitive that accepts a buffer with space reserved for the
// IP header and emits the packet"). route, if Resolved, is the cached or
// freshly resolved route for dst; a Transmitter that does not use route
// caching may ignore it.
type Transmitter interface {
	Transmit(dst netip.Addr, route Route, datagram []byte) error
}

// IPLayer bundles the two external collaborators the send path needs.
// A single implementation (internal/ipio) typically satisfies both.
type IPLayer interface {
	RouteResolver
	Transmitter
}
