// Package ipio implements the IP-layer collaborators the swift package
// consumes through its RouteResolver and Transmitter interfaces: route
// resolution, raw-socket transmission under the Swift/MPTP IP protocol
// number, and an inbound receive loop that feeds swift.HandleInbound.
//
// Raw-socket access requires CAP_NET_RAW; Conn is kept minimal so that
// tests can substitute LoopbackConn instead.
package ipio
