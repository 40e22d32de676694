// Package swift implements the Swift/MPTP transport protocol: an
// unreliable datagram transport layered directly on IP, distinguished by
// multi-destination sendmsg and multi-source recvmsg.
//
// This package holds the protocol engine: the port table, socket state
// model, wire codec, and the send/receive paths. IP-layer routing and
// transmission are external collaborators, consumed through the
// RouteResolver and Transmitter interfaces (see ip.go).
package swift
