package swift

import "errors"

// Sentinel errors for the Swift/MPTP protocol engine. Each corresponds to
// one error kind from the taxonomy: malformed input, resource exhaustion,
// or a blocking condition that could not be satisfied immediately.
var (
	// ErrInvalidArgument indicates a malformed address record, an
	// out-of-range or zero port, or an oversized/undersized record.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAddressInUse indicates a bind collision: the requested port is
	// already mapped to another socket.
	ErrAddressInUse = errors.New("address in use")

	// ErrOutOfMemory indicates ephemeral-port exhaustion or a buffer
	// allocation failure.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrDestinationRequired indicates sendmsg was called with no target
	// record on a socket that is not connected.
	ErrDestinationRequired = errors.New("destination required: socket not connected")

	// ErrWouldBlock indicates a non-blocking operation found no progress
	// possible (no datagram queued, no transmit buffer available).
	ErrWouldBlock = errors.New("would block")

	// ErrRouteUnreachable indicates the IP layer returned no route to a
	// destination address.
	ErrRouteUnreachable = errors.New("route unreachable")

	// ErrSocketReleased indicates an operation on an already-released
	// socket.
	ErrSocketReleased = errors.New("socket released")

	// ErrPortTableExhausted indicates the ephemeral port allocator found
	// no free port in [MinPort, 255].
	ErrPortTableExhausted = errors.New("port table exhausted")
)
