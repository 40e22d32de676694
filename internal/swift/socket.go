package swift

import (
	"fmt"
	"net/netip"
	"sync"
)

// State is a socket's position in the lifecycle state machine
// (spec.md section 4.6).
type State uint8

const (
	// StateFresh is the initial state: unbound, unconnected.
	StateFresh State = iota

	// StateBound means src != 0, dst == 0.
	StateBound

	// StateConnected means src != 0, dst != 0, daddr != 0.
	StateConnected

	// StateReleased is terminal.
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateBound:
		return "bound"
	case StateConnected:
		return "connected"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Socket is one endpoint of the Swift/MPTP transport (spec.md section 3).
// src, dst, and daddr are set at most once (by Bind or Connect) and are
// immutable thereafter until Release; concurrent reads from the send and
// receive paths are therefore safe without locking them individually.
// The cached route is single-writer (the owning goroutine, during
// connected-mode sendmsg) and is guarded by its own mutex because poll/
// inspection paths may read it concurrently.
type Socket struct {
	table *PortTable
	ip    IPLayer
	queue *recvQueue

	mu      sync.Mutex
	state   State
	src     uint8
	dst     uint8
	daddr   netip.Addr

	routeMu sync.Mutex
	route   Route

	metrics MetricsReporter
}

// SocketOption configures optional Socket parameters at creation time.
type SocketOption func(*Socket)

// WithMetrics attaches a MetricsReporter to the socket and its queue.
func WithMetrics(m MetricsReporter) SocketOption {
	return func(s *Socket) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithQueueByteCap overrides the default receive-queue byte bound.
func WithQueueByteCap(byteCap int) SocketOption {
	return func(s *Socket) {
		s.queue = newRecvQueue(byteCap, func(reason string) {
			s.metrics.DatagramDropped(reason)
		})
	}
}

// NewSocket creates a fresh, unbound socket (spec.md section 4.2:
// "Create"). table is the process-wide port table the socket will
// register into on bind/connect/ephemeral-allocate; ip is the IP-layer
// collaborator used by the send path.
func NewSocket(table *PortTable, ip IPLayer, opts ...SocketOption) *Socket {
	s := &Socket{
		table:   table,
		ip:      ip,
		state:   StateFresh,
		metrics: noopMetrics{},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.queue == nil {
		s.queue = newRecvQueue(DefaultQueueByteCap, func(reason string) {
			s.metrics.DatagramDropped(reason)
		})
	}

	return s
}

// State reports the socket's current lifecycle state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// SrcPort reports the bound source port, or 0 if unbound.
func (s *Socket) SrcPort() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.src
}

// Peer reports the connected destination (port, address), or (0, zero
// Addr) if not connected.
func (s *Socket) Peer() (uint8, netip.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dst, s.daddr
}

// Bind assigns src as the socket's source port and registers it in the
// port table (spec.md section 4.2). rec must carry exactly one
// destination descriptor; its Port field is the port to bind.
//
// Fails with ErrInvalidArgument if rec does not have exactly one
// descriptor, the port is out of range, or the socket is not fresh;
// ErrAddressInUse if the port table slot is occupied.
func (s *Socket) Bind(rec AddressRecord) error {
	if rec.Count() != 1 {
		return fmt.Errorf("bind: address record has %d destinations, want 1: %w",
			rec.Count(), ErrInvalidArgument)
	}

	port := rec.Dests[0].Port
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("bind: port %d out of range [%d, %d]: %w",
			port, MinPort, MaxPort, ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateFresh {
		return fmt.Errorf("bind: socket in state %s, want fresh: %w",
			s.state, ErrInvalidArgument)
	}

	if err := s.table.Bind(port, s); err != nil {
		return fmt.Errorf("bind: %w", err)
	}

	s.src = port
	s.state = StateBound

	return nil
}

// Connect fixes the socket's destination endpoint and allocates an
// ephemeral source port (spec.md section 4.2). rec's first descriptor is
// consumed; any further entries are ignored.
//
// Connect is only legal from the fresh state: a bound socket cannot also
// be connected (spec.md section 4.6: "connect from fresh only").
func (s *Socket) Connect(rec AddressRecord) error {
	if rec.Count() < 1 {
		return fmt.Errorf("connect: empty address record: %w", ErrInvalidArgument)
	}

	dest := rec.Dests[0]
	if dest.Port < MinPort || dest.Port > MaxPort || !dest.Addr.IsValid() || dest.Addr.IsUnspecified() {
		return fmt.Errorf("connect: invalid peer %s:%d: %w",
			dest.Addr, dest.Port, ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateFresh {
		return fmt.Errorf("connect: socket in state %s, want fresh: %w",
			s.state, ErrInvalidArgument)
	}

	src, err := s.table.AllocateEphemeral(s)
	if err != nil {
		s.metrics.PortExhausted()
		return fmt.Errorf("connect: %w", ErrOutOfMemory)
	}

	s.src = src
	s.dst = dest.Port
	s.daddr = dest.Addr
	s.state = StateConnected

	return nil
}

// Release tears the socket down (spec.md section 4.2): clears the port
// table entry if bound, drains and frees the receive queue, drops any
// cached route, and marks the socket released. Release is idempotent.
func (s *Socket) Release() {
	s.mu.Lock()

	if s.state == StateReleased {
		s.mu.Unlock()
		return
	}

	src := s.src
	s.state = StateReleased
	s.mu.Unlock()

	if src != 0 {
		s.table.Release(src)
	}

	s.queue.Close()

	s.routeMu.Lock()
	s.route = Route{}
	s.routeMu.Unlock()
}

// cachedRoute returns the cached route if it resolves dst (connected
// peer only), matching spec.md section 4.4 step e: "do not cache" for
// per-destination sends in unconnected mode.
func (s *Socket) cachedRoute(dst netip.Addr) (Route, bool) {
	s.routeMu.Lock()
	defer s.routeMu.Unlock()

	if s.route.Resolved && s.dst != 0 && s.daddr == dst {
		return s.route, true
	}

	return Route{}, false
}

// setCachedRoute stores route for reuse by later connected-mode sends.
func (s *Socket) setCachedRoute(route Route) {
	s.routeMu.Lock()
	s.route = route
	s.routeMu.Unlock()
}
