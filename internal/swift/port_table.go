package swift

import (
	"fmt"
	"sync"
)

// MinPort is the lowest assignable user port. Port 0 is reserved as
// "unset"; ports below MinPort are reserved for implementation use.
const MinPort = 1

// MaxPort is the highest assignable port; the port space is an 8-bit
// field (source port / destination port, spec.md section 3).
const MaxPort = 255

// PortTable is the process-wide mapping from port numbers to the socket
// that owns them. It is a fixed-size array indexed by port, a direct
// consequence of the 8-bit port space (spec.md section 4.1): lookups,
// binds, and releases are O(1), and the ephemeral allocator is a linear
// scan over at most 255 slots.
//
// A single mutex guards the whole table. The table is read on every
// inbound datagram (Lookup) and mutated by bind/connect/release, all of
// which are cheap, so a single lock is sufficient; a busier deployment
// could shard by slot plus an atomic scan cursor, but 255 entries never
// justifies it.
type PortTable struct {
	mu    sync.Mutex
	slots [MaxPort + 1]*Socket
}

// NewPortTable creates an empty port table.
func NewPortTable() *PortTable {
	return &PortTable{}
}

// Lookup returns the socket bound to port, or nil if the port is unbound.
func (t *PortTable) Lookup(port uint8) *Socket {
	if port == 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.slots[port]
}

// Bind registers sock under port. Fails with ErrInvalidArgument if port
// is outside [MinPort, MaxPort], and with ErrAddressInUse if the slot is
// already occupied.
func (t *PortTable) Bind(port uint8, sock *Socket) error {
	if port < MinPort {
		return fmt.Errorf("bind port %d: %w", port, ErrInvalidArgument)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.slots[port] != nil {
		return fmt.Errorf("bind port %d: %w", port, ErrAddressInUse)
	}

	t.slots[port] = sock

	return nil
}

// AllocateEphemeral returns the lowest unused port in [MinPort, MaxPort]
// and registers sock under it. Returns ErrPortTableExhausted if every
// slot is occupied.
func (t *PortTable) AllocateEphemeral(sock *Socket) (uint8, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for p := MinPort; p <= MaxPort; p++ {
		if t.slots[p] == nil {
			t.slots[p] = sock
			return uint8(p), nil
		}
	}

	return 0, fmt.Errorf("allocate ephemeral port: %w", ErrPortTableExhausted)
}

// Release unconditionally clears port's slot, regardless of which socket
// currently occupies it. Releasing an already-empty slot is a no-op.
func (t *PortTable) Release(port uint8) {
	if port == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.slots[port] = nil
}

// SocketInfo is a point-in-time view of one bound port, for inspection
// surfaces (the admin API, swiftmptpctl) that must not reach into
// Socket internals directly.
type SocketInfo struct {
	Port  uint8
	State State
}

// Snapshot returns one SocketInfo per currently occupied port, ascending
// by port number.
func (t *PortTable) Snapshot() []SocketInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	infos := make([]SocketInfo, 0, MaxPort)
	for p := MinPort; p <= MaxPort; p++ {
		sock := t.slots[p]
		if sock == nil {
			continue
		}
		infos = append(infos, SocketInfo{Port: uint8(p), State: sock.State()})
	}

	return infos
}
