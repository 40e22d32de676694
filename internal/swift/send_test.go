package swift_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/mptpnet/swiftmptp/internal/swift"
)

func TestSendMsgConnectedModeSendsToEachPayload(t *testing.T) {
	t.Parallel()

	table := swift.NewPortTable()
	ip := newTestIPLayer()
	sock := swift.NewSocket(table, ip)
	t.Cleanup(sock.Release)

	if err := sock.Connect(swift.AddressRecord{
		Dests: []swift.Destination{{Addr: testPeerAddr, Port: 9}},
	}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	result := sock.SendMsg([][]byte{[]byte("one"), []byte("two")}, nil, swift.SendFlags{})
	if result.Err != nil {
		t.Fatalf("SendMsg: %v", result.Err)
	}
	if result.Sent != 2 {
		t.Fatalf("Sent = %d, want 2", result.Sent)
	}
	if len(*ip.transmitted) != 2 {
		t.Fatalf("transmitted = %d, want 2", len(*ip.transmitted))
	}
	for _, d := range *ip.transmitted {
		if d.dst != testPeerAddr {
			t.Errorf("transmitted to %v, want %v", d.dst, testPeerAddr)
		}
	}
}

func TestSendMsgConnectedModeRequiresConnection(t *testing.T) {
	t.Parallel()

	table := swift.NewPortTable()
	sock := swift.NewSocket(table, testIPLayer{})
	t.Cleanup(sock.Release)

	result := sock.SendMsg([][]byte{[]byte("x")}, nil, swift.SendFlags{})
	if !errors.Is(result.Err, swift.ErrDestinationRequired) {
		t.Fatalf("err = %v, want ErrDestinationRequired", result.Err)
	}
}

func TestSendMsgMultiDestinationPositionalPairing(t *testing.T) {
	t.Parallel()

	table := swift.NewPortTable()
	ip := newTestIPLayer()
	sock := swift.NewSocket(table, ip)
	t.Cleanup(sock.Release)

	if err := sock.Bind(swift.AddressRecord{Dests: []swift.Destination{{Port: 1}}}); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	dest1 := netip.MustParseAddr("192.0.2.10")
	dest2 := netip.MustParseAddr("192.0.2.20")

	target := swift.AddressRecord{Dests: []swift.Destination{
		{Addr: dest1, Port: 10},
		{Addr: dest2, Port: 20},
	}}

	result := sock.SendMsg([][]byte{[]byte("a"), []byte("b")}, &target, swift.SendFlags{})
	if result.Err != nil {
		t.Fatalf("SendMsg: %v", result.Err)
	}
	if result.Sent != 2 {
		t.Fatalf("Sent = %d, want 2", result.Sent)
	}

	if (*ip.transmitted)[0].dst != dest1 || (*ip.transmitted)[1].dst != dest2 {
		t.Errorf("transmitted = %+v, want positional pairing to dest1/dest2", *ip.transmitted)
	}
}

func TestSendMsgNMinOfDestsAndPayloads(t *testing.T) {
	t.Parallel()

	table := swift.NewPortTable()
	ip := newTestIPLayer()
	sock := swift.NewSocket(table, ip)
	t.Cleanup(sock.Release)

	if err := sock.Bind(swift.AddressRecord{Dests: []swift.Destination{{Port: 1}}}); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	target := swift.AddressRecord{Dests: []swift.Destination{
		{Addr: testPeerAddr, Port: 10},
		{Addr: testPeerAddr, Port: 11},
		{Addr: testPeerAddr, Port: 12},
	}}

	result := sock.SendMsg([][]byte{[]byte("only one payload")}, &target, swift.SendFlags{})
	if result.Err != nil {
		t.Fatalf("SendMsg: %v", result.Err)
	}
	if result.Sent != 1 {
		t.Fatalf("Sent = %d, want 1 (min of 3 dests, 1 payload)", result.Sent)
	}
}

func TestSendMsgInvalidDestinationPortAbortsLoop(t *testing.T) {
	t.Parallel()

	table := swift.NewPortTable()
	ip := newTestIPLayer()
	sock := swift.NewSocket(table, ip)
	t.Cleanup(sock.Release)

	if err := sock.Bind(swift.AddressRecord{Dests: []swift.Destination{{Port: 1}}}); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	target := swift.AddressRecord{Dests: []swift.Destination{
		{Addr: testPeerAddr, Port: 10},
		{Addr: testPeerAddr, Port: 0}, // invalid: out of range
	}}

	result := sock.SendMsg([][]byte{[]byte("a"), []byte("b")}, &target, swift.SendFlags{})
	if !errors.Is(result.Err, swift.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", result.Err)
	}
	if result.Sent != 1 {
		t.Fatalf("Sent = %d, want 1 (first send succeeded before abort)", result.Sent)
	}
}

func TestSendMsgOnReleasedSocket(t *testing.T) {
	t.Parallel()

	table := swift.NewPortTable()
	sock := swift.NewSocket(table, testIPLayer{})
	sock.Release()

	result := sock.SendMsg([][]byte{[]byte("x")}, nil, swift.SendFlags{})
	if !errors.Is(result.Err, swift.ErrSocketReleased) {
		t.Fatalf("err = %v, want ErrSocketReleased", result.Err)
	}
}

func TestSendMsgUnboundSocketUsesScratchPort(t *testing.T) {
	t.Parallel()

	table := swift.NewPortTable()
	ip := newTestIPLayer()
	sock := swift.NewSocket(table, ip)
	t.Cleanup(sock.Release)

	target := swift.AddressRecord{Dests: []swift.Destination{{Addr: testPeerAddr, Port: 10}}}

	result := sock.SendMsg([][]byte{[]byte("adhoc")}, &target, swift.SendFlags{})
	if result.Err != nil {
		t.Fatalf("SendMsg: %v", result.Err)
	}
	if result.Sent != 1 {
		t.Fatalf("Sent = %d, want 1", result.Sent)
	}

	// The scratch port allocation must not persist: the socket stays fresh.
	if sock.State() != swift.StateFresh {
		t.Errorf("State() = %v, want StateFresh (scratch port not bound persistently)", sock.State())
	}
}

func TestSendMsgRouteUnreachable(t *testing.T) {
	t.Parallel()

	table := swift.NewPortTable()
	ip := testIPLayer{resolveErr: errors.New("no route")}
	sock := swift.NewSocket(table, ip)
	t.Cleanup(sock.Release)

	if err := sock.Bind(swift.AddressRecord{Dests: []swift.Destination{{Port: 1}}}); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	target := swift.AddressRecord{Dests: []swift.Destination{{Addr: testPeerAddr, Port: 10}}}
	result := sock.SendMsg([][]byte{[]byte("x")}, &target, swift.SendFlags{})
	if !errors.Is(result.Err, swift.ErrRouteUnreachable) {
		t.Fatalf("err = %v, want ErrRouteUnreachable", result.Err)
	}
}
