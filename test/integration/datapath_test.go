//go:build integration

package integration_test

import (
	"context"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/mptpnet/swiftmptp/internal/ipio"
	"github.com/mptpnet/swiftmptp/internal/swift"
)

// -------------------------------------------------------------------------
// TestDatapathTwoSockets — end-to-end send/receive across two daemons
// -------------------------------------------------------------------------

// TestDatapathTwoSockets wires two swift.PortTable + ipio.Receiver pairs
// together through a pair of piped ipio.LoopbackConns, binds a socket on
// each side, and verifies a datagram sent from one reaches the other's
// receive queue with the correct source endpoint recorded (spec.md
// section 4: bind, sendmsg, recvmsg as they would run across two
// separate hosts).
func TestDatapathTwoSockets(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	addrA := netip.MustParseAddr("10.0.0.1")
	addrB := netip.MustParseAddr("10.0.0.2")

	connA := ipio.NewLoopbackConn(addrA)
	connB := ipio.NewLoopbackConn(addrB)
	ipio.Pipe(connA, connB)

	tableA := swift.NewPortTable()
	tableB := swift.NewPortTable()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recvA := ipio.NewReceiver(connA, tableA, nil, logger)
	recvB := ipio.NewReceiver(connB, tableB, nil, logger)

	go recvA.Run(ctx)
	go recvB.Run(ctx)

	sockA := swift.NewSocket(tableA, ipio.NewIPLayer(connA))
	defer sockA.Release()
	sockB := swift.NewSocket(tableB, ipio.NewIPLayer(connB))
	defer sockB.Release()

	if err := sockA.Bind(swift.AddressRecord{Dests: []swift.Destination{{Port: 10}}}); err != nil {
		t.Fatalf("bind A: %v", err)
	}
	if err := sockB.Bind(swift.AddressRecord{Dests: []swift.Destination{{Port: 20}}}); err != nil {
		t.Fatalf("bind B: %v", err)
	}

	target := swift.AddressRecord{Dests: []swift.Destination{{Addr: addrB, Port: 20}}}
	result := sockA.SendMsg([][]byte{[]byte("hello from A")}, &target, swift.SendFlags{})
	if result.Err != nil {
		t.Fatalf("SendMsg: %v", result.Err)
	}
	if result.Sent != 1 {
		t.Fatalf("Sent = %d, want 1", result.Sent)
	}

	buf := make([]byte, 256)
	var gotFrom swift.AddressRecord
	gotFrom.Dests = make([]swift.Destination, 1)

	deadline := time.After(2 * time.Second)
	for {
		recv := sockB.RecvMsg([][]byte{buf}, &gotFrom, swift.SendFlags{NonBlocking: true})
		if recv.Err == nil && recv.BytesCopied > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("recv B: timed out waiting for datagram, last err=%v", recv.Err)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if got := string(buf[:gotFrom.Dests[0].Bytes]); got != "hello from A" {
		t.Errorf("payload = %q, want %q", got, "hello from A")
	}
	if gotFrom.Dests[0].Addr != addrA {
		t.Errorf("source addr = %v, want %v", gotFrom.Dests[0].Addr, addrA)
	}
	if gotFrom.Dests[0].Port != 10 {
		t.Errorf("source port = %d, want 10", gotFrom.Dests[0].Port)
	}
}

// TestDatapathMultiDestinationFanout verifies one sendmsg call reaching
// two different bound sockets on the same peer table (spec.md section
// 4.4: multi-destination sendmsg fans a gather vector out across
// distinct destinations in one call).
func TestDatapathMultiDestinationFanout(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	addrA := netip.MustParseAddr("10.0.1.1")
	addrB := netip.MustParseAddr("10.0.1.2")

	connA := ipio.NewLoopbackConn(addrA)
	connB := ipio.NewLoopbackConn(addrB)
	ipio.Pipe(connA, connB)

	tableB := swift.NewPortTable()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recvB := ipio.NewReceiver(connB, tableB, nil, logger)
	go recvB.Run(ctx)

	sockA := swift.NewSocket(swift.NewPortTable(), ipio.NewIPLayer(connA))
	defer sockA.Release()

	sockB1 := swift.NewSocket(tableB, ipio.NewIPLayer(connB))
	defer sockB1.Release()
	sockB2 := swift.NewSocket(tableB, ipio.NewIPLayer(connB))
	defer sockB2.Release()

	if err := sockB1.Bind(swift.AddressRecord{Dests: []swift.Destination{{Port: 30}}}); err != nil {
		t.Fatalf("bind B1: %v", err)
	}
	if err := sockB2.Bind(swift.AddressRecord{Dests: []swift.Destination{{Port: 31}}}); err != nil {
		t.Fatalf("bind B2: %v", err)
	}

	target := swift.AddressRecord{Dests: []swift.Destination{
		{Addr: addrB, Port: 30},
		{Addr: addrB, Port: 31},
	}}
	result := sockA.SendMsg([][]byte{[]byte("to-30"), []byte("to-31")}, &target, swift.SendFlags{})
	if result.Err != nil {
		t.Fatalf("SendMsg: %v", result.Err)
	}
	if result.Sent != 2 {
		t.Fatalf("Sent = %d, want 2", result.Sent)
	}

	waitForPayload(t, sockB1, "to-30")
	waitForPayload(t, sockB2, "to-31")
}

func waitForPayload(t *testing.T, sock *swift.Socket, want string) {
	t.Helper()

	buf := make([]byte, 256)
	var from swift.AddressRecord
	from.Dests = make([]swift.Destination, 1)

	deadline := time.After(2 * time.Second)
	for {
		recv := sock.RecvMsg([][]byte{buf}, &from, swift.SendFlags{NonBlocking: true})
		if recv.Err == nil && recv.BytesCopied > 0 {
			if got := string(buf[:from.Dests[0].Bytes]); got != want {
				t.Errorf("payload = %q, want %q", got, want)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestDatapathUnboundDestinationIsSilentlyDropped verifies that sending
// to a port nothing has bound leaves the sender's view unaffected and
// simply never surfaces a datagram on the receiving table (spec.md
// section 7: unresolvable destination ports are a silent drop, not a
// protocol error).
func TestDatapathUnboundDestinationIsSilentlyDropped(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	addrA := netip.MustParseAddr("10.0.2.1")
	addrB := netip.MustParseAddr("10.0.2.2")

	connA := ipio.NewLoopbackConn(addrA)
	connB := ipio.NewLoopbackConn(addrB)
	ipio.Pipe(connA, connB)

	tableB := swift.NewPortTable()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recvB := ipio.NewReceiver(connB, tableB, nil, logger)
	go recvB.Run(ctx)

	sockA := swift.NewSocket(swift.NewPortTable(), ipio.NewIPLayer(connA))
	defer sockA.Release()

	target := swift.AddressRecord{Dests: []swift.Destination{{Addr: addrB, Port: 99}}}
	result := sockA.SendMsg([][]byte{[]byte("nobody home")}, &target, swift.SendFlags{})
	if result.Err != nil {
		t.Fatalf("SendMsg: %v", result.Err)
	}

	// Give the receiver a chance to process and drop the datagram, then
	// confirm nothing was ever delivered into any socket on tableB.
	time.Sleep(50 * time.Millisecond)

	sockB := swift.NewSocket(tableB, ipio.NewIPLayer(connB))
	defer sockB.Release()
	if err := sockB.Bind(swift.AddressRecord{Dests: []swift.Destination{{Port: 99}}}); err != nil {
		t.Fatalf("bind B: %v", err)
	}

	buf := make([]byte, 256)
	recv := sockB.RecvMsg([][]byte{buf}, nil, swift.SendFlags{NonBlocking: true})
	if recv.BytesCopied != 0 {
		t.Fatalf("expected no datagram delivered after late bind, got %d bytes", recv.BytesCopied)
	}
}
