package ipio_test

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/mptpnet/swiftmptp/internal/ipio"
	"github.com/mptpnet/swiftmptp/internal/swift"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestLoopbackConnWriteRead(t *testing.T) {
	t.Parallel()

	a := ipio.NewLoopbackConn(netip.MustParseAddr("10.0.0.1"))
	b := ipio.NewLoopbackConn(netip.MustParseAddr("10.0.0.2"))
	ipio.Pipe(a, b)

	payload := []byte{0x01, 0x02, 0x03, 0x04}
	if err := a.WriteDatagram(payload, netip.MustParseAddr("10.0.0.2")); err != nil {
		t.Fatalf("write: unexpected error: %v", err)
	}

	buf := make([]byte, 64)
	n, src, err := b.ReadDatagram(buf)
	if err != nil {
		t.Fatalf("read: unexpected error: %v", err)
	}

	if n != len(payload) {
		t.Errorf("n = %d, want %d", n, len(payload))
	}
	if src != netip.MustParseAddr("10.0.0.1") {
		t.Errorf("src = %s, want 10.0.0.1", src)
	}
}

func TestLoopbackConnCloseUnblocksRead(t *testing.T) {
	t.Parallel()

	a := ipio.NewLoopbackConn(netip.MustParseAddr("10.0.0.1"))

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 64)
		_, _, err := a.ReadDatagram(buf)
		done <- err
	}()

	if err := a.Close(); err != nil {
		t.Fatalf("close: unexpected error: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ipio.ErrSocketClosed) {
			t.Errorf("read after close: got %v, want %v", err, ipio.ErrSocketClosed)
		}
	case <-time.After(time.Second):
		t.Fatal("read did not unblock after close")
	}
}

func TestLoopbackConnWriteAfterCloseFails(t *testing.T) {
	t.Parallel()

	a := ipio.NewLoopbackConn(netip.MustParseAddr("10.0.0.1"))
	if err := a.Close(); err != nil {
		t.Fatalf("close: unexpected error: %v", err)
	}

	err := a.WriteDatagram([]byte{0x01}, netip.MustParseAddr("10.0.0.2"))
	if !errors.Is(err, ipio.ErrSocketClosed) {
		t.Errorf("write after close: got %v, want %v", err, ipio.ErrSocketClosed)
	}
}

// TestReceiverDeliversToBoundSocket exercises the full inbound path: a
// datagram written on one LoopbackConn arrives via Receiver.Run and is
// delivered into the bound socket's receive queue.
func TestReceiverDeliversToBoundSocket(t *testing.T) {
	t.Parallel()

	clientConn := ipio.NewLoopbackConn(netip.MustParseAddr("192.0.2.1"))
	serverConn := ipio.NewLoopbackConn(netip.MustParseAddr("192.0.2.2"))
	ipio.Pipe(clientConn, serverConn)

	table := swift.NewPortTable()
	sock := swift.NewSocket(table, ipio.NewIPLayer(clientConn))

	rec := swift.AddressRecord{Dests: []swift.Destination{{Port: 7}}}
	if err := sock.Bind(rec); err != nil {
		t.Fatalf("bind: unexpected error: %v", err)
	}
	defer sock.Release()

	recv := ipio.NewReceiver(serverConn, table, nil, discardLogger())

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = recv.Run(ctx)
	}()
	defer func() {
		_ = serverConn.Close()
		<-done
	}()

	header := make([]byte, swift.HeaderSize)
	if err := swift.MarshalHeader(swift.Header{Src: 9, Dst: 7, Length: swift.HeaderSize + 3}, header); err != nil {
		t.Fatalf("marshal header: unexpected error: %v", err)
	}
	datagram := append(header, []byte{0xAA, 0xBB, 0xCC}...)

	if err := clientConn.WriteDatagram(datagram, netip.MustParseAddr("192.0.2.2")); err != nil {
		t.Fatalf("write: unexpected error: %v", err)
	}

	buf := make([][]byte, 1)
	buf[0] = make([]byte, 16)
	var outAddr swift.AddressRecord
	outAddr.Dests = make([]swift.Destination, 1)

	deadline := time.After(time.Second)
	for {
		result := sock.RecvMsg(buf, &outAddr, swift.SendFlags{NonBlocking: true})
		if result.BytesCopied > 0 {
			if result.BytesCopied != 3 {
				t.Errorf("bytes copied = %d, want 3", result.BytesCopied)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("datagram was not delivered in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
