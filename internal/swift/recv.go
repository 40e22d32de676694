package swift

import (
	"errors"
	"fmt"
	"net/netip"
)

// InboundMeta carries the IP-layer metadata attached to an inbound
// datagram before it reaches HandleInbound: the source address from the
// IP header (spec.md section 4.5.1 step 5).
type InboundMeta struct {
	SrcAddr [4]byte
}

// HandleInbound is the receive-path entry point driven by the IP layer
// (spec.md section 4.5.1). buf is the datagram payload as delivered by
// IP (header + Swift payload, possibly with trailing padding beyond the
// declared length). table is the process-wide port table used to
// demultiplex by destination port.
//
// Every validation failure is a silent drop (spec.md section 7: "Parse/
// validation errors on input from the network are never surfaced");
// the reason is reported to metrics, never returned as an error a
// caller must handle as a protocol fault.
func HandleInbound(table *PortTable, metrics MetricsReporter, buf []byte, meta InboundMeta) {
	if metrics == nil {
		metrics = noopMetrics{}
	}

	h, err := UnmarshalHeader(buf)
	if err != nil {
		switch {
		case errors.Is(err, ErrHeaderTooShort):
			metrics.DatagramDropped("short_header")
		case errors.Is(err, ErrHeaderBadPort):
			metrics.DatagramDropped("bad_port")
		default:
			metrics.DatagramDropped("bad_length")
		}
		return
	}

	sock := table.Lookup(h.Dst)
	if sock == nil {
		metrics.DatagramDropped("no_socket")
		return
	}

	payload := TrimToLength(buf, h)[HeaderSize:]
	stored := make([]byte, len(payload))
	copy(stored, payload)

	sock.enqueue(datagram{
		payload: stored,
		srcAddr: meta.SrcAddr,
		srcPort: h.Src,
	})
}

// enqueue delivers d onto the socket's receive queue, counting it as
// received on success and relying on the queue itself to count a
// capacity drop (spec.md section 4.5.1 step 6).
func (s *Socket) enqueue(d datagram) {
	before := s.queue.Len()
	s.queue.Enqueue(d)

	if s.queue.Len() > before {
		s.metrics.DatagramReceived(len(d.payload))
	}
}

// RecvResult reports the outcome of one RecvMsg call, the multi-datagram
// recvmsg (spec.md section 4.5.2) that drains the queue into buffers,
// reports each datagram's source endpoint in outAddr (if non-nil), and
// never blocks to fill more than the first buffer.
type RecvResult struct {
	// BytesCopied is the cumulative number of bytes copied across every
	// buffer filled this call (spec.md section 9: cumulative, not last-
	// datagram-only).
	BytesCopied int

	// Truncated is true if any drained datagram was longer than its
	// paired buffer.
	Truncated bool

	// Err is set only if the first dequeue failed (empty + non-blocking,
	// or the socket was released while waiting).
	Err error
}

// RecvMsg drains up to len(buffers) datagrams into buffers, filling
// outAddr's Dests (up to its capacity) with each datagram's source
// endpoint and per-buffer byte count, and sets outAddr.Count to the
// number of datagrams actually filled (spec.md section 9: "this spec
// prescribes count = number actually filled").
func (s *Socket) RecvMsg(buffers [][]byte, outAddr *AddressRecord, flags SendFlags) RecvResult {
	result := RecvResult{}

	i := 0
	for i < len(buffers) {
		nonBlocking := flags.NonBlocking || i > 0

		d, err := s.queue.Dequeue(nonBlocking)
		if err != nil {
			if i == 0 {
				return RecvResult{Err: fmt.Errorf("recvmsg: %w", err)}
			}
			break
		}

		copied := copy(buffers[i], d.payload)
		if copied < len(d.payload) {
			result.Truncated = true
		}
		result.BytesCopied += copied

		if outAddr != nil && i < len(outAddr.Dests) {
			outAddr.Dests[i] = Destination{
				Addr:  netip.AddrFrom4(d.srcAddr),
				Port:  d.srcPort,
				Bytes: uint32(copied),
			}
		}

		i++
	}

	if outAddr != nil {
		n := i
		if n > len(outAddr.Dests) {
			n = len(outAddr.Dests)
		}
		outAddr.Dests = outAddr.Dests[:n]
	}

	return result
}
