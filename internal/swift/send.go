package swift

import (
	"fmt"
	"net/netip"
)

// SendFlags carries the msg_flags for SendMsg and RecvMsg (spec.md
// section 6.2). NonBlocking affects RecvMsg only: SendMsg takes its
// buffers from PacketPool and never blocks, so it ignores the flag.
type SendFlags struct {
	NonBlocking bool
}

// SendResult reports the outcome of one SendMsg call: how many of the
// requested datagrams were actually handed to the IP layer, and the
// error (if any) that stopped the loop early (spec.md section 9: "the
// return contract" is resolved here as a count rather than a single
// last-datagram status).
type SendResult struct {
	// Sent is the number of datagrams successfully queued to the IP
	// layer before the call stopped (either because all destinations
	// were processed, or because Err aborted the loop).
	Sent int

	// Err is non-nil if the call was aborted before processing every
	// destination (spec.md section 4.4 step 3a: an invalid destination
	// port aborts the whole call; earlier sends are not retracted).
	Err error
}

// SendMsg implements multi-destination sendmsg (spec.md section 4.4).
// payloads is the gather vector; target, if non-nil, supplies the
// destination list (pairing is positional: payloads[i] -> target[i]).
// If target is nil, the socket must be connected, and every payload is
// sent to the connected peer (spec.md section 4.4 step 2: "connected
// mode: N = V").
func (s *Socket) SendMsg(payloads [][]byte, target *AddressRecord, flags SendFlags) SendResult {
	s.mu.Lock()
	state := s.state
	src := s.src
	connDst := s.dst
	connAddr := s.daddr
	s.mu.Unlock()

	if state == StateReleased {
		return SendResult{Err: fmt.Errorf("sendmsg: %w", ErrSocketReleased)}
	}

	dests, err := destinationsFor(target, connDst, connAddr, len(payloads))
	if err != nil {
		return SendResult{Err: err}
	}

	if src == 0 {
		src, err = s.scratchSourcePort()
		if err != nil {
			return SendResult{Err: err}
		}
	}

	n := min(len(dests), len(payloads))

	result := SendResult{}

	for i := range n {
		if err := s.sendOne(src, dests[i], payloads[i], flags); err != nil {
			result.Err = err
			return result
		}
		result.Sent++
	}

	return result
}

// destinationsFor resolves step 2 of the sendmsg algorithm: with an
// explicit target record, N = min(D, V) destinations paired positionally;
// in connected mode (target == nil), every payload goes to the connected
// peer, so the destination list is the peer repeated payloadCount times.
func destinationsFor(target *AddressRecord, connDst uint8, connAddr netip.Addr, payloadCount int) ([]Destination, error) {
	if target != nil {
		return target.Dests, nil
	}

	if connDst == 0 {
		return nil, fmt.Errorf("sendmsg: %w", ErrDestinationRequired)
	}

	dests := make([]Destination, payloadCount)
	for i := range dests {
		dests[i] = Destination{Addr: connAddr, Port: connDst}
	}

	return dests, nil
}

// scratchSourcePort allocates an ephemeral port for a single sendmsg
// call on an unbound socket without persisting the allocation (spec.md
// section 4.4 step 1: "do not bind the socket to it persistently unless
// bind/connect semantics require").
func (s *Socket) scratchSourcePort() (uint8, error) {
	allocated, err := s.table.AllocateEphemeral(nil)
	if err != nil {
		s.metrics.PortExhausted()
		return 0, fmt.Errorf("sendmsg: %w", ErrOutOfMemory)
	}

	s.table.Release(allocated)

	return allocated, nil
}

// sendOne performs step 3 of the sendmsg algorithm for a single
// destination: validate, allocate, frame, copy, route, transmit.
func (s *Socket) sendOne(src uint8, dest Destination, payload []byte, flags SendFlags) error {
	if dest.Port < MinPort || dest.Port > MaxPort {
		return fmt.Errorf("sendmsg: destination port %d out of range: %w",
			dest.Port, ErrInvalidArgument)
	}

	bufp, _ := PacketPool.Get().(*[]byte)
	defer PacketPool.Put(bufp)

	total := HeaderSize + len(payload)
	if total > len(*bufp) {
		return fmt.Errorf("sendmsg: datagram size %d exceeds buffer: %w",
			total, ErrOutOfMemory)
	}

	buf := (*bufp)[:total]

	h := Header{Src: src, Dst: dest.Port, Length: uint16(total)}
	if err := MarshalHeader(h, buf); err != nil {
		return fmt.Errorf("sendmsg: %w", err)
	}

	copy(buf[HeaderSize:], payload)

	route, cached := s.cachedRoute(dest.Addr)
	if !cached {
		resolved, err := s.ip.Resolve(dest.Addr)
		if err != nil {
			return fmt.Errorf("sendmsg: route to %s: %w: %w",
				dest.Addr, err, ErrRouteUnreachable)
		}
		route = resolved

		if connDst, connAddr := s.Peer(); connDst != 0 && connAddr == dest.Addr {
			s.setCachedRoute(route)
		}
	}

	if err := s.ip.Transmit(dest.Addr, route, buf); err != nil {
		return fmt.Errorf("sendmsg: transmit to %s:%d: %w",
			dest.Addr, dest.Port, err)
	}

	s.metrics.DatagramSent(len(payload))

	return nil
}
