package swift

// MetricsReporter receives counter events from the protocol engine. A
// nil-safe no-op implementation is used when the caller does not wire a
// real collector, following the reference daemon's noopMetrics pattern.
type MetricsReporter interface {
	// DatagramSent is called once per datagram the IP layer accepted for
	// transmission, with its payload size; a failed transmit is not
	// reported.
	DatagramSent(bytes int)

	// DatagramReceived is called once per datagram successfully enqueued
	// on a socket's receive queue.
	DatagramReceived(bytes int)

	// DatagramDropped is called once per inbound datagram discarded
	// before (or instead of) enqueueing, labeled by reason: "short_header",
	// "bad_length", "bad_port", "no_socket", "queue_full", or "closed"
	// (spec.md section 7).
	DatagramDropped(reason string)

	// PortExhausted is called when ephemeral port allocation fails.
	PortExhausted()
}

type noopMetrics struct{}

func (noopMetrics) DatagramSent(int)        {}
func (noopMetrics) DatagramReceived(int)    {}
func (noopMetrics) DatagramDropped(string)  {}
func (noopMetrics) PortExhausted()          {}

var _ MetricsReporter = noopMetrics{}
