// Package swiftmetrics exposes Prometheus instrumentation for the
// swiftmptp transport.
package swiftmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mptpnet/swiftmptp/internal/swift"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "swiftmptp"
	subsystem = "transport"
)

// Label names.
const (
	labelReason = "reason"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Swift/MPTP Metrics
// -------------------------------------------------------------------------

// Collector holds all swiftmptp Prometheus metrics and implements
// swift.MetricsReporter, letting the core transport report directly into
// Prometheus without knowing about it.
//
//   - BoundSockets is a gauge of currently bound/connected sockets.
//   - BytesSent/BytesReceived are cumulative byte counters.
//   - DatagramsDropped is labeled by drop reason for precise alerting
//     ("short_header", "bad_length", "bad_port", "no_socket", "queue_full",
//     "closed").
//   - PortExhaustions counts failed ephemeral allocations.
type Collector struct {
	BoundSockets prometheus.Gauge

	BytesSent     prometheus.Counter
	BytesReceived prometheus.Counter

	DatagramsSent     prometheus.Counter
	DatagramsReceived prometheus.Counter
	DatagramsDropped  *prometheus.CounterVec

	PortExhaustions prometheus.Counter
}

// NewCollector creates a Collector with all metrics registered against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
//
// All metrics are created with the "swiftmptp_transport_" prefix
// (namespace_subsystem) to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.BoundSockets,
		c.BytesSent,
		c.BytesReceived,
		c.DatagramsSent,
		c.DatagramsReceived,
		c.DatagramsDropped,
		c.PortExhaustions,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	return &Collector{
		BoundSockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bound_sockets",
			Help:      "Number of currently bound or connected sockets.",
		}),

		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_sent_total",
			Help:      "Total payload bytes transmitted via sendmsg.",
		}),

		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_received_total",
			Help:      "Total payload bytes delivered via recvmsg.",
		}),

		DatagramsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "datagrams_sent_total",
			Help:      "Total datagrams transmitted.",
		}),

		DatagramsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "datagrams_received_total",
			Help:      "Total datagrams enqueued for delivery.",
		}),

		DatagramsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "datagrams_dropped_total",
			Help:      "Total datagrams dropped, labeled by reason.",
		}, []string{labelReason}),

		PortExhaustions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "port_exhaustions_total",
			Help:      "Total ephemeral port allocation failures.",
		}),
	}
}

// -------------------------------------------------------------------------
// swift.MetricsReporter implementation
// -------------------------------------------------------------------------

// DatagramSent records bytes of payload transmitted on the send path.
func (c *Collector) DatagramSent(bytes int) {
	c.DatagramsSent.Inc()
	c.BytesSent.Add(float64(bytes))
}

// DatagramReceived records bytes of payload enqueued on the receive path.
func (c *Collector) DatagramReceived(bytes int) {
	c.DatagramsReceived.Inc()
	c.BytesReceived.Add(float64(bytes))
}

// DatagramDropped increments the dropped-datagram counter labeled by reason.
func (c *Collector) DatagramDropped(reason string) {
	c.DatagramsDropped.WithLabelValues(reason).Inc()
}

// PortExhausted increments the ephemeral port exhaustion counter.
func (c *Collector) PortExhausted() {
	c.PortExhaustions.Inc()
}

// -------------------------------------------------------------------------
// Socket Lifecycle
// -------------------------------------------------------------------------

// SocketBound increments the bound-sockets gauge. Call when a socket
// transitions out of the fresh state (Bind or Connect).
func (c *Collector) SocketBound() {
	c.BoundSockets.Inc()
}

// SocketReleased decrements the bound-sockets gauge. Call when a bound
// or connected socket is released.
func (c *Collector) SocketReleased() {
	c.BoundSockets.Dec()
}

var _ swift.MetricsReporter = (*Collector)(nil)
