// Package metric provides Prometheus instrumentation for the transit layer:
// packet counters by command, pending-request occupancy, connection state
// and reconnect counts, exposed through a registry owned by the node.
package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all transit-level metrics
type Metrics struct {
	PacketsSent     *prometheus.CounterVec
	PacketsReceived *prometheus.CounterVec
	PacketsDropped  *prometheus.CounterVec
	PendingRequests prometheus.Gauge
	Connected       prometheus.Gauge
	Reconnects      prometheus.Counter
	PongRoundTrip   prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all transit metrics
func NewMetrics() *Metrics {
	return &Metrics{
		PacketsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "moleculer",
				Subsystem: "transit",
				Name:      "packets_sent_total",
				Help:      "Total number of packets published, by command",
			},
			[]string{"command"},
		),

		PacketsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "moleculer",
				Subsystem: "transit",
				Name:      "packets_received_total",
				Help:      "Total number of packets accepted, by command",
			},
			[]string{"command"},
		),

		PacketsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "moleculer",
				Subsystem: "transit",
				Name:      "packets_dropped_total",
				Help:      "Total number of inbound packets dropped, by reason",
			},
			[]string{"reason"},
		),

		PendingRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "moleculer",
				Subsystem: "transit",
				Name:      "pending_requests",
				Help:      "Current number of in-flight outbound requests",
			},
		),

		Connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "moleculer",
				Subsystem: "transit",
				Name:      "connected",
				Help:      "Transit connection status (0=disconnected, 1=connected)",
			},
		),

		Reconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "moleculer",
				Subsystem: "transit",
				Name:      "reconnects_total",
				Help:      "Total number of transporter reconnections",
			},
		),

		PongRoundTrip: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "moleculer",
				Subsystem: "transit",
				Name:      "pong_round_trip_seconds",
				Help:      "PING/PONG round-trip time in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

// RecordPacketSent increments the sent counter for a command
func (m *Metrics) RecordPacketSent(command string) {
	m.PacketsSent.WithLabelValues(command).Inc()
}

// RecordPacketReceived increments the received counter for a command
func (m *Metrics) RecordPacketReceived(command string) {
	m.PacketsReceived.WithLabelValues(command).Inc()
}

// RecordPacketDropped increments the dropped counter for a reason
func (m *Metrics) RecordPacketDropped(reason string) {
	m.PacketsDropped.WithLabelValues(reason).Inc()
}

// RecordPendingRequests updates the pending table occupancy gauge
func (m *Metrics) RecordPendingRequests(size int) {
	m.PendingRequests.Set(float64(size))
}

// RecordConnected updates the connection status gauge
func (m *Metrics) RecordConnected(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.Connected.Set(value)
}

// RecordReconnect increments the reconnection counter
func (m *Metrics) RecordReconnect() {
	m.Reconnects.Inc()
}

// RecordPongRoundTrip observes a PING/PONG round trip
func (m *Metrics) RecordPongRoundTrip(elapsed time.Duration) {
	m.PongRoundTrip.Observe(elapsed.Seconds())
}
