package metric

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_RegistersCoreMetrics(t *testing.T) {
	registry := NewRegistry()

	require.NotNil(t, registry.CoreMetrics())
	require.NotNil(t, registry.PrometheusRegistry())

	// A counter vector shows up in Gather output once a label value is recorded
	registry.Metrics.RecordPacketSent("REQUEST")
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["moleculer_transit_packets_sent_total"])
}

func TestMetrics_Recorders(t *testing.T) {
	m := NewMetrics()

	m.RecordPacketSent("EVENT")
	m.RecordPacketSent("EVENT")
	m.RecordPacketReceived("RESPONSE")
	m.RecordPacketDropped("version_mismatch")
	m.RecordPendingRequests(7)
	m.RecordReconnect()
	m.RecordPongRoundTrip(100 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PacketsSent.WithLabelValues("EVENT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketsReceived.WithLabelValues("RESPONSE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PacketsDropped.WithLabelValues("version_mismatch")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.PendingRequests))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconnects))
}

func TestMetrics_RecordConnected(t *testing.T) {
	m := NewMetrics()

	m.RecordConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connected))

	m.RecordConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Connected))
}

func TestRegistry_RegisterCollector(t *testing.T) {
	registry := NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "custom_gauge",
		Help: "test gauge",
	})

	require.NoError(t, registry.RegisterCollector("custom", gauge))

	// Duplicate name is rejected
	err := registry.RegisterCollector("custom", gauge)
	require.Error(t, err)

	assert.True(t, registry.Unregister("custom"))
	assert.False(t, registry.Unregister("custom"))
}
