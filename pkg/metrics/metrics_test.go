package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var m dto.Metric
	require.NoError(t, (<-ch).Write(&m))
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestMetrics_DisabledMethodsAreNoOps(t *testing.T) {
	m := New(false, "streamweaver", prometheus.NewRegistry())

	assert.NotPanics(t, func() {
		m.RecordEventPublished("s1", "step_started")
		m.RecordEventDropped("s1", "backpressure")
		m.RecordSessionCreated()
		m.RecordSessionClosed("done")
		m.RecordStreamConnected(false)
		m.RecordStreamDisconnected("completed")
		m.UpdateQueueDepth("s1", 3)
		m.RecordReplay(true, 2)
		m.RecordError("publish")
		stop := m.MeasurePublishDuration("step_started")
		stop()
	})
}

func TestMetrics_RecordEventPublishedIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(true, "streamweaver", reg)

	m.RecordEventPublished("s1", "step_started")
	m.RecordEventPublished("s1", "step_started")

	assert.Equal(t, float64(2), counterValue(t, m.eventsPublished.WithLabelValues("s1", "step_started")))
}

func TestMetrics_SessionLifecycleTracksActiveGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(true, "streamweaver", reg)

	m.RecordSessionCreated()
	m.RecordSessionCreated()
	assert.Equal(t, float64(2), counterValue(t, m.activeSessions))

	m.RecordSessionClosed("client_requested")
	assert.Equal(t, float64(1), counterValue(t, m.activeSessions))
}

func TestMetrics_RecordReplaySkipsEventsReplayedOnFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(true, "streamweaver", reg)

	m.RecordReplay(false, 5)
	assert.Equal(t, float64(0), counterValue(t, m.eventsReplayed))

	m.RecordReplay(true, 5)
	assert.Equal(t, float64(5), counterValue(t, m.eventsReplayed))
}
