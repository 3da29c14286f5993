// Package metrics exposes the optional Prometheus metrics sink. Every
// recording method is a safe no-op when metrics are disabled, so callers
// never need to branch on whether collection is turned on.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps the Prometheus collectors this service publishes.
type Metrics struct {
	enabled bool

	eventsPublished       *prometheus.CounterVec
	eventsDropped         *prometheus.CounterVec
	eventPublishDuration  *prometheus.HistogramVec
	sessionsCreated       prometheus.Counter
	sessionsClosed        *prometheus.CounterVec
	activeSessions        prometheus.Gauge
	activeStreams         prometheus.Gauge
	streamConnections     *prometheus.CounterVec
	streamDisconnections  *prometheus.CounterVec
	queueDepth            *prometheus.GaugeVec
	replayRequests        *prometheus.CounterVec
	eventsReplayed        prometheus.Counter
	errors                *prometheus.CounterVec
}

// New builds a Metrics instance registered against reg. When enabled is
// false, every method is still safe to call; it simply does nothing.
func New(enabled bool, prefix string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{enabled: enabled}
	if !enabled {
		return m
	}

	m.eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_events_published_total",
		Help: "Total number of events published",
	}, []string{"session_id", "event_type"})

	m.eventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_events_dropped_total",
		Help: "Total number of events dropped due to backpressure",
	}, []string{"session_id", "reason"})

	m.eventPublishDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    prefix + "_event_publish_duration_seconds",
		Help:    "Time taken to publish an event",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"event_type"})

	m.sessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: prefix + "_sessions_created_total",
		Help: "Total number of sessions created",
	})

	m.sessionsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_sessions_closed_total",
		Help: "Total number of sessions closed",
	}, []string{"reason"})

	m.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: prefix + "_active_sessions",
		Help: "Number of currently active sessions",
	})

	m.activeStreams = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: prefix + "_active_streams",
		Help: "Number of currently active SSE streams",
	})

	m.streamConnections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_stream_connections_total",
		Help: "Total number of stream connections",
	}, []string{"reconnection"})

	m.streamDisconnections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_stream_disconnections_total",
		Help: "Total number of stream disconnections",
	}, []string{"reason"})

	m.queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: prefix + "_queue_depth",
		Help: "Current depth of event queues",
	}, []string{"session_id"})

	m.replayRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_replay_requests_total",
		Help: "Total number of replay requests",
	}, []string{"success"})

	m.eventsReplayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: prefix + "_events_replayed_total",
		Help: "Total number of events replayed",
	})

	m.errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_errors_total",
		Help: "Total number of errors",
	}, []string{"error_type"})

	reg.MustRegister(
		m.eventsPublished, m.eventsDropped, m.eventPublishDuration,
		m.sessionsCreated, m.sessionsClosed, m.activeSessions,
		m.activeStreams, m.streamConnections, m.streamDisconnections,
		m.queueDepth, m.replayRequests, m.eventsReplayed, m.errors,
	)

	return m
}

// MeasurePublishDuration returns a function to call when the publish it
// timed has finished. Usage: defer m.MeasurePublishDuration(eventType)().
func (m *Metrics) MeasurePublishDuration(eventType string) func() {
	if !m.enabled {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.eventPublishDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) RecordEventPublished(sessionID, eventType string) {
	if !m.enabled {
		return
	}
	m.eventsPublished.WithLabelValues(sessionID, eventType).Inc()
}

func (m *Metrics) RecordEventDropped(sessionID, reason string) {
	if !m.enabled {
		return
	}
	m.eventsDropped.WithLabelValues(sessionID, reason).Inc()
}

func (m *Metrics) RecordSessionCreated() {
	if !m.enabled {
		return
	}
	m.sessionsCreated.Inc()
	m.activeSessions.Inc()
}

func (m *Metrics) RecordSessionClosed(reason string) {
	if !m.enabled {
		return
	}
	m.sessionsClosed.WithLabelValues(reason).Inc()
	m.activeSessions.Dec()
}

func (m *Metrics) RecordStreamConnected(reconnection bool) {
	if !m.enabled {
		return
	}
	m.activeStreams.Inc()
	m.streamConnections.WithLabelValues(strconv.FormatBool(reconnection)).Inc()
}

func (m *Metrics) RecordStreamDisconnected(reason string) {
	if !m.enabled {
		return
	}
	m.activeStreams.Dec()
	m.streamDisconnections.WithLabelValues(reason).Inc()
}

func (m *Metrics) UpdateQueueDepth(sessionID string, depth int) {
	if !m.enabled {
		return
	}
	m.queueDepth.WithLabelValues(sessionID).Set(float64(depth))
}

func (m *Metrics) RecordReplay(success bool, eventCount int) {
	if !m.enabled {
		return
	}
	m.replayRequests.WithLabelValues(strconv.FormatBool(success)).Inc()
	if success && eventCount > 0 {
		m.eventsReplayed.Add(float64(eventCount))
	}
}

func (m *Metrics) RecordError(errorType string) {
	if !m.enabled {
		return
	}
	m.errors.WithLabelValues(errorType).Inc()
}
