// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice_search"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Capture session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsEnded   *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Controller metrics
	Activations        prometheus.Counter
	Restarts           *prometheus.CounterVec
	TranscriptValues   prometheus.Counter
	SearchButtonHidden prometheus.Gauge
	Teardowns          prometheus.Counter

	// Engine metrics
	EngineErrors *prometheus.CounterVec

	// Publish metrics
	PublishTotal   *prometheus.CounterVec
	PublishErrors  *prometheus.CounterVec
	PublishLatency *prometheus.HistogramVec

	// gRPC metrics
	GRPCCalls *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
// Registration is global; call it once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		// Capture session metrics
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_sessions_total",
			Help:      "Total number of capture sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_sessions_active",
			Help:      "Number of currently active capture sessions",
		}),
		SessionsEnded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_sessions_ended_total",
			Help:      "Total number of capture sessions ended, by final state",
		}, []string{"state"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_session_duration_seconds",
			Help:      "Duration of capture sessions in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		// Controller metrics
		Activations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activations_total",
			Help:      "Total number of capture activations requested by the user",
		}),
		Restarts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_restarts_total",
			Help:      "Total number of automatic capture restarts",
		}, []string{"reason"}),
		TranscriptValues: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_values_total",
			Help:      "Total number of transcription values received",
		}),
		SearchButtonHidden: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "search_button_hidden",
			Help:      "Number of controllers currently hiding the search button",
		}),
		Teardowns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "teardowns_total",
			Help:      "Total number of controller teardowns",
		}),

		// Engine metrics
		EngineErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Total number of speech engine errors",
		}, []string{"code"}),

		// Publish metrics
		PublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total number of events published",
		}, []string{"destination", "event_type"}),
		PublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total number of event publish errors",
		}, []string{"destination", "event_type"}),
		PublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_latency_seconds",
			Help:      "Event publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"destination"}),

		// gRPC metrics
		GRPCCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of gRPC calls handled",
		}, []string{"method", "code"}),
	}
}

// RecordSessionStart records a capture session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a capture session ending in the given state.
func (m *Metrics) RecordSessionEnd(state string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionsEnded.WithLabelValues(state).Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordActivation records a user-triggered activation.
func (m *Metrics) RecordActivation() {
	m.Activations.Inc()
}

// RecordRestart records an automatic restart.
func (m *Metrics) RecordRestart(reason string) {
	m.Restarts.WithLabelValues(reason).Inc()
}

// RecordValue records a transcription value.
func (m *Metrics) RecordValue() {
	m.TranscriptValues.Inc()
}

// RecordSearchButton records a controller showing or hiding the search
// button. Controllers start with the button shown, so only transitions
// are recorded.
func (m *Metrics) RecordSearchButton(shown bool) {
	if shown {
		m.SearchButtonHidden.Dec()
	} else {
		m.SearchButtonHidden.Inc()
	}
}

// RecordTeardown records a controller teardown.
func (m *Metrics) RecordTeardown() {
	m.Teardowns.Inc()
}

// RecordEngineError records a speech engine error.
func (m *Metrics) RecordEngineError(code string) {
	m.EngineErrors.WithLabelValues(code).Inc()
}

// RecordPublish records an event publish attempt.
func (m *Metrics) RecordPublish(destination, eventType string, err error, latencySeconds float64) {
	m.PublishTotal.WithLabelValues(destination, eventType).Inc()
	m.PublishLatency.WithLabelValues(destination).Observe(latencySeconds)
	if err != nil {
		m.PublishErrors.WithLabelValues(destination, eventType).Inc()
	}
}

// RecordGRPCCall records a handled gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string) {
	m.GRPCCalls.WithLabelValues(method, code).Inc()
}
