package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage names used as label values
const (
	StageTranslation = "translation"
	StageSynthesis   = "synthesis"
	StagePlayback    = "playback"
)

// Metrics contains all Prometheus metrics for the translation service
type Metrics struct {
	// Capture metrics
	FramesCaptured   prometheus.Counter
	CaptureOverflows prometheus.Counter

	// Session metrics
	ActiveSessions   prometheus.Gauge
	SessionsStarted  prometheus.Counter
	SessionsFailed   prometheus.Counter
	SessionsRejected prometheus.Counter
	SessionDuration  prometheus.Histogram

	// Recognition metrics
	RecognitionEvents *prometheus.CounterVec

	// Fan-out stage metrics
	StageSuccesses *prometheus.CounterVec
	StageFailures  *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	EventLatency   prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Capture metrics
		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "speechbridge_frames_captured_total",
			Help: "Total number of audio frames pulled from the microphone",
		}),
		CaptureOverflows: factory.NewCounter(prometheus.CounterOpts{
			Name: "speechbridge_capture_overflows_total",
			Help: "Total number of tolerated input overflows",
		}),

		// Session metrics
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "speechbridge_active_sessions",
			Help: "Number of translation sessions currently owning the audio devices",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "speechbridge_sessions_started_total",
			Help: "Total number of translation sessions started",
		}),
		SessionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "speechbridge_sessions_failed_total",
			Help: "Total number of sessions ended by a fatal error",
		}),
		SessionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "speechbridge_sessions_rejected_total",
			Help: "Total number of start requests rejected while a session was active",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "speechbridge_session_duration_seconds",
			Help:    "Duration of translation sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),

		// Recognition metrics
		RecognitionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speechbridge_recognition_events_total",
			Help: "Total number of recognition events by kind",
		}, []string{"kind"}),

		// Fan-out stage metrics
		StageSuccesses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speechbridge_stage_successes_total",
			Help: "Total number of successful fan-out steps",
		}, []string{"stage"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speechbridge_stage_failures_total",
			Help: "Total number of failed fan-out steps",
		}, []string{"stage"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "speechbridge_stage_duration_seconds",
			Help:    "Duration of fan-out steps",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"stage"}),
		EventLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "speechbridge_event_latency_seconds",
			Help:    "Time from a final transcript to the end of its playback",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speechbridge_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "speechbridge_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speechbridge_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordFrames adds captured frames and overflows
func (m *Metrics) RecordFrames(frames, overflows uint64) {
	m.FramesCaptured.Add(float64(frames))
	m.CaptureOverflows.Add(float64(overflows))
}

// RecordSessionStarted increments started sessions and the active gauge
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionEnded decrements the active gauge and records duration
func (m *Metrics) RecordSessionEnded(durationSeconds float64, failed bool) {
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
	if failed {
		m.SessionsFailed.Inc()
	}
}

// RecordSessionRejected increments the rejected start counter
func (m *Metrics) RecordSessionRejected() {
	m.SessionsRejected.Inc()
}

// RecordRecognitionEvent counts a recognition event by kind
func (m *Metrics) RecordRecognitionEvent(kind string) {
	m.RecognitionEvents.WithLabelValues(kind).Inc()
}

// RecordStageSuccess records a successful fan-out step
func (m *Metrics) RecordStageSuccess(stage string, durationSeconds float64) {
	m.StageSuccesses.WithLabelValues(stage).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordStageFailure records a failed fan-out step
func (m *Metrics) RecordStageFailure(stage string, durationSeconds float64) {
	m.StageFailures.WithLabelValues(stage).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordEventLatency records end-to-end latency of a played event
func (m *Metrics) RecordEventLatency(seconds float64) {
	m.EventLatency.Observe(seconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
