package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSessionMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSessionStarted()
	m.RecordSessionStarted()
	m.RecordSessionEnded(3.5, true)

	if got := testutil.ToFloat64(m.ActiveSessions); got != 1 {
		t.Errorf("Expected 1 active session, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsStarted); got != 2 {
		t.Errorf("Expected 2 started sessions, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsFailed); got != 1 {
		t.Errorf("Expected 1 failed session, got %v", got)
	}
}

func TestStageMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordStageSuccess(StageTranslation, 0.2)
	m.RecordStageSuccess(StageTranslation, 0.3)
	m.RecordStageFailure(StageSynthesis, 1.0)
	m.RecordRecognitionEvent("final")
	m.RecordFrames(10, 2)

	if got := testutil.ToFloat64(m.StageSuccesses.WithLabelValues(StageTranslation)); got != 2 {
		t.Errorf("Expected 2 translation successes, got %v", got)
	}
	if got := testutil.ToFloat64(m.StageFailures.WithLabelValues(StageSynthesis)); got != 1 {
		t.Errorf("Expected 1 synthesis failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.RecognitionEvents.WithLabelValues("final")); got != 1 {
		t.Errorf("Expected 1 final event, got %v", got)
	}
	if got := testutil.ToFloat64(m.CaptureOverflows); got != 2 {
		t.Errorf("Expected 2 overflows, got %v", got)
	}
}

func TestSeparateRegistries(t *testing.T) {
	// Registering twice on different registries must not panic.
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(prometheus.NewRegistry())
}
