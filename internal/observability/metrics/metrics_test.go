package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSession(t *testing.T) {
	m := DefaultMetrics
	startedBefore := testutil.ToFloat64(m.SessionsTotal)
	activeBefore := testutil.ToFloat64(m.SessionsActive)
	endedBefore := testutil.ToFloat64(m.SessionsEnded.WithLabelValues("COMPLETED"))

	m.RecordSessionStart()
	if got := testutil.ToFloat64(m.SessionsActive); got != activeBefore+1 {
		t.Errorf("expected active sessions %v, got %v", activeBefore+1, got)
	}

	m.RecordSessionEnd("COMPLETED", 0.5)
	if got := testutil.ToFloat64(m.SessionsTotal); got != startedBefore+1 {
		t.Errorf("expected sessions total %v, got %v", startedBefore+1, got)
	}
	if got := testutil.ToFloat64(m.SessionsActive); got != activeBefore {
		t.Errorf("expected active sessions back to %v, got %v", activeBefore, got)
	}
	if got := testutil.ToFloat64(m.SessionsEnded.WithLabelValues("COMPLETED")); got != endedBefore+1 {
		t.Errorf("expected ended sessions %v, got %v", endedBefore+1, got)
	}
}

func TestRecordSearchButton(t *testing.T) {
	m := DefaultMetrics
	before := testutil.ToFloat64(m.SearchButtonHidden)

	m.RecordSearchButton(false)
	m.RecordSearchButton(false)
	if got := testutil.ToFloat64(m.SearchButtonHidden); got != before+2 {
		t.Errorf("expected gauge %v, got %v", before+2, got)
	}
	m.RecordSearchButton(true)
	if got := testutil.ToFloat64(m.SearchButtonHidden); got != before+1 {
		t.Errorf("expected gauge %v, got %v", before+1, got)
	}
	m.RecordSearchButton(true)
}

func TestRecordPublish(t *testing.T) {
	m := DefaultMetrics
	total := m.PublishTotal.WithLabelValues("kafka", "voicesearch.transcript")
	errs := m.PublishErrors.WithLabelValues("kafka", "voicesearch.transcript")
	totalBefore := testutil.ToFloat64(total)
	errsBefore := testutil.ToFloat64(errs)

	m.RecordPublish("kafka", "voicesearch.transcript", nil, 0.01)
	m.RecordPublish("kafka", "voicesearch.transcript", errors.New("broker down"), 0.02)

	if got := testutil.ToFloat64(total); got != totalBefore+2 {
		t.Errorf("expected publish total %v, got %v", totalBefore+2, got)
	}
	if got := testutil.ToFloat64(errs); got != errsBefore+1 {
		t.Errorf("expected publish errors %v, got %v", errsBefore+1, got)
	}
}

func TestRecordRestartAndEngineError(t *testing.T) {
	m := DefaultMetrics
	restarts := m.Restarts.WithLabelValues("no-speech")
	engineErrs := m.EngineErrors.WithLabelValues("network")
	restartsBefore := testutil.ToFloat64(restarts)
	errsBefore := testutil.ToFloat64(engineErrs)

	m.RecordRestart("no-speech")
	m.RecordEngineError("network")

	if got := testutil.ToFloat64(restarts); got != restartsBefore+1 {
		t.Errorf("expected restarts %v, got %v", restartsBefore+1, got)
	}
	if got := testutil.ToFloat64(engineErrs); got != errsBefore+1 {
		t.Errorf("expected engine errors %v, got %v", errsBefore+1, got)
	}
}
