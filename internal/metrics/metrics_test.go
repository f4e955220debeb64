package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorders(t *testing.T) {
	m := New()

	m.Submission(OutcomeSuccess)
	m.Submission(OutcomeSuccess)
	m.Submission(OutcomeOffline)
	m.Result("high")
	m.SetOnline(true)
	m.StreamOpened()
	m.StreamOpened()
	m.StreamClosed()
	m.SetSessions(3)
	m.SessionsExpired(2)
	m.SessionsExpired(0)
	m.ObserveInference(1500*time.Millisecond, nil)
	m.ObserveInference(time.Second, errors.New("boom"))

	if got := testutil.ToFloat64(m.submissionsTotal.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Errorf("expected 2 successful submissions, got %v", got)
	}
	if got := testutil.ToFloat64(m.submissionsTotal.WithLabelValues(OutcomeOffline)); got != 1 {
		t.Errorf("expected 1 offline submission, got %v", got)
	}
	if got := testutil.ToFloat64(m.online); got != 1 {
		t.Errorf("expected online gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.streamsOpen); got != 1 {
		t.Errorf("expected 1 open stream, got %v", got)
	}
	if got := testutil.ToFloat64(m.sessionsActive); got != 3 {
		t.Errorf("expected 3 sessions, got %v", got)
	}
	if got := testutil.ToFloat64(m.sessionsExpired); got != 2 {
		t.Errorf("expected 2 expired sessions, got %v", got)
	}
	if got := testutil.CollectAndCount(m.inferenceDuration); got != 2 {
		t.Errorf("expected 2 inference series, got %d", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Submission(OutcomeFailed)
	m.Result("low")
	m.SetOnline(false)
	m.StreamOpened()
	m.StreamClosed()
	m.SetSessions(1)
	m.SessionsExpired(1)
	m.ObserveInference(time.Second, nil)

	if m.Registry() != nil {
		t.Error("expected nil registry")
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Result("medium")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `breedid_results_total{tier="medium"} 1`) {
		t.Errorf("results counter missing from exposition:\n%s", rec.Body.String())
	}
}
