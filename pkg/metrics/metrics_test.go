package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry_RecordAttemptTerminal(t *testing.T) {
	r := New(Config{})
	r.AttemptsRunning.Inc()
	r.AttemptsRunning.Inc()

	r.RecordAttemptTerminal(true)

	if got := testutil.ToFloat64(r.AttemptsRunning); got != 1 {
		t.Errorf("AttemptsRunning = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.AttemptsCompleted.WithLabelValues("success")); got != 1 {
		t.Errorf("AttemptsCompleted{success} = %v, want 1", got)
	}
}

func TestRegistry_HandlerServesMetrics(t *testing.T) {
	r := New(Config{Namespace: "test_ns"})
	r.TokensSent.Add(42)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("Handler returned status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_ns_model_tokens_sent_total 42") {
		t.Errorf("expected metrics output to contain the tokens-sent counter, got:\n%s", rec.Body.String())
	}
}
