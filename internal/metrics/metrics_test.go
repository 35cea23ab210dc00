package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestServerHandlers(t *testing.T) {
	s := NewServer("127.0.0.1:0", zerolog.Nop())

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}

	RolloversTotal.WithLabelValues("load").Inc()

	rec = httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `timekeeper_rollovers_total{trigger="load"}`) {
		t.Error("expected rollover counter in metrics output")
	}
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(GoalClampsTotal.WithLabelValues("exceeds maximum"))
	GoalClampsTotal.WithLabelValues("exceeds maximum").Inc()
	if got := testutil.ToFloat64(GoalClampsTotal.WithLabelValues("exceeds maximum")); got != before+1 {
		t.Errorf("clamp counter = %v, want %v", got, before+1)
	}

	UsageSeconds.Set(42)
	if got := testutil.ToFloat64(UsageSeconds); got != 42 {
		t.Errorf("usage gauge = %v, want 42", got)
	}
}
