package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHistogram_ObserveAndBuckets(t *testing.T) {
	h := newHistogram([]float64{0.1, 0.5, 1.0})

	h.Observe(0.05)
	h.Observe(0.3)
	h.Observe(0.7)
	h.Observe(5.0) // beyond all boundaries

	if h.Count() != 4 {
		t.Errorf("expected count 4, got %d", h.Count())
	}
	if h.Sum() != 6.05 {
		t.Errorf("expected sum 6.05, got %g", h.Sum())
	}

	cum := h.cumulativeBuckets()
	want := []int64{1, 2, 3}
	for i, w := range want {
		if cum[i] != w {
			t.Errorf("bucket %d: expected %d, got %d", i, w, cum[i])
		}
	}
}

func TestTransitionCounter(t *testing.T) {
	p := NewProvider("test")
	p.TransitionCounter("encounter", "applied")
	p.TransitionCounter("encounter", "applied")
	p.TransitionCounter("encounter", "rejected")

	if got := p.GetTransitionCount("encounter", "applied"); got != 2 {
		t.Errorf("expected 2 applied, got %d", got)
	}
	if got := p.GetTransitionCount("encounter", "rejected"); got != 1 {
		t.Errorf("expected 1 rejected, got %d", got)
	}
	if got := p.GetTransitionCount("transfer", "applied"); got != 0 {
		t.Errorf("expected 0 for unseen kind, got %d", got)
	}
}

func TestCounters_ConcurrentIncrement(t *testing.T) {
	p := NewProvider("test")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.BookingConflictCounter("overlap")
		}()
	}
	wg.Wait()

	if got := p.GetBookingConflictCount("overlap"); got != 50 {
		t.Errorf("expected 50, got %d", got)
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	p := NewProvider("test")
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/encounters", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := p.MetricsMiddleware()
	err := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.durationHist.Count() != 1 {
		t.Errorf("expected 1 duration observation, got %d", p.durationHist.Count())
	}
	if p.ActiveRequests() != 0 {
		t.Errorf("expected active requests back to 0, got %d", p.ActiveRequests())
	}
}

func TestPrometheusHandler_Exposition(t *testing.T) {
	p := NewProvider("test")
	p.TransitionCounter("encounter", "applied")
	p.BookingConflictCounter("buffer")
	p.SetDBPoolActive(3)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := p.PrometheusHandler()(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`workflow_transitions_total{kind="encounter",outcome="applied"} 1`,
		`booking_conflicts_total{rule="buffer"} 1`,
		"db_pool_active_connections 3",
		"# TYPE http_server_request_duration_seconds histogram",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
