package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/journey_agent/internal/events"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestHandlerExposesJourneyMetrics(t *testing.T) {
	Observe(events.StepEnd{Name: "s", Status: events.StepSucceeded, DurationMS: 120})
	Observe(events.JourneyEnd{Status: events.JourneySucceeded})
	RunStarted()
	DebugOutcome(OutcomePaused)
	PushDropped()

	body := scrape(t)
	for _, want := range []string{
		`journey_steps_total{status="succeeded"}`,
		`journey_step_duration_seconds_count`,
		`journey_debug_sessions_total{outcome="paused"}`,
		`journey_run_active 1`,
		`journey_push_dropped_total`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}

	RunFinished("stopped")
	body = scrape(t)
	if !strings.Contains(body, "journey_run_active 0") {
		t.Fatal("run_active not reset")
	}
	if !strings.Contains(body, `journey_runs_total{status="stopped"} 1`) {
		t.Fatal("stopped run not counted")
	}
}
