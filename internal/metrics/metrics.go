// Package metrics exposes Prometheus instruments for journey runs and
// debug sessions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgnsrekt/journey_agent/internal/events"
)

const namespace = "journey"

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Journey runs by final status.",
	}, []string{"status"})

	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "steps_total",
		Help:      "Steps reported by the runner, by status.",
	}, []string{"status"})

	stepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "step_duration_seconds",
		Help:      "Duration of steps reported by the runner.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	debugSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "debug_sessions_total",
		Help:      "Debug start/resume outcomes.",
	}, []string{"outcome"})

	runActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_active",
		Help:      "1 while a journey run owns the runner process.",
	})

	pushDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "push_dropped_total",
		Help:      "Messages dropped for slow push subscribers.",
	})
)

// Debug outcomes.
const (
	OutcomePaused   = "paused"
	OutcomeFinished = "finished"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// Observe folds a step/end event into the step counters.
func Observe(e events.Event) {
	ev, ok := e.(events.StepEnd)
	if !ok {
		return
	}
	stepsTotal.WithLabelValues(string(ev.Status)).Inc()
	if ev.DurationMS > 0 {
		stepDuration.Observe(float64(ev.DurationMS) / 1000)
	}
}

// RunStarted marks the runner busy.
func RunStarted() { runActive.Set(1) }

// RunFinished counts a run by its final status and marks the runner idle.
func RunFinished(status string) {
	runsTotal.WithLabelValues(status).Inc()
	runActive.Set(0)
}

// DebugOutcome counts a debug start or resume result.
func DebugOutcome(outcome string) {
	debugSessions.WithLabelValues(outcome).Inc()
}

// PushDropped counts one dropped push message.
func PushDropped() { pushDropped.Inc() }

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
