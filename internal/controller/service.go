package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/journey_agent/internal/debugger"
	"github.com/dgnsrekt/journey_agent/internal/events"
	"github.com/dgnsrekt/journey_agent/internal/history"
	"github.com/dgnsrekt/journey_agent/internal/journey"
	"github.com/dgnsrekt/journey_agent/internal/metrics"
	"github.com/dgnsrekt/journey_agent/internal/notify"
	"github.com/dgnsrekt/journey_agent/internal/orchestrator"
	"github.com/dgnsrekt/journey_agent/internal/relay"
)

const notifyTimeout = 10 * time.Second

// RunStatus reports whether a journey run is in progress.
type RunStatus struct {
	Active    bool       `json:"active"`
	RunID     string     `json:"run_id,omitempty"`
	Journey   string     `json:"journey,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// RunDetail is a recorded run with its event log.
type RunDetail struct {
	history.RunMeta
	Events []json.RawMessage `json:"events"`
}

type activeRun struct {
	rec     *history.Recorder
	exec    *orchestrator.Execution
	stopped atomic.Bool
	done    chan struct{}
}

// Service wraps journey execution and debugging for the control API.
type Service struct {
	orch     *orchestrator.Orchestrator
	stepper  *debugger.Stepper
	runs     *history.Store
	broker   *relay.Broker
	notifier *notify.Notifier

	mu      sync.Mutex
	current *activeRun
}

func NewService(orch *orchestrator.Orchestrator, stepper *debugger.Stepper, runs *history.Store, broker *relay.Broker, notifier *notify.Notifier) *Service {
	return &Service{orch: orch, stepper: stepper, runs: runs, broker: broker, notifier: notifier}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &CodedError{Code: CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

// RunJourney starts j in the background and returns the new run record. Its
// events are recorded, counted and pushed to subscribers tagged with the run id.
func (s *Service) RunJourney(ctx context.Context, j journey.Journey) (history.RunMeta, error) {
	if err := s.requireNonEmpty(j.Code, "code"); err != nil {
		return history.RunMeta{}, err
	}
	if j.Mode == "" {
		j.Mode = journey.ModeInline
	}
	if strings.TrimSpace(j.Name) == "" {
		j.Name = "journey"
	}
	if err := j.Validate(); err != nil {
		return history.RunMeta{}, newError(CodeValidation, err.Error(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil || s.orch.Supervisor().IsActive() {
		return history.RunMeta{}, newError(CodeAlreadyRunning, "a journey is already running", nil)
	}

	rec, err := s.runs.Begin(j.Name, j.Mode)
	if err != nil {
		return history.RunMeta{}, newError(CodeStorage, "unable to record run", err)
	}
	id := rec.ID()
	publish := s.broker.Sink(id)
	sink := func(e events.Event) {
		rec.Record(e)
		metrics.Observe(e)
		publish(e)
	}

	// The run outlives the request that started it.
	exec, err := s.orch.Start(context.WithoutCancel(ctx), j, sink)
	if err != nil {
		if _, finishErr := rec.Finish(true); finishErr != nil {
			slog.Debug("discarded run record not finished", "run_id", id, "error", finishErr)
		}
		if delErr := s.runs.Delete(id); delErr != nil {
			slog.Debug("discarded run record not deleted", "run_id", id, "error", delErr)
		}
		return history.RunMeta{}, newError(CodeAlreadyRunning, "a journey is already running", err)
	}

	run := &activeRun{rec: rec, exec: exec, done: make(chan struct{})}
	s.current = run
	metrics.RunStarted()
	slog.Info("journey run started", "run_id", id, "journey", j.Name, "mode", j.Mode)
	go s.await(run)
	return rec.Meta(), nil
}

func (s *Service) await(run *activeRun) {
	defer close(run.done)
	runErr := run.exec.Wait()

	meta, err := run.rec.Finish(run.stopped.Load())
	if err != nil {
		slog.Error("unable to persist run", "run_id", meta.ID, "error", err)
	}
	metrics.RunFinished(string(meta.Status))

	s.mu.Lock()
	if s.current == run {
		s.current = nil
	}
	s.mu.Unlock()

	slog.Info("journey run finished", "run_id", meta.ID, "status", meta.Status, "duration_ms", meta.DurationMS, "error", runErr)

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := s.notifier.RunFinished(ctx, meta); err != nil {
		slog.Warn("run notification failed", "run_id", meta.ID, "error", err)
	}
}

// StopRun terminates the active run, if any. Repeated calls are harmless.
func (s *Service) StopRun() RunStatus {
	s.mu.Lock()
	run := s.current
	s.mu.Unlock()
	if run != nil {
		run.stopped.Store(true)
		slog.Info("journey run stop requested", "run_id", run.rec.ID())
	}
	s.orch.Supervisor().Stop()
	return s.RunStatus()
}

// RunStatus reports the active run.
func (s *Service) RunStatus() RunStatus {
	s.mu.Lock()
	run := s.current
	s.mu.Unlock()
	if run == nil {
		return RunStatus{}
	}
	meta := run.rec.Meta()
	started := meta.StartedAt
	return RunStatus{Active: true, RunID: meta.ID, Journey: meta.Journey, StartedAt: &started}
}

// WaitRun blocks until the active run, if any, has been recorded.
func (s *Service) WaitRun(ctx context.Context) error {
	s.mu.Lock()
	run := s.current
	s.mu.Unlock()
	if run == nil {
		return nil
	}
	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func parseDebugInput(steps []journey.Step, breakpoints []string) (journey.Breakpoints, error) {
	if err := journey.ValidateSteps(steps); err != nil {
		return nil, newError(CodeValidation, err.Error(), err)
	}
	bps, err := journey.ParseBreakpoints(breakpoints)
	if err != nil {
		return nil, newError(CodeValidation, err.Error(), err)
	}
	return bps, nil
}

// StartDebug launches a debug session and runs steps up to the first
// breakpoint.
func (s *Service) StartDebug(ctx context.Context, steps []journey.Step, breakpoints []string) (debugger.Result, error) {
	bps, err := parseDebugInput(steps, breakpoints)
	if err != nil {
		return debugger.Result{}, err
	}
	res, err := s.stepper.Start(ctx, steps, bps)
	if errors.Is(err, debugger.ErrSessionActive) {
		metrics.DebugOutcome(metrics.OutcomeRejected)
		return debugger.Result{}, newError(CodeAlreadyRunning, "a debug session is already running", err)
	}
	if err != nil {
		return debugger.Result{}, err
	}
	observeDebug(res)
	return res, nil
}

// ResumeDebug continues a paused debug session.
func (s *Service) ResumeDebug(ctx context.Context, steps []journey.Step, breakpoints []string) (debugger.Result, error) {
	bps, err := parseDebugInput(steps, breakpoints)
	if err != nil {
		return debugger.Result{}, err
	}
	res, err := s.stepper.Resume(ctx, steps, bps)
	if errors.Is(err, debugger.ErrNoSession) || errors.Is(err, debugger.ErrNotPaused) {
		metrics.DebugOutcome(metrics.OutcomeRejected)
		return debugger.Result{}, newError(CodeNoSession, err.Error(), err)
	}
	if err != nil {
		return debugger.Result{}, err
	}
	observeDebug(res)
	return res, nil
}

// ResetDebug closes the debug browser, if any, and forgets the cursor.
func (s *Service) ResetDebug() debugger.Status {
	if err := s.stepper.Close(); err != nil {
		slog.Warn("debug session close failed", "error", err)
	}
	return s.stepper.Status()
}

// DebugStatus reports the stepper state.
func (s *Service) DebugStatus() debugger.Status {
	return s.stepper.Status()
}

func observeDebug(res debugger.Result) {
	switch {
	case res.Paused:
		metrics.DebugOutcome(metrics.OutcomePaused)
	case res.Error != nil:
		metrics.DebugOutcome(metrics.OutcomeFailed)
	default:
		metrics.DebugOutcome(metrics.OutcomeFinished)
	}
}

// ListRuns returns recorded runs, newest first.
func (s *Service) ListRuns() ([]history.RunMeta, error) {
	metas, err := s.runs.List()
	if err != nil {
		return nil, newError(CodeStorage, "unable to list runs", err)
	}
	return metas, nil
}

// GetRun returns a recorded run and its events.
func (s *Service) GetRun(id string) (RunDetail, error) {
	id = strings.TrimSpace(id)
	meta, err := s.runs.Get(id)
	if err != nil {
		return RunDetail{}, mapStoreErr(err)
	}
	evs, err := s.runs.Events(id)
	if err != nil {
		return RunDetail{}, mapStoreErr(err)
	}
	return RunDetail{RunMeta: meta, Events: evs}, nil
}

// DeleteRun removes a finished run.
func (s *Service) DeleteRun(id string) error {
	id = strings.TrimSpace(id)
	if st := s.RunStatus(); st.Active && st.RunID == id {
		return newError(CodeAlreadyRunning, "run is still in progress", nil)
	}
	if err := s.runs.Delete(id); err != nil {
		return mapStoreErr(err)
	}
	return nil
}

// Close stops the active run and tears down the debug session.
func (s *Service) Close(ctx context.Context) error {
	s.StopRun()
	waitErr := s.WaitRun(ctx)
	if err := s.stepper.Close(); err != nil {
		slog.Warn("debug session close failed", "error", err)
	}
	return waitErr
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, history.ErrInvalidID):
		return newError(CodeValidation, "invalid run id", err)
	case errors.Is(err, history.ErrNotFound):
		return newError(CodeRunNotFound, "run not found", err)
	default:
		return newError(CodeStorage, "run store failure", err)
	}
}
