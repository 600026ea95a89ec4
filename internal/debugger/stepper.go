// Package debugger steps through a journey against a live browser session,
// pausing at breakpoints.
package debugger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgnsrekt/journey_agent/internal/journey"
	"github.com/dgnsrekt/journey_agent/internal/session"
)

var (
	ErrSessionActive = errors.New("a debug session is already running")
	ErrNoSession     = errors.New("no debug session")
	ErrNotPaused     = errors.New("debug session is not paused")
)

// State is the stepper's position in its lifecycle.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// Result reports how a Start or Resume call ended.
type Result struct {
	Finished    bool    `json:"finished"`
	Paused      bool    `json:"paused"`
	PausedIndex string  `json:"pausedIndex"`
	Error       *string `json:"error"`
}

// Status is a snapshot of the stepper.
type Status struct {
	State  State  `json:"state"`
	Cursor string `json:"cursor,omitempty"`
}

// Stepper runs actions one at a time against the session held by a
// session.Manager. Start, Resume, Reset and Close are serialized.
type Stepper struct {
	sessions *session.Manager

	op sync.Mutex

	mu     sync.Mutex
	state  State
	cursor *journey.Key
}

// NewStepper returns an idle stepper. A lost session clears the cursor.
func NewStepper(sessions *session.Manager) *Stepper {
	s := &Stepper{sessions: sessions, state: StateIdle}
	sessions.OnLost(s.clear)
	return s
}

// Status reports the current state and paused position.
func (s *Stepper) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{State: s.state}
	if s.cursor != nil {
		st.Cursor = s.cursor.String()
	}
	return st
}

// State reports the current state.
func (s *Stepper) State() State {
	return s.Status().State
}

// Start launches a session and runs steps from the first action. It returns
// ErrSessionActive without side effects while a session is held.
func (s *Stepper) Start(ctx context.Context, steps []journey.Step, bps journey.Breakpoints) (Result, error) {
	s.op.Lock()
	defer s.op.Unlock()

	if s.sessions.Active() {
		return Result{}, ErrSessionActive
	}
	page, err := s.sessions.Acquire(ctx)
	if errors.Is(err, session.ErrSessionActive) {
		return Result{}, ErrSessionActive
	}
	if err != nil {
		slog.Error("unable to start debug session", "error", err)
		return failed(err.Error()), nil
	}

	s.set(StateRunning, nil)
	return s.step(ctx, page, steps, bps, nil), nil
}

// Resume continues from the paused action. Actions before the cursor are
// skipped and the cursor itself does not pause again.
func (s *Stepper) Resume(ctx context.Context, steps []journey.Step, bps journey.Breakpoints) (Result, error) {
	s.op.Lock()
	defer s.op.Unlock()

	page := s.sessions.Page()
	if page == nil {
		return Result{}, ErrNoSession
	}
	s.mu.Lock()
	from := s.cursor
	s.mu.Unlock()
	if from == nil {
		return Result{}, ErrNotPaused
	}

	if err := page.BringToFront(ctx); err != nil {
		slog.Warn("unable to bring debug page to front", "error", err)
	}
	s.set(StateRunning, nil)
	return s.step(ctx, page, steps, bps, from), nil
}

// Reset forgets the cursor and the session without closing the browser.
// Use it once the browser is already gone; Close otherwise.
func (s *Stepper) Reset() {
	s.op.Lock()
	defer s.op.Unlock()
	s.sessions.Drop()
	s.set(StateIdle, nil)
}

// Close tears down the session and forgets the cursor.
func (s *Stepper) Close() error {
	s.op.Lock()
	defer s.op.Unlock()
	err := s.sessions.Release()
	s.set(StateIdle, nil)
	return err
}

func (s *Stepper) step(ctx context.Context, page session.Page, steps []journey.Step, bps journey.Breakpoints, from *journey.Key) Result {
	for si, st := range steps {
		for ai, a := range st.Actions {
			key := journey.Key{Step: si, Action: ai}
			if from != nil && key.Less(*from) {
				continue
			}
			if bps.Has(key) && (from == nil || key != *from) {
				s.set(StatePaused, &key)
				slog.Info("debug session paused", "at", key.String())
				return Result{Paused: true, PausedIndex: key.String()}
			}
			if err := page.Run(ctx, a); err != nil {
				slog.Warn("debug action failed", "at", key.String(), "action", a.Action.Name, "error", err)
				s.finish()
				return failed(fmt.Sprintf("action %s (%s) failed: %v", key.String(), a.Action.Name, err))
			}
		}
	}
	s.finish()
	slog.Info("debug session finished")
	return Result{Finished: true}
}

func (s *Stepper) finish() {
	if err := s.sessions.Release(); err != nil {
		slog.Warn("unable to close debug session", "error", err)
	}
	s.set(StateIdle, nil)
}

func (s *Stepper) clear() {
	s.set(StateIdle, nil)
}

func (s *Stepper) set(state State, cursor *journey.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	if cursor == nil {
		s.cursor = nil
		return
	}
	k := *cursor
	s.cursor = &k
}

func failed(msg string) Result {
	return Result{Finished: true, Error: &msg}
}
