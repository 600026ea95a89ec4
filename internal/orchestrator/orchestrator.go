package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/journey_agent/internal/events"
	"github.com/dgnsrekt/journey_agent/internal/journey"
	"github.com/dgnsrekt/journey_agent/internal/runner"
)

// ScriptPattern names the per-run file a project-mode journey is
// materialized into.
const ScriptPattern = "recorded-*.journey.js"

const (
	readBufSize      = 32 * 1024
	maxStderrLineLen = 1024 * 1024
)

var baseArgs = []string{"--no-headless", "--reporter=json", "--screenshots=off", "--no-throttling"}

var errNoResult = errors.New("journey runner exited without reporting a result")

// Sink receives every lifecycle event of a run in arrival order.
type Sink func(events.Event)

// Config describes how the external runner is invoked.
type Config struct {
	Command     string
	CommandArgs []string
	Dir         string
	// BrowsersPath is exported to the runner as PLAYWRIGHT_BROWSERS_PATH.
	BrowsersPath string
	// JourneyDir is the scratch directory for project-mode scripts.
	JourneyDir string
	Sandbox    bool
}

// Args builds the runner arguments. scriptPath is only used in project mode.
func Args(mode journey.Mode, scriptPath string, sandbox bool) []string {
	args := make([]string, 0, len(baseArgs)+3)
	if mode == journey.ModeProject {
		args = append(args, scriptPath)
	}
	args = append(args, baseArgs...)
	if sandbox {
		args = append(args, "--sandbox")
	}
	if mode == journey.ModeInline {
		args = append(args, "--inline")
	}
	return args
}

// Enrich attaches the recorded action titles to a step/end event. Events of
// other kinds are returned unchanged.
func Enrich(steps []journey.Step, ev events.Event) events.Event {
	end, ok := ev.(events.StepEnd)
	if !ok {
		return ev
	}
	if step, found := journey.FindStep(steps, end.Name); found {
		end.ActionTitles = step.ActionTitles()
	} else {
		end.ActionTitles = []string{}
	}
	return end
}

// Orchestrator runs journeys through the external runner.
type Orchestrator struct {
	cfg Config
	sup *runner.Supervisor
}

// New returns an Orchestrator that spawns through sup.
func New(cfg Config, sup *runner.Supervisor) *Orchestrator {
	return &Orchestrator{cfg: cfg, sup: sup}
}

// Supervisor exposes the process supervisor so callers can stop a run.
func (o *Orchestrator) Supervisor() *runner.Supervisor {
	return o.sup
}

// Execution tracks one background run.
type Execution struct {
	done chan struct{}
	err  error
}

// Done is closed once the run has been fully cleaned up.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the run is cleaned up and returns the first spawn, I/O or
// exit error. A journey that reports failure is not an error.
func (e *Execution) Wait() error {
	<-e.done
	return e.err
}

func finished(err error) *Execution {
	e := &Execution{done: make(chan struct{}), err: err}
	close(e.done)
	return e
}

// Start launches j and streams its events to sink in the background. It
// fails with runner.ErrAlreadyRunning, touching nothing, while another run is
// active. Every other failure is reported to sink as a failed journey/end and
// through Execution.Wait. Cancelling ctx terminates the runner.
func (o *Orchestrator) Start(ctx context.Context, j journey.Journey, sink Sink) (*Execution, error) {
	if o.sup.IsActive() {
		return nil, runner.ErrAlreadyRunning
	}
	if sink == nil {
		sink = func(events.Event) {}
	}

	scriptPath := ""
	cleanup := func() {}
	if j.Mode == journey.ModeProject {
		path, err := o.writeScript(j.Code)
		if err != nil {
			slog.Error("unable to write journey script", "dir", o.cfg.JourneyDir, "error", err)
			sink(events.Failed(j.Name, err))
			return finished(err), nil
		}
		scriptPath = path
		cleanup = func() {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("unable to remove journey script", "path", path, "error", err)
			}
		}
	}

	p, err := o.sup.Start(Args(j.Mode, scriptPath, o.cfg.Sandbox), o.options())
	if errors.Is(err, runner.ErrAlreadyRunning) {
		cleanup()
		return nil, err
	}
	if err != nil {
		cleanup()
		slog.Error("unable to start journey runner", "error", err)
		sink(events.Failed(j.Name, err))
		return finished(err), nil
	}

	run := &Execution{done: make(chan struct{})}
	stopOnCancel := context.AfterFunc(ctx, func() { o.sup.Release(p) })
	go func() {
		defer close(run.done)
		defer cleanup()
		defer o.sup.Release(p)
		defer stopOnCancel()
		run.err = o.drive(p, j, sink)
	}()
	return run, nil
}

// Run is Start followed by Wait.
func (o *Orchestrator) Run(ctx context.Context, j journey.Journey, sink Sink) error {
	run, err := o.Start(ctx, j, sink)
	if err != nil {
		return err
	}
	return run.Wait()
}

func (o *Orchestrator) options() runner.Options {
	opts := runner.Options{
		Command:     o.cfg.Command,
		CommandArgs: o.cfg.CommandArgs,
		Dir:         o.cfg.Dir,
	}
	if o.cfg.BrowsersPath != "" {
		opts.Env = append(opts.Env, "PLAYWRIGHT_BROWSERS_PATH="+o.cfg.BrowsersPath)
	}
	return opts
}

func (o *Orchestrator) writeScript(code string) (string, error) {
	if o.cfg.JourneyDir == "" {
		return "", fmt.Errorf("journey scratch directory is not configured")
	}
	if err := os.MkdirAll(o.cfg.JourneyDir, 0o755); err != nil {
		return "", fmt.Errorf("create journey dir: %w", err)
	}
	f, err := os.CreateTemp(o.cfg.JourneyDir, ScriptPattern)
	if err != nil {
		return "", fmt.Errorf("create journey script: %w", err)
	}
	path := f.Name()
	_, err = f.WriteString(code)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write journey script: %w", err)
	}
	return path, nil
}

// drive feeds stdin, drains both output streams, reaps the process and makes
// sure sink sees a terminal event.
func (o *Orchestrator) drive(p *runner.Process, j journey.Journey, sink Sink) error {
	reported := false
	emit := func(ev events.Event) {
		if ev.Kind() == events.KindJourneyEnd {
			reported = true
		}
		sink(Enrich(j.Steps, ev))
	}

	var runErr error
	if j.Mode == journey.ModeInline {
		if _, err := io.WriteString(p.Stdin, j.Code); err != nil {
			runErr = fmt.Errorf("write journey to runner stdin: %w", err)
		}
	}
	if err := p.Stdin.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close runner stdin: %w", err)
	}
	if runErr != nil {
		// Unblock the drains below; the runner may never see end of input.
		o.sup.Release(p)
	}

	var g errgroup.Group
	g.Go(func() error { return drainEvents(p.Stdout, emit) })
	g.Go(func() error { return drainDiagnostics(p.Stderr, p.Pid()) })
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}

	waitErr := p.Wait()
	slog.Info("journey runner exited", "pid", p.Pid(), "journey", j.Name, "error", waitErr)

	if runErr != nil {
		slog.Error("journey run failed", "journey", j.Name, "error", runErr)
	}
	if reported {
		return runErr
	}

	cause := runErr
	if cause == nil {
		cause = waitErr
	}
	if cause == nil {
		cause = errNoResult
	}
	sink(events.Failed(j.Name, cause))
	if runErr != nil {
		return runErr
	}
	if waitErr != nil {
		return fmt.Errorf("journey runner: %w", waitErr)
	}
	return errNoResult
}

func drainEvents(r io.Reader, emit func(events.Event)) error {
	var stream events.Stream
	buf := make([]byte, readBufSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for ev := range stream.Write(buf[:n]) {
				emit(ev)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read runner stdout: %w", err)
		}
	}
	for ev := range stream.Flush() {
		emit(ev)
	}
	return nil
}

func drainDiagnostics(r io.Reader, pid int) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStderrLineLen)
	for scanner.Scan() {
		slog.Warn("journey runner diagnostic", "pid", pid, "stream", "stderr", "line", scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		// Keep the pipe drained so the runner never blocks on a full stderr.
		_, _ = io.Copy(io.Discard, r)
		return fmt.Errorf("read runner stderr: %w", err)
	}
	return nil
}
