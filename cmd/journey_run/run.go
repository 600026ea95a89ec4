package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/journey_agent/internal/events"
	"github.com/dgnsrekt/journey_agent/internal/journey"
	"github.com/dgnsrekt/journey_agent/internal/orchestrator"
	"github.com/dgnsrekt/journey_agent/internal/runner"
	"github.com/dgnsrekt/journey_agent/internal/watch"
)

const watchDebounce = 300 * time.Millisecond

// runOnce executes j and writes one JSON message per event to out. It
// returns the process exit code: 0 when the journey succeeded.
func runOnce(ctx context.Context, orch *orchestrator.Orchestrator, j journey.Journey, out io.Writer) int {
	runID := uuid.NewString()
	enc := json.NewEncoder(out)
	succeeded := false
	sink := func(e events.Event) {
		if end, ok := e.(events.JourneyEnd); ok {
			succeeded = end.Status == events.JourneySucceeded
		}
		if err := enc.Encode(events.NewMessage(runID, e)); err != nil {
			slog.Debug("event write failed", "error", err)
		}
	}

	slog.Info("running journey", "run_id", runID, "journey", j.Name, "mode", j.Mode)
	err := orch.Run(ctx, j, sink)
	if errors.Is(err, runner.ErrAlreadyRunning) {
		slog.Error("journey runner busy", "error", err)
		return 1
	}
	if err != nil {
		slog.Warn("journey run ended with error", "run_id", runID, "error", err)
	}
	if !succeeded {
		return 1
	}
	return 0
}

// runWatch runs the journey, then again after every change to paths. A
// change during a run stops it and starts over.
func runWatch(ctx context.Context, orch *orchestrator.Orchestrator, load func() (journey.Journey, error), paths []string, out io.Writer) int {
	changes := make(chan struct{}, 1)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- watch.Files(ctx, paths, watchDebounce, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
	}()

	for {
		restart := false
		if j, err := load(); err != nil {
			slog.Error("unable to load journey", "error", err)
		} else {
			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan int, 1)
			go func() { done <- runOnce(runCtx, orch, j, out) }()
			select {
			case code := <-done:
				slog.Info("journey run complete", "exit_code", code)
			case <-changes:
				slog.Info("journey changed, restarting run")
				cancel()
				<-done
				restart = true
			case <-ctx.Done():
				cancel()
				<-done
				return 0
			}
			cancel()
		}
		if restart {
			continue
		}

		slog.Info("waiting for changes", "paths", paths)
		select {
		case <-changes:
		case err := <-watchErr:
			if err != nil {
				slog.Error("file watcher stopped", "error", err)
				return 1
			}
			return 0
		case <-ctx.Done():
			return 0
		}
	}
}
