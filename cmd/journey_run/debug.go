package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dgnsrekt/journey_agent/internal/browser"
	"github.com/dgnsrekt/journey_agent/internal/config"
	"github.com/dgnsrekt/journey_agent/internal/debugger"
	"github.com/dgnsrekt/journey_agent/internal/journey"
	"github.com/dgnsrekt/journey_agent/internal/session"
)

const debugHelp = "Enter/c: resume  b <step:action>: toggle breakpoint  l: list breakpoints  q: quit"

func runDebug(ctx context.Context, cfg *config.Config, j journey.Journey, bps journey.Breakpoints, in io.Reader, out, prompt io.Writer) int {
	launcher := session.NewChromeLauncher(session.ChromeConfig{
		Browser: browser.Config{
			Path:       cfg.BrowserPath,
			ProfileDir: cfg.BrowserProfile,
			WindowSize: cfg.WindowSize,
			Sandbox:    cfg.Sandbox,
		},
		ActionTimeout: time.Duration(cfg.ActionTimeoutMS) * time.Millisecond,
	})
	return debugLoop(ctx, debugger.NewStepper(session.NewManager(launcher)), j.Steps, bps, in, out, prompt)
}

// debugLoop drives stepper from line commands on in. Results are written to
// out as JSON, prompts to prompt.
func debugLoop(ctx context.Context, stepper *debugger.Stepper, steps []journey.Step, bps journey.Breakpoints, in io.Reader, out, prompt io.Writer) int {
	defer func() {
		if err := stepper.Close(); err != nil {
			slog.Warn("debug session close failed", "error", err)
		}
	}()
	if bps == nil {
		bps = journey.NewBreakpoints()
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	enc := json.NewEncoder(out)
	res, err := stepper.Start(ctx, steps, bps)
	for {
		if err != nil {
			slog.Error("debug step failed", "error", err)
			return 1
		}
		if encErr := enc.Encode(res); encErr != nil {
			slog.Debug("debug result write failed", "error", encErr)
		}
		if !res.Paused {
			if res.Error != nil {
				return 1
			}
			return 0
		}

		_, _ = fmt.Fprintf(prompt, "paused before %s (%s)\n", res.PausedIndex, actionLabel(steps, res.PausedIndex))
		_, _ = fmt.Fprintln(prompt, debugHelp)

	wait:
		for {
			select {
			case <-ctx.Done():
				return 130
			case line, ok := <-lines:
				if !ok {
					return 1
				}
				cmd, arg, _ := strings.Cut(line, " ")
				switch cmd {
				case "", "c", "continue":
					break wait
				case "q", "quit":
					return 1
				case "l", "list":
					_, _ = fmt.Fprintf(prompt, "breakpoints: %s\n", strings.Join(bps.Strings(), ", "))
				case "b", "break":
					k, perr := journey.ParseKey(strings.TrimSpace(arg))
					if perr != nil {
						_, _ = fmt.Fprintln(prompt, perr)
						continue
					}
					if bps.Has(k) {
						delete(bps, k)
						_, _ = fmt.Fprintf(prompt, "breakpoint %s removed\n", k)
					} else {
						bps[k] = struct{}{}
						_, _ = fmt.Fprintf(prompt, "breakpoint %s set\n", k)
					}
				default:
					_, _ = fmt.Fprintln(prompt, debugHelp)
				}
			}
		}
		res, err = stepper.Resume(ctx, steps, bps)
	}
}

func actionLabel(steps []journey.Step, key string) string {
	k, err := journey.ParseKey(key)
	if err != nil || k.Step >= len(steps) || k.Action >= len(steps[k.Step].Actions) {
		return "unknown action"
	}
	a := steps[k.Step].Actions[k.Action]
	return a.DisplayTitle(k.Action) + ": " + a.Action.Name
}
