package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/journey_agent/internal/config"
	"github.com/dgnsrekt/journey_agent/internal/journey"
	"github.com/dgnsrekt/journey_agent/internal/orchestrator"
	"github.com/dgnsrekt/journey_agent/internal/runner"
)

func main() {
	journeyPath := flag.String("journey", "", "journey file (.json, .yaml, .yml); may also be given as the first argument")
	scriptPath := flag.String("script", "", "script file read when the journey has no code")
	mode := flag.String("mode", "", "override the journey mode: inline|project")
	watchFiles := flag.Bool("watch", false, "re-run whenever the journey or script file changes")
	debug := flag.Bool("debug", false, "step through the journey in a local browser instead of the runner")
	breakpoints := flag.String("breakpoints", "", "comma-separated step:action keys to pause at with -debug, e.g. 0:1,2:0")
	logFile := flag.String("log-file", "logs/journey_run.log", "rotating log file")
	flag.Parse()

	if *journeyPath == "" && flag.NArg() > 0 {
		*journeyPath = flag.Arg(0)
	}
	if *journeyPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "usage: journey_run [flags] <journey-file>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "journey_run: config: %v\n", err)
		os.Exit(1)
	}
	if err := setupLogger(cfg.LogLevel, *logFile); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}

	load := func() (journey.Journey, error) {
		j, err := journey.Load(*journeyPath, *scriptPath)
		if err != nil {
			return journey.Journey{}, err
		}
		if *mode != "" {
			j.Mode = journey.Mode(strings.ToLower(*mode))
			if err := j.Validate(); err != nil {
				return journey.Journey{}, err
			}
		}
		return j, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *debug {
		j, err := load()
		if err != nil {
			slog.Error("unable to load journey", "path", *journeyPath, "error", err)
			os.Exit(1)
		}
		var raw []string
		for k := range strings.SplitSeq(*breakpoints, ",") {
			if k = strings.TrimSpace(k); k != "" {
				raw = append(raw, k)
			}
		}
		bps, err := journey.ParseBreakpoints(raw)
		if err != nil {
			slog.Error("invalid breakpoints", "error", err)
			os.Exit(2)
		}
		os.Exit(runDebug(ctx, cfg, j, bps, os.Stdin, os.Stdout, os.Stderr))
	}

	orch := orchestrator.New(orchestrator.Config{
		Command:      cfg.RunnerCommand,
		CommandArgs:  cfg.RunnerArgs,
		Dir:          cfg.RunnerDir,
		BrowsersPath: cfg.BrowsersPath,
		JourneyDir:   cfg.ScratchDir,
		Sandbox:      cfg.Sandbox,
	}, runner.NewSupervisor())

	if *watchFiles {
		os.Exit(runWatch(ctx, orch, load, []string{*journeyPath, *scriptPath}, os.Stdout))
	}

	j, err := load()
	if err != nil {
		slog.Error("unable to load journey", "path", *journeyPath, "error", err)
		os.Exit(1)
	}
	os.Exit(runOnce(ctx, orch, j, os.Stdout))
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	// stdout carries the event stream.
	h := slog.NewTextHandler(io.MultiWriter(os.Stderr, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
