package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/journey_agent/internal/api"
	"github.com/dgnsrekt/journey_agent/internal/browser"
	"github.com/dgnsrekt/journey_agent/internal/config"
	"github.com/dgnsrekt/journey_agent/internal/controller"
	"github.com/dgnsrekt/journey_agent/internal/debugger"
	"github.com/dgnsrekt/journey_agent/internal/history"
	"github.com/dgnsrekt/journey_agent/internal/metrics"
	"github.com/dgnsrekt/journey_agent/internal/netutil"
	"github.com/dgnsrekt/journey_agent/internal/notify"
	"github.com/dgnsrekt/journey_agent/internal/orchestrator"
	"github.com/dgnsrekt/journey_agent/internal/relay"
	"github.com/dgnsrekt/journey_agent/internal/runner"
	"github.com/dgnsrekt/journey_agent/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load controller config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("journey_controller config loaded",
		"bind_addr", cfg.BindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"runner_command", cfg.RunnerCommand,
		"runner_args", cfg.RunnerArgs,
		"scratch_dir", cfg.ScratchDir,
		"sandbox", cfg.Sandbox,
		"history_dir", cfg.HistoryDir,
		"notify", cfg.NotifyURL != "",
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to bind controller", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}
	bindAddr := ln.Addr().String()

	runs, err := history.NewStore(cfg.HistoryDir, cfg.HistoryMaxMB)
	if err != nil {
		slog.Error("failed to create run store", "dir", cfg.HistoryDir, "error", err)
		os.Exit(1)
	}

	orch := orchestrator.New(orchestrator.Config{
		Command:      cfg.RunnerCommand,
		CommandArgs:  cfg.RunnerArgs,
		Dir:          cfg.RunnerDir,
		BrowsersPath: cfg.BrowsersPath,
		JourneyDir:   cfg.ScratchDir,
		Sandbox:      cfg.Sandbox,
	}, runner.NewSupervisor())

	launcher := session.NewChromeLauncher(session.ChromeConfig{
		Browser: browser.Config{
			Path:       cfg.BrowserPath,
			ProfileDir: cfg.BrowserProfile,
			WindowSize: cfg.WindowSize,
			Sandbox:    cfg.Sandbox,
		},
		ActionTimeout: time.Duration(cfg.ActionTimeoutMS) * time.Millisecond,
	})
	stepper := debugger.NewStepper(session.NewManager(launcher))

	broker := relay.NewBroker()
	broker.OnDrop(metrics.PushDropped)

	svc := controller.NewService(orch, stepper, runs, broker, notify.New(cfg.NotifyURL, nil))
	h := api.NewServer(svc, broker)

	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("journey_controller listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("journey_controller server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Close(ctx); err != nil {
		slog.Error("journey_controller run shutdown failed", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("journey_controller shutdown failed", "error", err)
	}
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

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
