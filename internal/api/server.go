package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/journey_agent/internal/controller"
	"github.com/dgnsrekt/journey_agent/internal/debugger"
	"github.com/dgnsrekt/journey_agent/internal/history"
	"github.com/dgnsrekt/journey_agent/internal/journey"
	"github.com/dgnsrekt/journey_agent/internal/metrics"
	"github.com/dgnsrekt/journey_agent/internal/relay"
)

type Service interface {
	RunJourney(ctx context.Context, j journey.Journey) (history.RunMeta, error)
	StopRun() controller.RunStatus
	RunStatus() controller.RunStatus
	ListRuns() ([]history.RunMeta, error)
	GetRun(id string) (controller.RunDetail, error)
	DeleteRun(id string) error
	StartDebug(ctx context.Context, steps []journey.Step, breakpoints []string) (debugger.Result, error)
	ResumeDebug(ctx context.Context, steps []journey.Step, breakpoints []string) (debugger.Result, error)
	ResetDebug() debugger.Status
	DebugStatus() debugger.Status
}

func NewServer(svc Service, broker *relay.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Journey Agent Controller API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/docs/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(eventsDocsHTML)); err != nil {
			slog.Debug("events docs response write failed", "error", err)
		}
	})

	router.Get("/api/v1/events", relay.SSEHandler(broker))
	router.Get("/api/v1/events/ws", relay.WebSocketHandler(broker))
	router.Handle("/metrics", metrics.Handler())

	registerMiscHandlers(api)
	registerRunHandlers(api, svc)
	registerDebugHandlers(api, svc)

	return router
}

func registerMiscHandlers(api huma.API) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *controller.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case controller.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case controller.CodeRunNotFound:
			return huma.Error404NotFound(coded.Message)
		case controller.CodeAlreadyRunning, controller.CodeNoSession:
			return huma.Error409Conflict(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
