package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/journey_agent/internal/debugger"
	"github.com/dgnsrekt/journey_agent/internal/journey"
)

type debugInput struct {
	Body struct {
		Steps       []journey.Step `json:"steps" doc:"Recorded steps to execute"`
		Breakpoints []string       `json:"breakpoints,omitempty" doc:"Breakpoint keys as step:action, e.g. 0:1"`
	}
}

func registerDebugHandlers(api huma.API, svc Service) {
	type resultOutput struct {
		Body debugger.Result
	}

	type statusOutput struct {
		Body debugger.Status
	}

	huma.Register(api, huma.Operation{OperationID: "start-debug", Method: http.MethodPost, Path: "/api/v1/debug/start", Summary: "Launch a debug browser and run to the first breakpoint", Tags: []string{"Debug"}},
		func(ctx context.Context, input *debugInput) (*resultOutput, error) {
			res, err := svc.StartDebug(ctx, input.Body.Steps, input.Body.Breakpoints)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &resultOutput{}
			out.Body = res
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "resume-debug", Method: http.MethodPost, Path: "/api/v1/debug/resume", Summary: "Resume a paused debug session", Tags: []string{"Debug"}},
		func(ctx context.Context, input *debugInput) (*resultOutput, error) {
			res, err := svc.ResumeDebug(ctx, input.Body.Steps, input.Body.Breakpoints)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &resultOutput{}
			out.Body = res
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "reset-debug", Method: http.MethodPost, Path: "/api/v1/debug/reset", Summary: "Close the debug browser and clear the cursor", Tags: []string{"Debug"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			out := &statusOutput{}
			out.Body = svc.ResetDebug()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "debug-status", Method: http.MethodGet, Path: "/api/v1/debug/status", Summary: "Report the debug session state", Tags: []string{"Debug"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			out := &statusOutput{}
			out.Body = svc.DebugStatus()
			return out, nil
		})
}
