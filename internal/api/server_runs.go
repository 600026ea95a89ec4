package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/journey_agent/internal/actions"
	"github.com/dgnsrekt/journey_agent/internal/controller"
	"github.com/dgnsrekt/journey_agent/internal/history"
	"github.com/dgnsrekt/journey_agent/internal/journey"
)

type runIDInput struct {
	RunID string `path:"run_id" doc:"Run id returned by POST /api/v1/runs"`
}

func registerRunHandlers(api huma.API, svc Service) {
	type runOutput struct {
		Body history.RunMeta
	}

	huma.Register(api, huma.Operation{OperationID: "run-journey", Method: http.MethodPost, Path: "/api/v1/runs", DefaultStatus: http.StatusAccepted, Summary: "Run a journey through the external runner", Tags: []string{"Runs"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Name  string         `json:"name,omitempty" doc:"Journey name"`
				Mode  journey.Mode   `json:"mode,omitempty" enum:"inline,project" doc:"inline pipes the code to the runner; project writes it to the scratch dir"`
				Code  string         `json:"code" doc:"Generated journey source"`
				Steps []journey.Step `json:"steps" doc:"Recorded steps, used to enrich step/end events"`
			}
		}) (*runOutput, error) {
			j := journey.Journey{Name: input.Body.Name, Mode: input.Body.Mode, Code: input.Body.Code, Steps: input.Body.Steps}
			meta, err := svc.RunJourney(ctx, j)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &runOutput{}
			out.Body = meta
			return out, nil
		})

	type runStatusOutput struct {
		Body controller.RunStatus
	}

	huma.Register(api, huma.Operation{OperationID: "stop-run", Method: http.MethodPost, Path: "/api/v1/runs/stop", Summary: "Stop the active run", Tags: []string{"Runs"}},
		func(ctx context.Context, input *struct{}) (*runStatusOutput, error) {
			out := &runStatusOutput{}
			out.Body = svc.StopRun()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "run-status", Method: http.MethodGet, Path: "/api/v1/runs/status", Summary: "Report the active run", Tags: []string{"Runs"}},
		func(ctx context.Context, input *struct{}) (*runStatusOutput, error) {
			out := &runStatusOutput{}
			out.Body = svc.RunStatus()
			return out, nil
		})

	type listRunsOutput struct {
		Body struct {
			Runs []history.RunMeta `json:"runs"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "list-runs", Method: http.MethodGet, Path: "/api/v1/runs", Summary: "List recorded runs, newest first", Tags: []string{"Runs"}},
		func(ctx context.Context, input *struct{}) (*listRunsOutput, error) {
			runs, err := svc.ListRuns()
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listRunsOutput{}
			out.Body.Runs = runs
			return out, nil
		})

	type runDetailOutput struct {
		Body controller.RunDetail
	}

	huma.Register(api, huma.Operation{OperationID: "get-run", Method: http.MethodGet, Path: "/api/v1/runs/{run_id}", Summary: "Get a recorded run with its events", Tags: []string{"Runs"}},
		func(ctx context.Context, input *runIDInput) (*runDetailOutput, error) {
			detail, err := svc.GetRun(input.RunID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &runDetailOutput{}
			out.Body = detail
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-run", Method: http.MethodDelete, Path: "/api/v1/runs/{run_id}", Summary: "Delete a recorded run", Tags: []string{"Runs"}},
		func(ctx context.Context, input *runIDInput) (*struct{}, error) {
			if err := svc.DeleteRun(input.RunID); err != nil {
				return nil, mapErr(err)
			}
			return nil, nil
		})

	type actionsOutput struct {
		Body struct {
			Actions []string `json:"actions"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "list-actions", Method: http.MethodGet, Path: "/api/v1/actions", Summary: "List action names the debugger can execute", Tags: []string{"Debug"}},
		func(ctx context.Context, input *struct{}) (*actionsOutput, error) {
			out := &actionsOutput{}
			out.Body.Actions = actions.Supported()
			return out, nil
		})
}
