// Package runs exposes schedule runs over HTTP.
package runs

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/planner/core/model"
	"github.com/kilianp07/planner/core/planner"
	"github.com/kilianp07/planner/core/reconcile"
	"github.com/kilianp07/planner/core/scheduler"
	"github.com/kilianp07/planner/core/store"
)

// Runner is the part of planner.Manager served by the API.
type Runner interface {
	Solve(ctx context.Context, orgID int64, timeout time.Duration) (model.ScheduleRun, error)
	Start(ctx context.Context, orgID int64, timeout time.Duration) (model.ScheduleRun, error)
	Apply(ctx context.Context, orgID int64, runID string) (int, error)
	Cancel(ctx context.Context, runID string) error
	Balancing(ctx context.Context, orgID int64, runID string) (map[int64]scheduler.BalanceStat, error)
	Run(ctx context.Context, runID string) (model.ScheduleRun, error)
	Runs(ctx context.Context, orgID int64) ([]model.ScheduleRun, error)
}

var _ Runner = (*planner.Manager)(nil)

// Config for the HTTP API handler.
type Config struct {
	Runner   Runner
	BasePath string
	// Mount adds extra handlers to the router, such as the audit log.
	Mount map[string]http.Handler
}

// New returns an HTTP handler exposing the run API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Runner == nil {
		return nil, errors.New("runs: nil runner")
	}
	basePath := strings.TrimSuffix(cfg.BasePath, "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Planner API", "1.0.0")
	hcfg.OpenAPIPath = basePath + "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerRuns(group, cfg.Runner)
	for path, h := range cfg.Mount {
		router.Handle(basePath+path, h)
	}
	return router, nil
}

// handleError maps domain errors onto HTTP statuses.
func handleError(err error) huma.StatusError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, store.ErrRunInProgress),
		errors.Is(err, reconcile.ErrInvalidSchedule):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, planner.ErrRunNotApplicable):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

// SolveRequest starts a run.
type SolveRequest struct {
	TimeoutSeconds int  `json:"timeout_seconds,omitempty" minimum:"0" doc:"Solver time budget, 0 for the configured default"`
	Wait           bool `json:"wait,omitempty" doc:"Block until the run is terminal"`
}

type runOutput struct {
	Body model.ScheduleRun `json:"body"`
}

type runsOutput struct {
	Body []model.ScheduleRun `json:"body"`
}

// ApplyResponse reports a reconciliation.
type ApplyResponse struct {
	RunID   string `json:"run_id"`
	Updated int    `json:"updated"`
}

type orgPath struct {
	OrgID int64 `path:"org"`
}

type orgRunPath struct {
	OrgID int64  `path:"org"`
	RunID string `path:"run"`
}

var mutationErrors = []int{
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
	http.StatusInternalServerError,
}

func registerRuns(api huma.API, r Runner) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-run",
		Method:        http.MethodPost,
		Path:          "/organizations/{org}/runs",
		Summary:       "Solve the organization schedule",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		OrgID int64         `path:"org"`
		Body  *SolveRequest `json:"body,omitempty" required:"false"`
	}) (*runOutput, error) {
		var req SolveRequest
		if input.Body != nil {
			req = *input.Body
		}
		timeout := time.Duration(req.TimeoutSeconds) * time.Second
		if !req.Wait {
			run, err := r.Start(ctx, input.OrgID, timeout)
			if err != nil {
				return nil, handleError(err)
			}
			return &runOutput{Body: run}, nil
		}
		run, err := r.Solve(ctx, input.OrgID, timeout)
		if run.ID == "" {
			return nil, handleError(err)
		}
		// The run was recorded; its status carries the outcome.
		return &runOutput{Body: run}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/organizations/{org}/runs",
		Summary:     "List runs of an organization",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *orgPath) (*runsOutput, error) {
		runs, err := r.Runs(ctx, input.OrgID)
		if err != nil {
			return nil, handleError(err)
		}
		if runs == nil {
			runs = []model.ScheduleRun{}
		}
		return &runsOutput{Body: runs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/runs/{run}",
		Summary:     "Get a run",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RunID string `path:"run"`
	}) (*runOutput, error) {
		run, err := r.Run(ctx, input.RunID)
		if err != nil {
			return nil, handleError(err)
		}
		return &runOutput{Body: run}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "apply-run",
		Method:      http.MethodPost,
		Path:        "/organizations/{org}/runs/{run}/apply",
		Summary:     "Write a successful run back to the tasks",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *orgRunPath) (*struct {
		Body ApplyResponse `json:"body"`
	}, error) {
		n, err := r.Apply(ctx, input.OrgID, input.RunID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ApplyResponse `json:"body"`
		}{Body: ApplyResponse{RunID: input.RunID, Updated: n}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "cancel-run",
		Method:        http.MethodPost,
		Path:          "/runs/{run}/cancel",
		Summary:       "Cancel an open run",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		RunID string `path:"run"`
	}) (*struct{}, error) {
		if err := r.Cancel(ctx, input.RunID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "run-balancing",
		Method:      http.MethodGet,
		Path:        "/organizations/{org}/runs/{run}/balancing",
		Summary:     "Category loads of a successful run",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *orgRunPath) (*struct {
		Body []scheduler.BalanceStat `json:"body"`
	}, error) {
		stats, err := r.Balancing(ctx, input.OrgID, input.RunID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]scheduler.BalanceStat, 0, len(stats))
		for _, s := range stats {
			out = append(out, s)
		}
		slices.SortFunc(out, func(a, b scheduler.BalanceStat) int { return cmp.Compare(a.CategoryID, b.CategoryID) })
		return &struct {
			Body []scheduler.BalanceStat `json:"body"`
		}{Body: out}, nil
	})
}
