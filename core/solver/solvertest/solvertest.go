// Package solvertest holds solver doubles for tests.
package solvertest

import (
	"context"

	"github.com/kilianp07/planner/core/lp"
	"github.com/kilianp07/planner/core/solver"
)

// Func adapts a function to solver.Solver.
type Func func(ctx context.Context, p *lp.Problem, opts solver.Options) (solver.Result, error)

func (f Func) Solve(ctx context.Context, p *lp.Problem, opts solver.Options) (solver.Result, error) {
	return f(ctx, p, opts)
}

// Blocking returns a solver that tracks pid when it is positive, closes
// started and waits for ctx to end. It reports solver.ErrCancelled.
func Blocking(pid int, started chan<- struct{}) Func {
	return func(ctx context.Context, _ *lp.Problem, opts solver.Options) (solver.Result, error) {
		if pid > 0 && opts.Tracker != nil {
			if err := opts.Tracker.Track(pid); err != nil {
				return solver.Result{}, err
			}
			defer func() { _ = opts.Tracker.Release(pid) }()
		}
		close(started)
		<-ctx.Done()
		return solver.Result{}, solver.ErrCancelled
	}
}

var _ solver.Solver = Func(nil)
