// Package solver defines how compiled problems are solved and how the
// solution is turned back into task assignments.
package solver

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"time"

	"github.com/kilianp07/planner/core/lp"
	"github.com/kilianp07/planner/core/model"
)

var (
	// ErrTimedOut means the solver exceeded its time budget and was stopped.
	ErrTimedOut = errors.New("solver timed out")
	// ErrUnavailable means the solver could not be started or produced
	// output that could not be read.
	ErrUnavailable = errors.New("solver unavailable")
	// ErrCancelled means the solver was stopped from outside.
	ErrCancelled = errors.New("solver cancelled")
)

// ProcessTracker records the OS process of a running solver so that it can
// be killed out of band. Release is called on every exit path.
type ProcessTracker interface {
	Track(pid int) error
	Release(pid int) error
}

// Options tune one Solve call.
type Options struct {
	// Timeout bounds the solve. Zero means no limit.
	Timeout time.Duration
	Tracker ProcessTracker
}

// Solver solves compiled problems.
type Solver interface {
	Solve(ctx context.Context, p *lp.Problem, opts Options) (Result, error)
}

// Pair is one agent performing one task.
type Pair struct {
	AgentID int64 `json:"agent_id"`
	TaskID  int64 `json:"task_id"`
}

// Result is a solver outcome. An infeasible problem is a valid result, not
// an error.
type Result struct {
	Infeasible bool
	// Suboptimal marks a feasible solution returned when the solver ran out
	// of its own budget before proving optimality.
	Suboptimal  bool
	Assignments []Pair
	// Output is the raw solver output kept for audit.
	Output string
}

// ByAgent groups the pairs per agent with task ids in ascending order.
func (r Result) ByAgent() model.Assignment {
	out := model.Assignment{}
	for _, p := range r.Assignments {
		out[p.AgentID] = append(out[p.AgentID], p.TaskID)
	}
	for _, ids := range out {
		slices.Sort(ids)
	}
	return out
}

// FromValues keeps the assignment variables whose value is 1.
func FromValues(values map[string]float64, output string) Result {
	res := Result{Output: output}
	for name, v := range values {
		agent, task, ok := lp.ParseAssignmentVar(name)
		if !ok || math.Abs(v-1) > 1e-6 {
			continue
		}
		res.Assignments = append(res.Assignments, Pair{AgentID: agent, TaskID: task})
	}
	slices.SortFunc(res.Assignments, func(a, b Pair) int {
		if n := cmp.Compare(a.TaskID, b.TaskID); n != 0 {
			return n
		}
		return cmp.Compare(a.AgentID, b.AgentID)
	})
	return res
}

// InfeasibleResult is returned for problems known to have no solution.
func InfeasibleResult(output string) Result {
	return Result{Infeasible: true, Output: output}
}
