// Package bruteforce provides an exhaustive in-process solver for small
// problems. It backs the bruteforce solver backend, offline scenario runs
// and tests where lp_solve is not installed.
package bruteforce

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/kilianp07/planner/core/lp"
	"github.com/kilianp07/planner/core/solver"
)

// DefaultMaxCombinations bounds the search space of Solver.
const DefaultMaxCombinations = 1 << 20

const eps = 1e-9

// Solver enumerates every choice of one agent per task, derives the
// continuous variables from equality rows with a single unknown, and keeps
// the feasible candidate with the lowest objective. Binaries that are not
// assignment variables are enumerated as 0 or 1.
type Solver struct {
	MaxCombinations int

	calls atomic.Int64
}

// Calls returns how many times Solve ran.
func (b *Solver) Calls() int { return int(b.calls.Load()) }

type group struct {
	vars []string
	// optional groups may leave every variable at zero.
	optional bool
}

func (b *Solver) Solve(ctx context.Context, p *lp.Problem, opts solver.Options) (solver.Result, error) {
	b.calls.Add(1)
	if len(p.Conflicts()) > 0 {
		return solver.InfeasibleResult(""), nil
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	groups := groupBinaries(p.Binaries())
	limit := b.MaxCombinations
	if limit <= 0 {
		limit = DefaultMaxCombinations
	}
	total := 1
	for _, g := range groups {
		n := len(g.vars)
		if g.optional {
			n++
		}
		if total > limit/n {
			return solver.Result{}, fmt.Errorf("%w: search space exceeds %d combinations", solver.ErrUnavailable, limit)
		}
		total *= n
	}

	choice := make([]int, len(groups))
	var best map[string]float64
	bestObj := math.Inf(1)
	for iter := 0; ; iter++ {
		if iter%1024 == 0 {
			if err := ctx.Err(); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return solver.Result{}, solver.ErrTimedOut
				}
				return solver.Result{}, solver.ErrCancelled
			}
		}
		values := map[string]float64{}
		for i, g := range groups {
			for j, v := range g.vars {
				if j == choice[i] {
					values[v] = 1
				} else {
					values[v] = 0
				}
			}
		}
		if propagate(p, values) && len(p.Violations(values, eps)) == 0 {
			if obj := p.ObjectiveValue(values); obj < bestObj-eps {
				bestObj = obj
				best = values
			}
		}
		if !next(choice, groups) {
			break
		}
	}
	if best == nil {
		return solver.InfeasibleResult("This problem is infeasible\n"), nil
	}
	return solver.FromValues(best, render(best)), nil
}

// groupBinaries puts the assignment variables of one task together.
func groupBinaries(vars []string) []group {
	byTask := map[int64]int{}
	var groups []group
	for _, v := range vars {
		_, task, ok := lp.ParseAssignmentVar(v)
		if !ok {
			groups = append(groups, group{vars: []string{v}, optional: true})
			continue
		}
		i, seen := byTask[task]
		if !seen {
			i = len(groups)
			byTask[task] = i
			groups = append(groups, group{})
		}
		groups[i].vars = append(groups[i].vars, v)
	}
	return groups
}

// next advances choice like an odometer and reports false after the last
// combination. Optional groups use index len(vars) for "none".
func next(choice []int, groups []group) bool {
	for i := range choice {
		n := len(groups[i].vars)
		if groups[i].optional {
			n++
		}
		choice[i]++
		if choice[i] < n {
			return true
		}
		choice[i] = 0
	}
	return false
}

// propagate solves equality rows that have exactly one unknown variable
// until nothing changes. It reports false when unknowns remain.
func propagate(p *lp.Problem, values map[string]float64) bool {
	for changed := true; changed; {
		changed = false
		for _, c := range p.Constraints {
			if c.Op != lp.EQ {
				continue
			}
			unknown := ""
			coef := 0.0
			sum := 0.0
			count := 0
			for _, t := range c.Terms {
				if v, ok := values[t.Var]; ok {
					sum += t.Coef * v
					continue
				}
				if t.Var != unknown {
					count++
				}
				unknown = t.Var
				coef += t.Coef
			}
			if count == 1 && coef != 0 {
				values[unknown] = (c.RHS - sum) / coef
				changed = true
			}
		}
	}
	for _, v := range p.Variables() {
		if _, ok := values[v]; !ok {
			return false
		}
	}
	return true
}

func render(values map[string]float64) string {
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("\nActual values of the variables:\n")
	for _, n := range names {
		fmt.Fprintf(&b, "%-24s %s\n", n, lp.FormatNumber(values[n]))
	}
	return b.String()
}

var _ solver.Solver = (*Solver)(nil)
