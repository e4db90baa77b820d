package bruteforce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/planner/core/lp"
	"github.com/kilianp07/planner/core/solver"
)

func TestBruteForcePicksLowestObjective(t *testing.T) {
	p := lp.NewProblem()
	p.Minimize(lp.Term{Coef: -1, Var: lp.AffinityVar})
	p.Add(lp.Constraint{Name: "cover_e1", Terms: []lp.Term{{Coef: 1, Var: "v_a1_e1"}, {Coef: 1, Var: "v_a2_e1"}}, Op: lp.EQ, RHS: 1})
	p.Add(lp.Constraint{Name: "affinity", Terms: []lp.Term{{Coef: 3, Var: "v_a2_e1"}, {Coef: -1, Var: lp.AffinityVar}}, Op: lp.EQ})
	p.Binary("v_a1_e1")
	p.Binary("v_a2_e1")
	p.Free(lp.AffinityVar)

	var b Solver
	res, err := b.Solve(context.Background(), p, solver.Options{})
	require.NoError(t, err)
	assert.Equal(t, []solver.Pair{{AgentID: 2, TaskID: 1}}, res.Assignments)
	assert.Contains(t, res.Output, "Actual values of the variables:")
	assert.Equal(t, 1, b.Calls())
}

func TestBruteForceInfeasible(t *testing.T) {
	p := lp.NewProblem()
	p.Add(lp.Constraint{Name: "cover_e1", Terms: []lp.Term{{Coef: 1, Var: "v_a1_e1"}}, Op: lp.EQ, RHS: 1})
	p.Add(lp.Constraint{Name: "cover_e2", Terms: []lp.Term{{Coef: 1, Var: "v_a1_e2"}}, Op: lp.EQ, RHS: 1})
	p.Add(lp.Constraint{Name: "overlap", Terms: []lp.Term{{Coef: 1, Var: "v_a1_e1"}, {Coef: 1, Var: "v_a1_e2"}}, Op: lp.LE, RHS: 1})
	p.Binary("v_a1_e1")
	p.Binary("v_a1_e2")

	res, err := (&Solver{}).Solve(context.Background(), p, solver.Options{})
	require.NoError(t, err)
	assert.True(t, res.Infeasible)
	assert.Empty(t, res.Assignments)
}

func TestBruteForceConflictShortCircuits(t *testing.T) {
	p := lp.NewProblem()
	p.Add(lp.Constraint{Name: "cover_e1", Op: lp.EQ, RHS: 1})
	res, err := (&Solver{}).Solve(context.Background(), p, solver.Options{})
	require.NoError(t, err)
	assert.True(t, res.Infeasible)
}

func TestBruteForceLimits(t *testing.T) {
	p := lp.NewProblem()
	for task := int64(1); task <= 3; task++ {
		p.Binary(lp.AssignmentVar(1, task))
		p.Binary(lp.AssignmentVar(2, task))
	}
	_, err := (&Solver{MaxCombinations: 4}).Solve(context.Background(), p, solver.Options{})
	assert.True(t, errors.Is(err, solver.ErrUnavailable))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&Solver{}).Solve(ctx, p, solver.Options{})
	assert.ErrorIs(t, err, solver.ErrCancelled)
}

func TestBruteForceOptionalBinary(t *testing.T) {
	p := lp.NewProblem()
	p.Minimize(lp.Term{Coef: -1, Var: "x"})
	p.Binary("x")
	res, err := (&Solver{}).Solve(context.Background(), p, solver.Options{})
	require.NoError(t, err)
	assert.False(t, res.Infeasible)
	assert.Contains(t, res.Output, "x")
}
