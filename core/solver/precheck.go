package solver

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	planlp "github.com/kilianp07/planner/core/lp"
)

// Verdict is the outcome of a relaxation check.
type Verdict int

const (
	Inconclusive Verdict = iota
	Feasible
	Infeasible
)

func (v Verdict) String() string {
	switch v {
	case Feasible:
		return "feasible"
	case Infeasible:
		return "infeasible"
	}
	return "inconclusive"
}

// DefaultMaxPrecheckVariables caps the size of problems CheckRelaxation
// looks at.
const DefaultMaxPrecheckVariables = 400

// relax points to the simplex routine. Tests override it to simulate solver
// failures.
var relax = solveRelaxation

// CheckRelaxation solves the continuous relaxation of p with the simplex
// method. An infeasible relaxation proves the integer problem infeasible;
// a feasible relaxation proves nothing about integrality and is reported
// as Feasible only as a hint. Problems larger than maxVars, or that the
// simplex rejects, are Inconclusive.
func CheckRelaxation(p *planlp.Problem, maxVars int) (v Verdict) {
	if len(p.Conflicts()) > 0 {
		return Infeasible
	}
	vars := p.Variables()
	if len(vars) == 0 {
		return Feasible
	}
	if maxVars <= 0 {
		maxVars = DefaultMaxPrecheckVariables
	}
	if len(vars) > maxVars {
		return Inconclusive
	}
	defer func() {
		if recover() != nil {
			v = Inconclusive
		}
	}()
	err := relax(p, vars)
	switch {
	case err == nil, errors.Is(err, lp.ErrUnbounded):
		return Feasible
	case errors.Is(err, lp.ErrInfeasible):
		return Infeasible
	}
	return Inconclusive
}

// solveRelaxation converts p to the general form min cᵀx, Gx ≤ h, Ax = b
// with x free, adding x ≥ 0 for non-free variables and x ≤ 1 for binaries.
func solveRelaxation(p *planlp.Problem, vars []string) error {
	index := make(map[string]int, len(vars))
	for i, v := range vars {
		index[v] = i
	}
	n := len(vars)
	c := make([]float64, n)
	for _, t := range p.Objective {
		c[index[t.Var]] += t.Coef
	}

	var gRows, aRows [][]float64
	var h, b []float64
	row := func(terms []planlp.Term, sign float64) []float64 {
		r := make([]float64, n)
		for _, t := range terms {
			r[index[t.Var]] += sign * t.Coef
		}
		return r
	}
	for _, con := range p.Constraints {
		switch con.Op {
		case planlp.LE:
			gRows = append(gRows, row(con.Terms, 1))
			h = append(h, con.RHS)
		case planlp.GE:
			gRows = append(gRows, row(con.Terms, -1))
			h = append(h, -con.RHS)
		default:
			aRows = append(aRows, row(con.Terms, 1))
			b = append(b, con.RHS)
		}
	}
	if len(aRows) > n {
		return fmt.Errorf("%d equalities over %d variables", len(aRows), n)
	}
	for i, v := range vars {
		if !p.IsFree(v) {
			r := make([]float64, n)
			r[i] = -1
			gRows = append(gRows, r)
			h = append(h, 0)
		}
		if p.IsBinary(v) {
			r := make([]float64, n)
			r[i] = 1
			gRows = append(gRows, r)
			h = append(h, 1)
		}
	}

	var g, a mat.Matrix
	if len(gRows) > 0 {
		g = dense(gRows, n)
	} else {
		h = nil
	}
	if len(aRows) > 0 {
		a = dense(aRows, n)
	} else {
		b = nil
	}
	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	_, _, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	return err
}

func dense(rows [][]float64, n int) *mat.Dense {
	m := mat.NewDense(len(rows), n, nil)
	for i, r := range rows {
		m.SetRow(i, r)
	}
	return m
}
