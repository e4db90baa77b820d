package lp

import (
	"math"
	"strconv"
)

// Op is a constraint relation.
type Op string

const (
	LE Op = "<="
	GE Op = ">="
	EQ Op = "="
)

// Term is a coefficient applied to a variable.
type Term struct {
	Coef float64
	Var  string
}

// Constraint is a named linear relation Σ terms op RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Op    Op
	RHS   float64
}

// Holds reports whether values satisfy the constraint within eps. Missing
// variables count as zero.
func (c Constraint) Holds(values map[string]float64, eps float64) bool {
	lhs := 0.0
	for _, t := range c.Terms {
		lhs += t.Coef * values[t.Var]
	}
	switch c.Op {
	case LE:
		return lhs <= c.RHS+eps
	case GE:
		return lhs >= c.RHS-eps
	default:
		return math.Abs(lhs-c.RHS) <= eps
	}
}

// Problem is a minimisation over named variables. Variables are
// non-negative unless declared free.
type Problem struct {
	Objective   []Term
	Constraints []Constraint

	ints    []string
	free    []string
	bounds  map[string]float64
	order   []string
	known   map[string]bool
	names   map[string]int
	isInt   map[string]bool
	isFree  map[string]bool
	comment []string
}

// NewProblem returns an empty problem.
func NewProblem() *Problem {
	return &Problem{
		bounds: make(map[string]float64),
		known:  make(map[string]bool),
		names:  make(map[string]int),
		isInt:  make(map[string]bool),
		isFree: make(map[string]bool),
	}
}

func (p *Problem) see(v string) {
	if !p.known[v] {
		p.known[v] = true
		p.order = append(p.order, v)
	}
}

// Comment adds a line written before the objective.
func (p *Problem) Comment(text string) {
	p.comment = append(p.comment, text)
}

// Minimize sets the objective terms.
func (p *Problem) Minimize(terms ...Term) {
	p.Objective = terms
	for _, t := range terms {
		p.see(t.Var)
	}
}

// Add appends a constraint. A name already in use gets a numeric suffix so
// that rows stay unique.
func (p *Problem) Add(c Constraint) {
	if n, dup := p.names[c.Name]; dup {
		p.names[c.Name] = n + 1
		c.Name = c.Name + "_" + strconv.Itoa(n+1)
	} else {
		p.names[c.Name] = 0
	}
	for _, t := range c.Terms {
		p.see(t.Var)
	}
	p.Constraints = append(p.Constraints, c)
}

// Binary declares v as an integer bounded by 1.
func (p *Problem) Binary(v string) {
	p.see(v)
	if p.isInt[v] {
		return
	}
	p.isInt[v] = true
	p.ints = append(p.ints, v)
	p.bounds[v] = 1
}

// Free declares v as unbounded in both directions.
func (p *Problem) Free(v string) {
	p.see(v)
	if p.isFree[v] {
		return
	}
	p.isFree[v] = true
	p.free = append(p.free, v)
}

// Variables returns every variable in order of first use.
func (p *Problem) Variables() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Binaries returns the 0/1 variables in declaration order.
func (p *Problem) Binaries() []string {
	out := make([]string, len(p.ints))
	copy(out, p.ints)
	return out
}

// IsFree reports whether v was declared free.
func (p *Problem) IsFree(v string) bool { return p.isFree[v] }

// IsBinary reports whether v was declared binary.
func (p *Problem) IsBinary(v string) bool { return p.isInt[v] }

// Conflicts returns constraints without variables whose constant sides
// contradict each other. Any of them makes the problem infeasible.
func (p *Problem) Conflicts() []Constraint {
	var out []Constraint
	for _, c := range p.Constraints {
		if len(c.Terms) == 0 && !c.Holds(nil, 0) {
			out = append(out, c)
		}
	}
	return out
}

// Violations returns the names of constraints and bounds that values break.
func (p *Problem) Violations(values map[string]float64, eps float64) []string {
	var out []string
	for _, c := range p.Constraints {
		if !c.Holds(values, eps) {
			out = append(out, c.Name)
		}
	}
	for _, v := range p.order {
		x := values[v]
		if !p.isFree[v] && x < -eps {
			out = append(out, v+">=0")
		}
		if ub, ok := p.bounds[v]; ok && x > ub+eps {
			out = append(out, v+"<="+FormatNumber(ub))
		}
		if p.isInt[v] && math.Abs(x-math.Round(x)) > eps {
			out = append(out, "int "+v)
		}
	}
	return out
}

// ObjectiveValue evaluates the objective for values.
func (p *Problem) ObjectiveValue(values map[string]float64) float64 {
	sum := 0.0
	for _, t := range p.Objective {
		sum += t.Coef * values[t.Var]
	}
	return sum
}
