package scheduler

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/kilianp07/planner/core/lp"
	"github.com/kilianp07/planner/core/model"
)

// Compile builds the assignment problem of the snapshot.
func Compile(s model.Snapshot) (*lp.Problem, error) {
	r, err := NewResolver(s)
	if err != nil {
		return nil, err
	}
	return CompileResolved(r), nil
}

// CompileResolved builds the problem from an existing resolver. Rows are
// emitted in a stable order: affinity, coverage, fixed tasks, overlaps,
// windowed affectations, balancing, then variable bounds.
func CompileResolved(r *Resolver) *lp.Problem {
	c := &compiler{r: r, p: lp.NewProblem(), org: r.snap.Organization}
	c.p.Comment(fmt.Sprintf("organization %d: %d agents, %d tasks, %d categories",
		c.org.ID, len(r.agentIDs), len(r.tasks), len(r.categories)))
	c.affinity()
	c.coverage()
	c.fixed()
	c.overlaps()
	c.windows()
	c.balancing()
	c.bounds()
	return c.p
}

type compiler struct {
	r   *Resolver
	p   *lp.Problem
	org model.Organization
}

func (c *compiler) available(agentID, taskID int64) bool {
	return c.r.HasAgent(agentID) && !c.r.Excluded(agentID, taskID)
}

// affinity sets the objective to maximise Σ affinity·v over eligible agents
// of every category. Without any affinity weight the objective is empty.
func (c *compiler) affinity() {
	var terms []lp.Term
	for _, cat := range c.r.Categories() {
		tasks := c.r.TasksInCategory(cat.ID)
		for _, a := range c.r.CategoryAgents(cat.ID) {
			aff := c.r.Preference(cat.ID, a).Affinity
			if aff == 0 {
				continue
			}
			for _, t := range tasks {
				if c.available(a, t.ID) {
					terms = append(terms, lp.Term{Coef: aff, Var: lp.AssignmentVar(a, t.ID)})
				}
			}
		}
	}
	if len(terms) == 0 {
		c.p.Minimize()
		return
	}
	c.p.Minimize(lp.Term{Coef: -1, Var: lp.AffinityVar})
	terms = append(terms, lp.Term{Coef: -1, Var: lp.AffinityVar})
	c.p.Add(lp.Constraint{Name: "affinity", Terms: terms, Op: lp.EQ})
	c.p.Free(lp.AffinityVar)
}

// coverage requires exactly one available agent per task. A task nobody can
// perform yields the unsatisfiable row 0 = 1.
func (c *compiler) coverage() {
	for _, t := range c.r.Tasks() {
		var terms []lp.Term
		for _, a := range c.r.AvailableAgents(t.ID) {
			terms = append(terms, lp.Term{Coef: 1, Var: lp.AssignmentVar(a, t.ID)})
		}
		c.p.Add(lp.Constraint{Name: fmt.Sprintf("cover_e%d", t.ID), Terms: terms, Op: lp.EQ, RHS: 1})
	}
}

// fixed pins tasks to their agent. An agent that cannot perform its fixed
// task makes the problem infeasible.
func (c *compiler) fixed() {
	for _, t := range c.r.Tasks() {
		if !t.Pinned() {
			continue
		}
		var terms []lp.Term
		if c.available(*t.AgentID, t.ID) {
			terms = []lp.Term{{Coef: 1, Var: lp.AssignmentVar(*t.AgentID, t.ID)}}
		}
		c.p.Add(lp.Constraint{Name: fmt.Sprintf("fixed_e%d", t.ID), Terms: terms, Op: lp.EQ, RHS: 1})
	}
}

type event struct {
	at    time.Time
	start bool
	task  int64
}

// overlaps sweeps task boundaries. Ends sort before starts at the same
// instant so that back-to-back tasks do not overlap. After each instant
// where a task starts, every agent performs at most one of the open tasks
// sharing a category.
func (c *compiler) overlaps() {
	tasks := c.r.Tasks()
	events := make([]event, 0, 2*len(tasks))
	for _, t := range tasks {
		events = append(events, event{at: t.Start, start: true, task: t.ID}, event{at: t.End, task: t.ID})
	}
	slices.SortFunc(events, func(a, b event) int {
		if n := a.at.Compare(b.at); n != 0 {
			return n
		}
		if a.start != b.start {
			if a.start {
				return 1
			}
			return -1
		}
		return cmp.Compare(a.task, b.task)
	})

	open := map[int64]bool{}
	instant := 0
	for i := 0; i < len(events); {
		j := i
		started := false
		for ; j < len(events) && events[j].at.Equal(events[i].at); j++ {
			if events[j].start {
				open[events[j].task] = true
				started = true
			} else {
				delete(open, events[j].task)
			}
		}
		i = j
		if !started || len(open) < 2 {
			continue
		}
		instant++
		groups := map[int64][]int64{}
		for _, id := range slices.Sorted(maps.Keys(open)) {
			for _, cat := range c.r.TaskCategories(id) {
				groups[cat] = append(groups[cat], id)
			}
		}
		for _, cat := range slices.Sorted(maps.Keys(groups)) {
			ids := groups[cat]
			if len(ids) < 2 {
				continue
			}
			for _, a := range c.r.agentIDs {
				var terms []lp.Term
				for _, id := range ids {
					if c.available(a, id) {
						terms = append(terms, lp.Term{Coef: 1, Var: lp.AssignmentVar(a, id)})
					}
				}
				if len(terms) < 2 {
					continue
				}
				c.p.Add(lp.Constraint{
					Name:  fmt.Sprintf("overlap_k%d_c%d_a%d", instant, cat, a),
					Terms: terms,
					Op:    lp.LE,
					RHS:   1,
				})
			}
		}
	}
}

// window is one windowed affectation policy reduced to its bound.
type window struct {
	name  string
	mode  model.AffectationMode
	span  time.Duration
	limit float64
	// weight returns the contribution of a task, 1 for count policies.
	weight func(model.Task) float64
}

func (c *compiler) policies(categoryID int64) []window {
	var out []window
	for _, p := range c.r.snap.TaskAffectations {
		if p.CategoryID == categoryID {
			out = append(out, window{
				name:   fmt.Sprintf("count_p%d", p.ID),
				mode:   p.Mode,
				span:   p.Range,
				limit:  float64(p.TaskCount),
				weight: func(model.Task) float64 { return 1 },
			})
		}
	}
	for _, p := range c.r.snap.TimeTaskAffectations {
		if p.CategoryID == categoryID {
			out = append(out, window{
				name:   fmt.Sprintf("time_p%d", p.ID),
				mode:   p.Mode,
				span:   p.Range,
				limit:  c.org.Units(p.TaskTime),
				weight: func(t model.Task) float64 { return c.org.Units(t.Duration()) },
			})
		}
	}
	return out
}

// windows bounds, for every distinct task start s of a category, the load
// of each eligible agent over the tasks starting in [s, s+range).
func (c *compiler) windows() {
	for _, cat := range c.r.Categories() {
		policies := c.policies(cat.ID)
		if len(policies) == 0 {
			continue
		}
		tasks := c.r.TasksInCategory(cat.ID)
		slices.SortFunc(tasks, func(a, b model.Task) int {
			if n := a.Start.Compare(b.Start); n != 0 {
				return n
			}
			if n := a.End.Compare(b.End); n != 0 {
				return n
			}
			return cmp.Compare(a.ID, b.ID)
		})
		agents := c.r.CategoryAgents(cat.ID)
		for _, pol := range policies {
			block := 0
			for i, t := range tasks {
				if i > 0 && tasks[i-1].Start.Equal(t.Start) {
					continue
				}
				block++
				end := t.Start.Add(pol.span)
				var members []model.Task
				for _, u := range tasks[i:] {
					if !u.Start.Before(end) {
						break
					}
					members = append(members, u)
				}
				for _, a := range agents {
					c.window(pol, block, a, members)
				}
			}
		}
	}
}

func (c *compiler) window(pol window, block int, agentID int64, members []model.Task) {
	var terms []lp.Term
	total := 0.0
	for _, t := range members {
		if !c.available(agentID, t.ID) {
			continue
		}
		w := pol.weight(t)
		total += w
		terms = append(terms, lp.Term{Coef: w, Var: lp.AssignmentVar(agentID, t.ID)})
	}
	op := lp.LE
	if pol.mode == model.AffectationMinimum {
		if pol.limit <= 0 {
			return
		}
		op = lp.GE
	} else if total <= pol.limit {
		return
	}
	c.p.Add(lp.Constraint{
		Name:  fmt.Sprintf("%s_w%d_a%d", pol.name, block, agentID),
		Terms: terms,
		Op:    op,
		RHS:   pol.limit,
	})
}

// balancing keeps the weighted load of every eligible agent within the
// category tolerance of the per-agent average:
//
//	c_a = offset·w + w·Σ unit·v
//	c   = Σ c_a
//	N·c_a - c ∈ [-tol·N, tol·N]
func (c *compiler) balancing() {
	for _, cat := range c.r.Categories() {
		if !cat.Balanced() {
			continue
		}
		agents := c.r.CategoryAgents(cat.ID)
		if len(agents) == 0 {
			continue
		}
		tasks := c.r.TasksInCategory(cat.ID)
		n := float64(len(agents))
		tol := *cat.BalancingTolerance
		total := lp.CategoryVar(cat.ID)
		sum := make([]lp.Term, 0, len(agents)+1)
		for _, a := range agents {
			pref := c.r.Preference(cat.ID, a)
			w := pref.Weight()
			acc := lp.CategoryAgentVar(cat.ID, a)
			terms := []lp.Term{{Coef: 1, Var: acc}}
			for _, t := range tasks {
				if !c.available(a, t.ID) {
					continue
				}
				unit := 1.0
				if cat.BalancingMode == model.BalancingTime {
					unit = c.org.Units(t.Duration())
				}
				terms = append(terms, lp.Term{Coef: -w * unit, Var: lp.AssignmentVar(a, t.ID)})
			}
			c.p.Add(lp.Constraint{
				Name:  fmt.Sprintf("bal_c%d_a%d", cat.ID, a),
				Terms: terms,
				Op:    lp.EQ,
				RHS:   pref.BalancingOffset * w,
			})
			c.p.Free(acc)
			sum = append(sum, lp.Term{Coef: 1, Var: acc})
		}
		sum = append(sum, lp.Term{Coef: -1, Var: total})
		c.p.Add(lp.Constraint{Name: fmt.Sprintf("bal_c%d_sum", cat.ID), Terms: sum, Op: lp.EQ})
		c.p.Free(total)
		for _, a := range agents {
			terms := []lp.Term{{Coef: n, Var: lp.CategoryAgentVar(cat.ID, a)}, {Coef: -1, Var: total}}
			c.p.Add(lp.Constraint{Name: fmt.Sprintf("bal_c%d_a%d_hi", cat.ID, a), Terms: terms, Op: lp.LE, RHS: tol * n})
			c.p.Add(lp.Constraint{Name: fmt.Sprintf("bal_c%d_a%d_lo", cat.ID, a), Terms: terms, Op: lp.GE, RHS: -tol * n})
		}
	}
}

// bounds declares every available (agent, task) pair as a 0/1 variable.
func (c *compiler) bounds() {
	for _, t := range c.r.Tasks() {
		for _, a := range c.r.AvailableAgents(t.ID) {
			c.p.Binary(lp.AssignmentVar(a, t.ID))
		}
	}
}
