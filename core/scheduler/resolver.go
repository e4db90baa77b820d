package scheduler

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/kilianp07/planner/core/model"
)

// ErrCategoryCycle reports a category whose parent chain loops back on
// itself.
var ErrCategoryCycle = errors.New("category parent cycle")

// Resolver derives category chains, agent exclusions and effective
// preferences from a snapshot. It never mutates the snapshot.
type Resolver struct {
	snap       model.Snapshot
	agentIDs   []int64
	agents     map[int64]model.Agent
	categories map[int64]model.Category
	tasks      map[int64]model.Task
	chains     map[int64][]int64
	prefs      map[int64]map[int64]model.AgentCategoryPreference
	catExcl    map[int64]map[int64]bool
	taskExcl   map[int64]map[int64]bool
}

// NewResolver indexes s. Only valid tasks are considered. It fails with
// ErrCategoryCycle when any parent chain loops.
func NewResolver(s model.Snapshot) (*Resolver, error) {
	r := &Resolver{
		snap:       s,
		agents:     make(map[int64]model.Agent, len(s.Agents)),
		categories: make(map[int64]model.Category, len(s.Categories)),
		tasks:      make(map[int64]model.Task, len(s.Tasks)),
		chains:     make(map[int64][]int64, len(s.Categories)),
		prefs:      make(map[int64]map[int64]model.AgentCategoryPreference),
		catExcl:    make(map[int64]map[int64]bool),
		taskExcl:   make(map[int64]map[int64]bool),
	}
	for _, a := range s.Agents {
		r.agents[a.ID] = a
	}
	r.agentIDs = slices.Sorted(maps.Keys(r.agents))
	for _, c := range s.Categories {
		r.categories[c.ID] = c
	}
	for _, c := range s.Categories {
		chain, err := r.walk(c.ID)
		if err != nil {
			return nil, err
		}
		r.chains[c.ID] = chain
	}
	for _, p := range s.Preferences {
		if r.prefs[p.CategoryID] == nil {
			r.prefs[p.CategoryID] = make(map[int64]model.AgentCategoryPreference)
		}
		r.prefs[p.CategoryID][p.AgentID] = p
		if p.Excludes() {
			if r.catExcl[p.CategoryID] == nil {
				r.catExcl[p.CategoryID] = make(map[int64]bool)
			}
			r.catExcl[p.CategoryID][p.AgentID] = true
		}
	}
	for _, t := range s.Tasks {
		if t.Valid() {
			r.tasks[t.ID] = t
		}
	}
	for _, t := range r.tasks {
		r.taskExcl[t.ID] = r.excludeTask(t)
	}
	for _, e := range s.Exclusions {
		if ex, ok := r.taskExcl[e.TaskID]; ok {
			ex[e.AgentID] = true
		}
	}
	return r, nil
}

func (r *Resolver) walk(id int64) ([]int64, error) {
	seen := map[int64]bool{}
	var chain []int64
	for cur := &id; cur != nil; {
		if seen[*cur] {
			return nil, fmt.Errorf("category %d: %w at %d", id, ErrCategoryCycle, *cur)
		}
		seen[*cur] = true
		chain = append(chain, *cur)
		c, ok := r.categories[*cur]
		if !ok {
			break
		}
		cur = c.ParentID
	}
	return chain, nil
}

func (r *Resolver) excludeTask(t model.Task) map[int64]bool {
	ex := make(map[int64]bool)
	for _, c := range r.TaskCategories(t.ID) {
		for a := range r.catExcl[c] {
			ex[a] = true
		}
	}
	for _, a := range r.snap.Agents {
		if !a.Covers(t) {
			ex[a.ID] = true
		}
	}
	return ex
}

// Snapshot returns the indexed snapshot.
func (r *Resolver) Snapshot() model.Snapshot { return r.snap }

// AgentIDs returns every agent id in ascending order.
func (r *Resolver) AgentIDs() []int64 { return slices.Clone(r.agentIDs) }

// HasAgent reports whether the agent exists.
func (r *Resolver) HasAgent(id int64) bool {
	_, ok := r.agents[id]
	return ok
}

// Task returns a valid task by id.
func (r *Resolver) Task(id int64) (model.Task, bool) {
	t, ok := r.tasks[id]
	return t, ok
}

// Tasks returns the valid tasks ordered by id.
func (r *Resolver) Tasks() []model.Task {
	out := make([]model.Task, 0, len(r.tasks))
	for _, id := range slices.Sorted(maps.Keys(r.tasks)) {
		out = append(out, r.tasks[id])
	}
	return out
}

// ParentCategories returns id followed by its ancestors, nearest first.
// A parent id without a category ends the chain.
func (r *Resolver) ParentCategories(id int64) []int64 {
	if chain, ok := r.chains[id]; ok {
		return slices.Clone(chain)
	}
	return []int64{id}
}

// TaskCategories returns the effective categories of a task: its own
// categories and all their ancestors, without duplicates, in ascending order.
func (r *Resolver) TaskCategories(taskID int64) []int64 {
	t, ok := r.tasks[taskID]
	if !ok {
		return nil
	}
	set := map[int64]bool{}
	for _, c := range t.CategoryIDs {
		for _, p := range r.ParentCategories(c) {
			set[p] = true
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// CategoryExclusions returns the agents whose own preference for the
// category excludes them.
func (r *Resolver) CategoryExclusions(id int64) []int64 {
	return slices.Sorted(maps.Keys(r.catExcl[id]))
}

// InheritedCategoryExclusions returns the agents excluded from the category
// or from any of its ancestors.
func (r *Resolver) InheritedCategoryExclusions(id int64) []int64 {
	set := map[int64]bool{}
	for _, c := range r.ParentCategories(id) {
		for a := range r.catExcl[c] {
			set[a] = true
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// CategoryAgents returns the agents eligible for the category in ascending
// order.
func (r *Resolver) CategoryAgents(id int64) []int64 {
	excluded := r.InheritedCategoryExclusions(id)
	out := make([]int64, 0, len(r.agentIDs))
	for _, a := range r.agentIDs {
		if !slices.Contains(excluded, a) {
			out = append(out, a)
		}
	}
	return out
}

// TaskExclusions returns the agents that must not perform the task.
func (r *Resolver) TaskExclusions(taskID int64) []int64 {
	return slices.Sorted(maps.Keys(r.taskExcl[taskID]))
}

// Excluded reports whether agentID is barred from taskID.
func (r *Resolver) Excluded(agentID, taskID int64) bool {
	return r.taskExcl[taskID][agentID]
}

// AvailableAgents returns the agents that may perform the task in
// ascending order. Unknown tasks have none.
func (r *Resolver) AvailableAgents(taskID int64) []int64 {
	if _, ok := r.tasks[taskID]; !ok {
		return nil
	}
	out := make([]int64, 0, len(r.agentIDs))
	for _, a := range r.agentIDs {
		if !r.taskExcl[taskID][a] {
			out = append(out, a)
		}
	}
	return out
}

// Preference returns the preference of the agent for the category. The
// category's own row wins, then the nearest ancestor row, then
// model.DefaultPreference.
func (r *Resolver) Preference(categoryID, agentID int64) model.AgentCategoryPreference {
	for _, c := range r.ParentCategories(categoryID) {
		if p, ok := r.prefs[c][agentID]; ok {
			return p
		}
	}
	return model.DefaultPreference(agentID, categoryID)
}

// Category returns a category by id.
func (r *Resolver) Category(id int64) (model.Category, bool) {
	c, ok := r.categories[id]
	return c, ok
}

// Categories returns the categories ordered by id.
func (r *Resolver) Categories() []model.Category {
	out := make([]model.Category, 0, len(r.categories))
	for _, id := range slices.Sorted(maps.Keys(r.categories)) {
		out = append(out, r.categories[id])
	}
	return out
}

// TasksInCategory returns the valid tasks whose effective categories
// include id, ordered by id.
func (r *Resolver) TasksInCategory(id int64) []model.Task {
	var out []model.Task
	for _, t := range r.Tasks() {
		if slices.Contains(r.TaskCategories(t.ID), id) {
			out = append(out, t)
		}
	}
	return out
}
