// Package reconcile writes a solved assignment back to the store after
// checking it still matches the organization data.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kilianp07/planner/core/logger"
	"github.com/kilianp07/planner/core/model"
	"github.com/kilianp07/planner/core/scheduler"
	"github.com/kilianp07/planner/core/store"
)

var (
	// ErrInvalidSchedule is returned when an assignment cannot be applied.
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrStaleSchedule details an assignment that no longer matches the
	// data it was computed from. It always comes wrapped with
	// ErrInvalidSchedule.
	ErrStaleSchedule = errors.New("stale schedule")
)

// Store is what the reconciler needs from persistence.
type Store interface {
	store.Reader
	AssignTasks(ctx context.Context, orgID, agentID int64, taskIDs []int64) (int, error)
}

// Reconciler validates and applies assignments.
type Reconciler struct {
	store  Store
	logger logger.Logger
}

// New returns a Reconciler.
func New(st Store, log logger.Logger) (*Reconciler, error) {
	if st == nil || log == nil {
		return nil, fmt.Errorf("reconcile: nil parameter (store=%v, logger=%v)", st != nil, log != nil)
	}
	return &Reconciler{store: st, logger: log}, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrInvalidSchedule, ErrStaleSchedule, fmt.Sprintf(format, args...))
}

// Validate checks a against the current organization data: every agent
// and task must exist, no task may appear twice and every valid task must
// be assigned.
func (r *Reconciler) Validate(ctx context.Context, orgID int64, a model.Assignment) error {
	snap, err := scheduler.LoadSnapshot(ctx, r.store, orgID)
	if err != nil {
		return err
	}
	return check(snap, a)
}

func check(snap model.Snapshot, a model.Assignment) error {
	agents := make(map[int64]bool, len(snap.Agents))
	for _, ag := range snap.Agents {
		agents[ag.ID] = true
	}
	tasks := make(map[int64]bool, len(snap.Tasks))
	for _, t := range snap.Tasks {
		tasks[t.ID] = true
	}
	seen := map[int64]int64{}
	for _, agent := range a.Agents() {
		if !agents[agent] {
			return invalid("agent %d no longer exists", agent)
		}
		for _, id := range a[agent] {
			if !tasks[id] {
				return invalid("task %d no longer exists", id)
			}
			if prev, dup := seen[id]; dup {
				return invalid("task %d assigned to agents %d and %d", id, prev, agent)
			}
			seen[id] = agent
		}
	}
	var missing []int64
	for _, t := range snap.Tasks {
		if _, ok := seen[t.ID]; !ok {
			missing = append(missing, t.ID)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return invalid("tasks %v are not assigned", missing)
	}
	return nil
}

// Apply validates a and then assigns every agent its tasks, one store
// update per agent, and returns how many tasks were written. Fixed tasks
// are left untouched. Nothing is written when validation fails, and
// applying the same assignment twice is harmless.
func (r *Reconciler) Apply(ctx context.Context, orgID int64, a model.Assignment) (int, error) {
	if err := r.Validate(ctx, orgID, a); err != nil {
		return 0, err
	}
	total := 0
	for _, agent := range a.Agents() {
		n, err := r.store.AssignTasks(ctx, orgID, agent, a[agent])
		if err != nil {
			return total, fmt.Errorf("assign tasks of agent %d: %w", agent, err)
		}
		total += n
		if n == 0 {
			r.logger.Debugf("org %d: no task updated for agent %d", orgID, agent)
			continue
		}
		r.logger.Debugw("tasks assigned", map[string]any{"organization": orgID, "agent": agent, "updated": n})
	}
	return total, nil
}
