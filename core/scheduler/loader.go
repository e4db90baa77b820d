package scheduler

import (
	"context"
	"fmt"

	"github.com/kilianp07/planner/core/model"
	"github.com/kilianp07/planner/core/store"
)

// LoadSnapshot reads every planning record of the organization. Tasks with
// an empty or inverted interval are dropped. A missing organization yields
// the store error unchanged.
func LoadSnapshot(ctx context.Context, r store.Reader, orgID int64) (model.Snapshot, error) {
	var s model.Snapshot
	var err error
	if s.Organization, err = r.Organization(ctx, orgID); err != nil {
		return model.Snapshot{}, err
	}
	if s.Agents, err = r.Agents(ctx, orgID); err != nil {
		return model.Snapshot{}, fmt.Errorf("load agents: %w", err)
	}
	if s.Categories, err = r.Categories(ctx, orgID); err != nil {
		return model.Snapshot{}, fmt.Errorf("load categories: %w", err)
	}
	tasks, err := r.Tasks(ctx, orgID)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("load tasks: %w", err)
	}
	s.Tasks = tasks[:0:0]
	for _, t := range tasks {
		if t.Valid() {
			s.Tasks = append(s.Tasks, t)
		}
	}
	if s.Preferences, err = r.Preferences(ctx, orgID); err != nil {
		return model.Snapshot{}, fmt.Errorf("load preferences: %w", err)
	}
	if s.Exclusions, err = r.Exclusions(ctx, orgID); err != nil {
		return model.Snapshot{}, fmt.Errorf("load exclusions: %w", err)
	}
	if s.TaskAffectations, err = r.TaskAffectations(ctx, orgID); err != nil {
		return model.Snapshot{}, fmt.Errorf("load task affectations: %w", err)
	}
	if s.TimeTaskAffectations, err = r.TimeTaskAffectations(ctx, orgID); err != nil {
		return model.Snapshot{}, fmt.Errorf("load time affectations: %w", err)
	}
	return s, nil
}
