package model

import (
	"errors"
	"fmt"
)

// Snapshot is the read-only view of one organization used for a solve.
type Snapshot struct {
	Organization         Organization              `json:"organization" yaml:"organization"`
	Agents               []Agent                   `json:"agents" yaml:"agents"`
	Categories           []Category                `json:"categories" yaml:"categories"`
	Tasks                []Task                    `json:"tasks" yaml:"tasks"`
	Preferences          []AgentCategoryPreference `json:"preferences,omitempty" yaml:"preferences,omitempty"`
	Exclusions           []AgentTaskExclusion      `json:"exclusions,omitempty" yaml:"exclusions,omitempty"`
	TaskAffectations     []MaxTaskAffectation      `json:"task_affectations,omitempty" yaml:"task_affectations,omitempty"`
	TimeTaskAffectations []MaxTimeTaskAffectation  `json:"time_task_affectations,omitempty" yaml:"time_task_affectations,omitempty"`
}

// Validate checks ids and policies. Malformed task intervals are not an
// error: they are skipped when the snapshot is loaded.
func (s Snapshot) Validate() error {
	var errs []error
	agents := make(map[int64]bool, len(s.Agents))
	for _, a := range s.Agents {
		if agents[a.ID] {
			errs = append(errs, fmt.Errorf("duplicate agent %d", a.ID))
		}
		agents[a.ID] = true
	}
	cats := make(map[int64]bool, len(s.Categories))
	for _, c := range s.Categories {
		if cats[c.ID] {
			errs = append(errs, fmt.Errorf("duplicate category %d", c.ID))
		}
		cats[c.ID] = true
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	tasks := make(map[int64]bool, len(s.Tasks))
	for _, t := range s.Tasks {
		if tasks[t.ID] {
			errs = append(errs, fmt.Errorf("duplicate task %d", t.ID))
		}
		tasks[t.ID] = true
		for _, c := range t.CategoryIDs {
			if !cats[c] {
				errs = append(errs, fmt.Errorf("task %d: unknown category %d", t.ID, c))
			}
		}
		if t.AgentID != nil && !agents[*t.AgentID] {
			errs = append(errs, fmt.Errorf("task %d: unknown agent %d", t.ID, *t.AgentID))
		}
	}
	for _, p := range s.Preferences {
		if !agents[p.AgentID] || !cats[p.CategoryID] {
			errs = append(errs, fmt.Errorf("preference (%d,%d): unknown agent or category", p.AgentID, p.CategoryID))
		}
	}
	for _, p := range s.TaskAffectations {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range s.TimeTaskAffectations {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ValidTasks returns the tasks whose interval is non-empty.
func (s Snapshot) ValidTasks() []Task {
	out := make([]Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		if t.Valid() {
			out = append(out, t)
		}
	}
	return out
}
