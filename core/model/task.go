package model

import (
	"slices"
	"time"
)

// Task is a time-boxed unit of work over the half-open interval [Start, End).
type Task struct {
	ID             int64     `json:"id" yaml:"id"`
	OrganizationID int64     `json:"organization_id" yaml:"organization_id"`
	Name           string    `json:"name" yaml:"name"`
	Start          time.Time `json:"start" yaml:"start"`
	End            time.Time `json:"end" yaml:"end"`
	CategoryIDs    []int64   `json:"category_ids,omitempty" yaml:"category_ids,omitempty"`
	AgentID        *int64    `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	Fixed          bool      `json:"fixed,omitempty" yaml:"fixed,omitempty"`
}

// Duration returns the task length.
func (t Task) Duration() time.Duration { return t.End.Sub(t.Start) }

// Valid reports whether the task interval is non-empty.
func (t Task) Valid() bool { return t.End.After(t.Start) }

// Pinned reports whether the assignment is a hard constraint.
func (t Task) Pinned() bool { return t.Fixed && t.AgentID != nil }

// Overlaps reports whether both half-open intervals intersect.
func (t Task) Overlaps(o Task) bool {
	return t.Start.Before(o.End) && o.Start.Before(t.End)
}

// InCategory reports whether id is one of the task's own categories.
func (t Task) InCategory(id int64) bool {
	return slices.Contains(t.CategoryIDs, id)
}

// AgentTaskExclusion forbids an agent from performing a task.
type AgentTaskExclusion struct {
	AgentID int64 `json:"agent_id" yaml:"agent_id"`
	TaskID  int64 `json:"task_id" yaml:"task_id"`
}
