package model

import (
	"maps"
	"slices"
	"time"
)

// RunStatus is the lifecycle state of a ScheduleRun.
type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunRunning    RunStatus = "running"
	RunSuccess    RunStatus = "success"
	RunInfeasible RunStatus = "infeasible"
	RunTimedOut   RunStatus = "timed_out"
	RunFailure    RunStatus = "failure"
)

// Terminal reports whether no further transition is expected.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunSuccess, RunInfeasible, RunTimedOut, RunFailure:
		return true
	}
	return false
}

// Assignment maps an agent id to the ids of the tasks it performs.
type Assignment map[int64][]int64

// Tasks returns the number of assigned tasks.
func (a Assignment) Tasks() int {
	n := 0
	for _, ids := range a {
		n += len(ids)
	}
	return n
}

// Agents returns the agent ids in ascending order.
func (a Assignment) Agents() []int64 {
	return slices.Sorted(maps.Keys(a))
}

// AgentOf returns the agent assigned to the task.
func (a Assignment) AgentOf(taskID int64) (int64, bool) {
	for agent, ids := range a {
		if slices.Contains(ids, taskID) {
			return agent, true
		}
	}
	return 0, false
}

// ScheduleRun records one solver invocation for an organization.
type ScheduleRun struct {
	ID             string        `json:"id" yaml:"id"`
	OrganizationID int64         `json:"organization_id" yaml:"organization_id"`
	Status         RunStatus     `json:"status" yaml:"status"`
	PID            int           `json:"pid,omitempty" yaml:"pid,omitempty"`
	Timeout        time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Result         Assignment    `json:"result,omitempty" yaml:"result,omitempty"`
	// Output keeps the raw solver output for audit.
	Output     string     `json:"output,omitempty" yaml:"output,omitempty"`
	Message    string     `json:"message,omitempty" yaml:"message,omitempty"`
	Selected   bool       `json:"selected" yaml:"selected"`
	// CancelRequested is set by Cancel for the process executing the run.
	CancelRequested bool `json:"cancel_requested,omitempty" yaml:"cancel_requested,omitempty"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Open reports whether the run still occupies its organization.
func (r ScheduleRun) Open() bool {
	return r.Status == RunPending || r.Status == RunRunning
}
