package metrics

import (
	"time"

	"github.com/kilianp07/planner/core/model"
)

// RunResult describes a schedule run that reached a terminal status.
type RunResult struct {
	OrganizationID int64
	RunID          string
	Status         model.RunStatus
	Variables      int
	Constraints    int
	Assignments    int
	Duration       time.Duration
	Time           time.Time
}

// MetricsSink records run results for observability purposes.
type MetricsSink interface {
	RecordRunResult(res RunResult) error
}

// BalanceSample is the load of one agent in one balanced category.
type BalanceSample struct {
	OrganizationID int64
	RunID          string
	CategoryID     int64
	Category       string
	AgentID        int64
	Load           float64
	// Spread is shared by every sample of the category.
	Spread float64
	Time   time.Time
}

// BalanceRecorder records category balancing after a successful run.
type BalanceRecorder interface {
	RecordBalance(samples []BalanceSample) error
}

// ApplyResult describes a run written back to the store.
type ApplyResult struct {
	OrganizationID int64
	RunID          string
	Updated        int
	Time           time.Time
}

// ApplyRecorder records reconciliations.
type ApplyRecorder interface {
	RecordApply(res ApplyResult) error
}

// NopSink is a MetricsSink that does nothing.
type NopSink struct{}

func (NopSink) RecordRunResult(RunResult) error     { return nil }
func (NopSink) RecordBalance([]BalanceSample) error { return nil }
func (NopSink) RecordApply(ApplyResult) error       { return nil }
