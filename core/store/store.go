// Package store defines persistence contracts for planning data and
// schedule runs together with an in-memory implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/planner/core/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRunInProgress is returned by BeginRun while the organization has a
	// pending or running schedule run.
	ErrRunInProgress = errors.New("schedule run already in progress")
	// ErrRunClosed is returned when writing to a run that already reached a
	// terminal status.
	ErrRunClosed = errors.New("schedule run already finished")
)

// Reader exposes the planning data of one organization.
type Reader interface {
	Organization(ctx context.Context, id int64) (model.Organization, error)
	Agents(ctx context.Context, orgID int64) ([]model.Agent, error)
	Categories(ctx context.Context, orgID int64) ([]model.Category, error)
	Tasks(ctx context.Context, orgID int64) ([]model.Task, error)
	Preferences(ctx context.Context, orgID int64) ([]model.AgentCategoryPreference, error)
	Exclusions(ctx context.Context, orgID int64) ([]model.AgentTaskExclusion, error)
	TaskAffectations(ctx context.Context, orgID int64) ([]model.MaxTaskAffectation, error)
	TimeTaskAffectations(ctx context.Context, orgID int64) ([]model.MaxTimeTaskAffectation, error)
}

// Writer mutates planning data.
type Writer interface {
	// Import replaces all data of the snapshot organization.
	Import(ctx context.Context, s model.Snapshot) error
	// AssignTasks sets agentID on the listed tasks of the organization that
	// are not fixed and returns how many rows changed.
	AssignTasks(ctx context.Context, orgID, agentID int64, taskIDs []int64) (int, error)
	DeleteAgent(ctx context.Context, orgID, agentID int64) error
	DeleteTask(ctx context.Context, orgID, taskID int64) error
}

// RunStore persists schedule runs.
type RunStore interface {
	// BeginRun stores a new run. It fails with ErrRunInProgress when the
	// organization already has an open run.
	BeginRun(ctx context.Context, run model.ScheduleRun) (model.ScheduleRun, error)
	// UpdateRun replaces the run while the stored copy is still open and
	// fails with ErrRunClosed otherwise. The cancel request flag is kept.
	UpdateRun(ctx context.Context, run model.ScheduleRun) error
	SetRunProcess(ctx context.Context, runID string, pid int) error
	// RequestCancel flags an open run for cancellation and returns it. It
	// fails with ErrRunClosed on a finished run.
	RequestCancel(ctx context.Context, runID string) (model.ScheduleRun, error)
	// AbandonRun closes a pending run that never started as a failure with
	// message. It reports false when the run started or finished meanwhile.
	AbandonRun(ctx context.Context, runID, message string, at time.Time) (bool, error)
	Run(ctx context.Context, runID string) (model.ScheduleRun, error)
	Runs(ctx context.Context, orgID int64) ([]model.ScheduleRun, error)
	// SelectRun marks the run as the applied schedule of its organization.
	SelectRun(ctx context.Context, orgID int64, runID string) error
}

// Store aggregates every persistence contract.
type Store interface {
	Reader
	Writer
	RunStore
	Organizations(ctx context.Context) ([]model.Organization, error)
	Close() error
}
