// Package mqtt defines how run notifications leave the process.
package mqtt

import "github.com/kilianp07/planner/core/events"

// Notifier publishes run lifecycle notifications to operators.
type Notifier interface {
	// NotifyRun announces a status transition of a run.
	NotifyRun(ev events.RunEvent) error
	// NotifyApply announces that a run was written back to the store.
	NotifyApply(ev events.ApplyEvent) error
}

// CancelFunc stops the run with the given id.
type CancelFunc func(runID string) error
