package events

import (
	"time"

	"github.com/kilianp07/planner/core/model"
)

// RunEvent is published on every status transition of a schedule run.
type RunEvent struct {
	OrganizationID int64           `json:"organization_id"`
	RunID          string          `json:"run_id"`
	Status         model.RunStatus `json:"status"`
	Message        string          `json:"message,omitempty"`
	Variables      int             `json:"variables,omitempty"`
	Constraints    int             `json:"constraints,omitempty"`
	Assignments    int             `json:"assignments,omitempty"`
	Duration       time.Duration   `json:"duration,omitempty"`
	Time           time.Time       `json:"time"`
}

// Terminal reports whether the run reached its final status.
func (e RunEvent) Terminal() bool { return e.Status.Terminal() }

// ApplyEvent is published once a run has been reconciled into the store.
type ApplyEvent struct {
	OrganizationID int64     `json:"organization_id"`
	RunID          string    `json:"run_id"`
	Updated        int       `json:"updated"`
	Time           time.Time `json:"time"`
}

// BalanceEvent carries the load of one balanced category after a run.
type BalanceEvent struct {
	OrganizationID int64             `json:"organization_id"`
	RunID          string            `json:"run_id"`
	CategoryID     int64             `json:"category_id"`
	Category       string            `json:"category"`
	Loads          map[int64]float64 `json:"loads"`
	Spread         float64           `json:"spread"`
	Time           time.Time         `json:"time"`
}
