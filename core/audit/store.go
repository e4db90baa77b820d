// Package audit keeps an append-only trail of schedule run transitions.
package audit

import (
	"context"
	"time"

	"github.com/kilianp07/planner/core/model"
)

// Record captures one status transition of a run, or its application.
type Record struct {
	Timestamp      time.Time       `json:"timestamp"`
	OrganizationID int64           `json:"organization_id"`
	RunID          string          `json:"run_id"`
	Status         model.RunStatus `json:"status"`
	Message        string          `json:"message,omitempty"`
	Assignments    int             `json:"assignments,omitempty"`
	Duration       time.Duration   `json:"duration,omitempty"`
	// Applied is set on the record written when the run is reconciled.
	Applied bool `json:"applied,omitempty"`
}

// Query defines filters for retrieving records. Zero fields match anything.
type Query struct {
	Start          time.Time
	End            time.Time
	OrganizationID int64
	RunID          string
	Status         model.RunStatus
}

// Match reports whether r passes every filter of q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.OrganizationID != 0 && r.OrganizationID != q.OrganizationID {
		return false
	}
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	return q.Status == "" || r.Status == q.Status
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error          { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
