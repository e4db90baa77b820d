package model

import "time"

// DefaultTimeSlice is the unit used to express task durations in balancing
// and time-window constraints when an organization does not set one.
const DefaultTimeSlice = 24 * time.Hour

// Organization is the tenant owning agents, categories and tasks.
type Organization struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	// TimeSlice is the length of one load unit for time-based policies.
	TimeSlice time.Duration `json:"time_slice" yaml:"time_slice"`
	// MaxComputeTime bounds a solver run. Zero means unlimited.
	MaxComputeTime time.Duration `json:"max_compute_time" yaml:"max_compute_time"`
}

// Slice returns the configured time slice or DefaultTimeSlice.
func (o Organization) Slice() time.Duration {
	if o.TimeSlice <= 0 {
		return DefaultTimeSlice
	}
	return o.TimeSlice
}

// Units converts d into a number of time slices.
func (o Organization) Units(d time.Duration) float64 {
	return float64(d) / float64(o.Slice())
}

// Agent is a resource tasks can be assigned to. Start and End bound its
// availability, both inclusive; a nil bound is open-ended.
type Agent struct {
	ID             int64      `json:"id" yaml:"id"`
	OrganizationID int64      `json:"organization_id" yaml:"organization_id"`
	Name           string     `json:"name" yaml:"name"`
	Start          *time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	End            *time.Time `json:"end,omitempty" yaml:"end,omitempty"`
}

// Covers reports whether the agent is available for the whole task.
func (a Agent) Covers(t Task) bool {
	if a.Start != nil && a.Start.After(t.Start) {
		return false
	}
	if a.End != nil && a.End.Before(t.End) {
		return false
	}
	return true
}
