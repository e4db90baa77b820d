package model

import "fmt"

// BalancingMode selects how agent load is measured in a category.
type BalancingMode string

const (
	BalancingNone  BalancingMode = "none"
	BalancingCount BalancingMode = "count"
	BalancingTime  BalancingMode = "time"
)

// Valid reports whether m is a known mode. The empty mode means none.
func (m BalancingMode) Valid() bool {
	switch m {
	case "", BalancingNone, BalancingCount, BalancingTime:
		return true
	}
	return false
}

// Category classifies tasks and carries the balancing policy.
type Category struct {
	ID             int64         `json:"id" yaml:"id"`
	OrganizationID int64         `json:"organization_id" yaml:"organization_id"`
	ParentID       *int64        `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Name           string        `json:"name" yaml:"name"`
	BalancingMode  BalancingMode `json:"balancing_mode,omitempty" yaml:"balancing_mode,omitempty"`
	// BalancingTolerance is the slack in load units allowed around the
	// per-agent average. Nil disables balancing.
	BalancingTolerance *float64 `json:"balancing_tolerance,omitempty" yaml:"balancing_tolerance,omitempty"`
	// AutoAffinity is kept for compatibility and does not weigh the objective.
	AutoAffinity float64 `json:"auto_affinity,omitempty" yaml:"auto_affinity,omitempty"`
}

// Balanced reports whether balancing constraints apply to the category.
func (c Category) Balanced() bool {
	return c.BalancingTolerance != nil && (c.BalancingMode == BalancingCount || c.BalancingMode == BalancingTime)
}

// Validate checks the category policy fields.
func (c Category) Validate() error {
	if !c.BalancingMode.Valid() {
		return fmt.Errorf("category %d: unknown balancing mode %q", c.ID, c.BalancingMode)
	}
	if c.BalancingTolerance != nil && *c.BalancingTolerance < 0 {
		return fmt.Errorf("category %d: balancing tolerance must be non-negative", c.ID)
	}
	return nil
}

// AgentCategoryPreference tunes how an agent takes part in a category.
type AgentCategoryPreference struct {
	AgentID         int64   `json:"agent_id" yaml:"agent_id"`
	CategoryID      int64   `json:"category_id" yaml:"category_id"`
	BalancingOffset float64 `json:"balancing_offset" yaml:"balancing_offset"`
	// BalancingCount weighs the agent load. Nil excludes the agent from
	// the category.
	BalancingCount *float64 `json:"balancing_count" yaml:"balancing_count"`
	Affinity       float64  `json:"affinity" yaml:"affinity"`
}

// Excludes reports whether the preference bars the agent from the category.
func (p AgentCategoryPreference) Excludes() bool {
	return p.BalancingCount == nil
}

// Weight returns the balancing multiplier, 1 when unset.
func (p AgentCategoryPreference) Weight() float64 {
	if p.BalancingCount == nil {
		return 1
	}
	return *p.BalancingCount
}

// DefaultPreference applies when an agent has no preference row for a
// category or any of its ancestors.
func DefaultPreference(agentID, categoryID int64) AgentCategoryPreference {
	one := 1.0
	return AgentCategoryPreference{AgentID: agentID, CategoryID: categoryID, BalancingCount: &one}
}
