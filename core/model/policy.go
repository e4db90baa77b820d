package model

import (
	"fmt"
	"time"
)

// AffectationMode selects the direction of a windowed policy.
type AffectationMode string

const (
	AffectationMinimum AffectationMode = "minimum"
	AffectationMaximum AffectationMode = "maximum"
)

func (m AffectationMode) validate() error {
	switch m {
	case AffectationMinimum, AffectationMaximum:
		return nil
	}
	return fmt.Errorf("unknown affectation mode %q", m)
}

// MaxTaskAffectation bounds how many tasks of a category an agent performs
// in any window of length Range.
type MaxTaskAffectation struct {
	ID         int64           `json:"id" yaml:"id"`
	CategoryID int64           `json:"category_id" yaml:"category_id"`
	Mode       AffectationMode `json:"mode" yaml:"mode"`
	Range      time.Duration   `json:"range" yaml:"range"`
	TaskCount  int             `json:"task_count" yaml:"task_count"`
}

// Validate checks the policy fields.
func (p MaxTaskAffectation) Validate() error {
	if err := p.Mode.validate(); err != nil {
		return fmt.Errorf("task affectation %d: %w", p.ID, err)
	}
	if p.Range <= 0 {
		return fmt.Errorf("task affectation %d: range must be positive", p.ID)
	}
	if p.TaskCount < 0 {
		return fmt.Errorf("task affectation %d: task count must be non-negative", p.ID)
	}
	return nil
}

// MaxTimeTaskAffectation bounds the total task time of a category an agent
// performs in any window of length Range.
type MaxTimeTaskAffectation struct {
	ID         int64           `json:"id" yaml:"id"`
	CategoryID int64           `json:"category_id" yaml:"category_id"`
	Mode       AffectationMode `json:"mode" yaml:"mode"`
	Range      time.Duration   `json:"range" yaml:"range"`
	TaskTime   time.Duration   `json:"task_time" yaml:"task_time"`
}

// Validate checks the policy fields.
func (p MaxTimeTaskAffectation) Validate() error {
	if err := p.Mode.validate(); err != nil {
		return fmt.Errorf("time affectation %d: %w", p.ID, err)
	}
	if p.Range <= 0 {
		return fmt.Errorf("time affectation %d: range must be positive", p.ID)
	}
	if p.TaskTime < 0 {
		return fmt.Errorf("time affectation %d: task time must be non-negative", p.ID)
	}
	return nil
}
