package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/planner/core/model"
)

// Expected describes the outcome a scenario must reach.
type Expected struct {
	Status model.RunStatus `yaml:"status"`
	// Loads are the task counts per agent in ascending order, agents
	// without tasks included.
	Loads []int `yaml:"loads,omitempty"`
	// Agents maps a task to the only agent allowed to perform it.
	Agents map[int64]int64 `yaml:"agents,omitempty"`
	// ApplyError is "", "stale" or "not_applicable".
	ApplyError string `yaml:"apply_error,omitempty"`
}

// Scenario is a snapshot solved end to end, optionally followed by an
// apply after some agents were deleted.
type Scenario struct {
	Name         string         `yaml:"name"`
	Description  string         `yaml:"description,omitempty"`
	Snapshot     model.Snapshot `yaml:"snapshot"`
	Apply        bool           `yaml:"apply,omitempty"`
	DeleteAgents []int64        `yaml:"delete_agents,omitempty"`
	Expected     Expected       `yaml:"expected"`
}

// Load reads a scenario file and validates its snapshot.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if err := sc.Snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	if sc.Expected.Status == "" {
		return nil, fmt.Errorf("scenario %s: expected status is required", sc.Name)
	}
	return &sc, nil
}
