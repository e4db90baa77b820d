package scheduler

import (
	"math"

	"github.com/kilianp07/planner/core/model"
)

// BalanceStat summarises the load of a balanced category.
type BalanceStat struct {
	CategoryID int64               `json:"category_id"`
	Name       string              `json:"name"`
	Mode       model.BalancingMode `json:"mode"`
	// Loads holds offset·w + w·Σ unit for every eligible agent.
	Loads map[int64]float64 `json:"loads"`
	// Spread is the gap between the most and least loaded agents.
	Spread float64 `json:"spread"`
}

// ComputeBalancing reports, for every balanced category, the weighted load
// of each eligible agent under the assignment. It is informational only.
func ComputeBalancing(s model.Snapshot, a model.Assignment) (map[int64]BalanceStat, error) {
	r, err := NewResolver(s)
	if err != nil {
		return nil, err
	}
	owner := make(map[int64]int64, a.Tasks())
	for agent, tasks := range a {
		for _, t := range tasks {
			owner[t] = agent
		}
	}
	out := map[int64]BalanceStat{}
	for _, cat := range r.Categories() {
		if !cat.Balanced() {
			continue
		}
		agents := r.CategoryAgents(cat.ID)
		if len(agents) == 0 {
			continue
		}
		loads := make(map[int64]float64, len(agents))
		weights := make(map[int64]float64, len(agents))
		for _, ag := range agents {
			pref := r.Preference(cat.ID, ag)
			weights[ag] = pref.Weight()
			loads[ag] = pref.BalancingOffset * pref.Weight()
		}
		for _, t := range r.TasksInCategory(cat.ID) {
			ag, ok := owner[t.ID]
			if !ok {
				continue
			}
			if _, eligible := loads[ag]; !eligible {
				continue
			}
			unit := 1.0
			if cat.BalancingMode == model.BalancingTime {
				unit = s.Organization.Units(t.Duration())
			}
			loads[ag] += weights[ag] * unit
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, l := range loads {
			lo = math.Min(lo, l)
			hi = math.Max(hi, l)
		}
		out[cat.ID] = BalanceStat{CategoryID: cat.ID, Name: cat.Name, Mode: cat.BalancingMode, Loads: loads, Spread: hi - lo}
	}
	return out, nil
}

// CurrentAssignment returns the assignment recorded on the valid tasks of
// the snapshot.
func CurrentAssignment(s model.Snapshot) model.Assignment {
	out := model.Assignment{}
	for _, t := range s.Tasks {
		if t.Valid() && t.AgentID != nil {
			out[*t.AgentID] = append(out[*t.AgentID], t.ID)
		}
	}
	return out
}
