package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/planner/core/model"
)

func TestComputeBalancing(t *testing.T) {
	s := model.Snapshot{
		Organization: model.Organization{TimeSlice: time.Hour},
		Agents:       agents(1, 2, 3),
		Categories: []model.Category{
			{ID: 1, Name: "nights", BalancingMode: model.BalancingTime, BalancingTolerance: ptr(2.0)},
			{ID: 2, Name: "days"},
			{ID: 3, Name: "calls", BalancingMode: model.BalancingCount},
		},
		Tasks: []model.Task{
			task(1, 0, 2, 1),
			task(2, 2, 6, 1),
			task(3, 6, 7, 2),
		},
		Preferences: []model.AgentCategoryPreference{
			{AgentID: 2, CategoryID: 1, BalancingOffset: 1, BalancingCount: ptr(2.0)},
			{AgentID: 3, CategoryID: 1},
		},
	}
	stats, err := ComputeBalancing(s, model.Assignment{1: {1}, 2: {2, 3}})
	require.NoError(t, err)
	require.Len(t, stats, 1, "only categories with mode and tolerance are reported")

	st := stats[1]
	assert.Equal(t, "nights", st.Name)
	assert.Equal(t, model.BalancingTime, st.Mode)
	assert.Equal(t, map[int64]float64{1: 2, 2: 10}, st.Loads)
	assert.Equal(t, 8.0, st.Spread)
}

func TestCurrentAssignment(t *testing.T) {
	s := model.Snapshot{Tasks: []model.Task{
		{ID: 1, Start: at(0), End: at(1), AgentID: ptr(int64(4))},
		{ID: 2, Start: at(1), End: at(1), AgentID: ptr(int64(4))},
		{ID: 3, Start: at(1), End: at(2)},
	}}
	assert.Equal(t, model.Assignment{4: {1}}, CurrentAssignment(s))
}
