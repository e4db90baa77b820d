package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/planner/core/model"
)

func TestParentCategories(t *testing.T) {
	s := model.Snapshot{Categories: []model.Category{
		{ID: 1},
		{ID: 2, ParentID: ptr(int64(1))},
		{ID: 3, ParentID: ptr(int64(2))},
		{ID: 4, ParentID: ptr(int64(99))},
	}}
	r, err := NewResolver(s)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, r.ParentCategories(3))
	assert.Equal(t, []int64{1}, r.ParentCategories(1))
	assert.Equal(t, []int64{4, 99}, r.ParentCategories(4))
}

func TestCategoryCycleIsRejected(t *testing.T) {
	s := model.Snapshot{Categories: []model.Category{
		{ID: 1, ParentID: ptr(int64(2))},
		{ID: 2, ParentID: ptr(int64(1))},
	}}
	_, err := NewResolver(s)
	assert.ErrorIs(t, err, ErrCategoryCycle)

	_, err = Compile(s)
	assert.ErrorIs(t, err, ErrCategoryCycle)
}

func TestTaskExclusions(t *testing.T) {
	late := at(5)
	early := at(1)
	s := model.Snapshot{
		Agents: []model.Agent{
			{ID: 1},
			{ID: 2},
			{ID: 3, Start: &late},
			{ID: 4, End: &early},
			{ID: 5},
		},
		Categories: []model.Category{{ID: 1}, {ID: 2, ParentID: ptr(int64(1))}, {ID: 3}},
		Tasks: []model.Task{
			task(10, 0, 2, 2),
			task(11, 6, 8, 1),
			task(12, 6, 8, 3),
			task(13, 3, 3, 1),
		},
		Preferences: []model.AgentCategoryPreference{
			{AgentID: 2, CategoryID: 1},
			{AgentID: 5, CategoryID: 2},
		},
		Exclusions: []model.AgentTaskExclusion{{AgentID: 1, TaskID: 12}},
	}
	r, err := NewResolver(s)
	require.NoError(t, err)

	assert.Equal(t, []int64{2}, r.CategoryExclusions(1))
	assert.Equal(t, []int64{5}, r.CategoryExclusions(2))
	assert.Equal(t, []int64{2, 5}, r.InheritedCategoryExclusions(2))
	assert.Equal(t, []int64{1, 3, 4}, r.CategoryAgents(2))

	// Ancestor exclusion cascades, availability is checked on both bounds.
	assert.Equal(t, []int64{2, 3, 4, 5}, r.TaskExclusions(10))
	// The child exclusion does not reach the parent.
	assert.Equal(t, []int64{2, 4}, r.TaskExclusions(11))
	assert.Equal(t, []int64{1, 4}, r.TaskExclusions(12))
	assert.Equal(t, []int64{1}, r.AvailableAgents(10))

	_, ok := r.Task(13)
	assert.False(t, ok, "empty interval is skipped")
	assert.Nil(t, r.AvailableAgents(13))
	assert.Equal(t, []int64{1, 2}, r.TaskCategories(10))
	assert.Len(t, r.TasksInCategory(1), 2)
}

func TestPreferenceInheritance(t *testing.T) {
	s := model.Snapshot{
		Agents:     agents(1, 2, 3),
		Categories: []model.Category{{ID: 1}, {ID: 2, ParentID: ptr(int64(1))}, {ID: 3, ParentID: ptr(int64(2))}},
		Preferences: []model.AgentCategoryPreference{
			{AgentID: 1, CategoryID: 1, BalancingOffset: 4, BalancingCount: ptr(2.0)},
			{AgentID: 1, CategoryID: 2, BalancingOffset: 1, BalancingCount: ptr(0.5)},
			{AgentID: 2, CategoryID: 1, Affinity: 3, BalancingCount: ptr(1.0)},
		},
	}
	r, err := NewResolver(s)
	require.NoError(t, err)

	assert.Equal(t, 0.5, r.Preference(3, 1).Weight(), "nearest ancestor wins")
	assert.Equal(t, 1.0, r.Preference(2, 1).BalancingOffset)
	assert.Equal(t, 4.0, r.Preference(1, 1).BalancingOffset)
	assert.Equal(t, 3.0, r.Preference(3, 2).Affinity)
	assert.Equal(t, model.DefaultPreference(3, 3), r.Preference(3, 3))
}
