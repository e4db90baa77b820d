package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/planner/core/model"
	"github.com/kilianp07/planner/core/store"
)

func TestLoadSnapshotDropsMalformedTasks(t *testing.T) {
	st := store.NewMemoryStore()
	snap := model.Snapshot{
		Organization: model.Organization{ID: 1},
		Agents:       agents(1),
		Categories:   []model.Category{{ID: 1}},
		Tasks:        []model.Task{task(1, 0, 1, 1), task(2, 3, 3, 1), task(3, 5, 4, 1)},
		TaskAffectations: []model.MaxTaskAffectation{
			{ID: 1, CategoryID: 1, Mode: model.AffectationMaximum, Range: time.Hour, TaskCount: 2},
		},
	}
	require.NoError(t, st.Import(context.Background(), snap))

	got, err := LoadSnapshot(context.Background(), st, 1)
	require.NoError(t, err)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, int64(1), got.Tasks[0].ID)
	assert.Len(t, got.TaskAffectations, 1)

	_, err = LoadSnapshot(context.Background(), st, 2)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

const snapshotYAML = `
organization:
  id: 3
  name: clinic
  time_slice: 1h
agents:
  - id: 1
    name: ana
  - id: 2
    name: bo
    start: 2024-01-01T00:00:00Z
categories:
  - id: 1
    name: night
    balancing_mode: count
    balancing_tolerance: 1
tasks:
  - id: 5
    start: 2024-01-01T20:00:00Z
    end: 2024-01-02T08:00:00Z
    category_ids: [1]
preferences:
  - agent_id: 2
    category_id: 1
    balancing_count: null
task_affectations:
  - id: 1
    category_id: 1
    mode: maximum
    range: 168h
    task_count: 3
`

func TestDecodeSnapshotYAML(t *testing.T) {
	s, err := DecodeSnapshot(strings.NewReader(snapshotYAML), "yaml")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, s.Organization.TimeSlice)
	require.Len(t, s.Agents, 2)
	require.NotNil(t, s.Agents[1].Start)
	assert.Equal(t, 1.0, *s.Categories[0].BalancingTolerance)
	assert.True(t, s.Preferences[0].Excludes())
	assert.Equal(t, 168*time.Hour, s.TaskAffectations[0].Range)

	r, err := NewResolver(s)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, r.AvailableAgents(5))
}

func TestDecodeSnapshotErrors(t *testing.T) {
	_, err := DecodeSnapshot(strings.NewReader("{}"), "toml")
	assert.ErrorContains(t, err, "unsupported snapshot format")

	_, err = DecodeSnapshot(strings.NewReader(`{"agents":[{"id":1},{"id":1}]}`), "json")
	assert.ErrorContains(t, err, "duplicate agent 1")

	_, err = LoadSnapshotFile("does-not-exist.yaml")
	assert.Error(t, err)
}
