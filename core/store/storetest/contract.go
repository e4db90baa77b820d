// Package storetest holds the behaviour every store.Store implementation
// must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/planner/core/model"
	"github.com/kilianp07/planner/core/store"
)

func ptr[T any](v T) *T { return &v }

// Snapshot returns a small organization exercising every record type.
func Snapshot() model.Snapshot {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	until := start.Add(48 * time.Hour)
	return model.Snapshot{
		Organization: model.Organization{ID: 7, Name: "ward", TimeSlice: time.Hour, MaxComputeTime: 30 * time.Second},
		Agents: []model.Agent{
			{ID: 2, Name: "bob", End: &until},
			{ID: 1, Name: "ann"},
		},
		Categories: []model.Category{
			{ID: 1, Name: "care", BalancingMode: model.BalancingTime, BalancingTolerance: ptr(2.0)},
			{ID: 2, Name: "night", ParentID: ptr(int64(1))},
		},
		Tasks: []model.Task{
			{ID: 10, Name: "a", Start: start, End: start.Add(time.Hour), CategoryIDs: []int64{2, 1}},
			{ID: 11, Name: "b", Start: start, End: start.Add(2 * time.Hour), AgentID: ptr(int64(1)), Fixed: true},
			{ID: 12, Name: "c", Start: start.Add(3 * time.Hour), End: start.Add(4 * time.Hour), AgentID: ptr(int64(2))},
		},
		Preferences: []model.AgentCategoryPreference{
			{AgentID: 1, CategoryID: 1, BalancingOffset: 1.5, BalancingCount: ptr(2.0), Affinity: 3},
			{AgentID: 2, CategoryID: 2, Affinity: -1},
		},
		Exclusions:           []model.AgentTaskExclusion{{AgentID: 2, TaskID: 10}},
		TaskAffectations:     []model.MaxTaskAffectation{{ID: 1, CategoryID: 1, Mode: model.AffectationMaximum, Range: 24 * time.Hour, TaskCount: 2}},
		TimeTaskAffectations: []model.MaxTimeTaskAffectation{{ID: 1, CategoryID: 2, Mode: model.AffectationMinimum, Range: 7 * 24 * time.Hour, TaskTime: 4 * time.Hour}},
	}
}

// Run exercises s, which must be empty, against the store contract.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("RoundTrip", func(t *testing.T) { roundTrip(t, seeded(t, open)) })
	t.Run("AssignSkipsFixed", func(t *testing.T) { assignSkipsFixed(t, seeded(t, open)) })
	t.Run("Deletes", func(t *testing.T) { deletes(t, seeded(t, open)) })
	t.Run("RunGuard", func(t *testing.T) { runGuard(t, seeded(t, open)) })
	t.Run("ReimportKeepsRuns", func(t *testing.T) { reimport(t, seeded(t, open)) })
	t.Run("ClosedRunsAreFinal", func(t *testing.T) { closedRuns(t, seeded(t, open)) })
	t.Run("AbandonPendingRun", func(t *testing.T) { abandonRuns(t, seeded(t, open)) })
}

func seeded(t *testing.T, open func(t *testing.T) store.Store) store.Store {
	t.Helper()
	s := open(t)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Import(context.Background(), Snapshot()))
	return s
}

func roundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	want := Snapshot()

	org, err := s.Organization(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, want.Organization, org)
	orgs, err := s.Organizations(ctx)
	require.NoError(t, err)
	assert.Len(t, orgs, 1)
	_, err = s.Organization(ctx, 8)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Tasks(ctx, 8)
	assert.ErrorIs(t, err, store.ErrNotFound)

	agents, err := s.Agents(ctx, 7)
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, int64(1), agents[0].ID)
	assert.Equal(t, int64(7), agents[1].OrganizationID)
	require.NotNil(t, agents[1].End)
	assert.True(t, want.Agents[0].End.Equal(*agents[1].End))
	assert.Nil(t, agents[0].Start)

	cats, err := s.Categories(ctx, 7)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, model.BalancingTime, cats[0].BalancingMode)
	assert.Equal(t, 2.0, *cats[0].BalancingTolerance)
	assert.Equal(t, int64(1), *cats[1].ParentID)
	assert.Nil(t, cats[0].ParentID)

	tasks, err := s.Tasks(ctx, 7)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []int64{2, 1}, tasks[0].CategoryIDs)
	assert.True(t, want.Tasks[0].Start.Equal(tasks[0].Start))
	assert.Nil(t, tasks[0].AgentID)
	assert.True(t, tasks[1].Fixed)
	assert.Equal(t, int64(1), *tasks[1].AgentID)

	prefs, err := s.Preferences(ctx, 7)
	require.NoError(t, err)
	assert.ElementsMatch(t, want.Preferences, prefs)
	ex, err := s.Exclusions(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, want.Exclusions, ex)
	ta, err := s.TaskAffectations(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, want.TaskAffectations, ta)
	tta, err := s.TimeTaskAffectations(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, want.TimeTaskAffectations, tta)

	// Returned tasks must not alias stored state.
	tasks[0].CategoryIDs[0] = 42
	again, err := s.Tasks(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), again[0].CategoryIDs[0])
}

func assignSkipsFixed(t *testing.T, s store.Store) {
	ctx := context.Background()
	n, err := s.AssignTasks(ctx, 7, 2, []int64{10, 11, 99})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	tasks, err := s.Tasks(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), *tasks[0].AgentID)
	assert.Equal(t, int64(1), *tasks[1].AgentID)

	n, err = s.AssignTasks(ctx, 7, 2, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = s.AssignTasks(ctx, 7, 5, []int64{10})
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.AssignTasks(ctx, 8, 1, []int64{10})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func deletes(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.DeleteAgent(ctx, 7, 2))
	ex, err := s.Exclusions(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, ex)
	prefs, err := s.Preferences(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, prefs, 1)
	tasks, err := s.Tasks(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, tasks[2].AgentID)
	assert.ErrorIs(t, s.DeleteAgent(ctx, 7, 2), store.ErrNotFound)

	require.NoError(t, s.DeleteTask(ctx, 7, 10))
	tasks, err = s.Tasks(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	assert.ErrorIs(t, s.DeleteTask(ctx, 7, 10), store.ErrNotFound)
}

func runGuard(t *testing.T, s store.Store) {
	ctx := context.Background()
	run, err := s.BeginRun(ctx, model.ScheduleRun{OrganizationID: 7, Timeout: time.Minute})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunPending, run.Status)
	assert.False(t, run.CreatedAt.IsZero())

	_, err = s.BeginRun(ctx, model.ScheduleRun{OrganizationID: 7})
	assert.ErrorIs(t, err, store.ErrRunInProgress)
	_, err = s.BeginRun(ctx, model.ScheduleRun{OrganizationID: 8})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SetRunProcess(ctx, run.ID, 4242))
	got, err := s.Run(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 4242, got.PID)
	assert.Equal(t, time.Minute, got.Timeout)

	finished := run.CreatedAt.Add(time.Second)
	run.Status = model.RunSuccess
	run.Result = model.Assignment{1: {10, 12}}
	run.Output = "Actual values of the variables:"
	run.FinishedAt = &finished
	require.NoError(t, s.UpdateRun(ctx, run))

	second, err := s.BeginRun(ctx, model.ScheduleRun{OrganizationID: 7, CreatedAt: run.CreatedAt.Add(time.Minute)})
	require.NoError(t, err)
	require.NoError(t, s.SelectRun(ctx, 7, run.ID))
	got, err = s.Run(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, got.Selected)
	assert.Equal(t, model.Assignment{1: {10, 12}}, got.Result)
	assert.Equal(t, run.Output, got.Output)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))

	assert.ErrorIs(t, s.SelectRun(ctx, 8, second.ID), store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateRun(ctx, model.ScheduleRun{ID: "missing"}), store.ErrNotFound)
	assert.ErrorIs(t, s.SetRunProcess(ctx, "missing", 1), store.ErrNotFound)
	_, err = s.Run(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	runs, err := s.Runs(ctx, 7)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
}

func closedRuns(t *testing.T, s store.Store) {
	ctx := context.Background()
	run, err := s.BeginRun(ctx, model.ScheduleRun{OrganizationID: 7})
	require.NoError(t, err)

	flagged, err := s.RequestCancel(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, flagged.CancelRequested)

	started := run.CreatedAt.Add(time.Second)
	run.Status = model.RunRunning
	run.StartedAt = &started
	require.NoError(t, s.UpdateRun(ctx, run))
	got, err := s.Run(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunRunning, got.Status)
	assert.True(t, got.CancelRequested, "updates keep the cancel request")

	run.Status = model.RunFailure
	run.Message = "cancelled"
	require.NoError(t, s.UpdateRun(ctx, run))

	run.Status = model.RunSuccess
	run.Message = "late"
	assert.ErrorIs(t, s.UpdateRun(ctx, run), store.ErrRunClosed)
	_, err = s.RequestCancel(ctx, run.ID)
	assert.ErrorIs(t, err, store.ErrRunClosed)
	_, err = s.RequestCancel(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err = s.Run(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailure, got.Status)
	assert.Equal(t, "cancelled", got.Message)
}

func abandonRuns(t *testing.T, s store.Store) {
	ctx := context.Background()
	run, err := s.BeginRun(ctx, model.ScheduleRun{OrganizationID: 7})
	require.NoError(t, err)
	at := run.CreatedAt.Add(time.Minute)

	started := run.CreatedAt.Add(time.Second)
	run.Status = model.RunRunning
	run.StartedAt = &started
	require.NoError(t, s.UpdateRun(ctx, run))
	closed, err := s.AbandonRun(ctx, run.ID, "cancelled", at)
	require.NoError(t, err)
	assert.False(t, closed, "a started run is left to its owner")

	run.Status = model.RunSuccess
	require.NoError(t, s.UpdateRun(ctx, run))
	pending, err := s.BeginRun(ctx, model.ScheduleRun{OrganizationID: 7, CreatedAt: at})
	require.NoError(t, err)
	closed, err = s.AbandonRun(ctx, pending.ID, "cancelled", at)
	require.NoError(t, err)
	assert.True(t, closed)
	got, err := s.Run(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailure, got.Status)
	assert.Equal(t, "cancelled", got.Message)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.Equal(at))

	closed, err = s.AbandonRun(ctx, pending.ID, "again", at)
	require.NoError(t, err)
	assert.False(t, closed)
	_, err = s.AbandonRun(ctx, "missing", "cancelled", at)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func reimport(t *testing.T, s store.Store) {
	ctx := context.Background()
	run, err := s.BeginRun(ctx, model.ScheduleRun{OrganizationID: 7})
	require.NoError(t, err)

	snap := Snapshot()
	snap.Tasks = snap.Tasks[:1]
	snap.Exclusions = nil
	require.NoError(t, s.Import(ctx, snap))
	tasks, err := s.Tasks(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	_, err = s.Run(ctx, run.ID)
	assert.NoError(t, err)

	bad := Snapshot()
	bad.Agents = append(bad.Agents, model.Agent{ID: 1})
	assert.Error(t, s.Import(ctx, bad))
}
