package scenarios

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/planner/core/lp"
	"github.com/kilianp07/planner/core/model"
	"github.com/kilianp07/planner/core/planner"
	"github.com/kilianp07/planner/core/reconcile"
	"github.com/kilianp07/planner/core/scheduler"
	"github.com/kilianp07/planner/core/solver/bruteforce"
	"github.com/kilianp07/planner/core/store"
	"github.com/kilianp07/planner/infra/logger"
)

// RunScenario solves the scenario snapshot with the exhaustive solver and
// checks the expectations.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	planner.ResetMetrics(prometheus.NewRegistry())
	t.Cleanup(func() { planner.ResetMetrics(nil) })

	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Import(ctx, sc.Snapshot))
	mgr, err := planner.NewManager(st, &bruteforce.Solver{}, planner.Config{}, logger.NopLogger{}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	orgID := sc.Snapshot.Organization.ID
	run, err := mgr.Solve(ctx, orgID, time.Minute)
	require.NoError(t, err)
	require.Equal(t, sc.Expected.Status, run.Status, run.Message)

	if run.Status == model.RunSuccess {
		checkAssignment(t, sc, run.Result)
	}
	for _, id := range sc.DeleteAgents {
		require.NoError(t, st.DeleteAgent(ctx, orgID, id))
	}
	if !sc.Apply {
		return
	}

	before := taskAgents(t, st, orgID)
	_, err = mgr.Apply(ctx, orgID, run.ID)
	switch sc.Expected.ApplyError {
	case "":
		require.NoError(t, err)
		after := taskAgents(t, st, orgID)
		for agent, tasks := range run.Result {
			for _, task := range tasks {
				assert.Equal(t, agent, after[task], "task %d", task)
			}
		}
		_, err = mgr.Apply(ctx, orgID, run.ID)
		require.NoError(t, err)
		assert.Equal(t, after, taskAgents(t, st, orgID), "apply is idempotent")
	case "stale":
		assert.ErrorIs(t, err, reconcile.ErrInvalidSchedule)
		assert.ErrorIs(t, err, reconcile.ErrStaleSchedule)
		assert.Equal(t, before, taskAgents(t, st, orgID), "domain unchanged")
	case "not_applicable":
		assert.True(t, errors.Is(err, planner.ErrRunNotApplicable), "got %v", err)
	default:
		t.Fatalf("unknown apply_error %q", sc.Expected.ApplyError)
	}
}

func checkAssignment(t *testing.T, sc *Scenario, a model.Assignment) {
	t.Helper()
	p, err := scheduler.Compile(sc.Snapshot)
	require.NoError(t, err)
	values := map[string]float64{}
	for agent, tasks := range a {
		for _, task := range tasks {
			values[lp.AssignmentVar(agent, task)] = 1
		}
	}

	valid := 0
	for _, task := range sc.Snapshot.Tasks {
		if task.Valid() {
			valid++
		}
	}
	assert.Equal(t, valid, a.Tasks(), "every valid task is assigned once")

	if sc.Expected.Loads != nil {
		loads := make([]int, 0, len(sc.Snapshot.Agents))
		for _, ag := range sc.Snapshot.Agents {
			loads = append(loads, len(a[ag.ID]))
		}
		slices.Sort(loads)
		assert.Equal(t, sc.Expected.Loads, loads)
	}
	for task, agent := range sc.Expected.Agents {
		got, ok := a.AgentOf(task)
		assert.True(t, ok, "task %d assigned", task)
		assert.Equal(t, agent, got, "task %d", task)
	}
	for _, c := range p.Constraints {
		if onlyAssignments(c.Terms) {
			assert.True(t, c.Holds(values, 1e-6), "constraint %s", c.Name)
		}
	}
}

// onlyAssignments reports whether a row can be checked from the assignment
// alone, without the auxiliary load variables.
func onlyAssignments(terms []lp.Term) bool {
	for _, term := range terms {
		if _, _, ok := lp.ParseAssignmentVar(term.Var); !ok {
			return false
		}
	}
	return len(terms) > 0
}

func taskAgents(t *testing.T, st store.Reader, orgID int64) map[int64]int64 {
	t.Helper()
	tasks, err := st.Tasks(context.Background(), orgID)
	require.NoError(t, err)
	out := map[int64]int64{}
	for _, task := range tasks {
		if task.AgentID != nil {
			out[task.ID] = *task.AgentID
		}
	}
	return out
}
