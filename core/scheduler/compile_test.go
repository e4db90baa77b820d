package scheduler

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/planner/core/model"
)

func TestCompileText(t *testing.T) {
	s := model.Snapshot{
		Organization: model.Organization{ID: 1},
		Agents:       agents(1, 2),
		Categories:   []model.Category{{ID: 1}},
		Tasks:        []model.Task{task(10, 8, 10, 1), task(11, 9, 11, 1)},
	}
	p, err := Compile(s)
	require.NoError(t, err)
	want := "/* organization 1: 2 agents, 2 tasks, 1 categories */\n" +
		"min: ;\n\n" +
		"cover_e10: v_a1_e10 + v_a2_e10 = 1;\n" +
		"cover_e11: v_a1_e11 + v_a2_e11 = 1;\n" +
		"overlap_k1_c1_a1: v_a1_e10 + v_a1_e11 <= 1;\n" +
		"overlap_k1_c1_a2: v_a2_e10 + v_a2_e11 <= 1;\n\n" +
		"v_a1_e10 <= 1;\nv_a2_e10 <= 1;\nv_a1_e11 <= 1;\nv_a2_e11 <= 1;\n" +
		"int v_a1_e10,v_a2_e10,v_a1_e11,v_a2_e11;\n"
	assert.Equal(t, want, p.String())
}

func rowNames(s model.Snapshot, t *testing.T) []string {
	t.Helper()
	p, err := Compile(s)
	require.NoError(t, err)
	var out []string
	for _, c := range p.Constraints {
		out = append(out, c.Format())
	}
	return out
}

func TestOverlapHalfOpen(t *testing.T) {
	s := model.Snapshot{
		Agents:     agents(1),
		Categories: []model.Category{{ID: 1}},
		Tasks:      []model.Task{task(1, 0, 2, 1), task(2, 2, 4, 1)},
	}
	for _, row := range rowNames(s, t) {
		assert.NotContains(t, row, "overlap")
	}
}

func TestOverlapGroupsByCategory(t *testing.T) {
	s := model.Snapshot{
		Agents:     agents(1),
		Categories: []model.Category{{ID: 1}, {ID: 2}, {ID: 3, ParentID: ptr(int64(1))}},
		Tasks:      []model.Task{task(1, 0, 4, 1), task(2, 1, 3, 2), task(3, 2, 5, 3)},
	}
	rows := rowNames(s, t)
	assert.Contains(t, rows, "overlap_k2_c1_a1: v_a1_e1 + v_a1_e3 <= 1;")
	for _, row := range rows {
		assert.NotContains(t, row, "_c2_", "task 2 shares no category")
	}
}

func TestFixedAndConflicts(t *testing.T) {
	early := at(1)
	s := model.Snapshot{
		Agents: []model.Agent{{ID: 1}, {ID: 2, End: &early}},
		Tasks: []model.Task{
			{ID: 1, Start: at(0), End: at(1), AgentID: ptr(int64(1)), Fixed: true},
			{ID: 2, Start: at(0), End: at(2), AgentID: ptr(int64(2)), Fixed: true},
			{ID: 3, Start: at(2), End: at(3), AgentID: ptr(int64(2))},
		},
		Exclusions: []model.AgentTaskExclusion{{AgentID: 1, TaskID: 3}},
	}
	p, err := Compile(s)
	require.NoError(t, err)
	var rows []string
	for _, c := range p.Constraints {
		rows = append(rows, c.Format())
	}
	assert.Contains(t, rows, "fixed_e1: v_a1_e1 = 1;")
	assert.Contains(t, rows, "fixed_e2: 0 = 1;")
	assert.Contains(t, rows, "cover_e3: 0 = 1;")
	var names []string
	for _, c := range p.Conflicts() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"cover_e3", "fixed_e2"}, names)
}

func TestAffinityObjective(t *testing.T) {
	s := model.Snapshot{
		Agents:      agents(1, 2),
		Categories:  []model.Category{{ID: 1}},
		Tasks:       []model.Task{task(10, 0, 1, 1)},
		Preferences: []model.AgentCategoryPreference{{AgentID: 2, CategoryID: 1, BalancingCount: ptr(1.0), Affinity: 2}},
	}
	p, err := Compile(s)
	require.NoError(t, err)
	out := p.String()
	assert.Contains(t, out, "min: -a;\n")
	assert.Contains(t, out, "affinity: 2 v_a2_e10 - a = 0;\n")
	assert.Contains(t, out, "free a;\n")

	res := solve(t, s)
	assert.Equal(t, model.Assignment{2: {10}}, res.ByAgent())
}

func TestCountWindow(t *testing.T) {
	s := model.Snapshot{
		Agents:     agents(1, 2),
		Categories: []model.Category{{ID: 1}},
		Tasks:      []model.Task{task(1, 0, 1, 1), task(2, 24, 25, 1)},
		TaskAffectations: []model.MaxTaskAffectation{
			{ID: 7, CategoryID: 1, Mode: model.AffectationMaximum, Range: 48 * time.Hour, TaskCount: 1},
		},
	}
	rows := rowNames(s, t)
	assert.Contains(t, rows, "count_p7_w1_a1: v_a1_e1 + v_a1_e2 <= 1;")
	assert.Contains(t, rows, "count_p7_w1_a2: v_a2_e1 + v_a2_e2 <= 1;")
	for _, r := range rows {
		assert.NotContains(t, r, "count_p7_w2", "trivially satisfied windows are skipped")
	}

	res := solve(t, s)
	require.False(t, res.Infeasible)
	got := res.ByAgent()
	assert.Len(t, got[1], 1)
	assert.Len(t, got[2], 1)
}

func TestTimeWindowMinimum(t *testing.T) {
	s := model.Snapshot{
		Organization: model.Organization{TimeSlice: time.Hour},
		Agents:       agents(1, 2),
		Categories:   []model.Category{{ID: 1}},
		Tasks:        []model.Task{task(1, 0, 2, 1), task(2, 3, 5, 1)},
		TimeTaskAffectations: []model.MaxTimeTaskAffectation{
			{ID: 3, CategoryID: 1, Mode: model.AffectationMinimum, Range: 4 * time.Hour, TaskTime: 2 * time.Hour},
		},
	}
	rows := rowNames(s, t)
	assert.Contains(t, rows, "time_p3_w1_a1: 2 v_a1_e1 + 2 v_a1_e2 >= 2;")
	assert.Contains(t, rows, "time_p3_w2_a2: 2 v_a2_e2 >= 2;")

	// Both agents need two hours in the second window holding one task.
	res := solve(t, s)
	assert.True(t, res.Infeasible)
}

func TestBalancingRows(t *testing.T) {
	s := model.Snapshot{
		Agents:     agents(1, 2),
		Categories: []model.Category{{ID: 1, BalancingMode: model.BalancingCount, BalancingTolerance: ptr(1.0)}},
		Tasks:      []model.Task{task(10, 0, 1, 1)},
		Preferences: []model.AgentCategoryPreference{
			{AgentID: 2, CategoryID: 1, BalancingOffset: 1, BalancingCount: ptr(2.0)},
		},
	}
	p, err := Compile(s)
	require.NoError(t, err)
	out := p.String()
	for _, want := range []string{
		"bal_c1_a1: c_c1_a1 - v_a1_e10 = 0;\n",
		"bal_c1_a2: c_c1_a2 - 2 v_a2_e10 = 2;\n",
		"bal_c1_sum: c_c1_a1 + c_c1_a2 - c_c1 = 0;\n",
		"bal_c1_a1_hi: 2 c_c1_a1 - c_c1 <= 2;\n",
		"bal_c1_a1_lo: 2 c_c1_a1 - c_c1 >= -2;\n",
		"free c_c1_a1,c_c1_a2,c_c1;\n",
	} {
		assert.Contains(t, out, want)
	}
}

func TestBalancingTimeUnits(t *testing.T) {
	s := model.Snapshot{
		Organization: model.Organization{TimeSlice: time.Hour},
		Agents:       agents(1),
		Categories:   []model.Category{{ID: 1, BalancingMode: model.BalancingTime, BalancingTolerance: ptr(0.0)}},
		Tasks:        []model.Task{task(10, 0, 3, 1)},
	}
	assert.Contains(t, rowNames(s, t), "bal_c1_a1: c_c1_a1 - 3 v_a1_e10 = 0;")
}

func TestBalancingSkipsExcludedAgents(t *testing.T) {
	s := model.Snapshot{
		Agents:      agents(1, 2),
		Categories:  []model.Category{{ID: 1, BalancingMode: model.BalancingCount, BalancingTolerance: ptr(0.0)}},
		Tasks:       []model.Task{task(10, 0, 1, 1)},
		Preferences: []model.AgentCategoryPreference{{AgentID: 2, CategoryID: 1}},
	}
	for _, r := range rowNames(s, t) {
		assert.NotContains(t, r, "c_c1_a2")
	}
	assert.Equal(t, model.Assignment{1: {10}}, solve(t, s).ByAgent())
}

func TestScenarioSingleTask(t *testing.T) {
	s := model.Snapshot{
		Agents:     agents(1, 2, 3),
		Categories: []model.Category{{ID: 1}},
		Tasks:      []model.Task{task(1, 0, 24, 1)},
	}
	res := solve(t, s)
	require.False(t, res.Infeasible)
	require.Len(t, res.Assignments, 1)
	assert.Contains(t, []int64{1, 2, 3}, res.Assignments[0].AgentID)
}

func balancedSnapshot(tasks int, tolerance float64) model.Snapshot {
	s := model.Snapshot{
		Agents:     agents(1, 2, 3),
		Categories: []model.Category{{ID: 1, BalancingMode: model.BalancingCount, BalancingTolerance: &tolerance}},
	}
	for i := 0; i < tasks; i++ {
		s.Tasks = append(s.Tasks, task(int64(i+1), 24*i, 24*i+24, 1))
	}
	return s
}

func loadCounts(a model.Assignment) []int {
	var out []int
	for _, id := range []int64{1, 2, 3} {
		out = append(out, len(a[id]))
	}
	slices.Sort(out)
	return out
}

func TestScenarioBalancedEvenly(t *testing.T) {
	res := solve(t, balancedSnapshot(3, 0))
	require.False(t, res.Infeasible)
	assert.Equal(t, []int{1, 1, 1}, loadCounts(res.ByAgent()))
}

func TestScenarioBalancingTolerance(t *testing.T) {
	assert.True(t, solve(t, balancedSnapshot(4, 0)).Infeasible)

	res := solve(t, balancedSnapshot(4, 1))
	require.False(t, res.Infeasible)
	assert.Equal(t, []int{1, 1, 2}, loadCounts(res.ByAgent()))

	stats, err := ComputeBalancing(balancedSnapshot(4, 1), res.ByAgent())
	require.NoError(t, err)
	assert.Equal(t, 1.0, stats[1].Spread)
}

func TestScenarioOverlapSingleAgent(t *testing.T) {
	s := model.Snapshot{
		Agents:     agents(1),
		Categories: []model.Category{{ID: 1}},
		Tasks:      []model.Task{task(1, 0, 2, 1), task(2, 1, 3, 1)},
	}
	assert.True(t, solve(t, s).Infeasible)

	s.Tasks[1] = task(2, 2, 4, 1)
	res := solve(t, s)
	require.False(t, res.Infeasible)
	assert.Equal(t, model.Assignment{1: {1, 2}}, res.ByAgent())
}

func TestFixedPinningResolves(t *testing.T) {
	s := balancedSnapshot(3, 0)
	s.Tasks[0].AgentID = ptr(int64(3))
	s.Tasks[0].Fixed = true
	res := solve(t, s)
	require.False(t, res.Infeasible)
	agent, ok := res.ByAgent().AgentOf(1)
	require.True(t, ok)
	assert.Equal(t, int64(3), agent)
}

func TestCompiledSolutionsRespectExclusions(t *testing.T) {
	s := model.Snapshot{
		Agents:     agents(1, 2, 3),
		Categories: []model.Category{{ID: 1}, {ID: 2, ParentID: ptr(int64(1))}},
		Tasks:      []model.Task{task(1, 0, 2, 2), task(2, 1, 3, 2), task(3, 0, 1, 1)},
		Preferences: []model.AgentCategoryPreference{
			{AgentID: 1, CategoryID: 1},
		},
		Exclusions: []model.AgentTaskExclusion{{AgentID: 2, TaskID: 3}},
	}
	res := solve(t, s)
	require.False(t, res.Infeasible)
	got := res.ByAgent()
	assert.Empty(t, got[1])
	agent, _ := got.AgentOf(3)
	assert.Equal(t, int64(3), agent)
	a1, _ := got.AgentOf(1)
	a2, _ := got.AgentOf(2)
	assert.NotEqual(t, a1, a2, "overlapping tasks of one category need distinct agents")
}
