package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/planner/core/model"
	"github.com/kilianp07/planner/core/solver"
	"github.com/kilianp07/planner/core/solver/bruteforce"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(hours int) time.Time { return base.Add(time.Duration(hours) * time.Hour) }

func ptr[T any](v T) *T { return &v }

func task(id int64, from, to int, cats ...int64) model.Task {
	return model.Task{ID: id, OrganizationID: 1, Start: at(from), End: at(to), CategoryIDs: cats}
}

func agents(ids ...int64) []model.Agent {
	out := make([]model.Agent, len(ids))
	for i, id := range ids {
		out[i] = model.Agent{ID: id, OrganizationID: 1}
	}
	return out
}

func solve(t *testing.T, s model.Snapshot) solver.Result {
	t.Helper()
	p, err := Compile(s)
	require.NoError(t, err)
	res, err := (&bruteforce.Solver{}).Solve(context.Background(), p, solver.Options{})
	require.NoError(t, err)
	return res
}
