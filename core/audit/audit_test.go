package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/planner/core/model"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	jsonl, err := NewJSONLStore(filepath.Join(dir, "audit.jsonl"))
	require.NoError(t, err)
	rotating, err := NewRotatingJSONLStore(filepath.Join(dir, "rot", "audit.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	sqlite, err := NewSQLiteStore(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	stores := map[string]Store{"jsonl": jsonl, "rotating": rotating, "sqlite": sqlite}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStoresAppendQuery(t *testing.T) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	recs := []Record{
		{Timestamp: base, OrganizationID: 1, RunID: "r1", Status: model.RunRunning},
		{Timestamp: base.Add(time.Minute), OrganizationID: 1, RunID: "r1", Status: model.RunSuccess, Assignments: 4, Duration: time.Second},
		{Timestamp: base.Add(2 * time.Minute), OrganizationID: 2, RunID: "r2", Status: model.RunInfeasible, Message: "no solution"},
		{Timestamp: base.Add(3 * time.Minute), OrganizationID: 1, RunID: "r1", Status: model.RunSuccess, Applied: true},
	}
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, r := range recs {
				require.NoError(t, s.Append(ctx, r))
			}

			all, err := s.Query(ctx, Query{})
			require.NoError(t, err)
			require.Len(t, all, 4)
			assert.Equal(t, 4, all[1].Assignments)
			assert.Equal(t, time.Second, all[1].Duration)

			org1, err := s.Query(ctx, Query{OrganizationID: 1, Status: model.RunSuccess})
			require.NoError(t, err)
			require.Len(t, org1, 2)
			assert.True(t, org1[1].Applied)

			window, err := s.Query(ctx, Query{Start: base.Add(90 * time.Second), End: base.Add(150 * time.Second)})
			require.NoError(t, err)
			require.Len(t, window, 1)
			assert.Equal(t, "r2", window[0].RunID)

			byRun, err := s.Query(ctx, Query{RunID: "missing"})
			require.NoError(t, err)
			assert.Empty(t, byRun)
		})
	}
}

func TestRotatingStoreReadsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	s, err := NewRotatingJSONLStore(path, 1, 3, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	msg := make([]byte, 4096)
	for i := range msg {
		msg[i] = 'x'
	}
	for i := 0; i < 300; i++ {
		require.NoError(t, s.Append(ctx, Record{OrganizationID: 1, RunID: "r", Status: model.RunRunning, Message: string(msg)}))
	}
	backups, err := filepath.Glob(filepath.Join(filepath.Dir(path), "audit-*.jsonl"))
	require.NoError(t, err)
	assert.NotEmpty(t, backups)

	out, err := s.Query(ctx, Query{RunID: "r"})
	require.NoError(t, err)
	assert.Len(t, out, 300)
}

func TestQueryMatch(t *testing.T) {
	r := Record{OrganizationID: 3, RunID: "x", Status: model.RunFailure}
	assert.True(t, Query{}.Match(r))
	assert.True(t, Query{OrganizationID: 3, Status: model.RunFailure}.Match(r))
	assert.False(t, Query{OrganizationID: 4}.Match(r))
	assert.False(t, Query{Status: model.RunSuccess}.Match(r))
}
