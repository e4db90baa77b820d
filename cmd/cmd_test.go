package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/planner/infra/store/sqlite"
)

const snapshotYAML = `organization:
  id: 3
  name: clinic
  time_slice: 1h
agents:
  - {id: 1, name: ann}
  - {id: 2, name: bob}
categories:
  - {id: 1, name: night, balancing_mode: count, balancing_tolerance: 1}
tasks:
  - {id: 1, name: n1, start: 2024-01-01T20:00:00Z, end: 2024-01-01T23:00:00Z, category_ids: [1]}
  - {id: 2, name: n2, start: 2024-01-01T20:00:00Z, end: 2024-01-01T23:00:00Z, category_ids: [1]}
`

func setup(t *testing.T) (dir string) {
	t.Helper()
	dir = t.TempDir()
	cfg := "solver:\n  backend: bruteforce\nstore:\n  backend: sqlite\n  path: " + filepath.Join(dir, "planner.db") +
		"\naudit:\n  backend: jsonl\n  path: " + filepath.Join(dir, "runs.log") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snap.yaml"), []byte(snapshotYAML), 0o644))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath, snapshotPath, orgID, runID = "", "", 0, ""
	timeoutSeconds, applyAfter, exportFormat = 0, false, "csv"
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportSolveExport(t *testing.T) {
	dir := setup(t)
	conf := filepath.Join(dir, "config.yaml")

	out, err := execute(t, "import", "-c", conf, "--snapshot", filepath.Join(dir, "snap.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "imported organization 3: 2 agents, 1 categories, 2 tasks")

	out, err = execute(t, "solve", "-c", conf, "--org", "3", "--apply")
	require.NoError(t, err)
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "2 tasks updated")

	st, err := sqlite.Open(context.Background(), filepath.Join(dir, "planner.db"))
	require.NoError(t, err)
	runs, err := st.Runs(context.Background(), 3)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.Len(t, runs, 1)
	id := runs[0].ID
	assert.True(t, runs[0].Selected)

	out, err = execute(t, "runs", "-c", conf, "--org", "3")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = execute(t, "stats", "-c", conf, "--org", "3", "--run", id)
	require.NoError(t, err)
	assert.Contains(t, out, "spread")

	out, err = execute(t, "export", "-c", conf, "--run", id, "--format", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)

	out, err = execute(t, "history", "-c", conf, "--org", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "2 tasks updated")

	_, err = execute(t, "export", "-c", conf, "--run", id, "--format", "xml")
	assert.Error(t, err)
}

func TestCompileSnapshot(t *testing.T) {
	dir := setup(t)
	out, err := execute(t, "compile", "--snapshot", filepath.Join(dir, "snap.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "min:")
	assert.Contains(t, out, "v_a1_e1")
}

func TestSolveUnknownOrganization(t *testing.T) {
	dir := setup(t)
	_, err := execute(t, "solve", "-c", filepath.Join(dir, "config.yaml"), "--org", "9")
	assert.ErrorContains(t, err, "not found")
}
