package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/planner/core/model"
	"github.com/kilianp07/planner/core/planner"
	"github.com/kilianp07/planner/core/reconcile"
	"github.com/kilianp07/planner/core/scheduler"
	"github.com/kilianp07/planner/core/solver/bruteforce"
	"github.com/kilianp07/planner/core/store"
	"github.com/kilianp07/planner/infra/logger"
)

var base = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	tol := 1.0
	require.NoError(t, st.Import(context.Background(), model.Snapshot{
		Organization: model.Organization{ID: 1, Name: "ward"},
		Agents:       []model.Agent{{ID: 1}, {ID: 2}},
		Categories:   []model.Category{{ID: 3, Name: "night", BalancingMode: model.BalancingCount, BalancingTolerance: &tol}},
		Tasks: []model.Task{
			{ID: 10, Start: base, End: base.Add(time.Hour), CategoryIDs: []int64{3}},
			{ID: 11, Start: base, End: base.Add(time.Hour), CategoryIDs: []int64{3}},
		},
	}))
	mgr, err := planner.NewManager(st, &bruteforce.Solver{}, planner.Config{}, logger.NopLogger{}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	h, err := New(Config{Runner: mgr, BasePath: "/v1", Mount: map[string]http.Handler{
		"/ping": http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("pong")) }),
	}})
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, st
}

func do(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestRunLifecycle(t *testing.T) {
	srv, st := newTestServer(t)
	url := srv.URL + "/v1"

	var health map[string]string
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, url+"/health", nil, &health))
	assert.Equal(t, "ok", health["status"])

	var run model.ScheduleRun
	code := do(t, http.MethodPost, url+"/organizations/1/runs", SolveRequest{TimeoutSeconds: 5, Wait: true}, &run)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, model.RunSuccess, run.Status)
	assert.Equal(t, 5*time.Second, run.Timeout)

	var runs []model.ScheduleRun
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, url+"/organizations/1/runs", nil, &runs))
	assert.Len(t, runs, 1)

	var got model.ScheduleRun
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, url+"/runs/"+run.ID, nil, &got))
	assert.Equal(t, run.ID, got.ID)

	var stats []scheduler.BalanceStat
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, fmt.Sprintf("%s/organizations/1/runs/%s/balancing", url, run.ID), nil, &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, "night", stats[0].Name)

	var applied ApplyResponse
	assert.Equal(t, http.StatusOK, do(t, http.MethodPost, fmt.Sprintf("%s/organizations/1/runs/%s/apply", url, run.ID), nil, &applied))
	assert.Equal(t, 2, applied.Updated)
	tasks, err := st.Tasks(context.Background(), 1)
	require.NoError(t, err)
	for _, task := range tasks {
		assert.NotNil(t, task.AgentID)
	}

	assert.Equal(t, http.StatusAccepted, do(t, http.MethodPost, url+"/runs/"+run.ID+"/cancel", nil, nil))
}

func TestAsyncRun(t *testing.T) {
	srv, _ := newTestServer(t)
	url := srv.URL + "/v1"

	var run model.ScheduleRun
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, url+"/organizations/1/runs", nil, &run))
	assert.Equal(t, model.RunPending, run.Status)
	require.Eventually(t, func() bool {
		var got model.ScheduleRun
		do(t, http.MethodGet, url+"/runs/"+run.ID, nil, &got)
		return got.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestErrorStatuses(t *testing.T) {
	srv, _ := newTestServer(t)
	url := srv.URL + "/v1"

	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, url+"/runs/missing", nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, url+"/organizations/9/runs", nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodPost, url+"/organizations/9/runs", SolveRequest{Wait: true}, nil))
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodPost, url+"/organizations/1/runs/missing/apply", nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodPost, url+"/runs/missing/cancel", nil, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, http.MethodPost, url+"/organizations/1/runs", map[string]any{"timeout_seconds": -1}, nil))
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, url+"/ping", nil, nil))
}

func TestHandleError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("org 1: %w", store.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("org 1: %w", store.ErrRunInProgress), http.StatusConflict},
		{fmt.Errorf("%w: %w: gone", reconcile.ErrInvalidSchedule, reconcile.ErrStaleSchedule), http.StatusConflict},
		{fmt.Errorf("%w: run r is failure", planner.ErrRunNotApplicable), http.StatusUnprocessableEntity},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, handleError(c.err).GetStatus(), c.err.Error())
	}
	assert.Nil(t, handleError(nil))
}

func TestNewRejectsNilRunner(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
