package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/planner/core/metrics"
	"github.com/kilianp07/planner/core/model"
)

type lineServer struct {
	mu     sync.Mutex
	bodies []string
}

func (l *lineServer) handler(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	l.mu.Lock()
	l.bodies = append(l.bodies, strings.TrimSpace(string(data)))
	l.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func TestInfluxSink_RecordRunResult(t *testing.T) {
	ls := &lineServer{}
	srv := httptest.NewServer(http.HandlerFunc(ls.handler))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	res := coremetrics.RunResult{
		OrganizationID: 2,
		RunID:          "r1",
		Status:         model.RunSuccess,
		Variables:      12,
		Constraints:    30,
		Assignments:    4,
		Duration:       1500 * time.Millisecond,
		Time:           now,
	}
	if err := sink.RecordRunResult(res); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("schedule_run").
		AddTag("organization", "2").
		AddTag("run_id", "r1").
		AddTag("status", "success").
		AddField("variables", 12).
		AddField("constraints", 30).
		AddField("assignments", 4).
		AddField("duration_s", 1.5).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(ls.bodies) != 1 || ls.bodies[0] != expected {
		t.Errorf("unexpected body: %#v", ls.bodies)
	}
}

func TestInfluxSink_RecordBalance(t *testing.T) {
	ls := &lineServer{}
	srv := httptest.NewServer(http.HandlerFunc(ls.handler))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	err := sink.RecordBalance([]coremetrics.BalanceSample{
		{OrganizationID: 1, RunID: "r", Category: "night", AgentID: 1, Load: 2, Spread: 1, Time: now},
		{OrganizationID: 1, RunID: "r", Category: "night", AgentID: 2, Load: 1, Spread: 1, Time: now},
	})
	if err != nil {
		t.Fatalf("record error: %v", err)
	}
	if len(ls.bodies) != 1 {
		t.Fatalf("expected one batched write, got %d", len(ls.bodies))
	}
	if got := strings.Count(ls.bodies[0], "category_load,"); got != 2 {
		t.Fatalf("expected 2 points, got %d in %s", got, ls.bodies[0])
	}
	if err := sink.RecordBalance(nil); err != nil {
		t.Fatalf("empty balance: %v", err)
	}
	if len(ls.bodies) != 1 {
		t.Fatalf("empty balance should not write")
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
