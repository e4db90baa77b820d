package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kilianp07/planner/core/model"
)

func seed(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	agent := int64(1)
	snap := model.Snapshot{
		Organization: model.Organization{ID: 7, Name: "ward"},
		Agents:       []model.Agent{{ID: 2}, {ID: 1}},
		Categories:   []model.Category{{ID: 1}},
		Tasks: []model.Task{
			{ID: 10, Start: start, End: start.Add(time.Hour), CategoryIDs: []int64{1}},
			{ID: 11, Start: start, End: start.Add(time.Hour), AgentID: &agent, Fixed: true},
		},
		Exclusions: []model.AgentTaskExclusion{{AgentID: 2, TaskID: 10}},
	}
	if err := s.Import(context.Background(), snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	return s
}

func TestMemoryStore_ReadSorted(t *testing.T) {
	s := seed(t)
	agents, err := s.Agents(context.Background(), 7)
	if err != nil {
		t.Fatalf("agents: %v", err)
	}
	if len(agents) != 2 || agents[0].ID != 1 || agents[1].OrganizationID != 7 {
		t.Fatalf("unexpected agents %#v", agents)
	}
	if _, err := s.Agents(context.Background(), 8); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_AssignSkipsFixed(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	n, err := s.AssignTasks(ctx, 7, 2, []int64{10, 11, 99})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one update, got %d", n)
	}
	tasks, _ := s.Tasks(ctx, 7)
	if *tasks[0].AgentID != 2 || *tasks[1].AgentID != 1 {
		t.Fatalf("unexpected tasks %#v", tasks)
	}
	if _, err := s.AssignTasks(ctx, 7, 5, []int64{10}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown agent, got %v", err)
	}
}

func TestMemoryStore_TasksAreCopies(t *testing.T) {
	s := seed(t)
	tasks, _ := s.Tasks(context.Background(), 7)
	tasks[0].CategoryIDs[0] = 42
	again, _ := s.Tasks(context.Background(), 7)
	if again[0].CategoryIDs[0] != 1 {
		t.Fatalf("store mutated through returned slice")
	}
}

func TestMemoryStore_DeleteAgent(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	if err := s.DeleteAgent(ctx, 7, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ex, _ := s.Exclusions(ctx, 7)
	if len(ex) != 0 {
		t.Fatalf("exclusions not cleaned: %#v", ex)
	}
	if err := s.DeleteAgent(ctx, 7, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteTask(ctx, 7, 10); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	tasks, _ := s.Tasks(ctx, 7)
	if len(tasks) != 1 {
		t.Fatalf("task not deleted")
	}
}

func TestMemoryStore_RunGuard(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	run, err := s.BeginRun(ctx, model.ScheduleRun{OrganizationID: 7})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if run.ID == "" || run.Status != model.RunPending || run.CreatedAt.IsZero() {
		t.Fatalf("defaults not applied: %#v", run)
	}
	if _, err := s.BeginRun(ctx, model.ScheduleRun{OrganizationID: 7}); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if err := s.SetRunProcess(ctx, run.ID, 4242); err != nil {
		t.Fatalf("set pid: %v", err)
	}
	run.Status = model.RunSuccess
	run.PID = 0
	if err := s.UpdateRun(ctx, run); err != nil {
		t.Fatalf("update: %v", err)
	}
	second, err := s.BeginRun(ctx, model.ScheduleRun{OrganizationID: 7})
	if err != nil {
		t.Fatalf("begin after finish: %v", err)
	}
	if err := s.SelectRun(ctx, 7, run.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	got, _ := s.Run(ctx, run.ID)
	if !got.Selected {
		t.Fatalf("run not selected")
	}
	if err := s.SelectRun(ctx, 8, second.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign org, got %v", err)
	}
	runs, _ := s.Runs(ctx, 7)
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}
