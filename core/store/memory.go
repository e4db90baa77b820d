package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/planner/core/model"
)

type orgData struct {
	org        model.Organization
	agents     map[int64]model.Agent
	categories map[int64]model.Category
	tasks      map[int64]model.Task
	prefs      []model.AgentCategoryPreference
	exclusions []model.AgentTaskExclusion
	taskAff    []model.MaxTaskAffectation
	timeAff    []model.MaxTimeTaskAffectation
}

// MemoryStore keeps everything in maps guarded by a RWMutex.
type MemoryStore struct {
	mu   sync.RWMutex
	orgs map[int64]*orgData
	runs map[string]model.ScheduleRun
	now  func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orgs: map[int64]*orgData{}, runs: map[string]model.ScheduleRun{}, now: time.Now}
}

func (s *MemoryStore) org(id int64) (*orgData, error) {
	d, ok := s.orgs[id]
	if !ok {
		return nil, fmt.Errorf("organization %d: %w", id, ErrNotFound)
	}
	return d, nil
}

func sortedValues[T any](m map[int64]T, id func(T) int64) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b T) int { return cmp.Compare(id(a), id(b)) })
	return out
}

func cloneTask(t model.Task) model.Task {
	t.CategoryIDs = slices.Clone(t.CategoryIDs)
	if t.AgentID != nil {
		a := *t.AgentID
		t.AgentID = &a
	}
	return t
}

func (s *MemoryStore) Organization(_ context.Context, id int64) (model.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.org(id)
	if err != nil {
		return model.Organization{}, err
	}
	return d.org, nil
}

func (s *MemoryStore) Organizations(context.Context) ([]model.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Organization, 0, len(s.orgs))
	for _, d := range s.orgs {
		out = append(out, d.org)
	}
	slices.SortFunc(out, func(a, b model.Organization) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) Agents(_ context.Context, orgID int64) ([]model.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.org(orgID)
	if err != nil {
		return nil, err
	}
	return sortedValues(d.agents, func(a model.Agent) int64 { return a.ID }), nil
}

func (s *MemoryStore) Categories(_ context.Context, orgID int64) ([]model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.org(orgID)
	if err != nil {
		return nil, err
	}
	return sortedValues(d.categories, func(c model.Category) int64 { return c.ID }), nil
}

func (s *MemoryStore) Tasks(_ context.Context, orgID int64) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.org(orgID)
	if err != nil {
		return nil, err
	}
	out := sortedValues(d.tasks, func(t model.Task) int64 { return t.ID })
	for i := range out {
		out[i] = cloneTask(out[i])
	}
	return out, nil
}

func (s *MemoryStore) Preferences(_ context.Context, orgID int64) ([]model.AgentCategoryPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.org(orgID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d.prefs), nil
}

func (s *MemoryStore) Exclusions(_ context.Context, orgID int64) ([]model.AgentTaskExclusion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.org(orgID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d.exclusions), nil
}

func (s *MemoryStore) TaskAffectations(_ context.Context, orgID int64) ([]model.MaxTaskAffectation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.org(orgID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d.taskAff), nil
}

func (s *MemoryStore) TimeTaskAffectations(_ context.Context, orgID int64) ([]model.MaxTimeTaskAffectation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.org(orgID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d.timeAff), nil
}

// Import replaces the organization data with the snapshot content. Owner
// ids of nested records are forced to the snapshot organization.
func (s *MemoryStore) Import(_ context.Context, snap model.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	orgID := snap.Organization.ID
	d := &orgData{
		org:        snap.Organization,
		agents:     make(map[int64]model.Agent, len(snap.Agents)),
		categories: make(map[int64]model.Category, len(snap.Categories)),
		tasks:      make(map[int64]model.Task, len(snap.Tasks)),
		prefs:      slices.Clone(snap.Preferences),
		exclusions: slices.Clone(snap.Exclusions),
		taskAff:    slices.Clone(snap.TaskAffectations),
		timeAff:    slices.Clone(snap.TimeTaskAffectations),
	}
	for _, a := range snap.Agents {
		a.OrganizationID = orgID
		d.agents[a.ID] = a
	}
	for _, c := range snap.Categories {
		c.OrganizationID = orgID
		d.categories[c.ID] = c
	}
	for _, t := range snap.Tasks {
		t = cloneTask(t)
		t.OrganizationID = orgID
		d.tasks[t.ID] = t
	}
	s.mu.Lock()
	s.orgs[orgID] = d
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) AssignTasks(_ context.Context, orgID, agentID int64, taskIDs []int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.org(orgID)
	if err != nil {
		return 0, err
	}
	if _, ok := d.agents[agentID]; !ok {
		return 0, fmt.Errorf("agent %d: %w", agentID, ErrNotFound)
	}
	n := 0
	for _, id := range taskIDs {
		t, ok := d.tasks[id]
		if !ok || t.Fixed {
			continue
		}
		a := agentID
		t.AgentID = &a
		d.tasks[id] = t
		n++
	}
	return n, nil
}

// DeleteAgent removes the agent, its preferences and exclusions, and clears
// it from assigned tasks.
func (s *MemoryStore) DeleteAgent(_ context.Context, orgID, agentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.org(orgID)
	if err != nil {
		return err
	}
	if _, ok := d.agents[agentID]; !ok {
		return fmt.Errorf("agent %d: %w", agentID, ErrNotFound)
	}
	delete(d.agents, agentID)
	d.prefs = slices.DeleteFunc(d.prefs, func(p model.AgentCategoryPreference) bool { return p.AgentID == agentID })
	d.exclusions = slices.DeleteFunc(d.exclusions, func(e model.AgentTaskExclusion) bool { return e.AgentID == agentID })
	for id, t := range d.tasks {
		if t.AgentID != nil && *t.AgentID == agentID {
			t.AgentID = nil
			t.Fixed = false
			d.tasks[id] = t
		}
	}
	return nil
}

func (s *MemoryStore) DeleteTask(_ context.Context, orgID, taskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.org(orgID)
	if err != nil {
		return err
	}
	if _, ok := d.tasks[taskID]; !ok {
		return fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	delete(d.tasks, taskID)
	d.exclusions = slices.DeleteFunc(d.exclusions, func(e model.AgentTaskExclusion) bool { return e.TaskID == taskID })
	return nil
}

func (s *MemoryStore) BeginRun(_ context.Context, run model.ScheduleRun) (model.ScheduleRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.org(run.OrganizationID); err != nil {
		return model.ScheduleRun{}, err
	}
	for _, r := range s.runs {
		if r.OrganizationID == run.OrganizationID && r.Open() {
			return model.ScheduleRun{}, fmt.Errorf("organization %d run %s: %w", r.OrganizationID, r.ID, ErrRunInProgress)
		}
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = model.RunPending
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now().UTC()
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *MemoryStore) UpdateRun(_ context.Context, run model.ScheduleRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.runs[run.ID]
	if !ok {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	if !cur.Open() {
		return fmt.Errorf("run %s is %s: %w", run.ID, cur.Status, ErrRunClosed)
	}
	run.CancelRequested = cur.CancelRequested
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) AbandonRun(_ context.Context, runID, message string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return false, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if r.Status != model.RunPending || r.StartedAt != nil {
		return false, nil
	}
	r.Status = model.RunFailure
	r.Message = message
	r.FinishedAt = &at
	s.runs[runID] = r
	return true, nil
}

func (s *MemoryStore) RequestCancel(_ context.Context, runID string) (model.ScheduleRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return model.ScheduleRun{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if !r.Open() {
		return r, fmt.Errorf("run %s is %s: %w", runID, r.Status, ErrRunClosed)
	}
	r.CancelRequested = true
	s.runs[runID] = r
	return r, nil
}

func (s *MemoryStore) SetRunProcess(_ context.Context, runID string, pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	r.PID = pid
	s.runs[runID] = r
	return nil
}

func (s *MemoryStore) Run(_ context.Context, runID string) (model.ScheduleRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[runID]
	if !ok {
		return model.ScheduleRun{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return r, nil
}

// Runs returns the organization runs, newest first.
func (s *MemoryStore) Runs(_ context.Context, orgID int64) ([]model.ScheduleRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ScheduleRun
	for _, r := range s.runs {
		if r.OrganizationID == orgID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b model.ScheduleRun) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) SelectRun(_ context.Context, orgID int64, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok || r.OrganizationID != orgID {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	for id, other := range s.runs {
		if other.OrganizationID == orgID {
			other.Selected = id == runID
			s.runs[id] = other
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
