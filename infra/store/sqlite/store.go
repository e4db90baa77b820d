// Package sqlite implements store.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kilianp07/planner/core/model"
	"github.com/kilianp07/planner/core/store"
)

// Store persists planning data and schedule runs in SQLite.
type Store struct {
	db      *sql.DB
	version int
	now     func() time.Time
}

// Open opens or creates the database at path and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers and keeps :memory: databases
	// shared across calls.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}
	v, err := migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, version: v, now: time.Now}, nil
}

// SchemaVersion is the migration version the database is at.
func (s *Store) SchemaVersion() int { return s.version }

func (s *Store) Close() error { return s.db.Close() }

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func fromNullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func fromNullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func (s *Store) Organization(ctx context.Context, id int64) (model.Organization, error) {
	var o model.Organization
	var slice, compute int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, time_slice_ns, max_compute_ns FROM organizations WHERE id = ?`, id).
		Scan(&o.ID, &o.Name, &slice, &compute)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Organization{}, fmt.Errorf("organization %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return model.Organization{}, fmt.Errorf("organization %d: %w", id, err)
	}
	o.TimeSlice = time.Duration(slice)
	o.MaxComputeTime = time.Duration(compute)
	return o, nil
}

func (s *Store) Organizations(ctx context.Context) ([]model.Organization, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, time_slice_ns, max_compute_ns FROM organizations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Organization
	for rows.Next() {
		var o model.Organization
		var slice, compute int64
		if err := rows.Scan(&o.ID, &o.Name, &slice, &compute); err != nil {
			return nil, err
		}
		o.TimeSlice = time.Duration(slice)
		o.MaxComputeTime = time.Duration(compute)
		out = append(out, o)
	}
	return out, rows.Err()
}

// requireOrg turns an empty result for a missing organization into ErrNotFound.
func (s *Store) requireOrg(ctx context.Context, orgID int64) error {
	_, err := s.Organization(ctx, orgID)
	return err
}

// list runs query for an existing organization and scans every row with scan.
func list[T any](ctx context.Context, s *Store, orgID int64, query string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	if err := s.requireOrg(ctx, orgID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) Agents(ctx context.Context, orgID int64) ([]model.Agent, error) {
	return list(ctx, s, orgID,
		`SELECT id, name, start_ns, end_ns FROM agents WHERE org_id = ? ORDER BY id`,
		func(r *sql.Rows) (model.Agent, error) {
			a := model.Agent{OrganizationID: orgID}
			var start, end sql.NullInt64
			err := r.Scan(&a.ID, &a.Name, &start, &end)
			a.Start, a.End = fromNanos(start), fromNanos(end)
			return a, err
		})
}

func (s *Store) Categories(ctx context.Context, orgID int64) ([]model.Category, error) {
	return list(ctx, s, orgID,
		`SELECT id, parent_id, name, balancing_mode, balancing_tolerance, auto_affinity
		FROM categories WHERE org_id = ? ORDER BY id`,
		func(r *sql.Rows) (model.Category, error) {
			c := model.Category{OrganizationID: orgID}
			var parent sql.NullInt64
			var tol sql.NullFloat64
			var mode string
			err := r.Scan(&c.ID, &parent, &c.Name, &mode, &tol, &c.AutoAffinity)
			c.ParentID = fromNullInt(parent)
			c.BalancingMode = model.BalancingMode(mode)
			c.BalancingTolerance = fromNullFloat(tol)
			return c, err
		})
}

func (s *Store) Tasks(ctx context.Context, orgID int64) ([]model.Task, error) {
	tasks, err := list(ctx, s, orgID,
		`SELECT id, name, start_ns, end_ns, agent_id, fixed FROM tasks WHERE org_id = ? ORDER BY id`,
		func(r *sql.Rows) (model.Task, error) {
			t := model.Task{OrganizationID: orgID}
			var start, end int64
			var agent sql.NullInt64
			err := r.Scan(&t.ID, &t.Name, &start, &end, &agent, &t.Fixed)
			t.Start = time.Unix(0, start).UTC()
			t.End = time.Unix(0, end).UTC()
			t.AgentID = fromNullInt(agent)
			return t, err
		})
	if err != nil {
		return nil, err
	}
	type link struct{ task, cat int64 }
	links, err := list(ctx, s, orgID,
		`SELECT task_id, category_id FROM task_categories WHERE org_id = ? ORDER BY task_id, position`,
		func(r *sql.Rows) (link, error) {
			var l link
			err := r.Scan(&l.task, &l.cat)
			return l, err
		})
	if err != nil {
		return nil, err
	}
	idx := make(map[int64]int, len(tasks))
	for i, t := range tasks {
		idx[t.ID] = i
	}
	for _, l := range links {
		if i, ok := idx[l.task]; ok {
			tasks[i].CategoryIDs = append(tasks[i].CategoryIDs, l.cat)
		}
	}
	return tasks, nil
}

func (s *Store) Preferences(ctx context.Context, orgID int64) ([]model.AgentCategoryPreference, error) {
	return list(ctx, s, orgID,
		`SELECT agent_id, category_id, balancing_offset, balancing_count, affinity
		FROM preferences WHERE org_id = ? ORDER BY agent_id, category_id`,
		func(r *sql.Rows) (model.AgentCategoryPreference, error) {
			var p model.AgentCategoryPreference
			var count sql.NullFloat64
			err := r.Scan(&p.AgentID, &p.CategoryID, &p.BalancingOffset, &count, &p.Affinity)
			p.BalancingCount = fromNullFloat(count)
			return p, err
		})
}

func (s *Store) Exclusions(ctx context.Context, orgID int64) ([]model.AgentTaskExclusion, error) {
	return list(ctx, s, orgID,
		`SELECT agent_id, task_id FROM exclusions WHERE org_id = ? ORDER BY agent_id, task_id`,
		func(r *sql.Rows) (model.AgentTaskExclusion, error) {
			var e model.AgentTaskExclusion
			err := r.Scan(&e.AgentID, &e.TaskID)
			return e, err
		})
}

func (s *Store) TaskAffectations(ctx context.Context, orgID int64) ([]model.MaxTaskAffectation, error) {
	return list(ctx, s, orgID,
		`SELECT id, category_id, mode, range_ns, task_count FROM task_affectations WHERE org_id = ? ORDER BY id`,
		func(r *sql.Rows) (model.MaxTaskAffectation, error) {
			var p model.MaxTaskAffectation
			var mode string
			var rng int64
			err := r.Scan(&p.ID, &p.CategoryID, &mode, &rng, &p.TaskCount)
			p.Mode = model.AffectationMode(mode)
			p.Range = time.Duration(rng)
			return p, err
		})
}

func (s *Store) TimeTaskAffectations(ctx context.Context, orgID int64) ([]model.MaxTimeTaskAffectation, error) {
	return list(ctx, s, orgID,
		`SELECT id, category_id, mode, range_ns, task_time_ns FROM time_task_affectations WHERE org_id = ? ORDER BY id`,
		func(r *sql.Rows) (model.MaxTimeTaskAffectation, error) {
			var p model.MaxTimeTaskAffectation
			var mode string
			var rng, tt int64
			err := r.Scan(&p.ID, &p.CategoryID, &mode, &rng, &tt)
			p.Mode = model.AffectationMode(mode)
			p.Range = time.Duration(rng)
			p.TaskTime = time.Duration(tt)
			return p, err
		})
}

var orgTables = []string{
	"agents", "categories", "tasks", "task_categories", "preferences",
	"exclusions", "task_affectations", "time_task_affectations",
}

// Import replaces the organization data with the snapshot content in one
// transaction. Runs are kept.
func (s *Store) Import(ctx context.Context, snap model.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	o := snap.Organization
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO organizations (id, name, time_slice_ns, max_compute_ns) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, time_slice_ns = excluded.time_slice_ns,
		max_compute_ns = excluded.max_compute_ns`,
		o.ID, o.Name, int64(o.TimeSlice), int64(o.MaxComputeTime)); err != nil {
		return fmt.Errorf("import organization: %w", err)
	}
	for _, table := range orgTables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE org_id = ?`, o.ID); err != nil {
			return fmt.Errorf("import clear %s: %w", table, err)
		}
	}
	for _, a := range snap.Agents {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO agents (org_id, id, name, start_ns, end_ns) VALUES (?, ?, ?, ?, ?)`,
			o.ID, a.ID, a.Name, nullNanos(a.Start), nullNanos(a.End)); err != nil {
			return fmt.Errorf("import agent %d: %w", a.ID, err)
		}
	}
	for _, c := range snap.Categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (org_id, id, parent_id, name, balancing_mode, balancing_tolerance, auto_affinity)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.ID, c.ID, nullInt(c.ParentID), c.Name, string(c.BalancingMode), nullFloat(c.BalancingTolerance), c.AutoAffinity); err != nil {
			return fmt.Errorf("import category %d: %w", c.ID, err)
		}
	}
	for _, t := range snap.Tasks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (org_id, id, name, start_ns, end_ns, agent_id, fixed) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.ID, t.ID, t.Name, t.Start.UnixNano(), t.End.UnixNano(), nullInt(t.AgentID), t.Fixed); err != nil {
			return fmt.Errorf("import task %d: %w", t.ID, err)
		}
		for pos, c := range t.CategoryIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO task_categories (org_id, task_id, category_id, position) VALUES (?, ?, ?, ?)`,
				o.ID, t.ID, c, pos); err != nil {
				return fmt.Errorf("import task %d category %d: %w", t.ID, c, err)
			}
		}
	}
	for _, p := range snap.Preferences {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO preferences (org_id, agent_id, category_id, balancing_offset, balancing_count, affinity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID, p.AgentID, p.CategoryID, p.BalancingOffset, nullFloat(p.BalancingCount), p.Affinity); err != nil {
			return fmt.Errorf("import preference %d/%d: %w", p.AgentID, p.CategoryID, err)
		}
	}
	for _, e := range snap.Exclusions {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO exclusions (org_id, agent_id, task_id) VALUES (?, ?, ?)`,
			o.ID, e.AgentID, e.TaskID); err != nil {
			return fmt.Errorf("import exclusion %d/%d: %w", e.AgentID, e.TaskID, err)
		}
	}
	for _, p := range snap.TaskAffectations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO task_affectations (org_id, id, category_id, mode, range_ns, task_count) VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID, p.ID, p.CategoryID, string(p.Mode), int64(p.Range), p.TaskCount); err != nil {
			return fmt.Errorf("import task affectation %d: %w", p.ID, err)
		}
	}
	for _, p := range snap.TimeTaskAffectations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO time_task_affectations (org_id, id, category_id, mode, range_ns, task_time_ns) VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID, p.ID, p.CategoryID, string(p.Mode), int64(p.Range), int64(p.TaskTime)); err != nil {
			return fmt.Errorf("import time affectation %d: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) AssignTasks(ctx context.Context, orgID, agentID int64, taskIDs []int64) (int, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents WHERE org_id = ? AND id = ?`, orgID, agentID).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		if err := s.requireOrg(ctx, orgID); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("agent %d: %w", agentID, store.ErrNotFound)
	}
	if len(taskIDs) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(taskIDs)+2)
	args = append(args, agentID, orgID)
	for _, id := range taskIDs {
		args = append(args, id)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET agent_id = ? WHERE org_id = ? AND fixed = 0 AND id IN (`+placeholders(len(taskIDs))+`)`,
		args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// DeleteAgent removes the agent, its preferences and exclusions, and clears
// it from assigned tasks.
func (s *Store) DeleteAgent(ctx context.Context, orgID, agentID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, `DELETE FROM agents WHERE org_id = ? AND id = ?`, orgID, agentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %d: %w", agentID, store.ErrNotFound)
	}
	stmts := []string{
		`DELETE FROM preferences WHERE org_id = ? AND agent_id = ?`,
		`DELETE FROM exclusions WHERE org_id = ? AND agent_id = ?`,
		`UPDATE tasks SET agent_id = NULL, fixed = 0 WHERE org_id = ? AND agent_id = ?`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q, orgID, agentID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) DeleteTask(ctx context.Context, orgID, taskID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE org_id = ? AND id = ?`, orgID, taskID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %d: %w", taskID, store.ErrNotFound)
	}
	for _, q := range []string{
		`DELETE FROM task_categories WHERE org_id = ? AND task_id = ?`,
		`DELETE FROM exclusions WHERE org_id = ? AND task_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, orgID, taskID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const runColumns = `id, org_id, status, pid, timeout_ns, result, output, message, selected, created_ns, started_ns, finished_ns, cancel_requested`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (model.ScheduleRun, error) {
	var run model.ScheduleRun
	var status string
	var timeout, created int64
	var result sql.NullString
	var started, finished sql.NullInt64
	if err := r.Scan(&run.ID, &run.OrganizationID, &status, &run.PID, &timeout, &result,
		&run.Output, &run.Message, &run.Selected, &created, &started, &finished, &run.CancelRequested); err != nil {
		return model.ScheduleRun{}, err
	}
	run.Status = model.RunStatus(status)
	run.Timeout = time.Duration(timeout)
	run.CreatedAt = time.Unix(0, created).UTC()
	run.StartedAt = fromNanos(started)
	run.FinishedAt = fromNanos(finished)
	if result.Valid && result.String != "" {
		if err := json.Unmarshal([]byte(result.String), &run.Result); err != nil {
			return model.ScheduleRun{}, fmt.Errorf("run %s result: %w", run.ID, err)
		}
	}
	return run, nil
}

func encodeResult(a model.Assignment) (sql.NullString, error) {
	if a == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// BeginRun inserts the run unless the organization already has an open one.
// The partial unique index on open runs guards against concurrent writers.
func (s *Store) BeginRun(ctx context.Context, run model.ScheduleRun) (model.ScheduleRun, error) {
	if err := s.requireOrg(ctx, run.OrganizationID); err != nil {
		return model.ScheduleRun{}, err
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ScheduleRun{}, err
	}
	defer func() { _ = tx.Rollback() }()
	var open string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM schedule_runs WHERE org_id = ? AND status IN ('pending', 'running') LIMIT 1`,
		run.OrganizationID).Scan(&open)
	switch {
	case err == nil:
		return model.ScheduleRun{}, fmt.Errorf("organization %d run %s: %w", run.OrganizationID, open, store.ErrRunInProgress)
	case !errors.Is(err, sql.ErrNoRows):
		return model.ScheduleRun{}, err
	}
	result, err := encodeResult(run.Result)
	if err != nil {
		return model.ScheduleRun{}, err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO schedule_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.OrganizationID, string(run.Status), run.PID, int64(run.Timeout), result,
		run.Output, run.Message, run.Selected, run.CreatedAt.UnixNano(), nullNanos(run.StartedAt), nullNanos(run.FinishedAt),
		run.CancelRequested)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: schedule_runs.org_id") {
			return model.ScheduleRun{}, fmt.Errorf("organization %d: %w", run.OrganizationID, store.ErrRunInProgress)
		}
		return model.ScheduleRun{}, fmt.Errorf("insert run: %w", err)
	}
	return run, tx.Commit()
}

func (s *Store) UpdateRun(ctx context.Context, run model.ScheduleRun) error {
	result, err := encodeResult(run.Result)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedule_runs SET status = ?, pid = ?, timeout_ns = ?, result = ?, output = ?, message = ?,
		selected = ?, started_ns = ?, finished_ns = ? WHERE id = ? AND status IN ('pending', 'running')`,
		string(run.Status), run.PID, int64(run.Timeout), result, run.Output, run.Message,
		run.Selected, nullNanos(run.StartedAt), nullNanos(run.FinishedAt), run.ID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.closedOrMissing(ctx, run.ID)
	}
	return nil
}

// closedOrMissing explains why a write guarded by an open status matched no
// row.
func (s *Store) closedOrMissing(ctx context.Context, runID string) error {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM schedule_runs WHERE id = ?`, runID).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("run %s: %w", runID, store.ErrNotFound)
	case err != nil:
		return err
	}
	return fmt.Errorf("run %s is %s: %w", runID, status, store.ErrRunClosed)
}

func (s *Store) AbandonRun(ctx context.Context, runID, message string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedule_runs SET status = ?, message = ?, finished_ns = ?
		WHERE id = ? AND status = 'pending' AND started_ns IS NULL`,
		string(model.RunFailure), message, at.UnixNano(), runID)
	if err != nil {
		return false, fmt.Errorf("abandon run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}
	if _, err := s.Run(ctx, runID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) RequestCancel(ctx context.Context, runID string) (model.ScheduleRun, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedule_runs SET cancel_requested = 1 WHERE id = ? AND status IN ('pending', 'running')`, runID)
	if err != nil {
		return model.ScheduleRun{}, fmt.Errorf("request cancel of run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ScheduleRun{}, s.closedOrMissing(ctx, runID)
	}
	return s.Run(ctx, runID)
}

func (s *Store) SetRunProcess(ctx context.Context, runID string, pid int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE schedule_runs SET pid = ? WHERE id = ?`, pid, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) Run(ctx context.Context, runID string) (model.ScheduleRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM schedule_runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScheduleRun{}, fmt.Errorf("run %s: %w", runID, store.ErrNotFound)
	}
	return run, err
}

// Runs returns the organization runs, newest first.
func (s *Store) Runs(ctx context.Context, orgID int64) ([]model.ScheduleRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM schedule_runs WHERE org_id = ? ORDER BY created_ns DESC, id`, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.ScheduleRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *Store) SelectRun(ctx context.Context, orgID int64, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, `UPDATE schedule_runs SET selected = 1 WHERE id = ? AND org_id = ?`, runID, orgID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, store.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE schedule_runs SET selected = 0 WHERE org_id = ? AND id <> ?`, orgID, runID); err != nil {
		return err
	}
	return tx.Commit()
}

var _ store.Store = (*Store)(nil)
