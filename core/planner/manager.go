// Package planner orchestrates schedule runs: it loads and compiles an
// organization, drives the solver, records the outcome and applies
// successful runs back to the store.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/planner/core/audit"
	"github.com/kilianp07/planner/core/events"
	"github.com/kilianp07/planner/core/logger"
	"github.com/kilianp07/planner/core/lp"
	"github.com/kilianp07/planner/core/model"
	"github.com/kilianp07/planner/core/monitoring"
	"github.com/kilianp07/planner/core/reconcile"
	"github.com/kilianp07/planner/core/scheduler"
	"github.com/kilianp07/planner/core/solver"
	"github.com/kilianp07/planner/core/store"
	"github.com/kilianp07/planner/internal/eventbus"
)

// ErrRunNotApplicable is returned when applying a run that did not succeed
// or belongs to another organization.
var ErrRunNotApplicable = errors.New("run is not applicable")

// Message stored on runs stopped by Cancel.
const cancelledMessage = "cancelled"

// DefaultCancelPollInterval is how often a running solve checks the store
// for a cancel request made by another process.
const DefaultCancelPollInterval = 500 * time.Millisecond

// Config tunes the manager.
type Config struct {
	// DefaultTimeout applies when Solve or Start get no timeout and the
	// organization has no compute budget.
	DefaultTimeout time.Duration
	// CancelPollInterval defaults to DefaultCancelPollInterval.
	CancelPollInterval time.Duration
	// Precheck screens problems with an LP relaxation first.
	Precheck             bool
	MaxPrecheckVariables int
}

// Manager runs solves for organizations. Runs of different organizations
// may execute concurrently; the store refuses a second open run for the
// same organization.
type Manager struct {
	store      store.Store
	solver     solver.Solver
	reconciler *reconcile.Reconciler
	cfg        Config
	logger     logger.Logger
	bus        eventbus.EventBus
	audit      audit.Store

	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a new manager. bus and aud are optional.
func NewManager(st store.Store, sol solver.Solver, cfg Config, log logger.Logger, bus eventbus.EventBus, aud audit.Store) (*Manager, error) {
	if st == nil || sol == nil || log == nil {
		return nil, fmt.Errorf("planner: nil parameter provided to NewManager")
	}
	rec, err := reconcile.New(st, log)
	if err != nil {
		return nil, err
	}
	if aud == nil {
		aud = audit.NopStore{}
	}
	if cfg.CancelPollInterval <= 0 {
		cfg.CancelPollInterval = DefaultCancelPollInterval
	}
	if cfg.MaxPrecheckVariables <= 0 {
		cfg.MaxPrecheckVariables = solver.DefaultMaxPrecheckVariables
	}
	return &Manager{
		store:      st,
		solver:     sol,
		reconciler: rec,
		cfg:        cfg,
		logger:     log,
		bus:        bus,
		audit:      aud,
		now:        time.Now,
		newID:      uuid.NewString,
		cancels:    make(map[string]context.CancelFunc),
	}, nil
}

// Solve runs a schedule for the organization and waits for its outcome.
// The returned run is always terminal once it was created. The error is
// nil for successful and infeasible runs; otherwise it carries the cause
// (solver.ErrTimedOut, solver.ErrUnavailable, solver.ErrCancelled, ...).
func (m *Manager) Solve(ctx context.Context, orgID int64, timeout time.Duration) (model.ScheduleRun, error) {
	run, err := m.begin(ctx, orgID, timeout)
	if err != nil {
		return run, err
	}
	ctx, cancel := context.WithCancel(ctx)
	m.track(run.ID, cancel)
	defer m.untrack(run.ID)
	return m.execute(ctx, run)
}

// Start creates a pending run and executes it in the background. The run
// survives cancellation of ctx; use Cancel to stop it.
func (m *Manager) Start(ctx context.Context, orgID int64, timeout time.Duration) (model.ScheduleRun, error) {
	run, err := m.begin(ctx, orgID, timeout)
	if err != nil {
		return run, err
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.track(run.ID, cancel)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.untrack(run.ID)
		if _, err := m.execute(runCtx, run); err != nil {
			m.logger.Warnf("run %s: %v", run.ID, err)
		}
	}()
	return run, nil
}

// Wait blocks until every run started with Start has finished.
func (m *Manager) Wait() { m.wg.Wait() }

// Close cancels the runs in flight and waits for them.
func (m *Manager) Close() error {
	m.mu.Lock()
	for _, cancel := range m.cancels {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
	if m.bus != nil {
		m.bus.Close()
	}
	return m.audit.Close()
}

func (m *Manager) track(runID string, cancel context.CancelFunc) {
	m.mu.Lock()
	m.cancels[runID] = cancel
	m.mu.Unlock()
}

func (m *Manager) untrack(runID string) {
	m.mu.Lock()
	if cancel, ok := m.cancels[runID]; ok {
		cancel()
		delete(m.cancels, runID)
	}
	m.mu.Unlock()
}

func (m *Manager) begin(ctx context.Context, orgID int64, timeout time.Duration) (model.ScheduleRun, error) {
	org, err := m.store.Organization(ctx, orgID)
	if err != nil {
		return model.ScheduleRun{}, fmt.Errorf("organization %d: %w", orgID, err)
	}
	timeout = runTimeout(timeout, org.MaxComputeTime, m.cfg.DefaultTimeout)
	run, err := m.store.BeginRun(ctx, model.ScheduleRun{
		ID:             m.newID(),
		OrganizationID: orgID,
		Status:         model.RunPending,
		Timeout:        timeout,
		CreatedAt:      m.now(),
	})
	if err != nil {
		return run, err
	}
	m.logger.Infof("org %d: run %s created", orgID, run.ID)
	m.publish(run, runStats{})
	return run, nil
}

// runTimeout picks the solver budget of a run. The organization budget caps
// the requested timeout and replaces a missing one; the configured default
// applies when neither is set.
func runTimeout(requested, orgBudget, fallback time.Duration) time.Duration {
	switch {
	case requested <= 0 && orgBudget > 0:
		return orgBudget
	case requested <= 0:
		return fallback
	case orgBudget > 0 && requested > orgBudget:
		return orgBudget
	}
	return requested
}

// runStats describes the compiled problem of a run.
type runStats struct {
	variables   int
	constraints int
	snapshot    model.Snapshot
	// note explains an infeasible verdict reached without the solver.
	note string
}

// execute drives run to a terminal status. The deferred finalisation also
// covers panics, which are reported and turned into a failure.
func (m *Manager) execute(ctx context.Context, run model.ScheduleRun) (out model.ScheduleRun, err error) {
	activeSolves.Inc()
	defer activeSolves.Dec()
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	started := m.now()
	run.Status = model.RunRunning
	run.StartedAt = &started
	if uerr := m.store.UpdateRun(ctx, run); uerr != nil {
		if errors.Is(uerr, store.ErrRunClosed) {
			m.logger.Warnf("run %s: closed before it started", run.ID)
			if stored, gerr := m.store.Run(context.WithoutCancel(ctx), run.ID); gerr == nil {
				run = stored
			}
			return run, fmt.Errorf("%w: %w", solver.ErrCancelled, uerr)
		}
		m.logger.Errorf("run %s: mark running: %v", run.ID, uerr)
	}
	m.publish(run, runStats{})
	go m.watchCancel(ctx, run.ID, stop)

	var st runStats
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("planner: panic during run %s: %v", run.ID, r)
			monitoring.CaptureException(err, monitoring.RunTags("planner", run.OrganizationID, run.ID))
			run.Status = model.RunFailure
			run.Message = err.Error()
		}
		var closed bool
		out, closed = m.finalize(ctx, run, st, started)
		if closed && err == nil {
			err = fmt.Errorf("%w: run %s was closed by another process", solver.ErrCancelled, run.ID)
		}
	}()

	var res solver.Result
	res, st, err = m.solve(ctx, run)
	run, err = m.outcome(ctx, run, res, st, err)
	return run, err
}

func (m *Manager) solve(ctx context.Context, run model.ScheduleRun) (solver.Result, runStats, error) {
	var st runStats
	snap, err := scheduler.LoadSnapshot(ctx, m.store, run.OrganizationID)
	if err != nil {
		return solver.Result{}, st, fmt.Errorf("load organization: %w", err)
	}
	st.snapshot = snap
	p, err := scheduler.Compile(snap)
	if err != nil {
		return solver.Result{}, st, fmt.Errorf("compile: %w", err)
	}
	st.variables = len(p.Variables())
	st.constraints = len(p.Constraints)
	constraintsGenerated.Observe(float64(st.constraints))
	m.logger.Debugw("problem compiled", map[string]any{
		"organization": run.OrganizationID,
		"run":          run.ID,
		"variables":    st.variables,
		"constraints":  st.constraints,
	})

	if conflicts := p.Conflicts(); len(conflicts) > 0 {
		st.note = conflictReport(conflicts)
		return solver.InfeasibleResult(""), st, nil
	}
	if m.cfg.Precheck {
		if v := solver.CheckRelaxation(p, m.cfg.MaxPrecheckVariables); v == solver.Infeasible {
			m.logger.Infof("run %s: relaxation is infeasible, solver skipped", run.ID)
			st.note = "linear relaxation is infeasible"
			return solver.InfeasibleResult(""), st, nil
		}
	}
	if ctx.Err() != nil || m.cancelRequested(ctx, run.ID) {
		return solver.Result{}, st, solver.ErrCancelled
	}
	res, err := m.solver.Solve(ctx, p, solver.Options{
		Timeout: run.Timeout,
		Tracker: &processTracker{store: m.store, runID: run.ID, logger: m.logger},
	})
	return res, st, err
}

func conflictReport(conflicts []lp.Constraint) string {
	names := make([]string, len(conflicts))
	for i, c := range conflicts {
		names[i] = c.Name
	}
	return "conflicting constraints: " + strings.Join(names, ", ")
}

// outcome maps a solver answer onto the run.
func (m *Manager) outcome(ctx context.Context, run model.ScheduleRun, res solver.Result, st runStats, err error) (model.ScheduleRun, error) {
	run.Output = res.Output
	switch {
	case err == nil && res.Infeasible:
		run.Status = model.RunInfeasible
		run.Message = "no schedule satisfies the constraints"
		if st.note != "" {
			run.Message = st.note
		}
	case err == nil:
		run.Status = model.RunSuccess
		run.Result = res.ByAgent()
		run.Message = fmt.Sprintf("%d tasks assigned", run.Result.Tasks())
		if res.Suboptimal {
			run.Message += "; time budget reached, best solution kept"
		}
	case errors.Is(err, solver.ErrTimedOut):
		run.Status = model.RunTimedOut
		run.Message = fmt.Sprintf("solver exceeded its time budget of %s", run.Timeout)
	case errors.Is(err, solver.ErrCancelled) || ctx.Err() != nil:
		run.Status = model.RunFailure
		run.Message = cancelledMessage
		if !errors.Is(err, solver.ErrCancelled) {
			err = fmt.Errorf("%w: %w", solver.ErrCancelled, err)
		}
	default:
		run.Status = model.RunFailure
		run.Message = err.Error()
		monitoring.CaptureException(err, monitoring.RunTags("planner", run.OrganizationID, run.ID))
	}
	return run, err
}

// finalize persists the terminal run and reports it. It uses a context
// detached from cancellation so that cancelled runs are still recorded.
// When another process already closed the run, the stored run wins and
// closed is true.
func (m *Manager) finalize(ctx context.Context, run model.ScheduleRun, st runStats, started time.Time) (_ model.ScheduleRun, closed bool) {
	ctx = context.WithoutCancel(ctx)
	finished := m.now()
	run.FinishedAt = &finished
	run.PID = 0
	if err := m.store.UpdateRun(ctx, run); errors.Is(err, store.ErrRunClosed) {
		m.logger.Warnf("run %s: closed elsewhere, %s outcome dropped", run.ID, run.Status)
		if stored, gerr := m.store.Run(ctx, run.ID); gerr == nil {
			return stored, true
		}
		return run, true
	} else if err != nil {
		m.logger.Errorf("run %s: record outcome: %v", run.ID, err)
		monitoring.CaptureException(err, monitoring.RunTags("planner", run.OrganizationID, run.ID))
	}
	elapsed := finished.Sub(started)
	runsTotal.WithLabelValues(string(run.Status)).Inc()
	solveDuration.Observe(elapsed.Seconds())
	m.logger.Infof("org %d: run %s finished %s in %s: %s", run.OrganizationID, run.ID, run.Status, elapsed, run.Message)

	m.publish(run, st)
	m.record(ctx, audit.Record{
		Timestamp:      finished,
		OrganizationID: run.OrganizationID,
		RunID:          run.ID,
		Status:         run.Status,
		Message:        run.Message,
		Assignments:    run.Result.Tasks(),
		Duration:       elapsed,
	})
	if run.Status == model.RunSuccess {
		m.publishBalance(run, st.snapshot, finished)
	}
	return run, false
}

func (m *Manager) publish(run model.ScheduleRun, st runStats) {
	if m.bus == nil {
		return
	}
	ev := events.RunEvent{
		OrganizationID: run.OrganizationID,
		RunID:          run.ID,
		Status:         run.Status,
		Message:        run.Message,
		Variables:      st.variables,
		Constraints:    st.constraints,
		Assignments:    run.Result.Tasks(),
		Time:           m.now(),
	}
	if run.StartedAt != nil && run.FinishedAt != nil {
		ev.Duration = run.FinishedAt.Sub(*run.StartedAt)
	}
	m.bus.Publish(ev)
}

func (m *Manager) publishBalance(run model.ScheduleRun, snap model.Snapshot, at time.Time) {
	if m.bus == nil {
		return
	}
	stats, err := scheduler.ComputeBalancing(snap, run.Result)
	if err != nil {
		m.logger.Warnf("run %s: balancing: %v", run.ID, err)
		return
	}
	for _, s := range stats {
		m.bus.Publish(events.BalanceEvent{
			OrganizationID: run.OrganizationID,
			RunID:          run.ID,
			CategoryID:     s.CategoryID,
			Category:       s.Name,
			Loads:          s.Loads,
			Spread:         s.Spread,
			Time:           at,
		})
	}
}

func (m *Manager) record(ctx context.Context, rec audit.Record) {
	if err := m.audit.Append(ctx, rec); err != nil {
		m.logger.Errorf("audit append: %v", err)
	}
}

// Apply writes a successful run of the organization back to its tasks and
// marks it as the applied schedule.
func (m *Manager) Apply(ctx context.Context, orgID int64, runID string) (int, error) {
	run, err := m.store.Run(ctx, runID)
	if err != nil {
		return 0, err
	}
	if run.OrganizationID != orgID {
		return 0, fmt.Errorf("%w: run %s belongs to organization %d", ErrRunNotApplicable, runID, run.OrganizationID)
	}
	if run.Status != model.RunSuccess {
		return 0, fmt.Errorf("%w: run %s is %s", ErrRunNotApplicable, runID, run.Status)
	}
	updated, err := m.reconciler.Apply(ctx, orgID, run.Result)
	if err != nil {
		if !errors.Is(err, reconcile.ErrInvalidSchedule) {
			monitoring.CaptureException(err, monitoring.RunTags("planner", orgID, runID))
		}
		return updated, err
	}
	if err := m.store.SelectRun(ctx, orgID, runID); err != nil {
		return updated, err
	}
	now := m.now()
	m.logger.Infof("org %d: run %s applied, %d tasks updated", orgID, runID, updated)
	if m.bus != nil {
		m.bus.Publish(events.ApplyEvent{OrganizationID: orgID, RunID: runID, Updated: updated, Time: now})
	}
	m.record(ctx, audit.Record{
		Timestamp:      now,
		OrganizationID: orgID,
		RunID:          runID,
		Status:         run.Status,
		Message:        fmt.Sprintf("%d tasks updated", updated),
		Assignments:    run.Result.Tasks(),
		Applied:        true,
	})
	return updated, nil
}

// Balancing reports the category loads of a successful run against the
// current organization data.
func (m *Manager) Balancing(ctx context.Context, orgID int64, runID string) (map[int64]scheduler.BalanceStat, error) {
	run, err := m.store.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.OrganizationID != orgID || run.Status != model.RunSuccess {
		return nil, fmt.Errorf("%w: run %s", ErrRunNotApplicable, runID)
	}
	snap, err := scheduler.LoadSnapshot(ctx, m.store, orgID)
	if err != nil {
		return nil, err
	}
	return scheduler.ComputeBalancing(snap, run.Result)
}

// Run returns one run.
func (m *Manager) Run(ctx context.Context, runID string) (model.ScheduleRun, error) {
	return m.store.Run(ctx, runID)
}

// Runs lists the runs of an organization.
func (m *Manager) Runs(ctx context.Context, orgID int64) ([]model.ScheduleRun, error) {
	if _, err := m.store.Organization(ctx, orgID); err != nil {
		return nil, err
	}
	return m.store.Runs(ctx, orgID)
}

// History returns the audit records matching q.
func (m *Manager) History(ctx context.Context, q audit.Query) ([]audit.Record, error) {
	return m.audit.Query(ctx, q)
}
