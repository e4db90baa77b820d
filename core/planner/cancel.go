package planner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/kilianp07/planner/core/audit"
	"github.com/kilianp07/planner/core/logger"
	"github.com/kilianp07/planner/core/model"
	"github.com/kilianp07/planner/core/store"
)

// killProcess sends SIGKILL to pid. Tests replace it.
var killProcess = func(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

// processTracker stores the solver PID on the run so that Cancel can reach
// it, possibly from another process sharing the store.
type processTracker struct {
	store  store.RunStore
	runID  string
	logger logger.Logger
}

// Track records pid and kills it at once when a cancel request arrived
// before the solver was spawned.
func (t *processTracker) Track(pid int) error {
	ctx := context.Background()
	if err := t.store.SetRunProcess(ctx, t.runID, pid); err != nil {
		return err
	}
	run, err := t.store.Run(ctx, t.runID)
	if err != nil || !run.CancelRequested {
		return nil
	}
	t.logger.Infof("run %s: cancel requested, killing solver process %d", t.runID, pid)
	if err := killProcess(pid); err != nil && !benignKillError(err) {
		return fmt.Errorf("kill solver process %d: %w", pid, err)
	}
	return nil
}

func (t *processTracker) Release(pid int) error {
	if err := t.store.SetRunProcess(context.Background(), t.runID, 0); err != nil {
		t.logger.Warnf("run %s: release pid %d: %v", t.runID, pid, err)
		return err
	}
	return nil
}

// benignKillError reports errors meaning the process is already gone.
func benignKillError(err error) bool {
	return errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH)
}

// Cancel stops an open run. A run executing in this manager has its
// context cancelled. A run executing elsewhere gets a cancel request in the
// store, which its manager polls, and its tracked solver process is killed.
// A pending run that never started, such as one left behind by a crash, is
// closed as a failure so that its organization can solve again. Cancelling
// a finished run is a no-op.
func (m *Manager) Cancel(ctx context.Context, runID string) error {
	run, err := m.store.Run(ctx, runID)
	if err != nil {
		return err
	}
	if !run.Open() {
		m.logger.Debugf("run %s already %s", runID, run.Status)
		return nil
	}

	m.mu.Lock()
	cancel, local := m.cancels[runID]
	m.mu.Unlock()

	if !local && run.Status == model.RunPending && run.StartedAt == nil {
		now := m.now()
		closed, err := m.store.AbandonRun(ctx, runID, cancelledMessage, now)
		if err != nil {
			return err
		}
		if closed {
			m.reportAbandoned(ctx, run, now)
			return nil
		}
	}

	run, err = m.store.RequestCancel(ctx, runID)
	if errors.Is(err, store.ErrRunClosed) {
		return nil
	}
	if err != nil {
		return err
	}
	if run.PID > 0 {
		if err := killProcess(run.PID); err != nil && !benignKillError(err) {
			return fmt.Errorf("kill solver process %d: %w", run.PID, err)
		}
		m.logger.Infof("run %s: solver process %d killed", runID, run.PID)
	}
	if local {
		cancel()
	} else {
		m.logger.Infof("run %s: cancel requested", runID)
	}
	return nil
}

func (m *Manager) reportAbandoned(ctx context.Context, run model.ScheduleRun, at time.Time) {
	run.Status = model.RunFailure
	run.Message = cancelledMessage
	run.FinishedAt = &at
	runsTotal.WithLabelValues(string(run.Status)).Inc()
	m.publish(run, runStats{})
	m.record(ctx, audit.Record{
		Timestamp:      at,
		OrganizationID: run.OrganizationID,
		RunID:          run.ID,
		Status:         run.Status,
		Message:        run.Message,
	})
}

// watchCancel stops the run when a cancel request shows up in the store.
// It returns once ctx is done.
func (m *Manager) watchCancel(ctx context.Context, runID string, stop context.CancelFunc) {
	t := time.NewTicker(m.cfg.CancelPollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if m.cancelRequested(ctx, runID) {
				m.logger.Infof("run %s: cancel requested", runID)
				stop()
				return
			}
		}
	}
}

func (m *Manager) cancelRequested(ctx context.Context, runID string) bool {
	run, err := m.store.Run(ctx, runID)
	return err == nil && run.CancelRequested
}
