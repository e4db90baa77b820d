// Package lpsolve runs the lp_solve command line solver on compiled
// problems.
package lpsolve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/planner/core/logger"
	"github.com/kilianp07/planner/core/lp"
	"github.com/kilianp07/planner/core/solver"
)

// lp_solve exit codes.
const (
	exitOptimal    = 0
	exitSuboptimal = 1
	exitInfeasible = 2
	exitUnbounded  = 3
	exitTimeout    = 7
)

// Config locates the lp_solve binary.
type Config struct {
	Path string `json:"path"`
	// Grace is added to the -timeout budget before the process is killed.
	Grace   time.Duration `json:"grace"`
	TempDir string        `json:"temp_dir"`
	// Args are passed before the generated flags.
	Args []string `json:"args"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Path == "" {
		c.Path = "lp_solve"
	}
	if c.Grace <= 0 {
		c.Grace = 5 * time.Second
	}
}

// Solver invokes lp_solve as a subprocess.
type Solver struct {
	cfg     Config
	logger  logger.Logger
	execCmd func(name string, args ...string) *exec.Cmd
}

// New returns a Solver. A nil logger is rejected.
func New(cfg Config, log logger.Logger) (*Solver, error) {
	if log == nil {
		return nil, fmt.Errorf("lpsolve: nil logger")
	}
	cfg.SetDefaults()
	return &Solver{cfg: cfg, logger: log, execCmd: exec.Command}, nil
}

// SetExecCmd replaces the command factory. It is meant for tests.
func (s *Solver) SetExecCmd(fn func(name string, args ...string) *exec.Cmd) {
	s.execCmd = fn
}

func (s *Solver) args(file string, timeout time.Duration) []string {
	args := append([]string{}, s.cfg.Args...)
	args = append(args, "-S3")
	if timeout > 0 {
		secs := int(math.Ceil(timeout.Seconds()))
		args = append(args, "-timeout", strconv.Itoa(max(secs, 1)))
	}
	return append(args, "-lp", file)
}

// Solve writes p to a temporary file and runs lp_solve on it. Problems with
// contradicting constant rows are reported infeasible without starting a
// process.
func (s *Solver) Solve(ctx context.Context, p *lp.Problem, opts solver.Options) (solver.Result, error) {
	if conflicts := p.Conflicts(); len(conflicts) > 0 {
		names := make([]string, len(conflicts))
		for i, c := range conflicts {
			names[i] = c.Name
		}
		s.logger.Infof("problem has %d unsatisfiable rows, skipping lp_solve: %s", len(names), strings.Join(names, ", "))
		return solver.InfeasibleResult("unsatisfiable rows: " + strings.Join(names, ", ")), nil
	}

	f, err := os.CreateTemp(s.cfg.TempDir, "planner-*.lp")
	if err != nil {
		return solver.Result{}, fmt.Errorf("%w: create problem file: %v", solver.ErrUnavailable, err)
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := p.WriteTo(f); err != nil {
		_ = f.Close()
		return solver.Result{}, fmt.Errorf("%w: write problem file: %v", solver.ErrUnavailable, err)
	}
	if err := f.Close(); err != nil {
		return solver.Result{}, fmt.Errorf("%w: close problem file: %v", solver.ErrUnavailable, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := s.execCmd(s.cfg.Path, s.args(f.Name(), opts.Timeout)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = s.cfg.Grace
	if err := cmd.Start(); err != nil {
		return solver.Result{}, fmt.Errorf("%w: start %s: %v", solver.ErrUnavailable, s.cfg.Path, err)
	}
	pid := cmd.Process.Pid
	s.logger.Debugf("lp_solve started pid=%d file=%s", pid, f.Name())
	if opts.Tracker != nil {
		if err := opts.Tracker.Track(pid); err != nil {
			s.logger.Warnf("track lp_solve pid %d: %v", pid, err)
		}
		defer func() {
			if err := opts.Tracker.Release(pid); err != nil {
				s.logger.Warnf("release lp_solve pid %d: %v", pid, err)
			}
		}()
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var deadline <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout + s.cfg.Grace)
		defer timer.Stop()
		deadline = timer.C
	}

	var waitErr error
	select {
	case waitErr = <-done:
	case <-deadline:
		s.kill(cmd, done)
		s.logger.Warnf("lp_solve pid %d exceeded %s, killed", pid, opts.Timeout)
		return solver.Result{Output: stdout.String()}, solver.ErrTimedOut
	case <-ctx.Done():
		s.kill(cmd, done)
		return solver.Result{Output: stdout.String()}, fmt.Errorf("%w: %v", solver.ErrCancelled, ctx.Err())
	}
	return s.outcome(p, waitErr, stdout.String(), stderr.String())
}

func (s *Solver) kill(cmd *exec.Cmd, done <-chan error) {
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warnf("kill lp_solve pid %d: %v", cmd.Process.Pid, err)
	}
	<-done
}

func (s *Solver) outcome(p *lp.Problem, waitErr error, out, errOut string) (solver.Result, error) {
	code := exitOptimal
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return solver.Result{Output: out}, fmt.Errorf("%w: %v", solver.ErrUnavailable, waitErr)
		}
		code = exitErr.ExitCode()
	}
	switch code {
	case exitOptimal, exitSuboptimal:
		values, ok, err := ParseOutput(strings.NewReader(out))
		if err != nil {
			return solver.Result{Output: out}, fmt.Errorf("%w: read output: %v", solver.ErrUnavailable, err)
		}
		if !ok && len(p.Variables()) > 0 {
			return solver.Result{Output: out}, fmt.Errorf("%w: no variables in output", solver.ErrUnavailable)
		}
		res := solver.FromValues(values, out)
		if code == exitSuboptimal {
			s.logger.Infof("lp_solve returned a sub-optimal solution")
			res.Suboptimal = true
		}
		return res, nil
	case exitInfeasible:
		return solver.InfeasibleResult(out), nil
	case exitTimeout:
		return solver.Result{Output: out}, solver.ErrTimedOut
	case -1:
		return solver.Result{Output: out}, fmt.Errorf("%w: lp_solve killed by signal", solver.ErrCancelled)
	case exitUnbounded:
		return solver.Result{Output: out}, fmt.Errorf("%w: problem is unbounded", solver.ErrUnavailable)
	}
	return solver.Result{Output: out}, fmt.Errorf("%w: lp_solve exit code %d: %s", solver.ErrUnavailable, code, strings.TrimSpace(errOut))
}

var _ solver.Solver = (*Solver)(nil)
