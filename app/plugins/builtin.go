package plugins

import (
	"context"

	"github.com/kilianp07/planner/config"
	"github.com/kilianp07/planner/core/audit"
	"github.com/kilianp07/planner/core/logger"
	"github.com/kilianp07/planner/core/solver"
	"github.com/kilianp07/planner/core/solver/bruteforce"
	"github.com/kilianp07/planner/core/store"
	"github.com/kilianp07/planner/infra/lpsolve"
	"github.com/kilianp07/planner/infra/store/sqlite"
)

func init() {
	RegisterSolver("lpsolve", func(cfg config.SolverConfig, log logger.Logger) (solver.Solver, error) {
		return lpsolve.New(cfg.LPSolve(), log)
	})
	RegisterSolver("bruteforce", func(config.SolverConfig, logger.Logger) (solver.Solver, error) {
		return &bruteforce.Solver{}, nil
	})

	RegisterAuditStore("none", func(config.AuditConfig) (audit.Store, error) {
		return audit.NopStore{}, nil
	})
	RegisterAuditStore("jsonl", func(cfg config.AuditConfig) (audit.Store, error) {
		if cfg.MaxSizeMB > 0 {
			return audit.NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		}
		return audit.NewJSONLStore(cfg.Path)
	})
	RegisterAuditStore("sqlite", func(cfg config.AuditConfig) (audit.Store, error) {
		return audit.NewSQLiteStore(cfg.Path)
	})

	RegisterStore("memory", func(context.Context, config.StoreConfig) (store.Store, error) {
		return store.NewMemoryStore(), nil
	})
	RegisterStore("sqlite", func(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
		return sqlite.Open(ctx, cfg.Path)
	})
}
