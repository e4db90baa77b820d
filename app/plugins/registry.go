// Package plugins maps configured backend names to constructors.
package plugins

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/kilianp07/planner/config"
	"github.com/kilianp07/planner/core/audit"
	"github.com/kilianp07/planner/core/logger"
	"github.com/kilianp07/planner/core/solver"
	"github.com/kilianp07/planner/core/store"
)

// SolverFactory builds a solver backend.
type SolverFactory func(cfg config.SolverConfig, log logger.Logger) (solver.Solver, error)

// AuditFactory builds an audit store.
type AuditFactory func(cfg config.AuditConfig) (audit.Store, error)

// StoreFactory opens the organization data store.
type StoreFactory func(ctx context.Context, cfg config.StoreConfig) (store.Store, error)

var (
	Solvers     = map[string]SolverFactory{}
	AuditStores = map[string]AuditFactory{}
	Stores      = map[string]StoreFactory{}
)

func RegisterSolver(name string, f SolverFactory)     { Solvers[name] = f }
func RegisterAuditStore(name string, f AuditFactory) { AuditStores[name] = f }
func RegisterStore(name string, f StoreFactory)      { Stores[name] = f }

func unknown[F any](kind, name string, known map[string]F) error {
	return fmt.Errorf("plugins: unknown %s %q (known: %v)", kind, name, slices.Sorted(maps.Keys(known)))
}

// NewSolver builds the configured solver backend.
func NewSolver(cfg config.SolverConfig, log logger.Logger) (solver.Solver, error) {
	f, ok := Solvers[cfg.Backend]
	if !ok {
		return nil, unknown("solver", cfg.Backend, Solvers)
	}
	return f(cfg, log)
}

// NewAuditStore builds the configured audit store.
func NewAuditStore(cfg config.AuditConfig) (audit.Store, error) {
	f, ok := AuditStores[cfg.Backend]
	if !ok {
		return nil, unknown("audit store", cfg.Backend, AuditStores)
	}
	return f(cfg)
}

// NewStore opens the configured data store.
func NewStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	f, ok := Stores[cfg.Backend]
	if !ok {
		return nil, unknown("store", cfg.Backend, Stores)
	}
	return f(ctx, cfg)
}
