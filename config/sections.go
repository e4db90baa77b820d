package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/kilianp07/planner/infra/lpsolve"
)

// SolverConfig selects and tunes the solver backend.
type SolverConfig struct {
	// Backend is "lpsolve" or "bruteforce".
	Backend string `json:"backend"`
	// Path is the lp_solve binary.
	Path         string   `json:"path"`
	GraceSeconds int      `json:"grace_seconds"`
	TempDir      string   `json:"temp_dir"`
	Args         []string `json:"args"`
	// DefaultTimeoutSeconds applies when a request carries no timeout.
	// Zero means unbounded.
	DefaultTimeoutSeconds int `json:"default_timeout_seconds"`
	// MaxPrecheckVariables bounds the relaxation screen. Larger problems
	// skip it.
	MaxPrecheckVariables int `json:"max_precheck_variables"`
}

func (c *SolverConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "lpsolve"
	}
	if c.Path == "" {
		c.Path = "lp_solve"
	}
	if c.GraceSeconds <= 0 {
		c.GraceSeconds = 5
	}
	if c.MaxPrecheckVariables <= 0 {
		c.MaxPrecheckVariables = 400
	}
}

func (c SolverConfig) Validate() error {
	if c.DefaultTimeoutSeconds < 0 {
		return fmt.Errorf("default_timeout_seconds must not be negative")
	}
	return nil
}

// DefaultTimeout converts DefaultTimeoutSeconds.
func (c SolverConfig) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutSeconds) * time.Second
}

// LPSolve returns the lp_solve adapter settings.
func (c SolverConfig) LPSolve() lpsolve.Config {
	return lpsolve.Config{
		Path:    c.Path,
		Grace:   time.Duration(c.GraceSeconds) * time.Second,
		TempDir: c.TempDir,
		Args:    slices.Clone(c.Args),
	}
}

// StoreConfig selects the organization data store.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "planner.db"
	}
}

func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "memory", "sqlite":
		return nil
	}
	return fmt.Errorf("unknown backend %s", c.Backend)
}

// PlannerConfig tunes the run manager.
type PlannerConfig struct {
	// Precheck screens problems with an LP relaxation before launching
	// the solver.
	Precheck bool `json:"precheck"`
	// EventBuffer is the per-subscriber capacity of the run event bus.
	EventBuffer int `json:"event_buffer"`
	// CancelPollMillis is how often a running solve checks the store for a
	// cancel request made by another process. Zero keeps the default.
	CancelPollMillis int `json:"cancel_poll_ms"`
}

// CancelPoll converts CancelPollMillis.
func (c PlannerConfig) CancelPoll() time.Duration {
	return time.Duration(c.CancelPollMillis) * time.Millisecond
}

// AuditConfig defines settings for run audit storage and rotation.
type AuditConfig struct {
	// Backend selects the store type: "none", "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	// Zero disables rotation.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

func (c *AuditConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" && c.Backend != "none" {
		c.Path = "runs.log"
	}
}

func (c AuditConfig) Validate() error {
	switch c.Backend {
	case "none":
		return nil
	case "jsonl", "sqlite":
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// LoggingConfig sets the global log level.
type LoggingConfig struct {
	Level string `json:"level"`
}

func (c LoggingConfig) Validate() error {
	if c.Level == "" {
		return nil
	}
	_, err := zerolog.ParseLevel(c.Level)
	return err
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Address  string `json:"address"`
	BasePath string `json:"base_path"`
	// AuditToken protects the audit log endpoint when set.
	AuditToken string `json:"audit_token"`
}

func (c *APIConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}

func (c APIConfig) Validate() error {
	if c.BasePath != "" && c.BasePath[0] != '/' {
		return fmt.Errorf("base_path must start with /")
	}
	return nil
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
	Release          string  `json:"release"`
	ServerName       string  `json:"server_name"`
	// FlushSeconds bounds the wait for buffered events on shutdown.
	FlushSeconds int `json:"flush_seconds"`
}

func (c *SentryConfig) SetDefaults() {
	if c.DSN != "" && c.FlushSeconds == 0 {
		c.FlushSeconds = 2
	}
}

func (c SentryConfig) Validate() error {
	if c.TracesSampleRate < 0 || c.TracesSampleRate > 1 {
		return fmt.Errorf("traces_sample_rate must be within [0,1]")
	}
	if c.FlushSeconds < 0 {
		return fmt.Errorf("flush_seconds must not be negative")
	}
	return nil
}

// FlushTimeout is the shutdown flush budget.
func (c SentryConfig) FlushTimeout() time.Duration {
	return time.Duration(c.FlushSeconds) * time.Second
}
