package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `solver:
  backend: lpsolve
  path: /usr/bin/lp_solve
  grace_seconds: 2
  default_timeout_seconds: 30
store:
  backend: sqlite
  path: /tmp/planner.db
planner:
  precheck: true
  cancel_poll_ms: 250
audit:
  backend: jsonl
  path: runs.log
  max_size_mb: 10
metrics:
  sinks:
    - type: "nop"
  prometheus_port: ":9100"
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  topic_prefix: sched
api:
  address: ":9000"
  base_path: /v1
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"solver.path", cfg.Solver.Path, "/usr/bin/lp_solve"},
		{"solver.grace", cfg.Solver.LPSolve().Grace, 2 * time.Second},
		{"solver.timeout", cfg.Solver.DefaultTimeout(), 30 * time.Second},
		{"solver.max_precheck", cfg.Solver.MaxPrecheckVariables, 400},
		{"store.backend", cfg.Store.Backend, "sqlite"},
		{"store.path", cfg.Store.Path, "/tmp/planner.db"},
		{"planner.precheck", cfg.Planner.Precheck, true},
		{"planner.cancel_poll", cfg.Planner.CancelPoll(), 250 * time.Millisecond},
		{"audit.max_size_mb", cfg.Audit.MaxSizeMB, 10},
		{"metrics.sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"metrics.port", cfg.Metrics.PrometheusPort, ":9100"},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.prefix", cfg.MQTT.TopicPrefix, "sched"},
		{"mqtt.retries", cfg.MQTT.MaxRetries, 3},
		{"api.address", cfg.API.Address, ":9000"},
		{"api.base_path", cfg.API.BasePath, "/v1"},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[solver]
backend = "bruteforce"

[store]
backend = "memory"

[audit]
backend = "none"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bruteforce", cfg.Solver.Backend)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "none", cfg.Audit.Backend)
	assert.Empty(t, cfg.Audit.Path)
	assert.Equal(t, ":8080", cfg.API.Address)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, "config.json", `{"solver": {"path": "lp_solve"}}`)
	t.Setenv("P_SOLVER__PATH", "/opt/lp_solve")
	t.Setenv("P_LOGGING__LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/lp_solve", cfg.Solver.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "lpsolve", cfg.Solver.Backend)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "runs.log", cfg.Audit.Path)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Zero(t, cfg.Sentry.FlushTimeout())
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"format":    "",
		"store":     "store:\n  backend: postgres\n",
		"audit":     "audit:\n  backend: s3\n",
		"level":     "logging:\n  level: loud\n",
		"base_path": "api:\n  base_path: v1\n",
		"mqtt":      "mqtt:\n  enabled: true\n",
		"timeout":   "solver:\n  default_timeout_seconds: -1\n",
		"sentry":    "sentry:\n  traces_sample_rate: 2\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			file := "config.yaml"
			if name == "format" {
				file = "config.ini"
			}
			_, err := Load(writeFile(t, file, data))
			assert.Error(t, err)
		})
	}
}
