package metrics

import "github.com/kilianp07/planner/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks" toml:"sinks"`
	// PrometheusPort, when set, exposes /metrics on that port.
	PrometheusPort string `json:"prometheus_port" yaml:"prometheus_port" toml:"prometheus_port"`
}
