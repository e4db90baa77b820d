// Package metrics defines interfaces for collecting schedule run metrics.
// A MetricsSink records terminal runs; sinks may additionally implement
// BalanceRecorder or ApplyRecorder. Implementations live in infra/metrics
// and are created from configuration through NewMetricsSink, which returns
// a MultiSink automatically when multiple sinks are configured.
package metrics
