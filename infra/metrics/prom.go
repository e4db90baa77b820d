package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/planner/core/metrics"
	"github.com/kilianp07/planner/core/model"
)

// PromSink records run results in Prometheus metrics.
type PromSink struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	assignments *prometheus.GaugeVec
	load        *prometheus.GaugeVec
	spread      *prometheus.GaugeVec
	applies     *prometheus.CounterVec
}

// NewPromSink registers run metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_runs_total",
			Help: "Schedule runs that reached a terminal status",
		}, []string{"organization", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "schedule_run_duration_seconds",
			Help:    "Wall time from run start to terminal status",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"organization", "status"}),
		assignments: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "schedule_assigned_tasks",
			Help: "Tasks assigned by the last successful run",
		}, []string{"organization"}),
		load: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "schedule_category_load",
			Help: "Weighted load of an agent in a balanced category",
		}, []string{"organization", "category", "agent"}),
		spread: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "schedule_category_spread",
			Help: "Gap between the most and least loaded agents of a balanced category",
		}, []string{"organization", "category"}),
		applies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_applies_total",
			Help: "Runs written back to the store",
		}, []string{"organization"}),
	}
	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.assignments, err = register(reg, s.assignments); err != nil {
		return nil, err
	}
	if s.load, err = register(reg, s.load); err != nil {
		return nil, err
	}
	if s.spread, err = register(reg, s.spread); err != nil {
		return nil, err
	}
	if s.applies, err = register(reg, s.applies); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the collector already registered under the same
// descriptor, so that several sinks can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRunResult counts the run and observes its duration.
func (s *PromSink) RecordRunResult(res coremetrics.RunResult) error {
	org := strconv.FormatInt(res.OrganizationID, 10)
	status := string(res.Status)
	s.runs.WithLabelValues(org, status).Inc()
	s.duration.WithLabelValues(org, status).Observe(res.Duration.Seconds())
	if res.Status == model.RunSuccess {
		s.assignments.WithLabelValues(org).Set(float64(res.Assignments))
	}
	return nil
}

// RecordBalance sets the per agent load and the category spread.
func (s *PromSink) RecordBalance(samples []coremetrics.BalanceSample) error {
	for _, b := range samples {
		org := strconv.FormatInt(b.OrganizationID, 10)
		s.load.WithLabelValues(org, b.Category, strconv.FormatInt(b.AgentID, 10)).Set(b.Load)
		s.spread.WithLabelValues(org, b.Category).Set(b.Spread)
	}
	return nil
}

// RecordApply counts reconciliations.
func (s *PromSink) RecordApply(res coremetrics.ApplyResult) error {
	s.applies.WithLabelValues(strconv.FormatInt(res.OrganizationID, 10)).Inc()
	return nil
}
