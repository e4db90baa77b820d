package planner

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal            *prometheus.CounterVec
	solveDuration        prometheus.Histogram
	constraintsGenerated prometheus.Histogram
	activeSolves         prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, prometheus.Histogram, prometheus.Gauge) {
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_runs_total",
			Help: "Number of schedule runs by terminal status",
		},
		[]string{"status"},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planner_solve_duration_seconds",
			Help:    "Wall-clock time from run start to terminal status",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		},
	)
	cons := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planner_constraints_generated",
			Help:    "Number of constraints in compiled problems",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
	)
	active := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "planner_active_solves",
			Help: "Number of runs currently executing",
		},
	)
	return runs, dur, cons, active
}

func init() {
	runsTotal, solveDuration, constraintsGenerated, activeSolves = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers planner metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(runsTotal, solveDuration, constraintsGenerated, activeSolves)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	runsTotal, solveDuration, constraintsGenerated, activeSolves = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
