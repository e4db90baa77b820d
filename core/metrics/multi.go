package metrics

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRunResult forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordRunResult(res RunResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordRunResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordBalance forwards samples to the sinks that record balancing.
func (m *MultiSink) RecordBalance(samples []BalanceSample) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(BalanceRecorder); ok {
			if err := rec.RecordBalance(samples); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordApply forwards reconciliations.
func (m *MultiSink) RecordApply(res ApplyResult) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ApplyRecorder); ok {
			if err := rec.RecordApply(res); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes the sinks holding connections.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
