package metrics

import (
	"context"
	"maps"
	"slices"

	"github.com/kilianp07/planner/core/events"
	coremetrics "github.com/kilianp07/planner/core/metrics"
	"github.com/kilianp07/planner/infra/logger"
	"github.com/kilianp07/planner/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := collect(sink, ev); err != nil {
					log.Warnf("record %T: %v", ev, err)
				}
			}
		}
	}()
}

func collect(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.RunEvent:
		if !e.Terminal() {
			return nil
		}
		return sink.RecordRunResult(coremetrics.RunResult{
			OrganizationID: e.OrganizationID,
			RunID:          e.RunID,
			Status:         e.Status,
			Variables:      e.Variables,
			Constraints:    e.Constraints,
			Assignments:    e.Assignments,
			Duration:       e.Duration,
			Time:           e.Time,
		})
	case events.BalanceEvent:
		r, ok := sink.(coremetrics.BalanceRecorder)
		if !ok {
			return nil
		}
		samples := make([]coremetrics.BalanceSample, 0, len(e.Loads))
		for _, agent := range slices.Sorted(maps.Keys(e.Loads)) {
			samples = append(samples, coremetrics.BalanceSample{
				OrganizationID: e.OrganizationID,
				RunID:          e.RunID,
				CategoryID:     e.CategoryID,
				Category:       e.Category,
				AgentID:        agent,
				Load:           e.Loads[agent],
				Spread:         e.Spread,
				Time:           e.Time,
			})
		}
		return r.RecordBalance(samples)
	case events.ApplyEvent:
		if r, ok := sink.(coremetrics.ApplyRecorder); ok {
			return r.RecordApply(coremetrics.ApplyResult{
				OrganizationID: e.OrganizationID,
				RunID:          e.RunID,
				Updated:        e.Updated,
				Time:           e.Time,
			})
		}
	}
	return nil
}
