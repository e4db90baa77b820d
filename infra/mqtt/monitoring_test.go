package mqtt

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kilianp07/planner/core/events"
	"github.com/kilianp07/planner/core/model"
	coremon "github.com/kilianp07/planner/core/monitoring"
	coremqtt "github.com/kilianp07/planner/core/mqtt"
	"github.com/kilianp07/planner/internal/eventbus"
)

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishErrorCaptured(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), fmt.Errorf("net fail")}}
	withMockClient(t, mc)
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	n, err := NewPahoNotifier(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1})
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	err = n.NotifyRun(events.RunEvent{OrganizationID: 3, RunID: "r9", Status: model.RunFailure})
	if !errors.Is(err, coremqtt.ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}
	if mon.err == nil {
		t.Fatalf("error not captured")
	}
	if mon.tags["run"] != "r9" || mon.tags["org"] != "3" || mon.tags["module"] != "mqtt" {
		t.Fatalf("tags not set: %v", mon.tags)
	}
}

func TestForwardRelaysEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := eventbus.New()
	n := NewMockNotifier()
	Forward(ctx, bus, n)

	bus.Publish(events.RunEvent{OrganizationID: 1, RunID: "r", Status: model.RunRunning})
	bus.Publish(events.BalanceEvent{OrganizationID: 1})
	bus.Publish(events.ApplyEvent{OrganizationID: 1, RunID: "r"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if runs, applies := n.Counts(); runs == 1 && applies == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	runs, applies := n.Counts()
	t.Fatalf("expected 1 run and 1 apply, got %d and %d", runs, applies)
}
