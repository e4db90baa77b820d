package mqtt

import (
	"context"
	"sync"

	"github.com/kilianp07/planner/core/events"
	coremqtt "github.com/kilianp07/planner/core/mqtt"
	"github.com/kilianp07/planner/infra/logger"
	"github.com/kilianp07/planner/internal/eventbus"
)

// Notifier mirrors the core mqtt.Notifier interface.
type Notifier = coremqtt.Notifier

// Forward relays run and apply events from the bus to n until ctx is done
// or the bus is closed. Failures are logged and do not stop the relay.
func Forward(ctx context.Context, bus eventbus.EventBus, n Notifier) {
	if bus == nil || n == nil {
		return
	}
	log := logger.New("mqtt_forward")
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
				var err error
				switch e := ev.(type) {
				case events.RunEvent:
					err = n.NotifyRun(e)
				case events.ApplyEvent:
					err = n.NotifyApply(e)
				}
				if err != nil {
					log.Warnf("notify: %v", err)
				}
			}
		}
	}()
}

// MockNotifier records notifications; used in tests.
type MockNotifier struct {
	mu      sync.Mutex
	Runs    []events.RunEvent
	Applies []events.ApplyEvent
	Err     error
}

// NewMockNotifier creates a new MockNotifier.
func NewMockNotifier() *MockNotifier { return &MockNotifier{} }

func (m *MockNotifier) NotifyRun(ev events.RunEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Runs = append(m.Runs, ev)
	return m.Err
}

func (m *MockNotifier) NotifyApply(ev events.ApplyEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Applies = append(m.Applies, ev)
	return m.Err
}

// Counts returns how many run and apply notifications were received.
func (m *MockNotifier) Counts() (runs, applies int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Runs), len(m.Applies)
}
