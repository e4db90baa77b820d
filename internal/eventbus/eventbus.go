package eventbus

// Event is anything published on a Bus. Subscribers switch on the
// concrete type.
type Event any

// EventBus is the publish side shared by the planner and its consumers.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus carries events of any type.
type Bus = TypedBus[Event]

// New creates a Bus.
func New(opts ...Option) *Bus { return NewTyped[Event](opts...) }

var _ EventBus = (*Bus)(nil)
