package tuya

import (
	"context"
	"reflect"
	"sync"

	"github.com/rs/zerolog"
)

// Listener handles one emitted event. A non-nil error is logged; it does
// not stop delivery to the other listeners registered for the same event
// type.
type Listener func(ctx context.Context, event Event) error

// Bus is a typed, in-process pub/sub with sequential delivery per emission.
// Listeners registered for the same event type are invoked in registration
// order. Emit takes no lock of its own: a listener may itself call Emit
// (delivery then nests, depth-first), and emissions from different
// goroutines are not serialized against each other.
type Bus struct {
	name   string
	logger zerolog.Logger

	regMu     sync.Mutex
	listeners map[reflect.Type][]Listener
}

// NewBus creates an empty Bus. name is used as a log prefix, matching the
// per-device naming the rest of the package uses.
func NewBus(name string, logger zerolog.Logger) *Bus {
	return &Bus{
		name:      name,
		logger:    logger,
		listeners: make(map[reflect.Type][]Listener),
	}
}

// Register appends listener to the slice invoked whenever an event of type
// T is emitted. Registration itself is not ordered with respect to Emit and
// must happen at session construction time, before the bus is used
// concurrently.
func Register[T Event](b *Bus, listener func(ctx context.Context, event T) error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	wrapped := func(ctx context.Context, e Event) error {
		return listener(ctx, e.(T))
	}
	b.regMu.Lock()
	defer b.regMu.Unlock()
	b.listeners[t] = append(b.listeners[t], wrapped)
}

// Emit invokes every listener registered for event's exact type, in
// registration order, waiting for each. A failing listener is logged; it
// does not prevent the remaining listeners from receiving the event.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.regMu.Lock()
	listeners := b.listeners[reflect.TypeOf(event)]
	b.regMu.Unlock()

	for _, l := range listeners {
		if err := l(ctx, event); err != nil {
			b.logger.Warn().Err(err).Str("device", b.name).Type("event", event).Msg("error processing event")
		}
	}
}
