package device

import (
	"context"
	"sync"

	"github.com/tuyamqtt/bridge/pkg/tuya"
)

// StateHandler exposes read/wait access to the latest state snapshot
// observed on a device's bus, for collaborators (UpdateBuffer, publishers)
// that only ever need to read it.
type StateHandler struct {
	mu      sync.Mutex
	state   tuya.Values
	updated chan struct{} // closed and replaced every time state changes
}

// NewStateHandler registers a StateHandler against bus, tracking every
// StateUpdated event.
func NewStateHandler(bus *tuya.Bus) *StateHandler {
	h := &StateHandler{updated: make(chan struct{})}
	tuya.Register(bus, func(_ context.Context, e tuya.StateUpdated) error {
		h.set(e.Values)
		return nil
	})
	return h
}

func (h *StateHandler) set(values tuya.Values) {
	h.mu.Lock()
	h.state = values
	ch := h.updated
	h.updated = make(chan struct{})
	h.mu.Unlock()
	close(ch)
}

// Get returns the current snapshot, blocking until the first one arrives.
func (h *StateHandler) Get(ctx context.Context) (tuya.Values, error) {
	for {
		h.mu.Lock()
		state, ch := h.state, h.updated
		h.mu.Unlock()
		if state != nil {
			return state.Clone(), nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Matches blocks until the current state snapshot agrees with values on
// every key values sets, or ctx is done.
func (h *StateHandler) Matches(ctx context.Context, values tuya.Values) error {
	for {
		h.mu.Lock()
		state, ch := h.state, h.updated
		h.mu.Unlock()

		if state != nil && matches(state, values) {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func matches(state, values tuya.Values) bool {
	for k, v := range values {
		if state[k] != v {
			return false
		}
	}
	return true
}
