package tuya

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// StateKeeper maintains the authoritative snapshot of a device's
// datapoints. It requests a full refresh on a fixed interval via
// StateCommand and merges every StatusResponse/StateResponse it observes on
// the bus into its snapshot, re-emitting StateUpdated with the merged
// result. Status deltas received before the first successful StateResponse
// are discarded: a delta is only meaningful against a known baseline.
type StateKeeper struct {
	sender   *Sender
	interval time.Duration
	bus      *Bus
	logger   zerolog.Logger

	mu       sync.Mutex
	haveBase bool
	values   Values

	cancel context.CancelFunc
	done   chan struct{}
}

// NewStateKeeper wires a StateKeeper to bus: it refreshes on
// ConnectionEstablished (stopping on ConnectionClosed) and merges every
// ResponseReceived carrying Status/State values.
func NewStateKeeper(sender *Sender, interval time.Duration, bus *Bus, logger zerolog.Logger) *StateKeeper {
	k := &StateKeeper{sender: sender, interval: interval, bus: bus, logger: logger}
	Register(bus, func(ctx context.Context, _ ConnectionEstablished) error {
		k.start(ctx)
		return nil
	})
	Register(bus, func(_ context.Context, _ ConnectionClosed) error {
		k.stop()
		return nil
	})
	Register(bus, func(ctx context.Context, e ResponseReceived) error {
		k.observe(ctx, e)
		return nil
	})
	return k
}

// Get returns a copy of the current snapshot and whether a baseline has
// ever been established.
func (k *StateKeeper) Get() (Values, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.values.Clone(), k.haveBase
}

func (k *StateKeeper) observe(ctx context.Context, e ResponseReceived) {
	var (
		values Values
		isBase bool
	)
	switch resp := e.Response.(type) {
	case StateResponse:
		values, isBase = resp.Values, true
	case StatusResponse:
		values = resp.Values
	default:
		return
	}
	if values == nil || e.Response.Err() != nil {
		return
	}

	k.mu.Lock()
	if isBase {
		k.values = values.Clone()
		k.haveBase = true
	} else if k.haveBase {
		k.values = k.values.Merge(values)
	} else {
		k.mu.Unlock()
		return
	}
	merged := k.values.Clone()
	k.mu.Unlock()

	k.bus.Emit(ctx, StateUpdated{Values: merged})
}

func (k *StateKeeper) start(ctx context.Context) {
	k.mu.Lock()
	if k.cancel != nil {
		k.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	k.cancel = cancel
	k.done = make(chan struct{})
	done := k.done
	k.mu.Unlock()
	go k.loop(loopCtx, done)
}

func (k *StateKeeper) stop() {
	k.mu.Lock()
	cancel := k.cancel
	done := k.done
	k.cancel = nil
	k.done = nil
	k.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (k *StateKeeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	if err := k.sender.Send(ctx, StateCommand{}); err != nil && ctx.Err() == nil {
		k.logger.Warn().Err(err).Msg("initial state refresh failed")
	}
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := k.sender.Send(ctx, StateCommand{}); err != nil {
				if ctx.Err() != nil {
					return
				}
				k.logger.Warn().Err(err).Msg("state refresh failed")
			}
		}
	}
}
