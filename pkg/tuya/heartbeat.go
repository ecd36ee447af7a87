package tuya

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Heartbeat keeps a connection alive by sending a HeartbeatCommand on a
// fixed interval for as long as the connection stays up. It starts its own
// loop on ConnectionEstablished and stops it on ConnectionClosed, so it
// never runs a heartbeat against a dead socket.
type Heartbeat struct {
	sender   *Sender
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHeartbeat wires a Heartbeat to bus. sender is used to actually
// transmit each HeartbeatCommand and await its response.
func NewHeartbeat(sender *Sender, interval time.Duration, bus *Bus, logger zerolog.Logger) *Heartbeat {
	h := &Heartbeat{sender: sender, interval: interval, logger: logger}
	Register(bus, func(ctx context.Context, _ ConnectionEstablished) error {
		h.start(ctx)
		return nil
	})
	Register(bus, func(_ context.Context, _ ConnectionClosed) error {
		h.stop()
		return nil
	})
	return h
}

func (h *Heartbeat) start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		// Already running; a second ConnectionEstablished without an
		// intervening ConnectionClosed should not spawn a duplicate loop.
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.loop(loopCtx, h.done)
}

func (h *Heartbeat) stop() {
	h.mu.Lock()
	cancel := h.cancel
	done := h.done
	h.cancel = nil
	h.done = nil
	h.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (h *Heartbeat) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.sender.Send(ctx, HeartbeatCommand{}); err != nil {
				if ctx.Err() != nil {
					return
				}
				h.logger.Warn().Err(err).Msg("heartbeat did not receive a reply in time")
			}
		}
	}
}
