package device

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tuyamqtt/bridge/pkg/tuya"
)

// Sender is the collaborator UpdateBuffer dispatches confirmed updates
// through; *tuya.Protocol satisfies it.
type Sender interface {
	Send(ctx context.Context, cmd tuya.Command) error
}

type waitResult struct {
	done chan struct{}
	err  error
}

// UpdateBuffer debounces and filters updates to a device before sending
// them, and follows up with a bounded confirm/retry loop once sent. Only
// one send is ever in flight; updates arriving while a send is pending are
// merged into the next cycle.
type UpdateBuffer struct {
	name         string
	delay        time.Duration
	sender       Sender
	state        *StateHandler
	constraints  Constraints
	retries      int
	retryBackoff tuya.Backoff
	logger       zerolog.Logger

	sendMu sync.Mutex // single-flight for Sender.Send + confirm/retry

	mu     sync.Mutex
	buffer tuya.Values
	timer  *time.Timer
	waiter *waitResult

	closed      bool
	baseCtx     context.Context
	cancelRetry context.CancelFunc
	retryDone   chan struct{}
}

// NewUpdateBuffer builds an UpdateBuffer. constraints may be the zero value
// (no constraints configured). retries of 0 disables confirmation/retry.
func NewUpdateBuffer(
	name string,
	delay time.Duration,
	sender Sender,
	state *StateHandler,
	constraints Constraints,
	retries int,
	retryBackoff tuya.Backoff,
	logger zerolog.Logger,
) *UpdateBuffer {
	return &UpdateBuffer{
		name:         name,
		delay:        delay,
		sender:       sender,
		state:        state,
		constraints:  constraints,
		retries:      retries,
		retryBackoff: retryBackoff,
		logger:       logger,
		baseCtx:      context.Background(),
	}
}

// Update merges values into the pending buffer, filters them against the
// current state and constraints, and (re)schedules a send. It blocks until
// that send cycle completes: a successful send, a cancellation because the
// buffer became empty, or a send failure.
func (b *UpdateBuffer) Update(ctx context.Context, values tuya.Values) error {
	b.mu.Lock()
	merged := b.buffer.Merge(values)
	b.mu.Unlock()

	filtered, err := b.filter(ctx, merged)
	if err != nil {
		return err
	}

	if b.delay <= 0 {
		if len(filtered) == 0 {
			return nil
		}
		return b.send(ctx, filtered)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return tuya.ErrCancelled
	}
	b.buffer = filtered
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}

	if len(filtered) == 0 {
		waiter := b.waiter
		b.waiter = nil
		b.mu.Unlock()
		if waiter != nil {
			waiter.err = nil
			close(waiter.done)
		}
		return nil
	}

	if b.waiter == nil {
		b.waiter = &waitResult{done: make(chan struct{})}
	}
	waiter := b.waiter
	b.timer = time.AfterFunc(b.delay, b.fire)
	b.mu.Unlock()

	select {
	case <-waiter.done:
		return waiter.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// filter drops keys already at the desired value in the current state, then
// applies Constraints.
func (b *UpdateBuffer) filter(ctx context.Context, values tuya.Values) (tuya.Values, error) {
	state, err := b.state.Get(ctx)
	if err != nil {
		return nil, err
	}
	withoutNoOps := make(tuya.Values, len(values))
	for k, v := range values {
		if state[k] != v {
			withoutNoOps[k] = v
		}
	}
	return b.constraints.FilterValues(withoutNoOps, state), nil
}

func (b *UpdateBuffer) fire() {
	b.mu.Lock()
	buf := b.buffer
	b.buffer = nil
	b.timer = nil
	waiter := b.waiter
	b.waiter = nil
	b.mu.Unlock()

	if len(buf) == 0 {
		if waiter != nil {
			close(waiter.done)
		}
		return
	}

	err := b.send(b.baseCtx, buf)
	if waiter != nil {
		waiter.err = err
		close(waiter.done)
	}
}

// send transmits values and, if it succeeds and retries are configured,
// starts the confirm/retry loop in the background.
func (b *UpdateBuffer) send(ctx context.Context, values tuya.Values) error {
	b.sendMu.Lock()
	err := b.sender.Send(ctx, tuya.UpdateCommand{Values: values})
	b.sendMu.Unlock()
	if err != nil {
		return err
	}
	if b.retries > 0 {
		b.startRetryLoop(values)
	}
	return nil
}

func (b *UpdateBuffer) startRetryLoop(values tuya.Values) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(b.baseCtx)
	b.cancelRetry = cancel
	done := make(chan struct{})
	b.retryDone = done
	b.mu.Unlock()

	go func() {
		defer close(done)
		b.retryLoop(ctx, values)
	}()
}

func (b *UpdateBuffer) retryLoop(ctx context.Context, values tuya.Values) {
	remaining := values
	for attempt := 0; attempt < b.retries; attempt++ {
		if err := b.retryBackoff.Wait(ctx); err != nil {
			return
		}
		state, err := b.state.Get(ctx)
		if err != nil {
			return
		}
		next := make(tuya.Values, len(remaining))
		for k, v := range remaining {
			if state[k] != v {
				next[k] = v
			}
		}
		remaining = next
		if len(remaining) == 0 {
			b.retryBackoff.Reset()
			return
		}

		b.sendMu.Lock()
		sendErr := b.sender.Send(ctx, tuya.UpdateCommand{Values: remaining})
		b.sendMu.Unlock()
		if sendErr != nil {
			b.logger.Warn().Err(sendErr).Str("device", b.name).Msg("retry send failed")
		}
	}
	b.logger.Error().Str("device", b.name).Interface("values", remaining).
		Msg("update not confirmed by device after exhausting retries")
	b.retryBackoff.Reset()
}

// Close cancels any pending debounce and retry loop, and completes any
// outstanding waiter with Cancelled.
func (b *UpdateBuffer) Close() {
	b.mu.Lock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	waiter := b.waiter
	b.waiter = nil
	cancel := b.cancelRetry
	done := b.retryDone
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if waiter != nil {
		waiter.err = tuya.ErrCancelled
		close(waiter.done)
	}
}
