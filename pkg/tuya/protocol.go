package tuya

import (
	"context"

	"github.com/rs/zerolog"
)

// Protocol is the assembled per-device core stack: Codec, Transport,
// EventBus, Sender, Heartbeat and StateKeeper wired together per Config. It
// is the unit pkg/device.Session composes alongside UpdateBuffer and
// a device model to form a complete session.
type Protocol struct {
	Bus   *Bus
	Codec *Codec

	transport *Transport
	sender    *Sender
	heartbeat *Heartbeat
	state     *StateKeeper
}

// NewProtocol builds a Protocol for name (used only for logging) per cfg.
// It does not connect until Start is called.
func NewProtocol(name string, cfg Config, logger zerolog.Logger) (*Protocol, error) {
	codec, err := NewCodec(cfg.Key)
	if err != nil {
		return nil, err
	}
	bus := NewBus(name, logger)
	backoff := NewSequenceBackoff(cfg.ConnectionBackoff...)
	transport := NewTransport(name, cfg.Address, cfg.port(), backoff, cfg.Timeout, bus, logger)
	sender := NewSender(codec, bus, cfg.Timeout)
	heartbeat := NewHeartbeat(sender, cfg.HeartbeatInterval, bus, logger)
	state := NewStateKeeper(sender, cfg.StateRefreshInterval, bus, logger)

	Register(bus, func(ctx context.Context, e DataReceived) error {
		seq, resp, requestKind, _, err := codec.Unpack(e.Frame)
		if err != nil {
			logger.Warn().Err(err).Str("device", name).Msg("could not decode frame")
			return nil
		}
		bus.Emit(ctx, ResponseReceived{SequenceNumber: seq, Response: resp, RequestKind: requestKind})
		return nil
	})

	return &Protocol{
		Bus:       bus,
		Codec:     codec,
		transport: transport,
		sender:    sender,
		heartbeat: heartbeat,
		state:     state,
	}, nil
}

// Start launches the connection loop in the background.
func (p *Protocol) Start(ctx context.Context) {
	p.transport.Start(ctx)
}

// Close tears down the connection and stops all periodic tasks.
func (p *Protocol) Close() error {
	return p.transport.Close()
}

// Send transmits cmd and awaits its correlated response.
func (p *Protocol) Send(ctx context.Context, cmd Command) error {
	return p.sender.Send(ctx, cmd)
}

// State returns the latest known snapshot and whether a baseline has been
// established yet.
func (p *Protocol) State() (Values, bool) {
	return p.state.Get()
}
