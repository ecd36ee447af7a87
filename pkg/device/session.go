package device

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tuyamqtt/bridge/pkg/discovery"
	"github.com/tuyamqtt/bridge/pkg/tuya"
)

// Publisher is the collaborator a DeviceSession announces availability,
// state, and discovery through.
type Publisher interface {
	PublishAvailability(ctx context.Context, deviceID string, online bool) error
	PublishState(ctx context.Context, deviceID string, values tuya.Values) error
	PublishDiscovery(ctx context.Context, device discovery.DeviceDiscovery, deviceID, deviceName string) error
}

// Session orchestrates one device's full stack: the protocol core,
// StateHandler, UpdateBuffer and model codec, wired to external
// collaborators for availability/state/discovery publishing and inbound
// commands. Errors in the publisher paths are logged and do not tear the
// session down.
type Session struct {
	deviceID   string
	deviceName string
	cfg        Config
	model      Model
	publisher  Publisher
	logger     zerolog.Logger

	protocol *tuya.Protocol
	state    *StateHandler
	buffer   *UpdateBuffer
}

// NewSession builds a Session for one device. It does not connect or
// publish discovery until Start is called.
func NewSession(deviceID, deviceName string, cfg Config, model Model, publisher Publisher, logger zerolog.Logger) (*Session, error) {
	protocol, err := tuya.NewProtocol(deviceID, cfg.Tuya, logger)
	if err != nil {
		return nil, err
	}
	state := NewStateHandler(protocol.Bus)
	retryBackoff := tuya.NewSequenceBackoff(cfg.RetryBackoff...)
	buffer := NewUpdateBuffer(deviceID, cfg.DebounceUpdates, protocol, state, model.Constraints(), cfg.Retries, retryBackoff, logger)

	s := &Session{
		deviceID:   deviceID,
		deviceName: deviceName,
		cfg:        cfg,
		model:      model,
		publisher:  publisher,
		logger:     logger,
		protocol:   protocol,
		state:      state,
		buffer:     buffer,
	}

	tuya.Register(protocol.Bus, func(ctx context.Context, _ tuya.ConnectionEstablished) error {
		return s.publisher.PublishAvailability(ctx, s.deviceID, true)
	})
	tuya.Register(protocol.Bus, func(ctx context.Context, _ tuya.ConnectionClosed) error {
		return s.publisher.PublishAvailability(ctx, s.deviceID, false)
	})
	tuya.Register(protocol.Bus, func(ctx context.Context, e tuya.StateUpdated) error {
		external, err := model.FromWire(e.Values)
		if err != nil {
			s.logger.Warn().Err(err).Str("device", s.deviceID).Msg("could not decode device state")
			return nil
		}
		return s.publisher.PublishState(ctx, s.deviceID, external)
	})

	return s, nil
}

// Start connects the device and, if configured, publishes its discovery
// messages.
func (s *Session) Start(ctx context.Context) error {
	s.protocol.Start(ctx)
	if s.cfg.EnableDiscovery {
		device := s.model.Discovery().FilterComponents(s.cfg.IncludedComponents)
		if err := s.publisher.PublishDiscovery(ctx, device, s.deviceID, s.deviceName); err != nil {
			s.logger.Warn().Err(err).Str("device", s.deviceID).Msg("could not publish discovery messages")
		}
	}
	return nil
}

// Close tears down the update buffer and the protocol connection.
func (s *Session) Close() error {
	s.buffer.Close()
	return s.protocol.Close()
}

// Update encodes external values via the model codec and dispatches them
// to the UpdateBuffer.
func (s *Session) Update(ctx context.Context, external tuya.Values) error {
	wire, err := s.model.ToWire(external)
	if err != nil {
		return err
	}
	return s.buffer.Update(ctx, wire)
}
