// Package bridge owns the whole running process: one DeviceSession per
// configured device, the MQTT adapter shared between them, and the
// metrics/logging wiring tying it together.
package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog"

	"github.com/tuyamqtt/bridge/pkg/device"
	"github.com/tuyamqtt/bridge/pkg/metricsx"
	"github.com/tuyamqtt/bridge/pkg/models/ac"
	"github.com/tuyamqtt/bridge/pkg/models/fan"
	"github.com/tuyamqtt/bridge/pkg/mqtt"
)

// Bridge owns every device session plus the shared MQTT adapter. On Run it
// connects the adapter, starts every session, and fans inbound MQTT
// commands out to the session matching their device ID, until ctx is
// cancelled.
type Bridge struct {
	cfg    Config
	logger zerolog.Logger

	client   *mqtt.Client
	sessions map[string]*device.Session

	metrics *metrics.Set

	commandsReceived *metrics.Counter
	commandsDropped  *metrics.Counter
}

// New builds a Bridge from cfg. It resolves each device's named model
// ("fan" or "ac") and constructs its Session, but does not connect
// anything until Run is called.
func New(cfg Config, logger zerolog.Logger) (*Bridge, error) {
	set := metrics.NewSet()
	b := &Bridge{
		cfg:              cfg,
		logger:           logger,
		client:           mqtt.NewClient(cfg.MQTT, logger),
		sessions:         make(map[string]*device.Session, len(cfg.Devices)),
		metrics:          set,
		commandsReceived: set.NewCounter("tuya_bridge_commands_received_total"),
		commandsDropped:  set.NewCounter("tuya_bridge_commands_dropped_total"),
	}

	for _, dc := range cfg.Devices {
		model, err := resolveModel(dc.Model, dc.Device.IncludedComponents)
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", dc.ID, err)
		}
		session, err := device.NewSession(dc.ID, dc.Name, dc.Device, model, b.client, logger.With().Str("device", dc.ID).Logger())
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", dc.ID, err)
		}
		b.sessions[dc.ID] = session
	}

	return b, nil
}

func resolveModel(name string, included map[string]struct{}) (device.Model, error) {
	switch name {
	case "fan":
		return fan.New(included), nil
	case "ac":
		return ac.New(included), nil
	default:
		return nil, fmt.Errorf("unknown device model %q", name)
	}
}

// Run starts the MQTT adapter and every device session, serves Prometheus
// metrics on cfg.MetricsAddr, and blocks until ctx is cancelled, at which
// point everything is shut down in reverse order.
func (b *Bridge) Run(ctx context.Context) error {
	b.client.Start(ctx)

	for id, session := range b.sessions {
		if err := session.Start(ctx); err != nil {
			return fmt.Errorf("start device %s: %w", id, err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.dispatchCommands(ctx)
	}()

	srv := &http.Server{Addr: b.cfg.MetricsAddr, Handler: b.metricsHandler()}
	errch := make(chan error, 1)
	go func() { errch <- srv.ListenAndServe() }()

	b.logger.Info().Str("addr", b.cfg.MetricsAddr).Msg("serving metrics")

	select {
	case <-ctx.Done():
	case err := <-errch:
		if err != nil && err != http.ErrServerClosed {
			b.logger.Err(err).Msg("metrics server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	wg.Wait()

	for id, session := range b.sessions {
		if err := session.Close(); err != nil {
			b.logger.Warn().Err(err).Str("device", id).Msg("error closing device session")
		}
	}
	return b.client.Close(shutdownCtx)
}

func (b *Bridge) dispatchCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-b.client.ReceiveCommands():
			if !ok {
				return
			}
			b.commandsReceived.Inc()
			session, known := b.sessions[cmd.DeviceID]
			if !known {
				b.commandsDropped.Inc()
				b.logger.Warn().Str("device", cmd.DeviceID).Msg("command for unknown device")
				continue
			}
			if err := session.Update(ctx, cmd.Values); err != nil {
				b.metrics.GetOrCreateCounter(metricsx.DeviceMetricName("tuya_bridge_command_errors_total", cmd.DeviceID)).Inc()
				b.logger.Warn().Err(err).Str("device", cmd.DeviceID).Msg("could not apply command")
			}
		}
	}
}

func (b *Bridge) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		ws := []func(io.Writer){
			metrics.WriteProcessMetrics,
			b.metrics.WritePrometheus,
		}
		for _, wf := range ws {
			wf(w)
		}
	})
	return mux
}
