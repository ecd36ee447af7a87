// Package mqtt adapts the device core to an MQTT broker: it publishes
// state/availability/discovery and turns "{prefix}/set/#" messages into a
// stream of per-device commands.
package mqtt

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/tuyamqtt/bridge/pkg/discovery"
	"github.com/tuyamqtt/bridge/pkg/tuya"
)

// Client is a resilient MQTT connection. Like tuya.Transport, it maintains
// at most one connection attempt at a time and reconnects with Backoff;
// unlike Transport, "liveness" here is a successful CONNACK; MQTT itself
// keeps the session alive between pings.
type Client struct {
	cfg     Config
	backoff tuya.Backoff
	logger  zerolog.Logger

	mu        sync.Mutex
	client    *paho.Client
	connected chan struct{}
	closing   bool

	commands chan Command

	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient builds a Client. It does not connect until Start is called.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	return &Client{
		cfg:       cfg,
		backoff:   tuya.NewSequenceBackoff(cfg.Backoff...),
		logger:    logger,
		connected: make(chan struct{}),
		commands:  make(chan Command, 64),
	}
}

// Start launches the connect/reconnect loop in the background.
func (c *Client) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx)
}

// Close disconnects cleanly, publishing a final offline status, and stops
// reconnecting.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closing = true
	client := c.client
	c.mu.Unlock()

	if client != nil {
		_, _ = client.Publish(ctx, &paho.Publish{
			Topic:   StatusTopic("driver"),
			Payload: []byte("offline"),
			Retain:  true,
		})
		client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.done != nil {
		<-c.done
	}
	return nil
}

// ReceiveCommands returns the stream of inbound per-device commands parsed
// from "{prefix}/set/{deviceId}/{property}" messages.
func (c *Client) ReceiveCommands() <-chan Command {
	return c.commands
}

// PublishState publishes the device's current values, stamped with a
// unix-millisecond "time" field.
func (c *Client) PublishState(ctx context.Context, deviceID string, values tuya.Values) error {
	payload := make(map[string]any, len(values)+1)
	for k, v := range values {
		payload[k] = v
	}
	payload["time"] = time.Now().UnixMilli()
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.publish(ctx, StateTopic(deviceID), body, false)
}

// PublishAvailability publishes the device's retained online/offline
// status.
func (c *Client) PublishAvailability(ctx context.Context, deviceID string, online bool) error {
	status := "offline"
	if online {
		status = "online"
	}
	return c.publish(ctx, StatusTopic(deviceID), []byte(status), true)
}

// PublishDiscovery publishes one retained discovery config message per
// component of device.
func (c *Client) PublishDiscovery(ctx context.Context, device discovery.DeviceDiscovery, deviceID, deviceName string) error {
	messages, err := discovery.BuildMessages(c.cfg.DiscoveryPrefix, discoveryTopics(), device, deviceID, deviceName)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		body, err := json.Marshal(msg.Payload)
		if err != nil {
			return err
		}
		if err := c.publish(ctx, msg.Topic, body, true); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	for {
		c.mu.Lock()
		closing := c.closing
		client := c.client
		ch := c.connected
		c.mu.Unlock()

		if closing {
			return tuya.ErrTransportClosed
		}
		if client != nil {
			_, err := client.Publish(ctx, &paho.Publish{Topic: topic, Payload: payload, Retain: retain})
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	for {
		if ctx.Err() != nil {
			return
		}
		client, err := c.connectOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn().Err(err).Msg("could not connect to mqtt broker, retrying")
			if c.backoff.Wait(ctx) != nil {
				return
			}
			continue
		}
		c.backoff.Reset()

		c.mu.Lock()
		c.client = client
		ch := c.connected
		c.connected = make(chan struct{})
		close(ch)
		c.mu.Unlock()

		c.logger.Info().Msg("connected to mqtt broker")
		<-client.Done()

		c.mu.Lock()
		c.client = nil
		closing := c.closing
		c.mu.Unlock()
		if closing {
			return
		}
		c.logger.Warn().Msg("lost connection to mqtt broker, reconnecting")
	}
}

func (c *Client) connectOnce(ctx context.Context) (*paho.Client, error) {
	dialer := net.Dialer{Timeout: c.cfg.Timeout}
	addr := net.JoinHostPort(c.cfg.Hostname, strconv.Itoa(c.cfg.port()))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	router := paho.NewStandardRouter()
	router.RegisterHandler(commandFilter, c.handleMessage)

	client := paho.NewClient(paho.ClientConfig{
		Conn:   conn,
		Router: router,
		OnClientError: func(err error) {
			c.logger.Warn().Err(err).Msg("mqtt client error")
		},
	})

	connectCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	connectPacket := &paho.Connect{
		ClientID:   "tuya-mqtt-bridge-" + xid.New().String(),
		CleanStart: true,
		KeepAlive:  uint16(c.cfg.KeepAlive / time.Second),
		WillMessage: &paho.WillMessage{
			Topic:   StatusTopic("driver"),
			Payload: []byte("offline"),
			Retain:  true,
		},
	}
	if c.cfg.Username != "" {
		connectPacket.UsernameFlag = true
		connectPacket.Username = c.cfg.Username
	}
	if c.cfg.Password != "" {
		connectPacket.PasswordFlag = true
		connectPacket.Password = []byte(c.cfg.Password)
	}

	if _, err := client.Connect(connectCtx, connectPacket); err != nil {
		conn.Close()
		return nil, err
	}

	if _, err := client.Publish(connectCtx, &paho.Publish{
		Topic:   StatusTopic("driver"),
		Payload: []byte("online"),
		Retain:  true,
	}); err != nil {
		return nil, err
	}
	if _, err := client.Subscribe(connectCtx, &paho.Subscribe{
		Subscriptions: map[string]paho.SubscribeOptions{
			commandFilter: {QoS: 0},
		},
	}); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) handleMessage(pb *paho.Publish) {
	parts := strings.Split(pb.Topic, "/")
	if len(parts) != 4 || parts[0] != DriverPrefix || parts[1] != "set" {
		return
	}
	deviceID, property := parts[2], parts[3]
	value := decodePayload(pb.Payload)

	select {
	case c.commands <- Command{DeviceID: deviceID, Values: tuya.Values{property: value}}:
	default:
		c.logger.Warn().Str("device", deviceID).Msg("command channel full, dropping message")
	}
}

// decodePayload follows the broker-side convention: an empty payload means
// absence (nil), any valid JSON decodes to its native Go value (numbers as
// float64), and a payload that is not valid JSON is kept as the raw string.
func decodePayload(payload []byte) tuya.Value {
	if len(payload) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(payload, &v); err == nil {
		return v
	}
	return string(payload)
}
