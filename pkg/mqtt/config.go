package mqtt

import (
	"fmt"
	"time"

	"github.com/tuyamqtt/bridge/pkg/discovery"
	"github.com/tuyamqtt/bridge/pkg/tuya"
)

// DriverPrefix namespaces every topic this bridge publishes to and
// subscribes under.
const DriverPrefix = "tuya-mqtt-bridge"

// Config holds the options recognized by the MQTT adapter.
type Config struct {
	DiscoveryPrefix string
	Hostname        string
	Port            int // default 1883
	Username        string
	Password        string
	Timeout         time.Duration // default 5s
	KeepAlive       time.Duration // default 30s
	Backoff         []time.Duration
}

func (c Config) port() int {
	if c.Port == 0 {
		return 1883
	}
	return c.Port
}

// StateTopic is the retained-snapshot publish target for a device.
func StateTopic(deviceID string) string {
	return fmt.Sprintf("%s/get/%s", DriverPrefix, deviceID)
}

// StatusTopic is the retained online/offline availability target for a
// device, or "driver" for the adapter's own availability.
func StatusTopic(deviceID string) string {
	return fmt.Sprintf("%s/status/%s", DriverPrefix, deviceID)
}

// CommandTopic is the subscribed topic an external controller publishes to
// in order to set one property on one device.
func CommandTopic(deviceID, property string) string {
	return fmt.Sprintf("%s/set/%s/%s", DriverPrefix, deviceID, property)
}

// commandFilter is the wildcard subscription covering every device/property.
const commandFilter = DriverPrefix + "/set/#"

// discoveryTopics adapts this package's topic helpers to discovery.Topics.
func discoveryTopics() discovery.Topics {
	return discovery.Topics{
		DriverPrefix: DriverPrefix,
		State:        StateTopic,
		Status:       StatusTopic,
		Command:      CommandTopic,
	}
}

// Command is one parsed inbound "{prefix}/set/{deviceId}/{property}"
// message.
type Command struct {
	DeviceID string
	Values   tuya.Values
}
