package discovery

import "fmt"

// Message is a single discovery config entry ready to publish retained to
// its Topic.
type Message struct {
	Topic   string
	Payload map[string]any
}

// Topics is the set of topic-building functions the discovery payloads
// reference for command/state/availability, as owned by the MQTT adapter
// actually publishing them. This keeps topic-naming in one place (the
// adapter) without an import cycle back into it.
type Topics struct {
	DriverPrefix string
	State        func(deviceID string) string
	Status       func(deviceID string) string
	Command      func(deviceID, property string) string
}

// BuildMessages returns one retained discovery Message per component in
// device, addressed under discoveryPrefix.
func BuildMessages(discoveryPrefix string, topics Topics, device DeviceDiscovery, deviceID, deviceName string) ([]Message, error) {
	messages := make([]Message, 0, len(device.Components))
	for _, component := range device.Components {
		msg, err := buildMessage(discoveryPrefix, topics, device, deviceID, deviceName, component)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func buildMessage(discoveryPrefix string, topics Topics, device DeviceDiscovery, deviceID, deviceName string, component ComponentDiscovery) (Message, error) {
	var (
		componentType string
		specific      map[string]any
	)
	switch c := component.(type) {
	case SwitchComponentDiscovery:
		componentType = "switch"
		specific = switchPayload(deviceID, topics, c)
	case SensorComponentDiscovery:
		componentType = "sensor"
		specific = sensorPayload(deviceID, topics, c)
	case SelectComponentDiscovery:
		componentType = "select"
		specific = selectPayload(deviceID, topics, c)
	case TemperatureSetPointComponentDiscovery:
		componentType = "climate"
		specific = temperatureSetPointPayload(deviceID, topics, c)
	default:
		return Message{}, fmt.Errorf("discovery: unsupported component type %T", component)
	}

	common := commonPayload(topics, device, deviceID, deviceName, component)
	for k, v := range common {
		specific[k] = v
	}

	return Message{
		Topic:   fmt.Sprintf("%s/%s/%s/%s/config", discoveryPrefix, componentType, deviceID, component.Property()),
		Payload: specific,
	}, nil
}

func valueTemplate(property string) string {
	return fmt.Sprintf("{{ value_json.%s }}", property)
}

func commonPayload(topics Topics, device DeviceDiscovery, deviceID, deviceName string, component ComponentDiscovery) map[string]any {
	c := component.common()
	return map[string]any{
		"name":      c.Name,
		"icon":      c.Icon,
		"unique_id": fmt.Sprintf("%s-%s-%s", topics.DriverPrefix, deviceID, c.PropName),
		"device": map[string]any{
			"identifiers":  []string{fmt.Sprintf("%s-%s", topics.DriverPrefix, deviceID)},
			"manufacturer": "Tuya",
			"model":        device.Model,
			"name":         deviceName,
		},
		"availability": []map[string]string{
			{"topic": topics.Status(deviceID)},
			{"topic": topics.Status("driver")},
		},
		"availability_mode": "all",
	}
}

func switchPayload(deviceID string, topics Topics, c SwitchComponentDiscovery) map[string]any {
	return map[string]any{
		"payload_on":     "true",
		"payload_off":    "false",
		"command_topic":  topics.Command(deviceID, c.PropertyName),
		"state_topic":    topics.State(deviceID),
		"value_template": valueTemplate(c.PropertyName),
	}
}

func sensorPayload(deviceID string, topics Topics, c SensorComponentDiscovery) map[string]any {
	unit := c.Unit
	if unit == "" {
		unit = "°C"
	}
	return map[string]any{
		"state_topic":         topics.State(deviceID),
		"value_template":      valueTemplate(c.PropertyName),
		"unit_of_measurement": unit,
		"state_class":         "measurement",
		"device_class":        c.Class,
	}
}

func selectPayload(deviceID string, topics Topics, c SelectComponentDiscovery) map[string]any {
	return map[string]any{
		"command_topic":  topics.Command(deviceID, c.PropertyName),
		"state_topic":    topics.State(deviceID),
		"value_template": valueTemplate(c.PropertyName),
		"options":        c.Options,
	}
}

func temperatureSetPointPayload(deviceID string, topics Topics, c TemperatureSetPointComponentDiscovery) map[string]any {
	unit := c.Unit
	if unit == "" {
		unit = "C"
	}
	return map[string]any{
		"temperature_command_topic": topics.Command(deviceID, c.PropertyName),
		"temperature_state_topic":   topics.State(deviceID),
		"temperature_state_template": valueTemplate(c.PropertyName),
		"min_temp":                  c.Min,
		"max_temp":                  c.Max,
		"temp_step":                 c.Step,
		"temperature_unit":          unit,
	}
}
