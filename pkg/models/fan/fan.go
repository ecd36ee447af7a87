// Package fan implements the device.Model contract for Tuya ceiling fans
// exposing power, speed, direction, light and mode datapoints.
package fan

import (
	"fmt"

	"github.com/tuyamqtt/bridge/pkg/device"
	"github.com/tuyamqtt/bridge/pkg/discovery"
	"github.com/tuyamqtt/bridge/pkg/tuya"
)

// Datapoint keys on the wire.
const (
	Power     = "1"
	Speed     = "3"
	Direction = "4"
	Light     = "9"
	Mode      = "102"
)

// Speed levels, named L1 (lowest) through L6 (highest).
var speedWire = map[string]string{
	"L1": "1", "L2": "2", "L3": "3", "L4": "4", "L5": "5", "L6": "6",
}
var speedNames = []string{"L1", "L2", "L3", "L4", "L5", "L6"}

// Direction values.
const (
	Forward = "forward"
	Reverse = "reverse"
)

var directionNames = []string{Forward, Reverse}

// Mode values. The wire value for Temperature carries the device's own
// "temprature" typo.
const (
	Normal      = "normal"
	Sleep       = "sleep"
	Nature      = "nature"
	Temperature = "temprature"
)

var modeWire = map[string]string{
	"normal": Normal, "sleep": Sleep, "nature": Nature, "temperature": Temperature,
}
var modeNames = []string{"normal", "sleep", "nature", "temperature"}

func reverseLookup(m map[string]string, wire string) (string, bool) {
	for name, w := range m {
		if w == wire {
			return name, true
		}
	}
	return "", false
}

// Model is the ceiling fan device.Model.
type Model struct {
	included map[string]struct{} // nil means all components
}

// New builds a ceiling fan Model. included, if non-nil, restricts which
// datapoints are translated and discovered.
func New(included map[string]struct{}) *Model {
	return &Model{included: included}
}

func (m *Model) has(property string) bool {
	if m.included == nil {
		return true
	}
	_, ok := m.included[property]
	return ok
}

func (m *Model) Discovery() discovery.DeviceDiscovery {
	return discovery.DeviceDiscovery{
		Model: "Ceiling Fan",
		Components: []discovery.ComponentDiscovery{
			discovery.SwitchComponentDiscovery{Name: "power", Icon: "mdi:ceiling-fan", PropertyName: "power"},
			discovery.SelectComponentDiscovery{Name: "speed", Icon: "mdi:speedometer", PropertyName: "speed", Options: speedNames},
			discovery.SelectComponentDiscovery{Name: "direction", Icon: "mdi:directions-fork", PropertyName: "direction", Options: directionNames},
			discovery.SwitchComponentDiscovery{Name: "light", Icon: "mdi:lightbulb", PropertyName: "light"},
			discovery.SelectComponentDiscovery{Name: "mode", Icon: "mdi:format-list-bulleted", PropertyName: "mode", Options: modeNames},
		},
	}
}

// Constraints forbids changing speed while the fan is in temperature mode.
func (m *Model) Constraints() device.Constraints {
	return device.NewConstraints(
		device.NewConstraint(Mode, Temperature, map[string][]tuya.Value{Speed: nil}),
	)
}

// ToWire encodes external (semantic) values into wire datapoints.
func (m *Model) ToWire(external tuya.Values) (tuya.Values, error) {
	wire := make(tuya.Values, len(external))
	if v, ok := external["power"]; ok && m.has("power") {
		wire[Power] = v
	}
	if v, ok := external["speed"]; ok && m.has("speed") {
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("fan: speed: expected string, got %T", v)
		}
		w, ok := speedWire[name]
		if !ok {
			return nil, fmt.Errorf("fan: unknown speed %q", name)
		}
		wire[Speed] = w
	}
	if v, ok := external["direction"]; ok && m.has("direction") {
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("fan: direction: expected string, got %T", v)
		}
		if name != Forward && name != Reverse {
			return nil, fmt.Errorf("fan: unknown direction %q", name)
		}
		wire[Direction] = name
	}
	if v, ok := external["light"]; ok && m.has("light") {
		wire[Light] = v
	}
	if v, ok := external["mode"]; ok && m.has("mode") {
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("fan: mode: expected string, got %T", v)
		}
		w, ok := modeWire[name]
		if !ok {
			return nil, fmt.Errorf("fan: unknown mode %q", name)
		}
		wire[Mode] = w
	}
	return wire, nil
}

// FromWire decodes wire datapoints into external (semantic) values.
func (m *Model) FromWire(wire tuya.Values) (tuya.Values, error) {
	external := make(tuya.Values, len(wire))
	if v, ok := wire[Power]; ok && m.has("power") {
		external["power"] = asBool(v)
	}
	if v, ok := wire[Speed]; ok && m.has("speed") {
		s, _ := v.(string)
		name, ok := reverseLookup(speedWire, s)
		if !ok {
			return nil, fmt.Errorf("fan: unknown wire speed %q", s)
		}
		external["speed"] = name
	}
	if v, ok := wire[Direction]; ok && m.has("direction") {
		s, _ := v.(string)
		if s != Forward && s != Reverse {
			return nil, fmt.Errorf("fan: unknown wire direction %q", s)
		}
		external["direction"] = s
	}
	if v, ok := wire[Light]; ok && m.has("light") {
		external["light"] = asBool(v)
	}
	if v, ok := wire[Mode]; ok && m.has("mode") {
		s, _ := v.(string)
		name, ok := reverseLookup(modeWire, s)
		if !ok {
			return nil, fmt.Errorf("fan: unknown wire mode %q", s)
		}
		external["mode"] = name
	}
	return external, nil
}

func asBool(v tuya.Value) bool {
	b, _ := v.(bool)
	return b
}
