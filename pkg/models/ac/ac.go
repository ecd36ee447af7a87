// Package ac implements the device.Model contract for Airton-style Tuya
// air conditioners.
package ac

import (
	"fmt"
	"math"
	"time"

	"github.com/tuyamqtt/bridge/pkg/device"
	"github.com/tuyamqtt/bridge/pkg/device/valueprocessor"
	"github.com/tuyamqtt/bridge/pkg/discovery"
	"github.com/tuyamqtt/bridge/pkg/tuya"
)

// Datapoint keys on the wire.
const (
	Power          = "1"
	SetPoint       = "2"
	Temperature    = "3"
	Mode           = "4"
	Fan            = "5"
	Eco            = "8"
	Light          = "13"
	Swing          = "15"
	SwingDirection = "107"
	Sleep          = "109"
	Health         = "110"
)

var modeWire = map[string]string{
	"auto": "auto", "cool": "cold", "heat": "heat", "dry": "wet", "vent": "fan",
}
var modeNames = []string{"auto", "cool", "heat", "dry", "vent"}

var fanWire = map[string]string{
	"auto": "auto", "quiet": "mute", "L1": "low", "L2": "low_mid",
	"L3": "mid", "L4": "mid_high", "L5": "high", "turbo": "turbo",
}
var fanNames = []string{"auto", "quiet", "L1", "L2", "L3", "L4", "L5", "turbo"}

func reverseLookup(m map[string]string, wire string) (string, bool) {
	for name, w := range m {
		if w == wire {
			return name, true
		}
	}
	return "", false
}

// Model is the Airton AC device.Model. Temperature readings can oscillate
// in 0.5°C steps, so FromWire damps them through a moving average,
// debounce and rounding chain before exposing them externally.
type Model struct {
	included   map[string]struct{} // nil means all components
	tempFilter valueprocessor.Processor
}

// New builds an Airton AC Model.
func New(included map[string]struct{}) *Model {
	return &Model{
		included: included,
		tempFilter: valueprocessor.Compose(
			valueprocessor.MovingAverage(4),
			valueprocessor.Debounce(30*time.Second),
			valueprocessor.Round(1),
		),
	}
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
		Model: "Airton AC",
		Components: []discovery.ComponentDiscovery{
			discovery.SwitchComponentDiscovery{Name: "power", Icon: "mdi:air-conditioner", PropertyName: "power"},
			discovery.TemperatureSetPointComponentDiscovery{
				Name: "set_point", Icon: "mdi:thermometer-lines", PropertyName: "set_point",
				Min: 16, Max: 31, Step: 1,
			},
			discovery.SensorComponentDiscovery{
				Name: "temperature", Icon: "mdi:thermometer", PropertyName: "temperature",
				Unit: "°C", Class: "temperature",
			},
			discovery.SelectComponentDiscovery{Name: "mode", Icon: "mdi:format-list-bulleted", PropertyName: "mode", Options: modeNames},
			discovery.SelectComponentDiscovery{Name: "fan", Icon: "mdi:fan", PropertyName: "fan", Options: fanNames},
			discovery.SwitchComponentDiscovery{Name: "eco", Icon: "mdi:sprout", PropertyName: "eco"},
			discovery.SwitchComponentDiscovery{Name: "light", Icon: "mdi:lightbulb", PropertyName: "light"},
			discovery.SwitchComponentDiscovery{Name: "swing", Icon: "mdi:arrow-oscillating", PropertyName: "swing"},
			discovery.SwitchComponentDiscovery{Name: "sleep", Icon: "mdi:power-sleep", PropertyName: "sleep"},
			discovery.SwitchComponentDiscovery{Name: "health", Icon: "mdi:air-purifier", PropertyName: "health"},
		},
	}
}

func (m *Model) Constraints() device.Constraints {
	return device.NewConstraints(
		device.NewConstraint(Eco, true, map[string][]tuya.Value{
			SetPoint: nil,
			Fan:      {fanWire["turbo"]},
			Sleep:    nil,
		}),
		device.NewConstraint(Mode, modeWire["auto"], map[string][]tuya.Value{
			SetPoint: nil,
			Fan:      {fanWire["turbo"]},
			Eco:      nil,
			Sleep:    nil,
		}),
		device.NewConstraint(Mode, modeWire["vent"], map[string][]tuya.Value{
			SetPoint: nil,
			Eco:      nil,
			Sleep:    nil,
		}),
		device.NewConstraint(Mode, modeWire["dry"], map[string][]tuya.Value{
			Fan: nil,
			Eco: nil,
		}),
	)
}

func (m *Model) ToWire(external tuya.Values) (tuya.Values, error) {
	wire := make(tuya.Values, len(external))
	if v, ok := external["power"]; ok && m.has("power") {
		wire[Power] = v
	}
	if v, ok := external["set_point"]; ok && m.has("set_point") {
		f, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("ac: set_point: expected number, got %T", v)
		}
		wire[SetPoint] = int(clamp(math.Round(f), 16, 31) * 10)
	}
	if v, ok := external["mode"]; ok && m.has("mode") {
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("ac: mode: expected string, got %T", v)
		}
		w, ok := modeWire[name]
		if !ok {
			return nil, fmt.Errorf("ac: unknown mode %q", name)
		}
		wire[Mode] = w
	}
	if v, ok := external["fan"]; ok && m.has("fan") {
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("ac: fan: expected string, got %T", v)
		}
		w, ok := fanWire[name]
		if !ok {
			return nil, fmt.Errorf("ac: unknown fan speed %q", name)
		}
		wire[Fan] = w
	}
	if v, ok := external["eco"]; ok && m.has("eco") {
		wire[Eco] = v
	}
	if v, ok := external["light"]; ok && m.has("light") {
		wire[Light] = v
	}
	if v, ok := external["sleep"]; ok && m.has("sleep") {
		wire[Sleep] = v
	}
	if v, ok := external["health"]; ok && m.has("health") {
		wire[Health] = v
	}
	if v, ok := external["swing"]; ok && m.has("swing") {
		status, _ := v.(bool)
		if status {
			wire[Swing] = "un_down"
			wire[SwingDirection] = Swing
		} else {
			wire[Swing] = "off"
			wire[SwingDirection] = "off"
		}
	}
	return wire, nil
}

func (m *Model) FromWire(wire tuya.Values) (tuya.Values, error) {
	external := make(tuya.Values, len(wire))
	if v, ok := wire[Power]; ok && m.has("power") {
		external["power"] = asBool(v)
	}
	if v, ok := wire[SetPoint]; ok && m.has("set_point") {
		f, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("ac: wire set_point: expected number, got %T", v)
		}
		external["set_point"] = f / 10
	}
	if v, ok := wire[Temperature]; ok && m.has("temperature") {
		f, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("ac: wire temperature: expected number, got %T", v)
		}
		external["temperature"] = m.tempFilter(f / 10)
	}
	if v, ok := wire[Mode]; ok && m.has("mode") {
		s, _ := v.(string)
		name, ok := reverseLookup(modeWire, s)
		if !ok {
			return nil, fmt.Errorf("ac: unknown wire mode %q", s)
		}
		external["mode"] = name
	}
	if v, ok := wire[Fan]; ok && m.has("fan") {
		s, _ := v.(string)
		name, ok := reverseLookup(fanWire, s)
		if !ok {
			return nil, fmt.Errorf("ac: unknown wire fan speed %q", s)
		}
		external["fan"] = name
	}
	if v, ok := wire[Eco]; ok && m.has("eco") {
		external["eco"] = asBool(v)
	}
	if v, ok := wire[Light]; ok && m.has("light") {
		external["light"] = asBool(v)
	}
	if v, ok := wire[Sleep]; ok && m.has("sleep") {
		external["sleep"] = asBool(v)
	}
	if v, ok := wire[Health]; ok && m.has("health") {
		external["health"] = asBool(v)
	}
	if m.has("swing") {
		swing, hasSwing := wire[Swing]
		direction, hasDirection := wire[SwingDirection]
		if hasSwing && hasDirection {
			s, _ := swing.(string)
			d, _ := direction.(string)
			external["swing"] = s == "un_down" && d == Swing
		}
	}
	return external, nil
}

func asBool(v tuya.Value) bool {
	b, _ := v.(bool)
	return b
}

func asFloat(v tuya.Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func clamp(f, min, max float64) float64 {
	if f < min {
		return min
	}
	if f > max {
		return max
	}
	return f
}
