package fan

import (
	"testing"

	"github.com/tuyamqtt/bridge/pkg/tuya"
)

func TestToWireFromWireRoundTrip(t *testing.T) {
	m := New(nil)
	external := tuya.Values{
		"power":     true,
		"speed":     "L3",
		"direction": Forward,
		"light":     false,
		"mode":      "nature",
	}
	wire, err := m.ToWire(external)
	if err != nil {
		t.Fatalf("ToWire: %v", err)
	}
	if wire[Speed] != "3" || wire[Mode] != Nature {
		t.Fatalf("unexpected wire: %+v", wire)
	}

	back, err := m.FromWire(wire)
	if err != nil {
		t.Fatalf("FromWire: %v", err)
	}
	for k, v := range external {
		if back[k] != v {
			t.Errorf("round trip %s: got %v, want %v", k, back[k], v)
		}
	}
}

func TestFromWireUnknownSpeed(t *testing.T) {
	m := New(nil)
	if _, err := m.FromWire(tuya.Values{Speed: "9"}); err == nil {
		t.Fatal("expected error for unknown wire speed")
	}
}

func TestIncludedComponentsFiltersTranslation(t *testing.T) {
	m := New(map[string]struct{}{"power": {}})
	wire, err := m.ToWire(tuya.Values{"power": true, "speed": "L1"})
	if err != nil {
		t.Fatalf("ToWire: %v", err)
	}
	if _, ok := wire[Speed]; ok {
		t.Error("speed should have been excluded")
	}
	if wire[Power] != true {
		t.Error("power should have been translated")
	}
}

func TestConstraintsForbidSpeedInTemperatureMode(t *testing.T) {
	m := New(nil)
	c := m.Constraints()
	current := tuya.Values{Mode: Temperature}
	candidates := tuya.Values{Speed: "2"}
	filtered := c.FilterValues(candidates, current)
	if _, ok := filtered[Speed]; ok {
		t.Error("speed change should be forbidden in temperature mode")
	}
}
