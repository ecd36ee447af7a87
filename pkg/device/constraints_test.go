package device

import (
	"reflect"
	"testing"

	"github.com/tuyamqtt/bridge/pkg/tuya"
)

func TestFilterValuesNoConstraints(t *testing.T) {
	c := NewConstraints()
	got := c.FilterValues(tuya.Values{"1": 2}, tuya.Values{})
	if !reflect.DeepEqual(got, tuya.Values{"1": 2}) {
		t.Errorf("got %v, want unchanged", got)
	}
}

func TestFilterValuesFullyBlocked(t *testing.T) {
	c := NewConstraints(NewConstraint("power", false, map[string][]tuya.Value{
		"swing": nil,
	}))
	got := c.FilterValues(tuya.Values{"swing": true}, tuya.Values{"power": false})
	if _, ok := got["swing"]; ok {
		t.Errorf("swing should be fully blocked when power is false, got %v", got)
	}
}

func TestFilterValuesSpecificValueBlocked(t *testing.T) {
	c := NewConstraints(NewConstraint("mode", "cool", map[string][]tuya.Value{
		"fan_speed": {"auto"},
	}))
	current := tuya.Values{"mode": "cool"}

	blocked := c.FilterValues(tuya.Values{"fan_speed": "auto"}, current)
	if _, ok := blocked["fan_speed"]; ok {
		t.Errorf("fan_speed=auto should be blocked while mode=cool, got %v", blocked)
	}

	allowed := c.FilterValues(tuya.Values{"fan_speed": "high"}, current)
	if allowed["fan_speed"] != "high" {
		t.Errorf("fan_speed=high should pass through, got %v", allowed)
	}
}

func TestFilterValuesConstraintInactive(t *testing.T) {
	c := NewConstraints(NewConstraint("mode", "cool", map[string][]tuya.Value{
		"fan_speed": {"auto"},
	}))
	got := c.FilterValues(tuya.Values{"fan_speed": "auto"}, tuya.Values{"mode": "heat"})
	if got["fan_speed"] != "auto" {
		t.Errorf("constraint inactive (mode=heat) should not block fan_speed, got %v", got)
	}
}

func TestFilterValuesEvaluatedAgainstMergedValues(t *testing.T) {
	// mode is being set in the same update that sets fan_speed.
	c := NewConstraints(NewConstraint("mode", "cool", map[string][]tuya.Value{
		"fan_speed": {"auto"},
	}))
	got := c.FilterValues(tuya.Values{"mode": "cool", "fan_speed": "auto"}, tuya.Values{"mode": "heat"})
	if _, ok := got["fan_speed"]; ok {
		t.Errorf("fan_speed should be blocked once merged mode becomes cool, got %v", got)
	}
}
