package device

import "github.com/tuyamqtt/bridge/pkg/tuya"

// blacklist maps a datapoint to the set of values it may not be set to. A
// nil or empty set means the datapoint is fully blocked regardless of
// value.
type blacklist map[string]map[tuya.Value]struct{}

// Constraint forbids certain datapoint/value combinations whenever another
// datapoint is observed at a specific value, e.g. "swing cannot be set
// while the fan is off".
type Constraint struct {
	dataPoint string
	value     tuya.Value
	forbid    blacklist
}

// NewConstraint builds a Constraint that activates when values[dataPoint]
// equals value. forbidden maps each blocked datapoint to the specific
// values to forbid; a nil value set for a datapoint blocks it entirely.
func NewConstraint(dataPoint string, value tuya.Value, forbidden map[string][]tuya.Value) Constraint {
	bl := make(blacklist, len(forbidden))
	for dp, values := range forbidden {
		if len(values) == 0 {
			bl[dp] = nil
			continue
		}
		set := make(map[tuya.Value]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		bl[dp] = set
	}
	return Constraint{dataPoint: dataPoint, value: value, forbid: bl}
}

func (c Constraint) blacklistFor(values tuya.Values) blacklist {
	if values[c.dataPoint] != c.value {
		return nil
	}
	return c.forbid
}

// Constraints holds every Constraint for a device model.
type Constraints struct {
	constraints []Constraint
}

// NewConstraints builds a Constraints set from cs.
func NewConstraints(cs ...Constraint) Constraints {
	return Constraints{constraints: cs}
}

func (c Constraints) blacklist(values tuya.Values) blacklist {
	bl := make(blacklist)
	for _, constraint := range c.constraints {
		for dp, forbidden := range constraint.blacklistFor(values) {
			existing, ok := bl[dp]
			if len(forbidden) == 0 || (ok && len(existing) == 0) {
				// Fully blocked by this or an earlier constraint.
				bl[dp] = map[tuya.Value]struct{}{}
				continue
			}
			if !ok {
				existing = make(map[tuya.Value]struct{})
			}
			for v := range forbidden {
				existing[v] = struct{}{}
			}
			bl[dp] = existing
		}
	}
	return bl
}

// FilterValues drops any (datapoint, value) pair in candidates that is
// forbidden given the merge of current and candidates: a datapoint fully
// blocked (nil/empty blacklist entry) is dropped outright; a datapoint with
// a specific forbidden set is dropped only if its candidate value is in
// that set. Datapoints with no matching constraint pass through unchanged.
func (c Constraints) FilterValues(candidates, current tuya.Values) tuya.Values {
	merged := current.Merge(candidates)
	bl := c.blacklist(merged)
	filtered := make(tuya.Values, len(candidates))
	for dp, v := range candidates {
		forbidden, blocked := bl[dp]
		if blocked {
			if len(forbidden) == 0 {
				continue
			}
			if _, in := forbidden[v]; in {
				continue
			}
		}
		filtered[dp] = v
	}
	return filtered
}
