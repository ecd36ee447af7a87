package device

import (
	"github.com/tuyamqtt/bridge/pkg/discovery"
	"github.com/tuyamqtt/bridge/pkg/tuya"
)

// Model is the collaborator contract a concrete device (fan, ac, ...)
// supplies to a DeviceSession: the set of discovery components it exposes,
// the constraints on its datapoints, and the codec translating between
// external values (semantic names, e.g. "power") and wire values (numeric
// datapoint keys, e.g. "1").
type Model interface {
	Discovery() discovery.DeviceDiscovery
	Constraints() Constraints
	// ToWire encodes external values into the wire datapoints to send.
	ToWire(external tuya.Values) (tuya.Values, error)
	// FromWire decodes wire datapoints into external values.
	FromWire(wire tuya.Values) (tuya.Values, error)
}
