package device

import (
	"time"

	"github.com/tuyamqtt/bridge/pkg/tuya"
)

// Config holds the options recognized for one device session, layered on
// top of the core protocol Config.
type Config struct {
	Tuya tuya.Config

	EnableDiscovery    bool
	IncludedComponents map[string]struct{} // nil means "all components"

	DebounceUpdates time.Duration   // default 500ms
	Retries         int             // default 5; 0 disables confirmation/retry
	RetryBackoff    []time.Duration // e.g. 5,10,30,60 seconds
}
