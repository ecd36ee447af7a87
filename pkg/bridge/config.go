package bridge

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tuyamqtt/bridge/pkg/device"
	"github.com/tuyamqtt/bridge/pkg/mqtt"
	"github.com/tuyamqtt/bridge/pkg/tuya"
)

// HexKey is a 16-byte AES key given as a 32-character hex string.
type HexKey [16]byte

func parseHexKey(s string) (HexKey, error) {
	var k HexKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != len(k) {
		return k, fmt.Errorf("must decode to %d bytes, got %d", len(k), len(b))
	}
	copy(k[:], b)
	return k, nil
}

// DurationSequence is a comma-separated list of durations, used to build a
// tuya.Backoff sequence.
type DurationSequence []time.Duration

func parseDurationSequence(s string) (DurationSequence, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	seq := make(DurationSequence, len(parts))
	for i, p := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("duration %q: %w", p, err)
		}
		seq[i] = d
	}
	return seq, nil
}

// DeviceConfig is the fully-resolved configuration for one device session.
type DeviceConfig struct {
	ID     string
	Name   string
	Model  string // "fan" or "ac"
	Device device.Config
}

// Config is the whole process's configuration.
type Config struct {
	Devices []DeviceConfig
	MQTT    mqtt.Config

	MetricsAddr     string
	LogLevel        zerolog.Level
	LogStdoutPretty bool
}

// deviceEnv mirrors one TUYA_DEVICE_<n>_* env var group. Tags hold only the
// suffix after the group prefix; defaults use the same "KEY=default" /
// "KEY?=default" convention as the rest of the env-driven config.
type deviceEnv struct {
	ID                   string           `env:"ID"`
	Name                 string           `env:"NAME"`
	Model                string           `env:"MODEL"`
	Address              string           `env:"ADDRESS"`
	Port                 int              `env:"PORT=6668"`
	Key                  HexKey           `env:"KEY"`
	ConnectionBackoff    DurationSequence `env:"CONNECTION_BACKOFF=1s,5s,15s,30s"`
	Timeout              time.Duration    `env:"TIMEOUT=5s"`
	HeartbeatInterval    time.Duration    `env:"HEARTBEAT_INTERVAL=15s"`
	StateRefreshInterval time.Duration    `env:"STATE_REFRESH_INTERVAL=1h"`
	EnableDiscovery      bool             `env:"ENABLE_DISCOVERY=true"`
	IncludedComponents   []string         `env:"INCLUDED_COMPONENTS"`
	DebounceUpdates      time.Duration    `env:"DEBOUNCE_UPDATES=500ms"`
	Retries              int              `env:"RETRIES=5"`
	RetryBackoff         DurationSequence `env:"RETRY_BACKOFF=5s,10s,30s,60s"`
}

// globalEnv holds every non-device-specific option.
type globalEnv struct {
	MQTTHost        string           `env:"MQTT_HOST=localhost"`
	MQTTPort        int              `env:"MQTT_PORT=1883"`
	MQTTUsername    string           `env:"MQTT_USERNAME"`
	MQTTPassword    string           `env:"MQTT_PASSWORD"`
	MQTTTimeout     time.Duration    `env:"MQTT_TIMEOUT=5s"`
	MQTTKeepAlive   time.Duration    `env:"MQTT_KEEPALIVE=30s"`
	MQTTBackoff     DurationSequence `env:"MQTT_BACKOFF=1s,5s,15s,30s"`
	DiscoveryPrefix string           `env:"DISCOVERY_PREFIX=homeassistant"`
	MetricsAddr     string           `env:"METRICS_ADDR=:9102"`
	LogLevel        zerolog.Level    `env:"LOG_LEVEL=info"`
	LogStdoutPretty bool             `env:"LOG_STDOUT_PRETTY=true"`
}

var deviceIDPattern = regexp.MustCompile(`^TUYA_DEVICE_(\d+)_ID$`)

// UnmarshalEnv builds a Config from a list of "KEY=VALUE" strings (as
// returned by os.Environ or an env file), discovering per-device groups by
// scanning for TUYA_DEVICE_<n>_ID keys.
func UnmarshalEnv(es []string) (*Config, error) {
	em := map[string]string{}
	for _, e := range es {
		if k, v, ok := strings.Cut(e, "="); ok {
			em[k] = v
		}
	}

	var g globalEnv
	if err := unmarshalStruct(&g, em, ""); err != nil {
		return nil, fmt.Errorf("global config: %w", err)
	}

	var ns []int
	for k := range em {
		if m := deviceIDPattern.FindStringSubmatch(k); m != nil {
			n, _ := strconv.Atoi(m[1])
			ns = append(ns, n)
		}
	}
	sort.Ints(ns)

	cfg := &Config{
		MetricsAddr:     g.MetricsAddr,
		LogLevel:        g.LogLevel,
		LogStdoutPretty: g.LogStdoutPretty,
		MQTT: mqtt.Config{
			DiscoveryPrefix: g.DiscoveryPrefix,
			Hostname:        g.MQTTHost,
			Port:            g.MQTTPort,
			Username:        g.MQTTUsername,
			Password:        g.MQTTPassword,
			Timeout:         g.MQTTTimeout,
			KeepAlive:       g.MQTTKeepAlive,
			Backoff:         g.MQTTBackoff,
		},
	}

	for _, n := range ns {
		var d deviceEnv
		prefix := fmt.Sprintf("TUYA_DEVICE_%d_", n)
		if err := unmarshalStruct(&d, em, prefix); err != nil {
			return nil, fmt.Errorf("device %d: %w", n, err)
		}
		if d.ID == "" {
			return nil, fmt.Errorf("device %d: %sID must not be empty", n, prefix)
		}
		if d.Address == "" {
			return nil, fmt.Errorf("device %d: %sADDRESS must not be empty", n, prefix)
		}

		var included map[string]struct{}
		if len(d.IncludedComponents) > 0 {
			included = make(map[string]struct{}, len(d.IncludedComponents))
			for _, c := range d.IncludedComponents {
				included[c] = struct{}{}
			}
		}

		name := d.Name
		if name == "" {
			name = d.ID
		}

		cfg.Devices = append(cfg.Devices, DeviceConfig{
			ID:    d.ID,
			Name:  name,
			Model: d.Model,
			Device: device.Config{
				Tuya: tuya.Config{
					Address:              d.Address,
					Port:                 d.Port,
					Key:                  d.Key[:],
					ConnectionBackoff:    d.ConnectionBackoff,
					Timeout:              d.Timeout,
					HeartbeatInterval:    d.HeartbeatInterval,
					StateRefreshInterval: d.StateRefreshInterval,
				},
				EnableDiscovery:    d.EnableDiscovery,
				IncludedComponents: included,
				DebounceUpdates:    d.DebounceUpdates,
				Retries:            d.Retries,
				RetryBackoff:       d.RetryBackoff,
			},
		})
	}

	return cfg, nil
}

// unmarshalStruct reflects over out's visible fields, each tagged
// `env:"SUFFIX[=default]"` or `env:"SUFFIX?=default"` (the latter allowing
// an explicit empty value), and sets them from em[prefix+SUFFIX].
func unmarshalStruct(out any, em map[string]string, prefix string) error {
	rv := reflect.ValueOf(out).Elem()
	for _, ft := range reflect.VisibleFields(rv.Type()) {
		tag, ok := ft.Tag.Lookup("env")
		if !ok {
			continue
		}
		key, val, _ := strings.Cut(tag, "=")
		var unsettable bool
		if strings.HasSuffix(key, "?") {
			key = strings.TrimSuffix(key, "?")
			unsettable = true
		}
		if v, exists := em[prefix+key]; exists && (unsettable || v != "") {
			val = v
		}

		fv := rv.FieldByIndex(ft.Index)
		if err := setField(fv, val); err != nil {
			return fmt.Errorf("%s%s: %w", prefix, key, err)
		}
	}
	return nil
}

func setField(fv reflect.Value, val string) error {
	switch v := fv.Addr().Interface().(type) {
	case *string:
		*v = val
	case *int:
		if val == "" {
			*v = 0
			return nil
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		*v = n
	case *bool:
		if val == "" {
			*v = false
			return nil
		}
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		*v = b
	case *time.Duration:
		if val == "" {
			*v = 0
			return nil
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*v = d
	case *[]string:
		if val == "" {
			*v = nil
			return nil
		}
		*v = strings.Split(val, ",")
	case *DurationSequence:
		seq, err := parseDurationSequence(val)
		if err != nil {
			return err
		}
		*v = seq
	case *HexKey:
		if val == "" {
			return nil
		}
		k, err := parseHexKey(val)
		if err != nil {
			return err
		}
		*v = k
	case *zerolog.Level:
		if val == "" {
			*v = zerolog.InfoLevel
			return nil
		}
		l, err := zerolog.ParseLevel(val)
		if err != nil {
			return err
		}
		*v = l
	default:
		return fmt.Errorf("unhandled field type %T", v)
	}
	return nil
}
