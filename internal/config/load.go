package config

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SENSORLUX_"

// Overrides holds command line values. Nil fields are not set.
type Overrides struct {
	Location    *string
	MQTTEnabled *bool
	InfluxURL   *string
}

// Load reads the configuration with the precedence
// flags > environment > file > defaults and validates the result.
// An empty path skips the file.
func Load(path string, o *Overrides) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg, os.LookupEnv)

	if o != nil {
		if o.Location != nil {
			cfg.Location = *o.Location
		}
		if o.MQTTEnabled != nil {
			cfg.MQTT.Enabled = *o.MQTTEnabled
		}
		if o.InfluxURL != nil {
			cfg.InfluxDB.URL = *o.InfluxURL
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used before any file is applied.
func Default() Config {
	return Config{
		Interval: defaultInterval.String(),
		MQTT: MQTT{
			Enabled: mqttDefault,
		},
		InfluxDB: InfluxDB{
			Measurement: defaultMeasurement,
		},
	}
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, "reading config")
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return errors.Wrapf(err, "parsing YAML config %s", path)
		}
	default:
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return errors.Wrapf(err, "parsing TOML config %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return errors.Errorf("unknown config keys in %s: %v", path, undecoded)
		}
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides values from SENSORLUX_* variables. Empty variables
// are ignored, all others are used unchanged.
func applyEnv(cfg *Config, lookup lookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("LOCATION", &cfg.Location)
	str("WIFI_SSID", &cfg.WiFi.SSID)
	str("WIFI_PASS", &cfg.WiFi.Pass)
	str("INFLUX_URL", &cfg.InfluxDB.URL)
	str("INFLUX_USER", &cfg.InfluxDB.User)
	str("INFLUX_PASS", &cfg.InfluxDB.Pass)
	str("MQTT_SERVER", &cfg.MQTT.Server)
	str("MQTT_TOPIC", &cfg.MQTT.Topic)
	str("MQTT_PASS", &cfg.MQTT.Password)

	if v, ok := lookup(envPrefix + "MQTT_ENABLED"); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MQTT.Enabled = b
		}
	}
}
