package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/ktt-ol/sensorlux/internal/wifi"
	"github.com/pkg/errors"
)

// Sensor kinds.
const (
	KindRandom = "random"
	KindFile   = "file"
	KindGPIO   = "gpio"
)

// Validate checks the record for values the consumers can not work with.
func (c Config) Validate() error {
	n := wifi.Network{SSID: c.WiFi.SSID, Passphrase: c.WiFi.Pass}
	if err := n.Validate(); err != nil {
		return errors.Wrap(err, "wifi")
	}

	if err := validateInfluxURL(c.InfluxDB.URL); err != nil {
		return err
	}

	if c.MQTT.Enabled {
		if c.MQTT.Topic == "" {
			return errors.New("mqtt.topic is required when mqtt is enabled")
		}
		if c.MQTT.Server == "" {
			return errors.New("mqtt.server is required when mqtt is enabled")
		}
	}

	if err := validateDuration("interval", c.Interval, true); err != nil {
		return err
	}
	if err := validateDuration("kill_after_silence", c.KillAfterSilence, false); err != nil {
		return err
	}
	if err := validateDuration("redis.ttl", c.Redis.TTL, false); err != nil {
		return err
	}

	for key, routes := range map[string][]string{
		"influxdb.routes": c.InfluxDB.Routes,
		"mqtt.routes":     c.MQTT.Routes,
		"redis.routes":    c.Redis.Routes,
	} {
		for _, r := range routes {
			if err := validateRoute(r); err != nil {
				return errors.Wrap(err, key)
			}
		}
	}

	seen := make(map[string]bool, len(c.Sensors))
	for i, s := range c.Sensors {
		if s.Name == "" {
			return errors.Errorf("sensor %d: name is required", i)
		}
		if seen[s.Name] {
			return errors.Errorf("sensor %s: duplicate name", s.Name)
		}
		seen[s.Name] = true
		if err := s.validate(); err != nil {
			return errors.Wrapf(err, "sensor %s", s.Name)
		}
	}
	return nil
}

func (s Sensor) validate() error {
	switch s.Kind {
	case KindRandom:
		if s.Max <= s.Min {
			return errors.Errorf("max (%g) must be greater than min (%g)", s.Max, s.Min)
		}
		if s.Step < 0 {
			return errors.New("step must not be negative")
		}
	case KindFile:
		if s.Path == "" {
			return errors.New("path is required for file sensors")
		}
	case KindGPIO:
		if s.Pin < 0 || s.Pin > 27 {
			return errors.Errorf("pin %d is not a BCM GPIO pin", s.Pin)
		}
	default:
		return errors.Errorf("unknown kind %q", s.Kind)
	}
	return nil
}

func validateInfluxURL(raw string) error {
	if raw == "" {
		return errors.New("influxdb.url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(err, "influxdb.url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("influxdb.url: unsupported scheme %q, need http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("influxdb.url: missing host")
	}
	return nil
}

func validateDuration(key, value string, positive bool) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return errors.Wrap(err, key)
	}
	if d < 0 || (positive && d == 0) {
		return errors.Errorf("%s must be positive, got %s", key, value)
	}
	return nil
}

func validateRoute(r string) error {
	parts := strings.Split(r, "/")
	for i, p := range parts {
		if p == "#" && i != len(parts)-1 {
			return errors.Errorf("route %q: # is only allowed as last element", r)
		}
		if p == "+" {
			return errors.Errorf("route %q: + wildcard is not supported", r)
		}
	}
	return nil
}
