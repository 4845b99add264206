package config

import (
	"net/url"
	"strings"
	"time"
)

const (
	defaultInterval    = 10 * time.Second
	defaultRedisTTL    = 24 * time.Hour
	defaultMQTTPort    = "1883"
	defaultMeasurement = "sensors"
	redacted           = "******"
)

// Config is the process wide configuration record. It is loaded once at
// startup and handed to every component by value.
type Config struct {
	Location         string   `toml:"location" yaml:"location" json:"location"`
	Interval         string   `toml:"interval" yaml:"interval" json:"interval"`
	KillAfterSilence string   `toml:"kill_after_silence" yaml:"kill_after_silence" json:"kill_after_silence"`
	CSVLog           string   `toml:"csv_log" yaml:"csv_log" json:"csv_log"`
	MQTT             MQTT     `toml:"mqtt" yaml:"mqtt" json:"mqtt"`
	WiFi             WiFi     `toml:"wifi" yaml:"wifi" json:"wifi"`
	InfluxDB         InfluxDB `toml:"influxdb" yaml:"influxdb" json:"influxdb"`
	Redis            Redis    `toml:"redis" yaml:"redis" json:"redis"`
	Status           Status   `toml:"status" yaml:"status" json:"status"`
	Sensors          []Sensor `toml:"sensor" yaml:"sensors" json:"sensor"`
}

type MQTT struct {
	Enabled           bool     `toml:"enabled" yaml:"enabled" json:"enabled"`
	Topic             string   `toml:"topic" yaml:"topic" json:"topic"`
	Server            string   `toml:"server" yaml:"server" json:"server"`
	Username          string   `toml:"username" yaml:"username" json:"username"`
	Password          string   `toml:"password" yaml:"password" json:"password"`
	ClientID          string   `toml:"client_id" yaml:"client_id" json:"client_id"`
	TLSServerCert     string   `toml:"tls_server_cert" yaml:"tls_server_cert" json:"tls_server_cert"`
	TLSServerInsecure bool     `toml:"tls_server_insecure" yaml:"tls_server_insecure" json:"tls_server_insecure"`
	Routes            []string `toml:"routes" yaml:"routes" json:"routes"`
}

type WiFi struct {
	SSID    string `toml:"ssid" yaml:"ssid" json:"ssid"`
	Pass    string `toml:"pass" yaml:"pass" json:"pass"`
	Country string `toml:"country" yaml:"country" json:"country"`
}

type InfluxDB struct {
	URL             string   `toml:"url" yaml:"url" json:"url"`
	Database        string   `toml:"database" yaml:"database" json:"database"`
	Measurement     string   `toml:"measurement" yaml:"measurement" json:"measurement"`
	User            string   `toml:"user" yaml:"user" json:"user"`
	Pass            string   `toml:"pass" yaml:"pass" json:"pass"`
	RetentionPolicy string   `toml:"retention_policy" yaml:"retention_policy" json:"retention_policy"`
	Routes          []string `toml:"routes" yaml:"routes" json:"routes"`
}

type Redis struct {
	Addr     string   `toml:"addr" yaml:"addr" json:"addr"`
	Password string   `toml:"password" yaml:"password" json:"password"`
	DB       int      `toml:"db" yaml:"db" json:"db"`
	TTL      string   `toml:"ttl" yaml:"ttl" json:"ttl"`
	Routes   []string `toml:"routes" yaml:"routes" json:"routes"`
}

type Status struct {
	Listen string `toml:"listen" yaml:"listen" json:"listen"`
}

// Sensor defines one sampled sensor. Kind selects the source, the remaining
// fields are kind specific.
type Sensor struct {
	Name   string            `toml:"name" yaml:"name" json:"name"`
	Kind   string            `toml:"kind" yaml:"kind" json:"kind"`
	Tags   map[string]string `toml:"tags" yaml:"tags" json:"tags"`
	Script string            `toml:"script" yaml:"script" json:"script"`

	// file
	Path  string  `toml:"path" yaml:"path" json:"path"`
	Scale float64 `toml:"scale" yaml:"scale" json:"scale"`

	// random
	Min   float64 `toml:"min" yaml:"min" json:"min"`
	Max   float64 `toml:"max" yaml:"max" json:"max"`
	Step  float64 `toml:"step" yaml:"step" json:"step"`
	Start float64 `toml:"start" yaml:"start" json:"start"`

	// gpio
	Pin int `toml:"pin" yaml:"pin" json:"pin"`
}

// SampleInterval returns the parsed sampling interval.
func (c Config) SampleInterval() time.Duration {
	return durationOr(c.Interval, defaultInterval)
}

// Silence returns the watchdog timeout, zero if disabled.
func (c Config) Silence() time.Duration {
	return durationOr(c.KillAfterSilence, 0)
}

// BrokerURL returns the broker address for the MQTT client. A bare hostname
// is expanded to tcp://host:1883.
func (m MQTT) BrokerURL() string {
	if strings.Contains(m.Server, "://") {
		return m.Server
	}
	host := m.Server
	if !strings.Contains(host, ":") {
		host += ":" + defaultMQTTPort
	}
	return "tcp://" + host
}

// MeasurementName returns the configured measurement or the default.
func (i InfluxDB) MeasurementName() string {
	if i.Measurement == "" {
		return defaultMeasurement
	}
	return i.Measurement
}

// Expiration returns the TTL of cached last values.
func (r Redis) Expiration() time.Duration {
	return durationOr(r.TTL, defaultRedisTTL)
}

// Redacted returns a copy with all credentials masked.
func (c Config) Redacted() Config {
	r := c
	r.WiFi.Pass = mask(c.WiFi.Pass)
	r.InfluxDB.Pass = mask(c.InfluxDB.Pass)
	r.MQTT.Password = mask(c.MQTT.Password)
	r.Redis.Password = mask(c.Redis.Password)
	if u, err := url.Parse(c.InfluxDB.URL); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), redacted)
			r.InfluxDB.URL = u.String()
		}
	}
	r.Sensors = make([]Sensor, len(c.Sensors))
	for i, s := range c.Sensors {
		if s.Tags != nil {
			tags := make(map[string]string, len(s.Tags))
			for k, v := range s.Tags {
				tags[k] = v
			}
			s.Tags = tags
		}
		r.Sensors[i] = s
	}
	r.MQTT.Routes = copyStrings(c.MQTT.Routes)
	r.InfluxDB.Routes = copyStrings(c.InfluxDB.Routes)
	r.Redis.Routes = copyStrings(c.Redis.Routes)
	return r
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
