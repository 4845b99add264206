//go:build !mqtt

package config

// mqttDefault is the MQTT toggle used when the config does not set one.
// Build with -tags mqtt to enable publishing by default.
const mqttDefault = false
