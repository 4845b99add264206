//go:build mqtt

package config

const mqttDefault = true
