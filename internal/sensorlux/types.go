package sensorlux

import (
	"context"
	"time"
)

// A Sample is one raw reading taken from a sensor source.
type Sample struct {
	Time   time.Time
	Sensor string
	Value  float64
}

// A Record stores data for outgoing records (typical InfluxDB points).
// Measurement may be empty, sinks then use their configured measurement.
type Record struct {
	Time        time.Time
	Measurement string
	Field       string
	Tags        map[string]string
	Value       interface{}
}

// Sink writes records to one destination.
type Sink interface {
	Name() string
	Write(ctx context.Context, recs []Record) error
}

// Path returns the routing path of a record for the given location.
func (r Record) Path(location string) string {
	return location + "/" + r.Field
}
