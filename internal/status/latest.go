package status

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ktt-ol/sensorlux/internal/sensorlux"
)

// Reading is the last value written for one field.
type Reading struct {
	Field       string            `json:"field"`
	Measurement string            `json:"measurement,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Value       interface{}       `json:"value"`
	Time        time.Time         `json:"time"`
}

// Latest is a sink that keeps the last reading of each field in memory.
type Latest struct {
	mu       sync.RWMutex
	readings map[string]Reading
	written  time.Time
}

func NewLatest() *Latest {
	return &Latest{readings: make(map[string]Reading)}
}

func (l *Latest) Name() string { return "latest" }

func (l *Latest) Write(ctx context.Context, recs []sensorlux.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range recs {
		l.readings[rec.Field] = Reading{
			Field:       rec.Field,
			Measurement: rec.Measurement,
			Tags:        rec.Tags,
			Value:       rec.Value,
			Time:        rec.Time,
		}
	}
	l.written = time.Now()
	return nil
}

// Readings returns all readings ordered by field.
func (l *Latest) Readings() []Reading {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]Reading, 0, len(l.readings))
	for _, r := range l.readings {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Field < result[j].Field })
	return result
}

// LastWrite returns the time of the last Write.
func (l *Latest) LastWrite() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.written
}
