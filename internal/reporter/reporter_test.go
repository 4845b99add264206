package reporter

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ktt-ol/sensorlux/internal/router"
	"github.com/ktt-ol/sensorlux/internal/sensorlux"
	"github.com/ktt-ol/sensorlux/internal/transform"
)

type constSource struct {
	value float64
	err   error
}

func (s constSource) Read(ctx context.Context) (float64, error) { return s.value, s.err }
func (s constSource) Close() error                              { return nil }

type memorySink struct {
	name string
	err  error

	mu   sync.Mutex
	recs []sensorlux.Record
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Write(ctx context.Context, recs []sensorlux.Record) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, recs...)
	return nil
}

func (s *memorySink) fields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []string
	for _, r := range s.recs {
		result = append(result, r.Field)
	}
	return result
}

type countingKicker struct {
	mu sync.Mutex
	n  int
}

func (k *countingKicker) Kick() {
	k.mu.Lock()
	k.n++
	k.mu.Unlock()
}

func (k *countingKicker) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.n
}

func TestCycle(t *testing.T) {
	influx := &memorySink{name: "influxdb"}
	mqtt := &memorySink{name: "mqtt"}
	r := router.New()
	r.Add("#", influx)
	r.Add("sleeping/temperature", mqtt)

	script, err := transform.New(`function parse(sensor, value) { return value / 1000; }`)
	if err != nil {
		t.Fatal(err)
	}

	rep := New("sleeping", time.Second, []Sensor{
		{Name: "temperature", Source: constSource{value: 21.5}, Tags: map[string]string{"unit": "C"}},
		{Name: "broken", Source: constSource{err: errors.New("i2c timeout")}},
		{Name: "cpu", Source: constSource{value: 48312}, Transform: script},
	}, r)
	kicker := &countingKicker{}
	rep.SetKicker(kicker)

	if n := rep.Cycle(context.Background()); n != 2 {
		t.Errorf("expected 2 written records, got %d", n)
	}
	if got := influx.fields(); !reflect.DeepEqual(got, []string{"temperature", "cpu"}) {
		t.Errorf("influx got %v", got)
	}
	if got := mqtt.fields(); !reflect.DeepEqual(got, []string{"temperature"}) {
		t.Errorf("mqtt got %v", got)
	}
	if v := influx.recs[1].Value; v != 48.312 {
		t.Errorf("script was not applied: %v", v)
	}
	if tags := influx.recs[0].Tags; tags["unit"] != "C" {
		t.Errorf("tags missing: %v", tags)
	}
	if kicker.count() != 1 {
		t.Errorf("kicked %d times", kicker.count())
	}
}

func TestFailingSink(t *testing.T) {
	down := &memorySink{name: "down", err: errors.New("connection refused")}
	up := &memorySink{name: "up"}
	r := router.New()
	r.Add("#", down)
	r.Add("sleeping/humidity", up)

	rep := New("sleeping", time.Second, []Sensor{
		{Name: "temperature", Source: constSource{value: 21.5}},
		{Name: "humidity", Source: constSource{value: 40}},
	}, r)
	kicker := &countingKicker{}
	rep.SetKicker(kicker)

	if n := rep.Cycle(context.Background()); n != 1 {
		t.Errorf("expected 1 written record, got %d", n)
	}
	if kicker.count() != 1 {
		t.Errorf("kicked %d times", kicker.count())
	}

	r2 := router.New()
	r2.Add("#", down)
	rep = New("sleeping", time.Second, rep.sensors, r2)
	rep.SetKicker(kicker)
	if n := rep.Cycle(context.Background()); n != 0 {
		t.Errorf("expected no written records, got %d", n)
	}
	if kicker.count() != 1 {
		t.Error("kicked without successful write")
	}
}

func TestRun(t *testing.T) {
	sink := &memorySink{name: "memory"}
	r := router.New()
	r.Add("#", sink)
	rep := New("", 20*time.Millisecond, []Sensor{
		{Name: "temperature", Source: constSource{value: 21.5}},
	}, r)

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	if err := rep.Run(ctx); err != context.DeadlineExceeded {
		t.Errorf("unexpected error %v", err)
	}
	n := len(sink.fields())
	if n < 2 || n > 7 {
		t.Errorf("unexpected number of cycles %d", n)
	}
}
