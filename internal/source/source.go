// Package source reads samples from the sensors attached to the board.
package source

import (
	"context"
	"time"

	"github.com/ktt-ol/sensorlux/internal/config"
	"github.com/ktt-ol/sensorlux/internal/sensorlux"
	"github.com/pkg/errors"
)

// Source reads the current value of one sensor.
type Source interface {
	Read(ctx context.Context) (float64, error)
	Close() error
}

// Open returns the source for a sensor definition.
func Open(s config.Sensor) (Source, error) {
	switch s.Kind {
	case config.KindRandom:
		return NewRandom(s.Min, s.Max, s.Step, s.Start, time.Now().UnixNano()), nil
	case config.KindFile:
		return NewFile(s.Path, s.Scale), nil
	case config.KindGPIO:
		return openGPIO(s.Pin)
	}
	return nil, errors.Errorf("unknown sensor kind %q", s.Kind)
}

// Sample reads src and stamps the value with the current time.
func Sample(ctx context.Context, name string, src Source) (sensorlux.Sample, error) {
	v, err := src.Read(ctx)
	if err != nil {
		return sensorlux.Sample{}, errors.Wrapf(err, "reading %s", name)
	}
	return sensorlux.Sample{Time: time.Now(), Sensor: name, Value: v}, nil
}
