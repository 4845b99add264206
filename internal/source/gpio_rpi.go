//go:build linux && arm

package source

import (
	"context"
	"log"
	"sync"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

// rpio uses the raw BCM2835 pinouts, see https://pinout.xyz for the
// physical pin mapping.

var (
	hardwareMu   sync.Mutex
	hardwareRefs int
)

type gpio struct {
	pin rpio.Pin
}

func openGPIO(pin int) (Source, error) {
	hardwareMu.Lock()
	defer hardwareMu.Unlock()
	if hardwareRefs == 0 {
		if err := rpio.Open(); err != nil {
			return nil, errors.Wrap(err, "opening gpio")
		}
	}
	hardwareRefs++

	p := rpio.Pin(pin)
	p.Input()
	p.PullDown()
	return &gpio{pin: p}, nil
}

// Read returns 1 for a high and 0 for a low pin level.
func (g *gpio) Read(ctx context.Context) (float64, error) {
	if g.pin.Read() == rpio.High {
		return 1, nil
	}
	return 0, nil
}

func (g *gpio) Close() error {
	hardwareMu.Lock()
	defer hardwareMu.Unlock()
	hardwareRefs--
	if hardwareRefs > 0 {
		return nil
	}
	if err := rpio.Close(); err != nil {
		log.Println("error: closing gpio:", err)
		return err
	}
	return nil
}
