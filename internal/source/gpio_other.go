//go:build !(linux && arm)

package source

import "github.com/pkg/errors"

func openGPIO(pin int) (Source, error) {
	return nil, errors.Errorf("gpio pin %d: gpio sensors are only supported on linux/arm", pin)
}
