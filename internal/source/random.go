package source

import (
	"context"
	"math/rand"
	"sync"
)

// Random is a bounded random walk, used for testing installations without
// attached hardware.
type Random struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	min, max float64
	step     float64
	value    float64
}

// NewRandom starts a walk at start (clamped to min..max). A zero step uses
// 1% of the range.
func NewRandom(min, max, step, start float64, seed int64) *Random {
	if step == 0 {
		step = (max - min) / 100
	}
	r := &Random{
		rnd:  rand.New(rand.NewSource(seed)),
		min:  min,
		max:  max,
		step: step,
	}
	r.value = r.clamp(start)
	return r
}

func (r *Random) Read(ctx context.Context) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.value
	r.value = r.clamp(r.value + r.step*r.rnd.NormFloat64())
	return v, nil
}

func (r *Random) clamp(v float64) float64 {
	if v < r.min {
		return r.min
	} else if v > r.max {
		return r.max
	}
	return v
}

func (r *Random) Close() error { return nil }
