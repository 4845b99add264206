// Package reporter runs the sampling loop: read every sensor, convert the
// samples to records and hand them to the sinks their path is routed to.
package reporter

import (
	"context"
	"log"
	"time"

	"github.com/ktt-ol/sensorlux/internal/router"
	"github.com/ktt-ol/sensorlux/internal/sensorlux"
	"github.com/ktt-ol/sensorlux/internal/source"
	"github.com/ktt-ol/sensorlux/internal/transform"
	"golang.org/x/time/rate"
)

const writeTimeout = 15 * time.Second

// Sensor is an opened sensor with its optional transform script.
type Sensor struct {
	Name      string
	Source    source.Source
	Transform *transform.Transform
	Tags      map[string]string
}

// Kicker is notified after every successful write.
type Kicker interface {
	Kick()
}

type Reporter struct {
	location string
	sensors  []Sensor
	router   *router.Router
	limiter  *rate.Limiter
	kicker   Kicker
}

// New returns a reporter sampling all sensors once per interval.
func New(location string, interval time.Duration, sensors []Sensor, r *router.Router) *Reporter {
	return &Reporter{
		location: location,
		sensors:  sensors,
		router:   r,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// SetKicker sets the watchdog kicked on successful writes.
func (r *Reporter) SetKicker(k Kicker) {
	r.kicker = k
}

// Run samples until ctx is done. The first cycle starts immediately.
func (r *Reporter) Run(ctx context.Context) error {
	for {
		if err := r.limiter.Wait(ctx); err != nil {
			// the next cycle would start after the deadline
			<-ctx.Done()
			return ctx.Err()
		}
		r.Cycle(ctx)
	}
}

// Cycle reads all sensors once and writes the records. Failing sensors
// and sinks are logged and skipped. It returns the number of records
// written by at least one sink.
func (r *Reporter) Cycle(ctx context.Context) int {
	var recs []sensorlux.Record
	for _, s := range r.sensors {
		sample, err := source.Sample(ctx, s.Name, s.Source)
		if err != nil {
			log.Println("error: ", err)
			continue
		}
		if s.Transform == nil {
			recs = append(recs, transform.Default(sample, "", s.Tags)...)
			continue
		}
		trecs, err := s.Transform.Parse(sample, "", s.Tags)
		if err != nil {
			log.Println("error: ", err)
			continue
		}
		recs = append(recs, trecs...)
	}
	return r.Write(ctx, recs)
}

// Write routes recs to the sinks and writes each batch. It returns the
// number of records at least one sink accepted.
func (r *Reporter) Write(ctx context.Context, recs []sensorlux.Record) int {
	batches := make(map[sensorlux.Sink][]int)
	var sinks []sensorlux.Sink
	for i, rec := range recs {
		for _, s := range r.router.Find(rec.Path(r.location)) {
			if _, ok := batches[s]; !ok {
				sinks = append(sinks, s)
			}
			batches[s] = append(batches[s], i)
		}
	}

	written := make(map[int]bool, len(recs))
	for _, s := range sinks {
		idx := batches[s]
		batch := make([]sensorlux.Record, len(idx))
		for j, i := range idx {
			batch[j] = recs[i]
		}

		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := s.Write(wctx, batch)
		cancel()
		if err != nil {
			log.Printf("error: writing %d records to %s: %s", len(batch), s.Name(), err)
			continue
		}
		log.Printf("debug: wrote %d records to %s", len(batch), s.Name())
		for _, i := range idx {
			written[i] = true
		}
	}

	if len(written) > 0 && r.kicker != nil {
		r.kicker.Kick()
	}
	return len(written)
}
