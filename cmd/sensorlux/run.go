package main

import (
	"context"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ktt-ol/sensorlux/internal/config"
	"github.com/ktt-ol/sensorlux/internal/debug"
	"github.com/ktt-ol/sensorlux/internal/handler/csv"
	"github.com/ktt-ol/sensorlux/internal/influxdb"
	"github.com/ktt-ol/sensorlux/internal/keepalive"
	"github.com/ktt-ol/sensorlux/internal/mqtt"
	"github.com/ktt-ol/sensorlux/internal/redis"
	"github.com/ktt-ol/sensorlux/internal/reporter"
	"github.com/ktt-ol/sensorlux/internal/router"
	"github.com/ktt-ol/sensorlux/internal/sensorlux"
	"github.com/ktt-ol/sensorlux/internal/source"
	"github.com/ktt-ol/sensorlux/internal/status"
	"github.com/ktt-ol/sensorlux/internal/transform"
	"github.com/pkg/errors"
)

const replayBatchSize = 500

// closers are closed in reverse order.
type closers []io.Closer

func (c closers) Close() error {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			log.Print("warning: ", err)
		}
	}
	return nil
}

// sinks creates all configured sinks and adds them to r.
func sinks(ctx context.Context, conf config.Config, r *router.Router, latest *status.Latest) (closers, error) {
	var cs closers

	influx, err := influxdb.NewInfluxDBClient(conf)
	if err != nil {
		return cs, err
	}
	cs = append(cs, influx)
	if err := influx.Ping(); err != nil {
		// writes are retried every cycle
		log.Print("warning: ", err)
	}
	addRoutes(r, influx, conf.InfluxDB.Routes)

	if conf.MQTT.Enabled {
		pub, err := mqtt.Connect(conf)
		if err != nil {
			return cs, err
		}
		cs = append(cs, pub)
		addRoutes(r, pub, conf.MQTT.Routes)
	}

	if conf.Redis.Addr != "" {
		cache, err := redis.New(ctx, conf)
		if err != nil {
			return cs, err
		}
		cs = append(cs, cache)
		addRoutes(r, cache, conf.Redis.Routes)
	}

	if conf.CSVLog != "" {
		l, err := csv.Open(conf.CSVLog)
		if err != nil {
			return cs, err
		}
		cs = append(cs, l)
		addRoutes(r, l, nil)
	}

	if latest != nil {
		addRoutes(r, latest, nil)
	}
	return cs, nil
}

func addRoutes(r *router.Router, s sensorlux.Sink, routes []string) {
	if len(routes) == 0 {
		routes = []string{"#"}
	}
	for _, route := range routes {
		log.Printf("debug: routing %s to %s", route, s.Name())
		r.Add(route, s)
	}
}

// sensors opens all configured sensors. Scripts ending with .js are read
// from file.
func sensors(conf config.Config) ([]reporter.Sensor, closers, error) {
	var result []reporter.Sensor
	var cs closers
	for _, s := range conf.Sensors {
		src, err := source.Open(s)
		if err != nil {
			return nil, cs, errors.Wrapf(err, "sensor %s", s.Name)
		}
		cs = append(cs, src)

		sensor := reporter.Sensor{Name: s.Name, Source: src, Tags: s.Tags}
		if s.Script != "" {
			js := s.Script
			if strings.HasSuffix(js, ".js") {
				b, err := os.ReadFile(js)
				if err != nil {
					return nil, cs, errors.Wrapf(err, "sensor %s", s.Name)
				}
				js = string(b)
			}
			if sensor.Transform, err = transform.New(js); err != nil {
				return nil, cs, errors.Wrapf(err, "sensor %s", s.Name)
			}
		}
		result = append(result, sensor)
	}
	return result, cs, nil
}

// run samples until ctx is done or setup fails.
func run(ctx context.Context, conf config.Config) error {
	ss, sensorClosers, err := sensors(conf)
	defer sensorClosers.Close()
	if err != nil {
		return err
	}
	if len(ss) == 0 {
		log.Print("warning: no sensors configured")
	}

	var latest *status.Latest
	if conf.Status.Listen != "" {
		latest = status.NewLatest()
	}

	r := router.New()
	sinkClosers, err := sinks(ctx, conf, r, latest)
	defer sinkClosers.Close()
	if err != nil {
		return err
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rep := reporter.New(conf.Location, conf.SampleInterval(), ss, r)
	if d := conf.Silence(); d > 0 {
		w := keepalive.New(d)
		defer w.Stop()
		rep.SetKicker(w)
	}

	errc := make(chan error, 2)
	running := 1
	if latest != nil {
		srv := status.New(conf.Status.Listen, conf, latest)
		running++
		go func() { errc <- srv.Run(ctx) }()
	}
	go func() { errc <- rep.Run(ctx) }()

	log.Printf("info: reporting %d sensors of %s every %s", len(ss), conf.Location, conf.SampleInterval())
	err = <-errc
	// wait for all users of the sinks before the deferred closers run
	cancel()
	for running--; running > 0; running-- {
		<-errc
	}
	if parent.Err() != nil {
		return nil
	}
	return err
}

// replay writes all records of a CSV log to the configured sinks.
func replay(ctx context.Context, conf config.Config, filename string) error {
	// do not echo the replayed rows into the log they are read from
	conf.CSVLog = ""
	r := router.New()
	cs, err := sinks(ctx, conf, r, nil)
	defer cs.Close()
	if err != nil {
		return err
	}

	rep := reporter.New(conf.Location, conf.SampleInterval(), nil, r)
	total := 0
	err = debug.RecordsFromCSV(filename, replayBatchSize, func(recs []sensorlux.Record) error {
		n := rep.Write(ctx, recs)
		if n == 0 {
			return errors.Errorf("no sink accepted %d records", len(recs))
		}
		total += n
		return nil
	})
	log.Printf("info: replayed %d records", total)
	return err
}
