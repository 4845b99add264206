package influxdb

import (
	"context"
	"log"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/ktt-ol/sensorlux/internal/config"
	"github.com/ktt-ol/sensorlux/internal/sensorlux"
	"github.com/pkg/errors"
)

const (
	writeTimeout = 10 * time.Second
	precision    = "ms"
)

type InfluxDBClient struct {
	client          client.Client
	location        string
	database        string
	measurement     string
	retentionPolicy string
}

// NewInfluxDBClient creates a client for the configured write endpoint.
// The URL is passed to the client as configured.
func NewInfluxDBClient(conf config.Config) (*InfluxDBClient, error) {
	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:      conf.InfluxDB.URL,
		Username:  conf.InfluxDB.User,
		Password:  conf.InfluxDB.Pass,
		UserAgent: "sensorlux",
		Timeout:   writeTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating influxdb client")
	}

	return &InfluxDBClient{
		client:          c,
		location:        conf.Location,
		database:        conf.InfluxDB.Database,
		measurement:     conf.InfluxDB.MeasurementName(),
		retentionPolicy: conf.InfluxDB.RetentionPolicy,
	}, nil
}

func (i *InfluxDBClient) Name() string { return "influxdb" }

// Write writes one point per record. Records without value are skipped.
func (i *InfluxDBClient) Write(ctx context.Context, recs []sensorlux.Record) error {
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:        i.database,
		RetentionPolicy: i.retentionPolicy,
		Precision:       precision,
	})
	if err != nil {
		return err
	}

	for _, rec := range recs {
		if rec.Value == nil {
			log.Printf("debug: skipping %s without value", rec.Field)
			continue
		}
		pt, err := i.point(rec)
		if err != nil {
			return errors.Wrapf(err, "creating point for %s", rec.Field)
		}
		bp.AddPoint(pt)
	}
	if len(bp.Points()) == 0 {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Wrap(i.client.Write(bp), "writing points")
}

func (i *InfluxDBClient) point(rec sensorlux.Record) (*client.Point, error) {
	measurement := rec.Measurement
	if measurement == "" {
		measurement = i.measurement
	}
	tags := make(map[string]string, len(rec.Tags)+1)
	for k, v := range rec.Tags {
		tags[k] = v
	}
	if i.location != "" {
		tags["location"] = i.location
	}
	t := rec.Time
	if t.IsZero() {
		t = time.Now()
	}
	return client.NewPoint(measurement, tags, map[string]interface{}{
		rec.Field: rec.Value,
	}, t)
}

// Ping checks that the server is reachable.
func (i *InfluxDBClient) Ping() error {
	_, _, err := i.client.Ping(writeTimeout)
	return errors.Wrap(err, "pinging influxdb")
}

func (i *InfluxDBClient) Close() error {
	return i.client.Close()
}
