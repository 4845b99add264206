// Package redis keeps the last value of every field in Redis (or Valkey)
// for dashboards that only need the current state.
package redis

import (
	"context"
	"time"

	"github.com/ktt-ol/sensorlux/internal/config"
	"github.com/ktt-ol/sensorlux/internal/parser"
	"github.com/ktt-ol/sensorlux/internal/sensorlux"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

type Cache struct {
	rdb      *goredis.Client
	location string
	ttl      time.Duration
}

// New connects to the configured server and checks it with PING.
func New(ctx context.Context, conf config.Config) (*Cache, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrapf(err, "redis %s not reachable", conf.Redis.Addr)
	}
	return &Cache{rdb: rdb, location: conf.Location, ttl: conf.Redis.Expiration()}, nil
}

func (c *Cache) Name() string { return "redis" }

// Write stores each value under Key with the configured expiration, so
// values of dead sensors disappear.
func (c *Cache) Write(ctx context.Context, recs []sensorlux.Record) error {
	pipe := c.rdb.Pipeline()
	n := 0
	for _, rec := range recs {
		if rec.Value == nil {
			continue
		}
		pipe.Set(ctx, Key(c.location, rec.Field), parser.FormatValue(rec.Value), c.ttl)
		n++
	}
	if n == 0 {
		return nil
	}
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "updating last values")
}

// Key returns the key of the last value of field.
func Key(location, field string) string {
	return "sensor:last:" + location + ":" + field
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
