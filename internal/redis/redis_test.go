package redis

import (
	"context"
	"errors"
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ktt-ol/sensorlux/internal/config"
	"github.com/ktt-ol/sensorlux/internal/sensorlux"
	goredis "github.com/redis/go-redis/v9"
)

// recorder collects pipelined commands instead of sending them.
type recorder struct {
	cmds [][]interface{}
	err  error
}

func (r *recorder) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("no connection in tests")
	}
}

func (r *recorder) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		r.cmds = append(r.cmds, cmd.Args())
		return r.err
	}
}

func (r *recorder) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		for _, cmd := range cmds {
			r.cmds = append(r.cmds, cmd.Args())
		}
		return r.err
	}
}

func newCache(ttl time.Duration) (*Cache, *recorder) {
	rec := &recorder{}
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	rdb.AddHook(rec)
	return &Cache{rdb: rdb, location: "sleeping", ttl: ttl}, rec
}

func TestWrite(t *testing.T) {
	c, rec := newCache(24 * time.Hour)
	defer c.Close()

	err := c.Write(context.Background(), []sensorlux.Record{
		{Field: "temperature", Value: 21.5},
		{Field: "nothing"},
		{Field: "occupied", Value: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := [][]interface{}{
		{"set", "sensor:last:sleeping:temperature", "21.5", "ex", int64(86400)},
		{"set", "sensor:last:sleeping:occupied", "true", "ex", int64(86400)},
	}
	if !reflect.DeepEqual(rec.cmds, want) {
		t.Errorf("unexpected commands\n%v\n!=\n%v", rec.cmds, want)
	}
}

func TestWriteNothing(t *testing.T) {
	c, rec := newCache(time.Hour)
	defer c.Close()
	if err := c.Write(context.Background(), []sensorlux.Record{{Field: "nothing"}}); err != nil {
		t.Fatal(err)
	}
	if len(rec.cmds) != 0 {
		t.Errorf("unexpected commands %v", rec.cmds)
	}
}

func TestWriteError(t *testing.T) {
	c, rec := newCache(time.Hour)
	defer c.Close()
	rec.err = errors.New("READONLY replica")
	err := c.Write(context.Background(), []sensorlux.Record{{Field: "temperature", Value: 1.0}})
	if err == nil || !strings.Contains(err.Error(), "updating last values: READONLY replica") {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestKey(t *testing.T) {
	if k := Key("sleeping", "temperature"); k != "sensor:last:sleeping:temperature" {
		t.Errorf("unexpected key %s", k)
	}
	if k := Key("", "temperature"); k != "sensor:last::temperature" {
		t.Errorf("unexpected key %s", k)
	}
}

func TestNewUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := New(ctx, config.Config{Redis: config.Redis{Addr: "127.0.0.1:1"}})
	if err == nil {
		t.Error("expected error for unreachable server")
	}
}
