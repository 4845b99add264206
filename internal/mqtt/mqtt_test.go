package mqtt

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ktt-ol/sensorlux/internal/config"
	"github.com/ktt-ol/sensorlux/internal/sensorlux"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

type message struct {
	topic   string
	payload string
}

type fakeClient struct {
	published []message
	err       error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, message{topic: topic, payload: payload.(string)})
	return doneToken{err: c.err}
}

func TestWrite(t *testing.T) {
	c := &fakeClient{}
	p := newPublisher(c, "foo/bar/")
	err := p.Write(context.Background(), []sensorlux.Record{
		{Field: "temperature", Value: 21.5},
		{Field: "nothing"},
		{Field: "occupied", Value: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []message{
		{topic: "foo/bar/temperature", payload: "21.5"},
		{topic: "foo/bar/occupied", payload: "true"},
	}
	if !reflect.DeepEqual(c.published, want) {
		t.Errorf("published %v, want %v", c.published, want)
	}
}

func TestWriteError(t *testing.T) {
	c := &fakeClient{err: errors.New("not connected")}
	p := newPublisher(c, "foo/bar")
	err := p.Write(context.Background(), []sensorlux.Record{{Field: "temperature", Value: 1.0}})
	if err == nil || !strings.Contains(err.Error(), "not connected") {
		t.Errorf("expected publish error, got %v", err)
	}
}

func TestOptions(t *testing.T) {
	opts, err := options(config.MQTT{
		Server:   "iot.eclipse.org",
		Topic:    "foo/bar",
		Username: "sensor",
		Password: "secret",
	}, "sleeping")
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://iot.eclipse.org:1883" {
		t.Errorf("unexpected servers %v", opts.Servers)
	}
	if !strings.HasPrefix(opts.ClientID, "sensorlux-sleeping-") {
		t.Errorf("unexpected client id %q", opts.ClientID)
	}
	if opts.WillTopic != "foo/bar/status" || string(opts.WillPayload) != statusOffline || !opts.WillRetained {
		t.Errorf("unexpected will %s %s", opts.WillTopic, opts.WillPayload)
	}

	if _, err := options(config.MQTT{Server: "x", TLSServerCert: "not a cert"}, ""); err == nil {
		t.Error("expected cert error")
	}
}
