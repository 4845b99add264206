package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ktt-ol/sensorlux/internal/config"
	"github.com/ktt-ol/sensorlux/internal/parser"
	"github.com/ktt-ol/sensorlux/internal/sensorlux"
	"github.com/pkg/errors"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	statusOnline   = "online"
	statusOffline  = "offline"
)

// tokenPublisher is the part of mqtt.Client the Publisher needs.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

func options(conf config.MQTT, location string) (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions()

	opts.AddBroker(conf.BrokerURL())

	if conf.Username != "" {
		opts.SetUsername(conf.Username)
	}
	if conf.Password != "" {
		opts.SetPassword(conf.Password)
	}

	if conf.ClientID == "" {
		conf.ClientID = fmt.Sprintf("sensorlux-%s-%06d", location, time.Now().Nanosecond()/1000)
	}
	opts.SetClientID(conf.ClientID)

	var certs *x509.CertPool
	if conf.TLSServerCert != "" {
		certs = x509.NewCertPool()
		if !certs.AppendCertsFromPEM([]byte(conf.TLSServerCert)) {
			return nil, errors.New("unable to add tls_server_cert to CertPool")
		}
	}
	opts.SetTLSConfig(&tls.Config{
		InsecureSkipVerify: conf.TLSServerInsecure,
		RootCAs:            certs,
	})

	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetMaxReconnectInterval(5 * time.Minute)

	opts.SetWill(statusTopic(conf.Topic), statusOffline, 0, true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Print("debug: mqtt connected")
		c.Publish(statusTopic(conf.Topic), 0, true, statusOnline)
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		log.Print("warning: mqtt connection lost: ", err)
	})
	return opts, nil
}

// Publisher publishes records as plain text payloads to <topic>/<field>.
type Publisher struct {
	client tokenPublisher
	topic  string
	close  func()
}

// Connect connects to the configured broker.
func Connect(conf config.Config) (*Publisher, error) {
	opts, err := options(conf.MQTT, conf.Location)
	if err != nil {
		return nil, err
	}

	mc := mqtt.NewClient(opts)
	tok := mc.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return nil, errors.Errorf("connecting to %s timed out", conf.MQTT.BrokerURL())
	}
	if err := tok.Error(); err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", conf.MQTT.BrokerURL())
	}

	p := newPublisher(mc, conf.MQTT.Topic)
	p.close = func() {
		mc.Publish(statusTopic(conf.MQTT.Topic), 0, true, statusOffline).WaitTimeout(publishTimeout)
		mc.Disconnect(250)
	}
	return p, nil
}

func newPublisher(c tokenPublisher, topic string) *Publisher {
	return &Publisher{client: c, topic: strings.TrimSuffix(topic, "/")}
}

func (p *Publisher) Name() string { return "mqtt" }

// Write publishes all records and waits for the tokens. Records without
// value are skipped.
func (p *Publisher) Write(ctx context.Context, recs []sensorlux.Record) error {
	var toks []mqtt.Token
	for _, rec := range recs {
		if rec.Value == nil {
			continue
		}
		toks = append(toks, p.client.Publish(p.Topic(rec), 0, false, parser.FormatValue(rec.Value)))
	}

	deadline := time.Now().Add(publishTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	for _, tok := range toks {
		if !tok.WaitTimeout(time.Until(deadline)) {
			return errors.New("publishing timed out")
		}
		if err := tok.Error(); err != nil {
			return errors.Wrap(err, "publishing")
		}
	}
	return nil
}

// Topic returns the topic a record is published to.
func (p *Publisher) Topic(rec sensorlux.Record) string {
	return p.topic + "/" + rec.Field
}

func (p *Publisher) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}

func statusTopic(topic string) string {
	return strings.TrimSuffix(topic, "/") + "/status"
}
