// Package telemetry publishes cycle reports to brokers, Prometheus and
// websocket clients, and accepts gain changes over HTTP.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/nats-io/nats.go"

	"github.com/san-kum/servosteer/internal/steer"
)

const publishTimeout = 2 * time.Second

// Encode is the wire form of a report on every transport.
func Encode(r steer.Report) ([]byte, error) {
	return json.Marshal(r)
}

type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

func NewMQTTPublisher(client mqtt.Client, topic string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic}
}

func DialMQTTPublisher(broker, topic, clientID string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		glog.Warningf("telemetry: mqtt connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, tok.Error())
	}
	glog.Infof("telemetry: publishing to mqtt %s topic %s", broker, topic)
	return NewMQTTPublisher(client, topic), nil
}

func (p *MQTTPublisher) Report(_ context.Context, r steer.Report) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	tok := p.client.Publish(p.topic, 0, false, data)
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out", p.topic)
	}
	return tok.Error()
}

func (p *MQTTPublisher) Close() { p.client.Disconnect(250) }

type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

func DialNATS(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("servosteer"),
		nats.Timeout(publishTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				glog.Warningf("telemetry: nats disconnected: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	glog.Infof("telemetry: publishing to nats %s subject %s", url, subject)
	return &NATSPublisher{conn: nc, subject: subject}, nil
}

func (p *NATSPublisher) Report(_ context.Context, r steer.Report) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, data)
}

func (p *NATSPublisher) Close() error { return p.conn.Drain() }

// BestEffort logs reporter failures instead of abandoning the loop.
func BestEffort(name string, next steer.Reporter) steer.Reporter {
	return steer.ReporterFunc(func(ctx context.Context, r steer.Report) error {
		if err := next.Report(ctx, r); err != nil {
			glog.Warningf("telemetry: %s cycle %d: %v", name, r.Cycle, err)
		}
		return nil
	})
}
