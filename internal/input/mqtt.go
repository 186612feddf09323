package input

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

const mqttBacklog = 64

type mqttFrame struct {
	Left  *float64 `json:"left"`
	Right *float64 `json:"right"`
}

// MQTT subscribes to a topic carrying {"left": .., "right": ..} payloads.
// Frames that arrive while the backlog is full are dropped.
type MQTT struct {
	*Framed
	client  mqtt.Client
	topic   string
	frames  chan Frame
	dropped atomic.Int64
}

func newMQTT(topic string) *MQTT {
	m := &MQTT{topic: topic, frames: make(chan Frame, mqttBacklog)}
	m.Framed = NewFramed(m.next)
	return m
}

func DialMQTT(broker, topic, clientID string) (*MQTT, error) {
	m := newMQTT(topic)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.OnConnect = func(c mqtt.Client) {
		glog.Infof("input: connected to %s", broker)
		if tok := c.Subscribe(topic, 0, m.onMessage); tok.Wait() && tok.Error() != nil {
			glog.Errorf("input: subscribe %s: %v", topic, tok.Error())
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		glog.Warningf("input: connection to %s lost: %v", broker, err)
	}

	m.client = mqtt.NewClient(opts)
	if tok := m.client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", broker, tok.Error())
	}
	return m, nil
}

func (m *MQTT) onMessage(_ mqtt.Client, msg mqtt.Message) {
	m.handle(msg.Payload())
}

func (m *MQTT) handle(payload []byte) {
	var f mqttFrame
	if err := json.Unmarshal(payload, &f); err != nil {
		glog.Warningf("input: bad payload on %s: %v", m.topic, err)
		return
	}
	if f.Left == nil || f.Right == nil {
		glog.Warningf("input: payload on %s missing left or right", m.topic)
		return
	}
	select {
	case m.frames <- Frame{*f.Left, *f.Right}:
	default:
		m.dropped.Add(1)
	}
}

func (m *MQTT) next(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case f := <-m.frames:
		return f, nil
	}
}

// Dropped returns the number of frames discarded because the loop fell behind.
func (m *MQTT) Dropped() int64 { return m.dropped.Load() }

func (m *MQTT) Close() {
	if m.client != nil {
		m.client.Disconnect(250)
	}
}
