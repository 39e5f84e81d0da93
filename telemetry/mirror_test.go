package telemetry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"i4.energy/across/envnode/sensor"
)

type fakeToken struct {
	completed bool
	err       error
}

func (t *fakeToken) Wait() bool                     { return t.completed }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.completed }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.completed {
		close(ch)
	}
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakePublisher struct {
	token    *fakeToken
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.topic, p.qos, p.retained = topic, qos, retained
	p.payload, _ = payload.([]byte)
	return p.token
}

func TestMirrorPublish(t *testing.T) {
	stamp := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reading := sensor.Reading{Temperature: 123, Humidity: 456, BelowZero: true, Model: sensor.DHT22}

	t.Run("Publishes JSON reading", func(t *testing.T) {
		pub := &fakePublisher{token: &fakeToken{completed: true}}
		m := NewMirror(pub, "", nil)
		m.now = func() time.Time { return stamp }

		if err := m.Publish("cycle-1", "sms", reading); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pub.topic != DefaultTopic {
			t.Errorf("expected topic %q, got %q", DefaultTopic, pub.topic)
		}
		if pub.qos != 1 || pub.retained {
			t.Errorf("expected QoS 1 without retain, got %d %v", pub.qos, pub.retained)
		}

		var msg Message
		if err := json.Unmarshal(pub.payload, &msg); err != nil {
			t.Fatalf("payload is not JSON: %v", err)
		}
		expected := Message{
			CycleID:     "cycle-1",
			Mode:        "sms",
			Model:       "dht22",
			Temperature: -12.3,
			Humidity:    45.6,
		}
		if !msg.Time.Equal(stamp) {
			t.Errorf("expected time %v, got %v", stamp, msg.Time)
		}
		msg.Time = time.Time{}
		if msg != expected {
			t.Errorf("expected %+v, got %+v", expected, msg)
		}
	})

	t.Run("Broker error", func(t *testing.T) {
		brokerErr := errors.New("not authorized")
		m := NewMirror(&fakePublisher{token: &fakeToken{completed: true, err: brokerErr}}, "t", nil)

		if err := m.Publish("c", "telemetry", reading); !errors.Is(err, brokerErr) {
			t.Errorf("expected broker error, got: %v", err)
		}
	})

	t.Run("Unacknowledged publish times out", func(t *testing.T) {
		m := NewMirror(&fakePublisher{token: &fakeToken{}}, "t", nil)

		if err := m.Publish("c", "telemetry", reading); err != ErrPublishTimeout {
			t.Errorf("expected ErrPublishTimeout, got: %v", err)
		}
	})

	t.Run("Nil mirror drops readings", func(t *testing.T) {
		var m *Mirror
		if err := m.Publish("c", "sms", reading); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
