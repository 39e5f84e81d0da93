// Package telemetry mirrors readings to an MQTT broker next to the
// device's own SMS or HTTP reporting.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"i4.energy/across/envnode/sensor"
)

// ErrPublishTimeout is returned when the broker did not acknowledge a
// publish in time.
var ErrPublishTimeout = errors.New("telemetry: publish timed out")

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "envnode/readings"

// Publisher is the part of mqtt.Client a Mirror uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Message is the JSON document published per reading.
type Message struct {
	CycleID     string    `json:"cycle_id"`
	Mode        string    `json:"mode"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Time        time.Time `json:"time"`
}

// Mirror publishes readings to one topic.
type Mirror struct {
	client  Publisher
	topic   string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewMirror(client Publisher, topic string, logger *slog.Logger) *Mirror {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Mirror{
		client:  client,
		topic:   topic,
		timeout: 10 * time.Second,
		logger:  logger,
		now:     time.Now,
	}
}

// Publish sends r at QoS 1. A nil Mirror accepts and drops everything.
func (m *Mirror) Publish(cycleID, mode string, r sensor.Reading) error {
	if m == nil {
		return nil
	}

	payload, err := json.Marshal(Message{
		CycleID:     cycleID,
		Mode:        mode,
		Model:       r.Model.String(),
		Temperature: r.Celsius(),
		Humidity:    r.RelativeHumidity(),
		Time:        m.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("telemetry: marshal reading: %w", err)
	}

	token := m.client.Publish(m.topic, 1, false, payload)
	if !token.WaitTimeout(m.timeout) {
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("telemetry: publish: %w", err)
	}

	m.logger.Debug("Reading mirrored", "topic", m.topic, "cycle_id", cycleID)
	return nil
}

// Connect creates a client for broker and connects it. The client
// reconnects on its own after a connection loss.
func Connect(broker, clientID string, logger *slog.Logger) (mqtt.Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", "error", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return nil, fmt.Errorf("telemetry: connect to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("telemetry: connect to %s: %w", broker, err)
	}
	return client, nil
}
