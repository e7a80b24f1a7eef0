package alert

import (
	"context"
	"fmt"
)

// DefaultTopic is the topic the watch application publishes alerts to.
const DefaultTopic = "fall/alert"

// Publisher is the subset of the MQTT client used by MQTTSink.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTSink publishes events as JSON.
type MQTTSink struct {
	pub   Publisher
	topic string
	qos   byte
}

// NewMQTTSink creates a sink publishing to topic, or DefaultTopic when empty.
func NewMQTTSink(pub Publisher, topic string, qos byte) *MQTTSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &MQTTSink{pub: pub, topic: topic, qos: qos}
}

// Send publishes ev.
func (s *MQTTSink) Send(ctx context.Context, ev FallEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("encoding fall event: %w", err)
	}
	return s.pub.Publish(s.topic, s.qos, false, payload)
}
