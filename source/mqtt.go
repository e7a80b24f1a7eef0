package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/viniciusvidal2/falldetect/detector"
	"github.com/viniciusvidal2/falldetect/mqtt"
)

// DefaultTopic carries accelerometer readings from the wearable.
const DefaultTopic = "sensors/accelerometer"

// Subscriber is the subset of the MQTT client used by the MQTT source.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// accelPayload is the JSON body of one reading. Timestamp is in
// milliseconds and optional.
type accelPayload struct {
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
	Z         *float64 `json:"z"`
	Timestamp int64    `json:"timestamp"`
}

// MQTT streams readings published to a topic.
type MQTT struct {
	sub    Subscriber
	topic  string
	qos    byte
	scale  float64
	logger *zap.Logger
	now    func() time.Time
}

// NewMQTT creates an MQTT source on topic, or DefaultTopic when empty.
func NewMQTT(sub Subscriber, topic string, qos byte, scale float64, logger *zap.Logger) *MQTT {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTT{sub: sub, topic: topic, qos: qos, scale: scale, logger: logger, now: time.Now}
}

// Stream subscribes and forwards readings until ctx is cancelled.
func (m *MQTT) Stream(ctx context.Context, out chan<- detector.Sample) error {
	err := m.sub.Subscribe(m.topic, m.qos, func(_ string, payload []byte) error {
		s, err := decodeAccel(payload, m.now().UnixMilli())
		if err != nil {
			return err
		}
		if err := send(ctx, out, scale(s, m.scale)); err != nil {
			m.logger.Debug("Dropping sample after shutdown", zap.Int64("t_ms", s.TimeMs))
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.Info("Subscribed to accelerometer topic", zap.String("topic", m.topic))

	<-ctx.Done()
	if err := m.sub.Unsubscribe(m.topic); err != nil {
		m.logger.Warn("Failed to unsubscribe", zap.String("topic", m.topic), zap.Error(err))
	}
	return nil
}

func decodeAccel(payload []byte, nowMs int64) (detector.Sample, error) {
	var p accelPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return detector.Sample{}, fmt.Errorf("decoding accelerometer payload: %w", err)
	}
	if p.X == nil || p.Y == nil || p.Z == nil {
		return detector.Sample{}, fmt.Errorf("%w: payload missing an axis", ErrMalformedLine)
	}
	s := detector.Sample{X: *p.X, Y: *p.Y, Z: *p.Z, TimeMs: p.Timestamp}
	if s.TimeMs == 0 {
		s.TimeMs = nowMs
	}
	return s, nil
}
