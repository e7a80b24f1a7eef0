// Package alert turns fall detections into outbound notifications: a
// cancellable countdown followed by delivery to one or more sinks.
package alert

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/viniciusvidal2/falldetect/detector"
)

// FallEvent is the payload delivered when a fall is confirmed.
type FallEvent struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"device_id"`
	Fall         bool      `json:"fall"`
	DetectedAt   time.Time `json:"detected_at"`
	SampleTimeMs int64     `json:"sample_time_ms"`
	Magnitude    float64   `json:"magnitude"`
}

// NewFallEvent builds an event for the sample that completed a fall.
func NewFallEvent(deviceID string, s detector.Sample, out detector.Outcome, now time.Time) FallEvent {
	return FallEvent{
		ID:           uuid.NewString(),
		DeviceID:     deviceID,
		Fall:         true,
		DetectedAt:   now.UTC(),
		SampleTimeMs: s.TimeMs,
		Magnitude:    out.Smoothed,
	}
}

// Marshal encodes the event as JSON.
func (e FallEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
