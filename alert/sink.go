package alert

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Sink delivers a fall event somewhere.
type Sink interface {
	Send(ctx context.Context, ev FallEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev FallEvent) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, ev FallEvent) error { return f(ctx, ev) }

// Multi sends to every sink, even when some fail.
type Multi []Sink

// Send delivers ev to all sinks and joins their errors.
func (m Multi) Send(ctx context.Context, ev FallEvent) error {
	var errs []error
	for i, s := range m {
		if err := s.Send(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// LogSink writes events to a logger.
type LogSink struct {
	Logger *zap.Logger
}

// Send logs ev.
func (s LogSink) Send(_ context.Context, ev FallEvent) error {
	s.Logger.Warn("Fall alert sent",
		zap.String("event_id", ev.ID),
		zap.String("device_id", ev.DeviceID),
		zap.Time("detected_at", ev.DetectedAt),
		zap.Int64("sample_time_ms", ev.SampleTimeMs),
		zap.Float64("magnitude", ev.Magnitude),
	)
	return nil
}
