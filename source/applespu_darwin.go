//go:build darwin

package source

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/viniciusvidal2/falldetect/detector"
	"github.com/viniciusvidal2/falldetect/shm"
)

// AppleSPU streams the MacBook accelerometer published by sensord.
type AppleSPU struct {
	poll   time.Duration
	logger *zap.Logger
}

// NewAppleSPU creates an AppleSPU source.
func NewAppleSPU(logger *zap.Logger) *AppleSPU {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppleSPU{poll: 10 * time.Millisecond, logger: logger}
}

// Stream polls the shared memory ring until ctx is cancelled. Samples are
// stamped at the sensor rate and never go backwards across batches.
func (a *AppleSPU) Stream(ctx context.Context, out chan<- detector.Sample) error {
	ring, err := shm.OpenAccel()
	if err != nil {
		return fmt.Errorf("opening accel shm (is sensord running?): %w", err)
	}
	defer ring.Close()

	a.logger.Info("Reading Apple Silicon accelerometer", zap.Uint32("sensord_restarts", ring.Restarts()))

	stamper := newBatchStamper(shm.SampleRate)
	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		samples := ring.ReadNew()
		stamps := stamper.stamp(time.Now().UnixMilli(), len(samples))
		for i, s := range samples {
			sample := detector.Sample{
				X:      s.X * StandardGravity,
				Y:      s.Y * StandardGravity,
				Z:      s.Z * StandardGravity,
				TimeMs: stamps[i],
			}
			if err := send(ctx, out, sample); err != nil {
				return nil
			}
		}
	}
}
