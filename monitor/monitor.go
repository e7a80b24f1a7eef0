// Package monitor runs the fall detector over a sample stream. A Monitor is
// the only goroutine that touches its detector, so samples from any number
// of producers are serialised through one channel.
package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/viniciusvidal2/falldetect/alert"
	"github.com/viniciusvidal2/falldetect/detector"
)

// Trigger receives confirmed falls. alert.Dispatcher implements it.
type Trigger interface {
	Trigger(ctx context.Context, ev alert.FallEvent) bool
}

// Observer is called for every processed sample.
type Observer func(s detector.Sample, out detector.Outcome)

// Stats are running counters.
type Stats struct {
	Samples   int64
	FreeFalls int64 // entries into free fall
	Aborted   int64 // free falls that ended without a fall
	Falls     int64
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithDeviceID tags fall events with id.
func WithDeviceID(id string) Option {
	return func(m *Monitor) { m.deviceID = id }
}

// WithObserver registers a per-sample callback.
func WithObserver(o Observer) Option {
	return func(m *Monitor) { m.observer = o }
}

// WithClock sets the clock used to stamp fall events.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// Monitor feeds samples to a detector and reports falls.
type Monitor struct {
	det      *detector.Detector
	trigger  Trigger
	logger   *zap.Logger
	deviceID string
	observer Observer
	now      func() time.Time

	samples   atomic.Int64
	freeFalls atomic.Int64
	aborted   atomic.Int64
	falls     atomic.Int64
}

// New creates a Monitor. trig may be nil when only observation is wanted.
func New(det *detector.Detector, trig Trigger, opts ...Option) *Monitor {
	m := &Monitor{
		det:     det,
		trigger: trig,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Run processes samples until the channel is closed (returns nil) or ctx is
// cancelled (returns ctx.Err()).
func (m *Monitor) Run(ctx context.Context, samples <-chan detector.Sample) error {
	cfg := m.det.Config()
	m.logger.Info("Fall monitor started",
		zap.String("device_id", m.deviceID),
		zap.Float64("free_fall_threshold", cfg.FreeFallThreshold),
		zap.Float64("impact_threshold", cfg.ImpactThreshold),
		zap.Duration("min_free_fall", cfg.MinFreeFall),
		zap.Duration("window", cfg.Window),
		zap.Int("buffer_size", cfg.BufferSize),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-samples:
			if !ok {
				m.logger.Info("Sample stream ended", zap.Int64("samples", m.samples.Load()))
				return nil
			}
			m.Process(ctx, s)
		}
	}
}

// Process advances the detector by one sample. It must not be called
// concurrently with itself or Run.
func (m *Monitor) Process(ctx context.Context, s detector.Sample) detector.Outcome {
	prev := m.det.Phase()
	out := m.det.ProcessSample(s)
	m.samples.Add(1)

	if m.observer != nil {
		m.observer(s, out)
	}

	switch {
	case out.FallDetected:
		m.falls.Add(1)
		m.reportFall(ctx, s, out)
	case prev == detector.Monitoring && out.Phase == detector.InFreeFall:
		m.freeFalls.Add(1)
		m.logger.Info("Free fall started", zap.Int64("t_ms", s.TimeMs), zap.Float64("magnitude", out.Smoothed))
	case prev == detector.InFreeFall && out.Phase == detector.Monitoring:
		m.aborted.Add(1)
		m.logger.Info("Free fall ended without impact", zap.Int64("t_ms", s.TimeMs), zap.Float64("magnitude", out.Smoothed))
	case out.Phase == detector.InFreeFall:
		m.logger.Debug("In free fall", zap.String("state", out.Label), zap.Float64("magnitude", out.Smoothed))
	}
	return out
}

func (m *Monitor) reportFall(ctx context.Context, s detector.Sample, out detector.Outcome) {
	ev := alert.NewFallEvent(m.deviceID, s, out, m.now())
	m.logger.Warn("Fall detected",
		zap.String("event_id", ev.ID),
		zap.Int64("t_ms", s.TimeMs),
		zap.Float64("magnitude", out.Smoothed),
	)
	if m.trigger == nil {
		return
	}
	if !m.trigger.Trigger(ctx, ev) {
		m.logger.Info("Fall not dispatched, an alert is already pending", zap.String("event_id", ev.ID))
	}
}

// Stats returns a snapshot of the counters. Safe for concurrent use.
func (m *Monitor) Stats() Stats {
	return Stats{
		Samples:   m.samples.Load(),
		FreeFalls: m.freeFalls.Load(),
		Aborted:   m.aborted.Load(),
		Falls:     m.falls.Load(),
	}
}
