// Package detector implements fall detection from 3-axis accelerometer
// samples: a free-fall dip in acceleration magnitude followed by an impact
// spike within a bounded time window.
//
// The detector is a pure, synchronous state machine. It performs no I/O and
// never reads a clock; every notion of "now" comes from the sample timestamp.
// It is not safe for concurrent use.
package detector

import (
	"fmt"
	"math"
	"time"
)

// Reference thresholds, in m/s².
const (
	DefaultFreeFallThreshold = 4.0
	DefaultImpactThreshold   = 15.0
	DefaultBufferSize        = 5
)

// Reference time windows.
const (
	DefaultMinFreeFall = 100 * time.Millisecond
	DefaultWindow      = 3000 * time.Millisecond
)

// Config holds the detector thresholds and windows. It is copied into the
// detector at construction and never changes afterwards.
type Config struct {
	FreeFallThreshold float64       // smoothed magnitude below this is free fall
	ImpactThreshold   float64       // smoothed magnitude above this is an impact
	MinFreeFall       time.Duration // free fall must last at least this long
	Window            time.Duration // free-fall onset to impact limit
	BufferSize        int           // smoothing window length in samples
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		FreeFallThreshold: DefaultFreeFallThreshold,
		ImpactThreshold:   DefaultImpactThreshold,
		MinFreeFall:       DefaultMinFreeFall,
		Window:            DefaultWindow,
		BufferSize:        DefaultBufferSize,
	}
}

// Phase is the detection state.
type Phase int

const (
	Monitoring Phase = iota
	InFreeFall
	ImpactOccurred
)

func (p Phase) String() string {
	switch p {
	case Monitoring:
		return "Monitoring"
	case InFreeFall:
		return "InFreeFall"
	case ImpactOccurred:
		return "ImpactOccurred"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Sample is one accelerometer reading in m/s² with a millisecond timestamp.
type Sample struct {
	X, Y, Z float64
	TimeMs  int64
}

// Magnitude returns the Euclidean norm of the sample.
func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Outcome is the result of processing one sample.
type Outcome struct {
	Raw          float64       // magnitude of this sample
	Smoothed     float64       // moving average over the smoothing window
	Phase        Phase         // phase after processing
	FreeFall     time.Duration // elapsed free fall, only set while InFreeFall
	Label        string        // human readable phase
	FallDetected bool          // this sample completed a fall pattern
}

// Detector runs the free-fall → impact state machine.
type Detector struct {
	cfg Config

	minFreeFallMs int64
	windowMs      int64

	buf *RingFloat

	phase         Phase
	freeFallStart int64
	windowStart   int64
	freeFallMs    int64
}

// New creates a Detector in the Monitoring phase with an empty smoothing
// buffer. A non-positive BufferSize is treated as 1.
func New(cfg Config) *Detector {
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}
	return &Detector{
		cfg:           cfg,
		minFreeFallMs: cfg.MinFreeFall.Milliseconds(),
		windowMs:      cfg.Window.Milliseconds(),
		buf:           NewRingFloat(cfg.BufferSize),
	}
}

// Config returns the configuration the detector was built with.
func (d *Detector) Config() Config { return d.cfg }

// Phase returns the current phase.
func (d *Detector) Phase() Phase { return d.phase }

// Detecting reports whether a detection attempt is in progress.
func (d *Detector) Detecting() bool { return d.phase != Monitoring }

// ProcessSample is Process for a Sample value.
func (d *Detector) ProcessSample(s Sample) Outcome {
	return d.Process(s.X, s.Y, s.Z, s.TimeMs)
}

// Process ingests one accelerometer sample. Timestamps must be
// non-decreasing across calls. Non-finite input is not rejected: NaN fails
// both threshold comparisons and simply propagates into the outcome.
func (d *Detector) Process(x, y, z float64, tMs int64) Outcome {
	raw := math.Sqrt(x*x + y*y + z*z)
	d.buf.Push(raw)
	smoothed := d.buf.Mean()

	if d.phase == Monitoring && smoothed < d.cfg.FreeFallThreshold {
		d.phase = InFreeFall
		d.freeFallStart = tMs
		d.windowStart = tMs
	}

	if d.phase == InFreeFall {
		d.freeFallMs = tMs - d.freeFallStart

		// Too short a dip: abort without looking at the window.
		if smoothed >= d.cfg.FreeFallThreshold && d.freeFallMs < d.minFreeFallMs {
			d.reset()
			return d.outcome(raw, smoothed, false)
		}
		if d.freeFallMs >= d.minFreeFallMs && smoothed > d.cfg.ImpactThreshold {
			d.phase = ImpactOccurred
		}
	}

	if d.phase == ImpactOccurred && tMs-d.windowStart <= d.windowMs {
		d.reset()
		return d.outcome(raw, smoothed, true)
	}

	if d.phase != Monitoring && tMs-d.windowStart > d.windowMs {
		d.reset()
	}

	return d.outcome(raw, smoothed, false)
}

// Label returns the human readable phase, including the free-fall duration
// while in free fall.
func (d *Detector) Label() string {
	switch d.phase {
	case InFreeFall:
		return fmt.Sprintf("Free fall (%dms)", d.freeFallMs)
	case ImpactOccurred:
		return "Impact detected"
	default:
		return "Monitoring"
	}
}

// DebugInfo returns a multi-line summary of thresholds and state.
func (d *Detector) DebugInfo() string {
	return fmt.Sprintf("Thresholds: free fall=%.1f | impact=%.1f\nState: %s\nFree fall time: %dms",
		d.cfg.FreeFallThreshold, d.cfg.ImpactThreshold, d.Label(), d.freeFallMs)
}

func (d *Detector) outcome(raw, smoothed float64, fall bool) Outcome {
	out := Outcome{
		Raw:          raw,
		Smoothed:     smoothed,
		Phase:        d.phase,
		Label:        d.Label(),
		FallDetected: fall,
	}
	if d.phase == InFreeFall {
		out.FreeFall = time.Duration(d.freeFallMs) * time.Millisecond
	}
	return out
}

func (d *Detector) reset() {
	d.phase = Monitoring
	d.freeFallStart = 0
	d.windowStart = 0
	d.freeFallMs = 0
}
