package detector

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gravity = 9.8

// unsmoothed returns the reference configuration with smoothing disabled so
// each sample drives the state machine directly.
func unsmoothed() Config {
	cfg := DefaultConfig()
	cfg.BufferSize = 1
	return cfg
}

// feed runs samples through d and returns every outcome.
func feed(d *Detector, samples []Sample) []Outcome {
	out := make([]Outcome, 0, len(samples))
	for _, s := range samples {
		out = append(out, d.ProcessSample(s))
	}
	return out
}

// fallSequence is six 2.0 m/s² samples spanning 100 ms followed by four
// 20.0 m/s² samples, 20 ms apart, with impact starting at impactStart.
func fallSequence(impactStart int64) []Sample {
	var seq []Sample
	for t := int64(0); t <= 100; t += 20 {
		seq = append(seq, Sample{X: 2, TimeMs: t})
	}
	for i := int64(0); i < 4; i++ {
		seq = append(seq, Sample{X: 20, TimeMs: impactStart + i*20})
	}
	return seq
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 4.0, cfg.FreeFallThreshold)
	assert.Equal(t, 15.0, cfg.ImpactThreshold)
	assert.Equal(t, 100*time.Millisecond, cfg.MinFreeFall)
	assert.Equal(t, 3*time.Second, cfg.Window)
	assert.Equal(t, 5, cfg.BufferSize)
}

func TestNew_ClampsBufferSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferSize = -3
	d := New(cfg)

	assert.Equal(t, 1, d.Config().BufferSize)
	assert.Equal(t, Monitoring, d.Phase())
	assert.False(t, d.Detecting())
}

func TestProcess_ConstantGravityStaysMonitoring(t *testing.T) {
	d := New(DefaultConfig())
	for i := int64(0); i < 1000; i++ {
		out := d.Process(gravity, 0, 0, i*10)
		require.False(t, out.FallDetected, "sample %d", i)
		require.Equal(t, Monitoring, out.Phase)
		require.Equal(t, "Monitoring", out.Label)
	}
}

func TestProcess_ShortDipDoesNotArm(t *testing.T) {
	d := New(unsmoothed())

	out := d.Process(gravity, 0, 0, 0)
	assert.Equal(t, Monitoring, out.Phase)

	out = d.Process(2, 0, 0, 20)
	assert.Equal(t, InFreeFall, out.Phase)

	// Back above the free-fall threshold after 20 ms: abort.
	out = d.Process(gravity, 0, 0, 40)
	assert.Equal(t, Monitoring, out.Phase)
	assert.False(t, out.FallDetected)

	// An unrelated spike later must not count as an impact.
	out = d.Process(20, 0, 0, 200)
	assert.False(t, out.FallDetected)
	assert.Equal(t, Monitoring, out.Phase)

	// A real fall afterwards is still detected.
	d.Process(1, 0, 0, 1000)
	d.Process(1, 0, 0, 1150)
	out = d.Process(20, 0, 0, 1200)
	assert.True(t, out.FallDetected)
}

func TestProcess_FullCycleDetection(t *testing.T) {
	d := New(DefaultConfig())
	outs := feed(d, fallSequence(120))

	// Smoothed magnitude over the impact samples: 5.6, 9.2, 12.8, 16.4.
	crossing := len(outs) - 1
	for i, out := range outs {
		if i == crossing {
			assert.True(t, out.FallDetected, "sample %d", i)
			assert.InDelta(t, 16.4, out.Smoothed, 1e-9)
			assert.Equal(t, Monitoring, out.Phase)
			continue
		}
		assert.False(t, out.FallDetected, "sample %d", i)
	}

	assert.Equal(t, InFreeFall, outs[0].Phase)
	assert.Equal(t, "Free fall (0ms)", outs[0].Label)
	assert.Equal(t, InFreeFall, outs[crossing-1].Phase)
	assert.Equal(t, 160*time.Millisecond, outs[crossing-1].FreeFall)

	out := d.Process(20, 0, 0, 200)
	assert.False(t, out.FallDetected)
	assert.Equal(t, Monitoring, out.Phase)
}

func TestProcess_WindowTimeout(t *testing.T) {
	d := New(DefaultConfig())
	outs := feed(d, fallSequence(3010))

	for i, out := range outs {
		assert.False(t, out.FallDetected, "sample %d", i)
	}
	last := outs[len(outs)-1]
	assert.Equal(t, Monitoring, last.Phase)
	assert.Greater(t, last.Smoothed, 15.0)
	assert.Equal(t, Monitoring, d.Phase())
}

func TestProcess_ImpactOnWindowEdge(t *testing.T) {
	d := New(unsmoothed())
	d.Process(0, 0, 0, 0)

	out := d.Process(20, 0, 0, 3000)
	assert.True(t, out.FallDetected)

	d = New(unsmoothed())
	d.Process(0, 0, 0, 0)

	out = d.Process(20, 0, 0, 3001)
	assert.False(t, out.FallDetected)
	assert.Equal(t, Monitoring, out.Phase)
}

func TestProcess_LongFreeFallWaitsForImpact(t *testing.T) {
	d := New(unsmoothed())
	d.Process(1, 0, 0, 0)

	// Above the free-fall threshold but past the minimum duration and
	// below the impact threshold: keep waiting.
	out := d.Process(gravity, 0, 0, 200)
	assert.Equal(t, InFreeFall, out.Phase)
	assert.Equal(t, "Free fall (200ms)", out.Label)
	assert.True(t, d.Detecting())

	out = d.Process(15, 0, 0, 300)
	assert.Equal(t, InFreeFall, out.Phase, "threshold is exclusive")

	out = d.Process(15.5, 0, 0, 400)
	assert.True(t, out.FallDetected)
	assert.False(t, d.Detecting())
}

func TestProcess_ImpactBeforeMinimumFreeFallAborts(t *testing.T) {
	d := New(unsmoothed())
	d.Process(1, 0, 0, 0)

	out := d.Process(30, 0, 0, 50)
	assert.False(t, out.FallDetected)
	assert.Equal(t, Monitoring, out.Phase)
}

func TestProcess_SmoothedIsMeanOfLastFive(t *testing.T) {
	d := New(DefaultConfig())
	samples := [][3]float64{
		{3, 4, 0}, {1, 2, 2}, {9.8, 0, 0}, {0, 0, 12}, {2, 3, 6},
		{0.5, 0.5, 0.5}, {7, 0, 24}, {-3, -4, 0}, {10, 1, 1},
	}

	var raws []float64
	for i, s := range samples {
		out := d.Process(s[0], s[1], s[2], int64(i)*10)
		raws = append(raws, out.Raw)
		assert.InDelta(t, math.Sqrt(s[0]*s[0]+s[1]*s[1]+s[2]*s[2]), out.Raw, 1e-12)
		if len(raws) < 5 {
			continue
		}
		last := raws[len(raws)-5:]
		want := (last[0] + last[1] + last[2] + last[3] + last[4]) / 5
		assert.InDelta(t, want, out.Smoothed, 1e-9, "sample %d", i)
	}
}

func TestProcess_Deterministic(t *testing.T) {
	seq := append(fallSequence(120), fallSequence(5000)...)
	for i := range seq[10:] {
		seq[10+i].TimeMs += 1000
	}

	a := feed(New(DefaultConfig()), seq)
	b := feed(New(DefaultConfig()), seq)
	assert.Equal(t, a, b)
}

func TestProcess_EarlyDetectionBeforeBufferFills(t *testing.T) {
	d := New(DefaultConfig())

	out := d.Process(2, 0, 0, 0)
	assert.Equal(t, InFreeFall, out.Phase, "transitions are not gated on a full buffer")

	out = d.Process(100, 0, 0, 100)
	assert.InDelta(t, 51.0, out.Smoothed, 1e-9)
	assert.True(t, out.FallDetected)
}

func TestProcess_NaNInput(t *testing.T) {
	d := New(DefaultConfig())

	out := d.Process(math.NaN(), 0, 0, 0)
	assert.True(t, math.IsNaN(out.Raw))
	assert.True(t, math.IsNaN(out.Smoothed))
	assert.Equal(t, Monitoring, out.Phase)
	assert.False(t, out.FallDetected)

	for i := int64(1); i <= 5; i++ {
		out = d.Process(gravity, 0, 0, i*10)
	}
	assert.InDelta(t, gravity, out.Smoothed, 1e-9)
	assert.Equal(t, Monitoring, out.Phase)
}

func TestProcess_NaNFreezesThenTimesOut(t *testing.T) {
	d := New(unsmoothed())
	d.Process(0, 0, 0, 0)

	out := d.Process(math.NaN(), 0, 0, 50)
	assert.Equal(t, InFreeFall, out.Phase)
	assert.False(t, out.FallDetected)

	out = d.Process(math.NaN(), 0, 0, 3100)
	assert.Equal(t, Monitoring, out.Phase)
	assert.False(t, out.FallDetected)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "Monitoring", Monitoring.String())
	assert.Equal(t, "InFreeFall", InFreeFall.String())
	assert.Equal(t, "ImpactOccurred", ImpactOccurred.String())
	assert.Equal(t, "Phase(7)", Phase(7).String())
}

func TestDebugInfo(t *testing.T) {
	d := New(unsmoothed())
	d.Process(0, 0, 0, 0)
	d.Process(0, 0, 0, 40)

	info := d.DebugInfo()
	assert.Contains(t, info, "free fall=4.0")
	assert.Contains(t, info, "impact=15.0")
	assert.Contains(t, info, "State: Free fall (40ms)")
	assert.Contains(t, info, "Free fall time: 40ms")
}

func TestSampleMagnitude(t *testing.T) {
	assert.Equal(t, 5.0, Sample{X: 3, Y: 4}.Magnitude())
	assert.Equal(t, 13.0, Sample{X: -5, Z: 12}.Magnitude())
}
