package alert

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/speaker"
	"go.uber.org/zap"
)

const sirenRate = beep.SampleRate(44100)

// Siren is a Notifier that plays a short tone on every countdown pulse, the
// audible stand-in for the watch vibrating.
type Siren struct {
	freq   float64
	tone   time.Duration
	logger *zap.Logger

	once    sync.Once
	initErr error
	ready   bool
}

// NewSiren creates a Siren playing freq Hz for tone on every pulse.
func NewSiren(freq float64, tone time.Duration, logger *zap.Logger) *Siren {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Siren{freq: freq, tone: tone, logger: logger}
}

// Pulse starts the tone and returns without waiting for it to finish.
func (s *Siren) Pulse(remaining int) {
	s.once.Do(func() {
		s.initErr = speaker.Init(sirenRate, sirenRate.N(time.Second/10))
		if s.initErr != nil {
			s.logger.Warn("Audio output unavailable, siren disabled", zap.Error(s.initErr))
			return
		}
		s.ready = true
	})
	if !s.ready {
		return
	}

	tone, err := generators.SineTone(sirenRate, s.freq)
	if err != nil {
		s.logger.Warn("Failed to build siren tone", zap.Float64("freq", s.freq), zap.Error(err))
		return
	}
	speaker.Play(beep.Take(sirenRate.N(s.tone), tone))
	s.logger.Debug("Siren pulse", zap.Int("remaining", remaining))
}

// Stop silences any tone still playing. Pulse and Stop are called from the
// dispatcher's countdown goroutine only.
func (s *Siren) Stop() {
	if s.ready {
		speaker.Clear()
	}
}
