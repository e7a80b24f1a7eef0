package alert

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Countdown defaults: five one-second pulses before the alert goes out.
const (
	DefaultCountdown = 5
	DefaultPulse     = time.Second
)

// Notifier signals the wearer while an alert is counting down.
type Notifier interface {
	// Pulse is called once per countdown step with the steps left.
	Pulse(remaining int)
	// Stop ends any ongoing signal.
	Stop()
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithNotifier sets the countdown notifier.
func WithNotifier(n Notifier) DispatcherOption {
	return func(d *Dispatcher) { d.notifier = n }
}

// WithCountdown sets the number of pulses and the time between them.
func WithCountdown(pulses int, every time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.countdown = pulses
		d.pulse = every
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// Dispatcher delays each fall alert by a cancellable countdown before
// handing it to the sink. Only one alert is active at a time; triggers that
// arrive while one is active are dropped.
type Dispatcher struct {
	sink      Sink
	notifier  Notifier
	countdown int
	pulse     time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	active   bool
	counting bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewDispatcher creates a Dispatcher delivering to sink.
func NewDispatcher(sink Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sink:      sink,
		countdown: DefaultCountdown,
		pulse:     DefaultPulse,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(d)
	}
	if d.notifier == nil {
		d.notifier = LogNotifier{Logger: d.logger}
	}
	return d
}

// Trigger starts the countdown for ev. It reports false when an alert is
// already active. Cancelling ctx abandons the countdown.
func (d *Dispatcher) Trigger(ctx context.Context, ev FallEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		d.logger.Info("Alert already active, ignoring fall", zap.String("event_id", ev.ID))
		return false
	}

	cctx, cancel := context.WithCancel(ctx)
	d.active = true
	d.counting = true
	d.cancel = cancel

	d.wg.Add(1)
	go d.run(cctx, cancel, ev)
	return true
}

// Cancel aborts an alert that is still counting down. It reports whether
// there was one.
func (d *Dispatcher) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.counting {
		return false
	}
	d.counting = false
	d.cancel()
	return true
}

// Pending reports whether an alert is active.
func (d *Dispatcher) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Wait blocks until no alert is active.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, cancel context.CancelFunc, ev FallEvent) {
	defer d.wg.Done()
	defer cancel()

	log := d.logger.With(zap.String("event_id", ev.ID))
	log.Warn("Fall detected, alert countdown started",
		zap.Int("countdown", d.countdown), zap.Duration("pulse", d.pulse))

	for remaining := d.countdown; remaining > 0; remaining-- {
		d.notifier.Pulse(remaining)

		timer := time.NewTimer(d.pulse)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.notifier.Stop()
			d.finish()
			log.Info("Fall alert cancelled", zap.Int("remaining", remaining))
			return
		case <-timer.C:
		}
	}

	d.notifier.Stop()

	d.mu.Lock()
	if !d.counting {
		// Cancelled as the last pulse elapsed.
		d.active = false
		d.mu.Unlock()
		log.Info("Fall alert cancelled", zap.Int("remaining", 0))
		return
	}
	d.counting = false
	d.mu.Unlock()

	if err := d.sink.Send(context.WithoutCancel(ctx), ev); err != nil {
		log.Error("Failed to send fall alert", zap.Error(err))
	} else {
		log.Info("Fall alert delivered")
	}
	d.finish()
}

// finish frees the dispatcher for the next alert. The notifier must already
// be stopped.
func (d *Dispatcher) finish() {
	d.mu.Lock()
	d.active = false
	d.counting = false
	d.mu.Unlock()
}

// LogNotifier logs each countdown step.
type LogNotifier struct {
	Logger *zap.Logger
}

// Pulse logs the remaining steps.
func (n LogNotifier) Pulse(remaining int) {
	n.Logger.Info("Sending fall alert unless cancelled", zap.Int("remaining", remaining))
}

// Stop does nothing.
func (LogNotifier) Stop() {}
