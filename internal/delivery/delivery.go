// Package delivery fans phase alerts out to every configured sink.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pomodoro/internal/eventbus"
	"pomodoro/internal/notification"
	logx "pomodoro/pkg/logx"
)

// ErrNotConfigured is returned by a channel whose credentials or target are empty.
var ErrNotConfigured = errors.New("configuration is empty")

// TransportError wraps a failure talking to the channel's backend.
type TransportError struct {
	Channel string
	Err     error
}

func (e *TransportError) Error() string { return e.Channel + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

func transportErr(channel string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Channel: channel, Err: err}
}

// Channel is one alert sink.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, a notification.Alert) error
}

// Outcome is the result of one channel attempt.
type Outcome struct {
	Channel string
	Err     error
}

func (o Outcome) OK() bool { return o.Err == nil }

func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(o.Err, &te) {
		return te.Err.Error()
	}
	return o.Err.Error()
}

// Report holds one outcome per channel, in registration order.
type Report struct {
	Phase    notification.Phase
	Outcomes []Outcome
}

func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

// Fanout delivers to all channels concurrently and waits for every attempt.
// One channel failing never affects the others.
type Fanout struct {
	mu       sync.RWMutex
	channels []Channel
	timeout  time.Duration

	log logx.Logger
	bus eventbus.Bus
}

func NewFanout(channels []Channel, timeout time.Duration, log logx.Logger, bus eventbus.Bus) *Fanout {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	return &Fanout{
		channels: append([]Channel(nil), channels...),
		timeout:  timeout,
		log:      log.With(logx.String("comp", "delivery")),
		bus:      bus,
	}
}

// Swap replaces the channel set and per-attempt timeout. Attempts already
// running keep the old values.
func (f *Fanout) Swap(channels []Channel, timeout time.Duration) {
	f.mu.Lock()
	f.channels = append([]Channel(nil), channels...)
	f.timeout = timeout
	f.mu.Unlock()
}

func (f *Fanout) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.channels))
	for _, c := range f.channels {
		out = append(out, c.Name())
	}
	return out
}

func (f *Fanout) Deliver(ctx context.Context, a notification.Alert) Report {
	f.mu.RLock()
	channels, timeout := f.channels, f.timeout
	f.mu.RUnlock()

	rep := Report{Phase: a.Phase, Outcomes: make([]Outcome, len(channels))}
	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			rep.Outcomes[i] = Outcome{Channel: ch.Name(), Err: attempt(ctx, ch, a, timeout)}
		}(i, ch)
	}
	wg.Wait()

	for _, o := range rep.Outcomes {
		f.bus.Publish(eventbus.Event{Type: eventbus.DeliveryAttempted, Data: eventbus.Delivery{Channel: o.Channel, OK: o.OK(), Reason: o.Reason()}})
		switch {
		case o.OK():
			f.log.Debug("alert delivered", logx.String("channel", o.Channel), logx.String("phase", a.Phase.String()))
		case errors.Is(o.Err, ErrNotConfigured):
			f.log.Debug("channel not configured", logx.String("channel", o.Channel))
		default:
			f.log.Warn("alert delivery failed", logx.String("channel", o.Channel), logx.String("phase", a.Phase.String()), logx.Err(o.Err))
		}
	}
	return rep
}

func attempt(ctx context.Context, ch Channel, a notification.Alert, timeout time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panicked: %v", r)
		}
	}()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return ch.Deliver(ctx, a)
}

// Limited throttles ch to ratePerSec attempts per second (burst of the same size).
func Limited(ch Channel, ratePerSec int) Channel {
	if ratePerSec <= 0 {
		return ch
	}
	return &limitedChannel{Channel: ch, limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)}
}

type limitedChannel struct {
	Channel
	limiter *rate.Limiter
}

func (l *limitedChannel) Deliver(ctx context.Context, a notification.Alert) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return transportErr(l.Name(), fmt.Errorf("rate limit: %w", err))
	}
	return l.Channel.Deliver(ctx, a)
}

// failedChannel reports a setup error on every attempt, e.g. an unreadable keyring secret.
type failedChannel struct {
	name string
	err  error
}

func (f failedChannel) Name() string { return f.name }

func (f failedChannel) Deliver(context.Context, notification.Alert) error { return f.err }
