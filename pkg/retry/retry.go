// Package retry polls a probe until it yields a value, an allowed absence,
// or its deadline passes.
//
// Only errors marked with core.Retryable are swallowed and retried. Any
// other probe error aborts the loop and is returned as-is. Poll runs on
// the caller's goroutine and never starts another one.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/logger"
)

// DefaultInterval is the pause between probe attempts.
const DefaultInterval = 500 * time.Millisecond

// Probe is one attempt. present=false with a nil error means "not yet".
type Probe[T any] func(ctx context.Context) (value T, present bool, err error)

// Outcome is the result of Poll. On success Present is true and Err is nil.
// On timeout Present is false and Err holds the last retryable error, or a
// synthesized core.ErrTimeout when none was seen. With AllowAbsent an
// absent result returns with neither set.
type Outcome[T any] struct {
	Result   T
	Present  bool
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// Found reports whether the probe produced a value.
func (o Outcome[T]) Found() bool { return o.Present }

// Value returns the result and the outcome error.
func (o Outcome[T]) Value() (T, error) { return o.Result, o.Err }

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	// Sleep pauses for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealClock is the wall clock.
var RealClock Clock = realClock{}

type options struct {
	interval    time.Duration
	allowAbsent bool
	clock       Clock
	describe    string
	log         *zap.Logger
}

// Option configures Poll.
type Option func(*options)

// Interval sets the pause between attempts. Negative values are rejected
// by Poll.
func Interval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// AllowAbsent makes an absent probe result a successful outcome.
func AllowAbsent() Option {
	return func(o *options) { o.allowAbsent = true }
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// Describe names what is being waited for in the synthesized timeout error.
func Describe(what string) Option {
	return func(o *options) { o.describe = what }
}

// WithLogger sets the logger for attempt tracing.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Poll invokes probe until it succeeds or timeout elapses. The returned
// error is reserved for usage errors, non-retryable probe errors and
// context cancellation; timeouts are reported through Outcome.Err.
func Poll[T any](ctx context.Context, timeout time.Duration, probe Probe[T], opts ...Option) (Outcome[T], error) {
	o := options{interval: DefaultInterval, clock: RealClock, log: logger.L()}
	for _, opt := range opts {
		opt(&o)
	}

	var out Outcome[T]
	if timeout <= 0 {
		return out, core.ErrInvalidTimeout.WithMessagef("timeout must be positive, got %s", timeout)
	}
	if o.interval < 0 {
		return out, core.ErrInvalidTimeout.WithMessagef("poll interval must not be negative, got %s", o.interval)
	}
	if probe == nil {
		return out, core.NewExecutionError(core.ErrCategoryUsage, "invalid_probe", "probe must not be nil")
	}

	start := o.clock.Now()
	deadline := start.Add(timeout)
	var last error

	for o.clock.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			out.Elapsed = o.clock.Now().Sub(start)
			return out, err
		}

		out.Attempts++
		value, present, err := probe(ctx)
		switch {
		case err != nil && !core.IsRetryable(err):
			out.Elapsed = o.clock.Now().Sub(start)
			return out, err
		case err != nil:
			last = err
			o.log.Debug("retryable failure", zap.String("waiting_for", o.describe), zap.Int("attempt", out.Attempts), zap.Error(err))
		case present:
			out.Result, out.Present = value, true
			out.Elapsed = o.clock.Now().Sub(start)
			return out, nil
		case o.allowAbsent:
			out.Elapsed = o.clock.Now().Sub(start)
			return out, nil
		default:
			last = nil
		}

		remaining := deadline.Sub(o.clock.Now())
		if remaining <= 0 {
			break
		}
		if err := o.clock.Sleep(ctx, min(o.interval, remaining)); err != nil {
			out.Elapsed = o.clock.Now().Sub(start)
			return out, err
		}
	}

	out.Elapsed = o.clock.Now().Sub(start)
	if last == nil {
		last = timeoutError(o.describe, timeout, out.Elapsed)
	}
	out.Err = last
	return out, nil
}

func timeoutError(what string, timeout, elapsed time.Duration) error {
	msg := "operation timed out after " + elapsed.Round(time.Millisecond).String()
	if what != "" {
		msg += " waiting for " + what
	}
	return core.ErrTimeout.WithMessage(msg).WithDetails(map[string]interface{}{
		"timeout": timeout.String(),
		"elapsed": elapsed.String(),
	})
}
