// Package retry runs fallible operations with bounded, exponential backoff.
//
// Fetch never panics and never leaves the caller without a result: the
// returned Result always carries either Data or Err, so call sites branch on
// Err instead of wrapping calls in recovery code.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Options struct {
	// Retries is the number of additional attempts after the first one.
	Retries int
	// Delay is the wait before the first retry.
	Delay time.Duration
	// Multiplier grows the delay after every attempt. 1 keeps it fixed.
	Multiplier float64
	// MaxDelay caps the grown delay. Zero means no cap.
	MaxDelay time.Duration
	// Timeout bounds each attempt. Zero means the caller's context only.
	Timeout time.Duration
	// Name labels log lines.
	Name string
}

// DefaultOptions is shared by session resolution, inference, chart
// generation and health checks.
var DefaultOptions = Options{
	Retries:    3,
	Delay:      time.Second,
	Multiplier: 2,
	MaxDelay:   8 * time.Second,
	Timeout:    15 * time.Second,
}

type Result[T any] struct {
	Data     T
	Err      error
	Attempts int
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. errors.Is and errors.As still
// see through the marker.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Backoff returns the wait before retry number attempt (1-based).
func Backoff(opts Options, attempt int) time.Duration {
	if attempt < 1 || opts.Delay <= 0 {
		return 0
	}
	mult := opts.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(opts.Delay) * math.Pow(mult, float64(attempt-1))
	if opts.MaxDelay > 0 && d > float64(opts.MaxDelay) {
		return opts.MaxDelay
	}
	return time.Duration(d)
}

// Fetch invokes op until it succeeds, returns a permanent error, the retry
// budget is spent or ctx is done.
func Fetch[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts Options) Result[T] {
	var res Result[T]
	// op always runs at least once
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			delay := Backoff(opts, attempt)
			log.Debug().Str("op", opts.Name).Int("attempt", attempt).Dur("delay", delay).Msg("retrying")
			if err := sleep(ctx, delay); err != nil {
				res.Err = errors.Wrap(err, "retry aborted")
				return res
			}
		}

		res.Attempts = attempt + 1
		data, err := runOnce(ctx, op, opts.Timeout)
		if err == nil {
			res.Data = data
			res.Err = nil
			return res
		}
		res.Err = err

		if IsPermanent(err) {
			return res
		}
		if ctx.Err() != nil {
			return res
		}
		log.Warn().Err(err).Str("op", opts.Name).Int("attempt", res.Attempts).Msg("attempt failed")
	}
	return res
}

func runOnce[T any](ctx context.Context, op func(ctx context.Context) (T, error), timeout time.Duration) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("operation panicked: %v", r))
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return op(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
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
