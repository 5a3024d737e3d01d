// Package ratelimit caps the number of questions a user may ask per
// calendar day. Counters live under "chatMessageCount:<userId>:<yyyy-mm-dd>";
// a new day means a new key, old keys are left to expire.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

const (
	KeyPrefix  = "chatMessageCount"
	DefaultMax = 5
	// KeyTTL outlives the longest day in any timezone.
	KeyTTL = 48 * time.Hour
)

// ErrLimitReached is returned when the daily allowance is used up.
var ErrLimitReached = errors.New("daily question limit reached")

type Store interface {
	// Get returns 0 for a missing key.
	Get(ctx context.Context, key string) (int, error)
	Set(ctx context.Context, key string, value int, ttl time.Duration) error
}

type Counter struct {
	store Store
	max   int
	now   func() time.Time
}

type Option func(*Counter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Counter) { c.now = now }
}

func New(store Store, max int, opts ...Option) *Counter {
	if max <= 0 {
		max = DefaultMax
	}
	c := &Counter{store: store, max: max, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func Key(userID string, t time.Time) string {
	if userID == "" {
		userID = "anonymous"
	}
	return fmt.Sprintf("%s:%s:%s", KeyPrefix, userID, t.Format("2006-01-02"))
}

func (c *Counter) Max() int { return c.max }

func (c *Counter) Key(userID string) string {
	return Key(userID, c.now())
}

// Count returns today's count for userID.
func (c *Counter) Count(ctx context.Context, userID string) (int, error) {
	n, err := c.store.Get(ctx, c.Key(userID))
	if err != nil {
		return 0, errors.Wrap(err, "read counter")
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

// Check fails with ErrLimitReached once the count reached the maximum. It
// never modifies the counter.
func (c *Counter) Check(ctx context.Context, userID string) (int, error) {
	n, err := c.Count(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n >= c.max {
		return n, ErrLimitReached
	}
	return n, nil
}

// Increment adds one to today's count, never going past the maximum.
func (c *Counter) Increment(ctx context.Context, userID string) (int, error) {
	key := c.Key(userID)
	n, err := c.store.Get(ctx, key)
	if err != nil {
		return 0, errors.Wrap(err, "read counter")
	}
	if n >= c.max {
		return c.max, nil
	}
	n++
	if err := c.store.Set(ctx, key, n, KeyTTL); err != nil {
		return n - 1, errors.Wrap(err, "write counter")
	}
	return n, nil
}

// Remaining returns how many questions are left today.
func (c *Counter) Remaining(ctx context.Context, userID string) (int, error) {
	n, err := c.Count(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n >= c.max {
		return 0, nil
	}
	return c.max - n, nil
}
