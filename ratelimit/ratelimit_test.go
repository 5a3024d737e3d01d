package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestKeyFormat(t *testing.T) {
	day := time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "chatMessageCount:u-1:2026-03-09", Key("u-1", day))
	assert.Equal(t, "chatMessageCount:anonymous:2026-03-09", Key("", day))
}

func TestSixthQuestionRejected(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore(), 5, WithClock(fixedClock(time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC))))

	for i := 1; i <= 5; i++ {
		_, err := c.Check(ctx, "u")
		require.NoError(t, err)
		n, err := c.Increment(ctx, "u")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	n, err := c.Check(ctx, "u")
	require.ErrorIs(t, err, ErrLimitReached)
	assert.Equal(t, 5, n)

	n, err = c.Increment(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 5, n, "count never exceeds max")

	remaining, err := c.Remaining(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestNewDayNewKey(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 23, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	c := New(store, 1, WithClock(func() time.Time { return now }))

	_, err := c.Increment(ctx, "u")
	require.NoError(t, err)
	_, err = c.Check(ctx, "u")
	require.ErrorIs(t, err, ErrLimitReached)

	now = now.Add(2 * time.Hour)
	_, err = c.Check(ctx, "u")
	require.NoError(t, err)

	// yesterday's key is abandoned, not deleted
	old, err := store.Get(ctx, "chatMessageCount:u:2026-01-02")
	require.NoError(t, err)
	assert.Equal(t, 1, old)
}

func TestUsersAreIndependent(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemoryStore(), 1)

	_, err := c.Increment(ctx, "a")
	require.NoError(t, err)
	_, err = c.Check(ctx, "b")
	assert.NoError(t, err)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (int, error) { return 0, errors.New("down") }
func (failingStore) Set(context.Context, string, int, time.Duration) error {
	return errors.New("down")
}

func TestStoreErrorsPropagate(t *testing.T) {
	c := New(failingStore{}, 5)
	_, err := c.Check(context.Background(), "u")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLimitReached)
}

func TestDefaultMax(t *testing.T) {
	assert.Equal(t, DefaultMax, New(NewMemoryStore(), 0).Max())
}
