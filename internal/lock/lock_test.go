package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SameKeyIsExclusive(t *testing.T) {
	guard := NewMemory()
	ctx := context.Background()

	release, err := guard.Acquire(ctx, "complete:1", time.Minute)
	require.NoError(t, err)

	_, err = guard.Acquire(ctx, "complete:1", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	other, err := guard.Acquire(ctx, "settle:1", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := guard.Acquire(ctx, "complete:1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestMemory_ExpiredEntryCanBeRetaken(t *testing.T) {
	guard := NewMemory()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	guard.now = func() time.Time { return now }

	stale, err := guard.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	fresh, err := guard.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	stale()
	_, err = guard.Acquire(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrHeld, "a stale release must not drop the new holder")

	fresh()
}

func TestRedis_UnreachableServerIsAnError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	guard := NewRedisWithClient(client, "")
	_, err := guard.Acquire(context.Background(), "complete:1", time.Second)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrHeld))
}
