package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "user:1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "user:1", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.Acquire(ctx, "user:2", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := l.Acquire(ctx, "user:1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestMemoryLocker_ExpiredLockIsTakenOver(t *testing.T) {
	l := NewMemoryLocker()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "user:1", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	fresh, err := l.Acquire(ctx, "user:1", time.Minute)
	require.NoError(t, err)

	// Releasing the stale holder must not drop the new one.
	stale()
	_, err = l.Acquire(ctx, "user:1", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)
	fresh()
}

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, "scanlock:"), mr
}

func TestRedisLocker(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "user:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("scanlock:user:1"))

	_, err = l.Acquire(ctx, "user:1", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	release()
	assert.False(t, mr.Exists("scanlock:user:1"))

	again, err := l.Acquire(ctx, "user:1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestRedisLocker_TTLExpiry(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "user:9", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := l.Acquire(ctx, "user:9", time.Minute)
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("scanlock:user:9"))
	fresh()
	assert.False(t, mr.Exists("scanlock:user:9"))
}

func TestRedisLocker_ConnectionError(t *testing.T) {
	l, mr := newRedisLocker(t)
	mr.Close()

	_, err := l.Acquire(context.Background(), "user:1", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocked)
}
