package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, func() {
		client.Close()
		mr.Close()
	}
}

func TestLockAcquireAndRelease(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	lock := NewLock(client)
	ctx := context.Background()

	acquired, err := lock.Acquire(ctx, "project:numpy", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, lock.Release(ctx, "project:numpy"))

	acquired, err = lock.Acquire(ctx, "project:numpy", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired, "lock should be re-acquirable after release")
}

func TestLockSecondAcquireFails(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	a := NewLock(client)
	b := NewLock(client)
	ctx := context.Background()

	acquired, err := a.Acquire(ctx, "project:numpy", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = b.Acquire(ctx, "project:numpy", time.Minute)
	require.NoError(t, err)
	require.False(t, acquired, "a different owner should not acquire a held lock")
}

func TestLockReleaseIgnoresForeignLock(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	a := NewLock(client)
	b := NewLock(client)
	ctx := context.Background()

	_, err := a.Acquire(ctx, "project:numpy", time.Minute)
	require.NoError(t, err)

	require.NoError(t, b.Release(ctx, "project:numpy"))

	acquired, err := b.Acquire(ctx, "project:numpy", time.Minute)
	require.NoError(t, err)
	require.False(t, acquired, "lock held by a should survive b's no-op release")
}
