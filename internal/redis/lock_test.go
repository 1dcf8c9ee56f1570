package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*miniredis.Miniredis, Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisScheduleLocker(client, 5*time.Second)
}

func TestScheduleLockReleasesAfterRun(t *testing.T) {
	mr, locker := newTestLocker(t)
	day := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)

	ran := false
	err := locker.WithScheduleLock(context.Background(), "doc-1", day, func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:schedule:doc-1:2024-02-15"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:schedule:doc-1:2024-02-15"))
}

func TestScheduleLockRejectsConcurrentHolder(t *testing.T) {
	mr, locker := newTestLocker(t)
	day := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, mr.Set("lock:schedule:doc-1:2024-02-15", "someone-else"))

	err := locker.WithScheduleLock(context.Background(), "doc-1", day, func(ctx context.Context) error {
		t.Fatal("critical section must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.ErrorContains(t, err, "doc-1 on 2024-02-15")

	// another doctor's schedule is independent
	err = locker.WithScheduleLock(context.Background(), "doc-2", day, func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestScheduleLockKeepsForeignToken(t *testing.T) {
	mr, locker := newTestLocker(t)
	day := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)

	err := locker.WithScheduleLock(context.Background(), "doc-1", day, func(ctx context.Context) error {
		// lock expired and was taken over while we held it
		mr.Set("lock:schedule:doc-1:2024-02-15", "new-owner")
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")

	got, getErr := mr.Get("lock:schedule:doc-1:2024-02-15")
	require.NoError(t, getErr)
	assert.Equal(t, "new-owner", got)
}

func TestNopLocker(t *testing.T) {
	called := false
	err := NopLocker{}.WithScheduleLock(context.Background(), "doc-1", time.Now(), func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestScheduleLockDefaultTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewRedisScheduleLocker(client, 0)
	day := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)

	err := locker.WithScheduleLock(context.Background(), "doc-1", day, func(ctx context.Context) error {
		assert.Equal(t, defaultLockTTL, mr.TTL("lock:schedule:doc-1:2024-02-15"))
		deadline, ok := ctx.Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(defaultLockTTL), deadline, time.Second)
		return nil
	})
	require.NoError(t, err)
}
