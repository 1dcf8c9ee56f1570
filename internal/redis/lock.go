package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired means another writer is inside the same doctor's day.
var ErrLockNotAcquired = errors.New("schedule is locked by another writer")

const defaultLockTTL = 10 * time.Second

// Locker serializes check-then-write sections on one doctor's schedule for one day.
// The database exclusion constraint remains the final guard; the lock keeps
// concurrent bookings from racing into it.
type Locker interface {
	WithScheduleLock(ctx context.Context, doctorID string, date time.Time, fn func(ctx context.Context) error) error
}

type redisScheduleLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisScheduleLocker returns a Locker keyed on lock:schedule:<doctor>:<date>.
// The lock expires after ttl even if its holder never releases it, and fn's context
// is cut off at the same moment.
func NewRedisScheduleLocker(client *redis.Client, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &redisScheduleLocker{client: client, ttl: ttl}
}

func scheduleKey(doctorID string, date time.Time) string {
	return "lock:schedule:" + doctorID + ":" + date.Format("2006-01-02")
}

// heldLock is one acquisition; token tells it apart from a later holder of the
// same key after expiry.
type heldLock struct {
	key   string
	token string
}

func (l *redisScheduleLocker) WithScheduleLock(ctx context.Context, doctorID string, date time.Time, fn func(ctx context.Context) error) error {
	held, err := l.acquire(ctx, scheduleKey(doctorID, date))
	if err != nil {
		return fmt.Errorf("schedule of %s on %s: %w", doctorID, date.Format("2006-01-02"), err)
	}
	// released even when the caller gave up; an expired lock needs no release
	defer func() { _ = l.release(context.WithoutCancel(ctx), held) }()

	fnCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()
	return fn(fnCtx)
}

func (l *redisScheduleLocker) acquire(ctx context.Context, key string) (heldLock, error) {
	held := heldLock{key: key, token: uuid.NewString()}
	won, err := l.client.SetNX(ctx, key, held.token, l.ttl).Result()
	switch {
	case err != nil:
		return heldLock{}, fmt.Errorf("redis SETNX %s: %w", key, err)
	case !won:
		return heldLock{}, ErrLockNotAcquired
	}
	return held, nil
}

// releaseIfOwner deletes the key only while it still carries our token.
var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisScheduleLocker) release(ctx context.Context, held heldLock) error {
	err := releaseIfOwner.Run(ctx, l.client, []string{held.key}, held.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", held.key, err)
	}
	return nil
}

// NopLocker runs fn without coordination, for deployments without Redis.
type NopLocker struct{}

func (NopLocker) WithScheduleLock(ctx context.Context, _ string, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
