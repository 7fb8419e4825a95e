package redisclient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/careops/clinicbook/internal/calendar"
	"github.com/careops/clinicbook/internal/lock"
)

const lockKeyPrefix = "lock:resource:"

// retryInterval is how often an acquisition attempt is repeated while waiting
// for a contended section.
const retryInterval = 25 * time.Millisecond

// ResourceLocker implements lock.Locker on Redis so that several API instances
// can share one clinic's calendars. Each resource key maps to a SETNX key with
// a unique token; release is token-checked via a Lua script so an expired lock
// is never deleted by a later holder.
type ResourceLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewResourceLocker creates a locker whose sections auto-expire after ttl and
// whose acquisitions give up after wait.
func NewResourceLocker(client *redis.Client, ttl, wait time.Duration) *ResourceLocker {
	return &ResourceLocker{client: client, ttl: ttl, wait: wait}
}

func (l *ResourceLocker) WithResourceLocks(ctx context.Context, keys []calendar.Key, fn func(ctx context.Context) error) error {
	names := lock.SortedKeyNames(keys)
	token := uuid.NewString()

	deadline := time.Now().Add(l.wait)

	var held []string
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			_ = l.release(ctx, held[i], token)
		}
	}

	for _, name := range names {
		redisKey := lockKeyPrefix + name
		if err := l.acquire(ctx, redisKey, token, deadline); err != nil {
			release()
			return err
		}
		held = append(held, redisKey)
	}

	defer release()

	// Bound the critical section by the lock TTL so work cannot outlive the
	// lock and race a second holder.
	sectionCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(sectionCtx)
}

// acquire retries SETNX until it wins, the deadline passes, or ctx is done.
func (l *ResourceLocker) acquire(ctx context.Context, key, token string, deadline time.Time) error {
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return lock.ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *ResourceLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
