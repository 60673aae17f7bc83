// Package redislock provides a single-holder lock over Redis for work that
// must not run concurrently across instances, such as scheduled reminder
// runs. Locks auto-expire so a crashed holder never wedges the job forever.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/caredesk/clinic-scheduling/pkg/logging"
)

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("redislock: not acquired")

// Locker guards critical sections with a per-name Redis key. A nil client
// disables locking and runs the section directly; single-instance
// deployments need no Redis to function.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// New creates a locker. ttl bounds both the lock lifetime and the guarded
// section's context.
func New(client *redis.Client, ttl time.Duration, logger *logging.Logger) *Locker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Locker{client: client, ttl: ttl, logger: logger.Named("redislock")}
}

// unlockScript deletes the key only if this holder's token still owns it,
// so a lock that expired and was re-acquired elsewhere is never released
// out from under the new holder.
var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

// WithLock runs fn while holding the named lock. If another holder owns it,
// ErrNotAcquired is returned without running fn.
func (l *Locker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if l.client == nil {
		return fn(ctx)
	}

	key := "lock:" + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("redislock: acquire %s: %w", name, err)
	}
	if !ok {
		return ErrNotAcquired
	}

	defer func() {
		if err := l.release(ctx, key, token); err != nil {
			l.logger.Warn("lock release failed", "lock", name, "error", err)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()
	return fn(runCtx)
}

func (l *Locker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redislock: release: %w", err)
	}
	return nil
}
