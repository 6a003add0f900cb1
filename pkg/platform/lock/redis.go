package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"doccontrol/pkg/platform/sentinel"
)

const (
	redisKeyPrefix     = "doccontrol:lock:"
	defaultRedisTTL    = 30 * time.Second
	defaultRetryPeriod = 25 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every instance connected to the same Redis.
// Locks expire after ttl so a crashed holder cannot wedge a document forever.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithTTL sets how long a lock survives without being released.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRetryPeriod sets the polling interval while waiting for a held lock.
func WithRetryPeriod(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.retry = d
		}
	}
}

// NewRedis constructs a Redis-backed Locker.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: defaultRedisTTL, retry: defaultRetryPeriod}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %w", sentinel.ErrLockNotAcquired, key, ctx.Err())
			}
			return nil, fmt.Errorf("%w: acquire lock %s: %w", sentinel.ErrUnavailable, key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", sentinel.ErrLockNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// Release with a fresh context: the caller's may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err()
	}, nil
}
