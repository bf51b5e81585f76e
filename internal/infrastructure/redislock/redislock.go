// Package redislock provides a short-lived mutual-exclusion lease in Redis.
//
// Hotel Core uses it so that only one process drains the breaker control
// queue at a time when several instances share a database file over a
// network mount or are being rolled. A lease expires on its own after its
// TTL, so a crashed holder never blocks the queue for longer than that.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/config"
)

const defaultTTL = 30 * time.Second

// releaseScript deletes the key only while it still holds our token, so a
// holder whose lease already expired cannot release someone else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrNotHeld is returned by a release function when the lease had already
// expired or been taken over.
var ErrNotHeld = errors.New("redislock: lease not held")

// NewClient creates a Redis client from configuration.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping tests the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Locker hands out one named lease. It satisfies breaker.Lease.
type Locker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// New creates a Locker for key. A non-positive ttl uses 30s.
func New(client *redis.Client, key string, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Locker{client: client, key: key, ttl: ttl}
}

// TryAcquire takes the lease if nobody holds it. It never blocks waiting
// for a holder.
func (l *Locker) TryAcquire(ctx context.Context) (func(context.Context) error, bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquiring %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
		if err != nil {
			return fmt.Errorf("releasing %s: %w", l.key, err)
		}
		if n == 0 {
			return ErrNotHeld
		}
		return nil
	}
	return release, true, nil
}
