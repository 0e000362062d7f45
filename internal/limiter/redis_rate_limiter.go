package limiter

import (
	"context"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

const minDelay = 100 * time.Millisecond

// RedisRateLimiter spaces out requests to the same host across every
// process sharing the Redis instance.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: rdb,
		prefix: "pitscrapy:host:",
	}
}

func (rl *RedisRateLimiter) Wait(ctx context.Context, domain string, delay time.Duration) error {
	if delay < minDelay {
		delay = minDelay
	}
	key := rl.prefix + domain

	for {
		success, err := rl.client.SetNX(ctx, key, 1, delay).Result()
		if err != nil {
			return err
		}
		if success {
			return nil
		}

		ttl, err := rl.client.PTTL(ctx, key).Result()
		if err != nil {
			return err
		}

		wait := time.Second
		if ttl > 0 {
			wait = ttl
			if ttl >= 10 {
				wait += time.Duration(rand.Int63n(int64(ttl / 10)))
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
