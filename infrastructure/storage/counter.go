package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments the key and starts the window expiry on the first
// hit of a new window, in one atomic round trip. Returns the
// post-increment count and the remaining window in milliseconds.
var incrScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	return {count, ttl}
`)

// RedisCounter implements contract.Counter on the shared store.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	result, err := incrScript.Run(ctx, c.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("counter incr: %w", err)
	}
	if len(result) != 2 {
		return 0, 0, fmt.Errorf("counter incr: unexpected reply length %d", len(result))
	}

	count := result[0]
	ttl := time.Duration(result[1]) * time.Millisecond
	if ttl < 0 {
		// PTTL returns a negative value when the key has no expiry;
		// treat it as a fresh window.
		ttl = window
	}
	return count, ttl, nil
}
