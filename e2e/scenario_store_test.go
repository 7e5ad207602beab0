package e2e

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"pulsex/infrastructure/storage"
	"pulsex/ratelimit"
)

// newRedisClient connects to the Redis named by the environment, or skips
// the test when none is configured. Each caller gets its own client, the
// way two hub processes would.
func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	cfg, err := LoadConfig()
	require.NoError(t, err)
	if cfg.RedisAddr == "" {
		t.Skip("REDIS_ADDR not set, skipping e2e suite")
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisCounter_FixedWindow(t *testing.T) {
	req := require.New(t)
	counter := storage.NewRedisCounter(newRedisClient(t))
	ctx := context.Background()

	key := fmt.Sprintf("e2e:counter:%s", uuid.NewString())

	count, ttl, err := counter.Incr(ctx, key, 2*time.Second)
	req.NoError(err)
	req.Equal(int64(1), count)
	req.Greater(ttl, time.Duration(0))

	count, _, err = counter.Incr(ctx, key, 2*time.Second)
	req.NoError(err)
	req.Equal(int64(2), count)

	// The window is anchored at the first increment: once it elapses the
	// count starts over.
	time.Sleep(2100 * time.Millisecond)
	count, _, err = counter.Incr(ctx, key, 2*time.Second)
	req.NoError(err)
	req.Equal(int64(1), count)
}

func TestLimiter_SharedAcrossProcesses(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Two limiter instances on separate connections, as in two processes
	// behind a load balancer. The quota must be spent once, not per process.
	quotas := map[ratelimit.Scope]ratelimit.Quota{
		ratelimit.ScopePing: {Capacity: 5, Window: 10 * time.Second, FailOpen: true},
	}
	limiterA := ratelimit.NewLimiter(testLogger(), storage.NewRedisCounter(newRedisClient(t)), quotas)
	limiterB := ratelimit.NewLimiter(testLogger(), storage.NewRedisCounter(newRedisClient(t)), quotas)

	key := uuid.NewString()
	for i := 0; i < 3; i++ {
		outcome, err := limiterA.Consume(ctx, ratelimit.ScopePing, key)
		req.NoError(err)
		req.True(outcome.Allowed)
	}
	for i := 0; i < 2; i++ {
		outcome, err := limiterB.Consume(ctx, ratelimit.ScopePing, key)
		req.NoError(err)
		req.True(outcome.Allowed)
	}

	outcome, err := limiterB.Consume(ctx, ratelimit.ScopePing, key)
	req.NoError(err)
	req.False(outcome.Allowed)
	req.Greater(outcome.RetryAfter, time.Duration(0))
}

func TestRedisBroker_PatternFanout(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	publisher := storage.NewRedisBroker(newRedisClient(t))
	subscriber := storage.NewRedisBroker(newRedisClient(t))

	pattern := fmt.Sprintf("e2e:room:%s:*", uuid.NewString())
	topic := pattern[:len(pattern)-1] + "alerts"

	sub, err := subscriber.Subscribe(ctx, pattern)
	req.NoError(err)
	defer sub.Close()

	req.NoError(publisher.Publish(ctx, topic, []byte(`{"text":"hello"}`)))

	select {
	case msg := <-sub.Messages():
		req.Equal(topic, msg.Topic)
		req.JSONEq(`{"text":"hello"}`, string(msg.Payload))
	case <-ctx.Done():
		req.Fail("no broadcast received before the deadline")
	}
}
