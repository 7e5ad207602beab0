package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pulsex/contract"
)

// RedisBroker implements contract.Broker on the shared store's pub/sub.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe opens a pattern subscription and blocks until the store has
// confirmed it, so the caller can rely on the subscription being live
// before accepting any connection.
func (b *RedisBroker) Subscribe(ctx context.Context, pattern string) (contract.Subscription, error) {
	ps := b.client.PSubscribe(ctx, pattern)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", pattern, err)
	}

	sub := &redisSubscription{ps: ps, out: make(chan contract.BrokerMessage, 64)}
	go sub.pump()
	return sub, nil
}

type redisSubscription struct {
	ps  *redis.PubSub
	out chan contract.BrokerMessage
}

func (s *redisSubscription) pump() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		s.out <- contract.BrokerMessage{Topic: msg.Channel, Payload: []byte(msg.Payload)}
	}
}

func (s *redisSubscription) Messages() <-chan contract.BrokerMessage {
	return s.out
}

// Close unsubscribes and releases the shared channel handle, leaving no
// dangling subscriber entries in the store.
func (s *redisSubscription) Close() error {
	return s.ps.Close()
}
