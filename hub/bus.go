package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"pulsex/contract"
	"pulsex/domain"
	"pulsex/domain/event"
)

const topicPrefix = "pulsex:room:"

// Bus is the room broadcast path. Publish writes to the shared channel
// for the room; Run holds this process's subscription and fans every
// received message out to the locally registered members of that room.
//
// The publisher's own process receives its messages through the same
// subscription path as everyone else. There is no local short-circuit:
// that keeps delivery order identical for all processes and makes a room
// spread across a load balancer behave like a single hub.
type Bus struct {
	broker   contract.Broker
	registry contract.IRegistry
	log      *slog.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

func NewBus(log *slog.Logger, broker contract.Broker, registry contract.IRegistry) *Bus {
	return &Bus{
		broker:   broker,
		registry: registry,
		log:      log,
		ready:    make(chan struct{}),
	}
}

func (b *Bus) Publish(ctx context.Context, env domain.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return b.broker.Publish(ctx, topicPrefix+string(env.Room), payload)
}

// Run establishes the subscription and consumes it until ctx is
// canceled. It is a contract.Worker and runs under the supervisor.
func (b *Bus) Run(ctx context.Context) error {
	sub, err := b.broker.Subscribe(ctx, topicPrefix+"*")
	if err != nil {
		return err
	}
	defer func() {
		if err := sub.Close(); err != nil {
			b.log.Warn("closing room subscription", "error", err)
		}
	}()

	b.readyOnce.Do(func() { close(b.ready) })
	b.log.Info("room broadcast subscription established", "pattern", topicPrefix+"*")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.Messages():
			if !ok {
				return fmt.Errorf("room subscription closed by the store")
			}
			b.deliver(ctx, msg)
		}
	}
}

// WaitReady blocks until the subscription is live. The server calls this
// before accepting any connection.
func (b *Bus) WaitReady(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) deliver(ctx context.Context, msg contract.BrokerMessage) {
	var env domain.Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		b.log.Warn("dropping undecodable broadcast payload", "topic", msg.Topic, "error", err)
		return
	}

	// The topic is authoritative for routing; a payload claiming another
	// room never crosses over.
	room := domain.Room(strings.TrimPrefix(msg.Topic, topicPrefix))
	if env.Room != room {
		b.log.Warn("dropping broadcast with mismatched room",
			"topic", msg.Topic, "claimed_room", env.Room)
		return
	}

	out := event.RoomMessageOut{
		Room:   string(env.Room),
		User:   event.User{ID: env.SenderID, Username: env.SenderName},
		Text:   env.Text,
		SentAt: env.SentAt,
	}
	for _, sink := range b.registry.SinksForRoom(room) {
		if err := sink.Consume(ctx, out); err != nil {
			b.log.Debug("sink dropped broadcast", "room", room, "error", err)
		}
	}
}
