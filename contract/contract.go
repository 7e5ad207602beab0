//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"pulsex/domain"
	"pulsex/domain/event"
)

// Counter is the narrow view of the shared store used by rate limiting.
// Incr must be a single atomic operation: increment the key, start the
// window expiry on the first hit, and report the post-increment count
// together with the time left until the window resets.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// Broker is the narrow view of the shared store used by room broadcast.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe returns once the subscription is established on the store,
	// so callers can sequence it before accepting connections.
	Subscribe(ctx context.Context, pattern string) (Subscription, error)
}

type Subscription interface {
	// Messages is closed when the subscription ends.
	Messages() <-chan BrokerMessage
	Close() error
}

type BrokerMessage struct {
	Topic   string
	Payload []byte
}

// EventSink delivers server events to one connection. Implementations
// must not block the caller; a slow consumer is dropped, not waited on.
type EventSink interface {
	Consume(ctx context.Context, e event.ServerEvent) error
}

// IRegistry indexes the connections physically held by this process.
// Cross-process room membership is only visible through the broadcast bus.
type IRegistry interface {
	Register(connID string, identity domain.Identity, sink EventSink)
	JoinRoom(connID string, room domain.Room)
	LeaveRoom(connID string) (domain.Room, bool)
	Unregister(connID string)
	RoomOf(connID string) (domain.Room, bool)
	SinksForRoom(room domain.Room) []EventSink
	Counts() (connections, rooms int)
}

// IBus publishes room messages to the shared broadcast channel.
type IBus interface {
	Publish(ctx context.Context, env domain.Envelope) error
}

// Worker doesn't protect itself; the supervisor does.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// for logging and supervision, avoiding manual naming on the interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
