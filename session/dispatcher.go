package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pulsex/contract"
	"pulsex/domain"
	"pulsex/domain/event"
	"pulsex/ratelimit"
)

// State of one connection's lifecycle. Authenticated splits into Idle
// and InRoom; Disconnected is terminal and reachable from anywhere.
type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateIdle
	StateInRoom
	StateDisconnected
)

// Verifier validates a bearer credential and extracts the identity claim.
type Verifier interface {
	Verify(token string) (domain.Identity, error)
}

// Moderator rewrites message text before it reaches the broadcast bus.
type Moderator interface {
	Censor(text string) string
}

// Dispatcher sequences verification, rate-limit checks, registry updates
// and broadcast calls for every connection. One Session per connection;
// the transport feeds each session its events in arrival order, which
// serializes same-connection handling.
type Dispatcher struct {
	verifier  Verifier
	limiter   ratelimit.ILimiter
	registry  contract.IRegistry
	bus       contract.IBus
	moderator Moderator
	log       *slog.Logger
}

func NewDispatcher(
	log *slog.Logger,
	verifier Verifier,
	limiter ratelimit.ILimiter,
	registry contract.IRegistry,
	bus contract.IBus,
	moderator Moderator,
) *Dispatcher {
	return &Dispatcher{
		verifier:  verifier,
		limiter:   limiter,
		registry:  registry,
		bus:       bus,
		moderator: moderator,
		log:       log,
	}
}

type Session struct {
	id          string
	identity    domain.Identity
	sink        contract.EventSink
	connectedAt time.Time

	d *Dispatcher

	mu    sync.Mutex
	state State
}

// Open verifies the presented token and, on success, registers the
// connection and emits the welcome event. On failure the connection is
// never registered and no event is emitted; the transport refuses the
// session.
func (d *Dispatcher) Open(ctx context.Context, token string, sink contract.EventSink) (*Session, error) {
	identity, err := d.verifier.Verify(token)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:          uuid.NewString(),
		identity:    identity,
		sink:        sink,
		connectedAt: time.Now().UTC(),
		d:           d,
		state:       StateIdle,
	}
	d.registry.Register(s.id, identity, sink)
	d.log.Info("session opened", "connection_id", s.id, "subject_id", identity.SubjectID)

	s.send(ctx, event.Welcome{
		User:        event.User{ID: identity.SubjectID, Username: identity.DisplayName},
		ConnectedAt: s.connectedAt,
	})
	return s, nil
}

func (s *Session) ID() string                { return s.id }
func (s *Session) Identity() domain.Identity { return s.identity }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Handle processes one inbound frame. Malformed or invalid payloads are
// dropped without a reply or a state change; that is the protocol's
// "drop invalid input" policy, not an oversight.
func (s *Session) Handle(ctx context.Context, raw []byte) {
	if ctx.Err() != nil || s.State() == StateDisconnected {
		return
	}

	e, err := event.Decode(raw)
	if err != nil {
		s.d.log.Debug("dropping invalid frame", "connection_id", s.id, "error", err)
		return
	}

	switch ev := e.(type) {
	case event.Ping:
		s.handlePing(ctx)
	case event.JoinRoom:
		s.handleJoin(ctx, domain.Room(ev.Room))
	case event.LeaveRoom:
		s.handleLeave(ctx)
	case event.RoomMessage:
		s.handleMessage(ctx, ev.Text)
	}
}

// Close tears the session down: registry entry removed, room membership
// released. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	s.d.registry.Unregister(s.id)
	s.d.log.Info("session closed", "connection_id", s.id, "subject_id", s.identity.SubjectID)
}

func (s *Session) handlePing(ctx context.Context) {
	outcome := s.consume(ctx, ratelimit.ScopePing, s.identity.SubjectID)
	if ctx.Err() != nil {
		return
	}
	if !outcome.Allowed {
		s.sendRateLimited(ctx, ratelimit.ScopePing, outcome)
		return
	}
	s.send(ctx, event.Pong{TS: time.Now().UTC()})
}

func (s *Session) handleJoin(ctx context.Context, room domain.Room) {
	outcome := s.consume(ctx, ratelimit.ScopeJoinRoom, s.identity.SubjectID)
	if ctx.Err() != nil {
		return
	}
	if !outcome.Allowed {
		s.sendRateLimited(ctx, ratelimit.ScopeJoinRoom, outcome)
		return
	}

	// The registry swaps any previous membership atomically.
	s.d.registry.JoinRoom(s.id, room)
	s.setState(StateInRoom)
	s.send(ctx, event.RoomJoined{Room: string(room)})
}

func (s *Session) handleLeave(ctx context.Context) {
	if _, ok := s.d.registry.LeaveRoom(s.id); !ok {
		// No current room: no event, no error.
		return
	}
	s.setState(StateIdle)
	s.send(ctx, event.RoomLeft{})
}

func (s *Session) handleMessage(ctx context.Context, text string) {
	room, ok := s.d.registry.RoomOf(s.id)
	if !ok {
		s.d.log.Debug("dropping message sent outside a room", "connection_id", s.id)
		return
	}

	outcome := s.consume(ctx, ratelimit.ScopeRoomMessage, s.identity.SubjectID)
	if ctx.Err() != nil {
		return
	}
	if !outcome.Allowed {
		// Typed notification to the offender only; the session stays open
		// and the room never sees the message.
		s.sendRateLimited(ctx, ratelimit.ScopeRoomMessage, outcome)
		return
	}

	if s.d.moderator != nil {
		text = s.d.moderator.Censor(text)
	}

	err := s.d.bus.Publish(ctx, domain.Envelope{
		Room:       room,
		SenderID:   s.identity.SubjectID,
		SenderName: s.identity.DisplayName,
		Text:       text,
		SentAt:     time.Now().UTC(),
	})
	if err != nil && ctx.Err() == nil {
		s.d.log.Error("publish failed", "connection_id", s.id, "room", room, "error", err)
	}
}

// consume runs the rate-limit check. Store outages are logged inside the
// limiter and resolved by the scope's fail-open/fail-closed policy, so
// only the outcome matters here.
func (s *Session) consume(ctx context.Context, scope ratelimit.Scope, key string) ratelimit.Outcome {
	outcome, _ := s.d.limiter.Consume(ctx, scope, key)
	return outcome
}

func (s *Session) sendRateLimited(ctx context.Context, scope ratelimit.Scope, outcome ratelimit.Outcome) {
	s.send(ctx, event.RateLimited{
		Scope:        string(scope),
		RetryAfterMs: outcome.RetryAfter.Milliseconds(),
	})
}

func (s *Session) send(ctx context.Context, e event.ServerEvent) {
	if err := s.sink.Consume(ctx, e); err != nil {
		s.d.log.Debug("sink refused event", "connection_id", s.id, "error", err)
	}
}
