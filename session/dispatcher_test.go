package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"pulsex/auth"
	"pulsex/domain"
	"pulsex/domain/event"
	"pulsex/hub"
	"pulsex/mocks"
	"pulsex/ratelimit"
)

type recordingSink struct {
	events []event.ServerEvent
}

func (r *recordingSink) Consume(_ context.Context, e event.ServerEvent) error {
	r.events = append(r.events, e)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func allow() ratelimit.Outcome {
	return ratelimit.Outcome{Allowed: true, Remaining: 4}
}

type fixture struct {
	dispatcher *Dispatcher
	registry   *hub.Registry
	limiter    *mocks.MockILimiter
	bus        *mocks.MockIBus
	codec      *auth.TokenCodec
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	codec := auth.NewTokenCodec([]byte("dispatcher-test-secret"), time.Hour)
	registry := hub.NewRegistry()
	limiter := mocks.NewMockILimiter(ctrl)
	bus := mocks.NewMockIBus(ctrl)

	return &fixture{
		dispatcher: NewDispatcher(discardLogger(), codec, limiter, registry, bus, nil),
		registry:   registry,
		limiter:    limiter,
		bus:        bus,
		codec:      codec,
	}
}

func (f *fixture) open(t *testing.T, identity domain.Identity) (*Session, *recordingSink) {
	token, err := f.codec.Issue(identity)
	require.NoError(t, err)

	sink := &recordingSink{}
	sess, err := f.dispatcher.Open(context.Background(), token, sink)
	require.NoError(t, err)
	return sess, sink
}

func TestDispatcher_Open(t *testing.T) {
	t.Run("should welcome and register a valid session", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		sess, sink := f.open(t, domain.Identity{SubjectID: "u1", DisplayName: "ali"})

		req.Equal(StateIdle, sess.State())
		conns, _ := f.registry.Counts()
		req.Equal(1, conns)

		req.Len(sink.events, 1)
		welcome, ok := sink.events[0].(event.Welcome)
		req.True(ok)
		req.Equal("u1", welcome.User.ID)
		req.Equal("ali", welcome.User.Username)
	})

	t.Run("should refuse an expired token without registering", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		expiredCodec := auth.NewTokenCodec([]byte("dispatcher-test-secret"), -time.Minute)
		token, err := expiredCodec.Issue(domain.Identity{SubjectID: "u1", DisplayName: "ali"})
		req.NoError(err)

		sink := &recordingSink{}
		_, err = f.dispatcher.Open(context.Background(), token, sink)

		req.Error(err)
		req.Empty(sink.events)
		conns, _ := f.registry.Counts()
		req.Zero(conns)
	})

	t.Run("should refuse a missing token", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		_, err := f.dispatcher.Open(context.Background(), "", &recordingSink{})
		req.Error(err)
	})
}

func TestSession_Ping(t *testing.T) {
	t.Run("should answer ping with pong", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		sess, sink := f.open(t, domain.Identity{SubjectID: "u1", DisplayName: "ali"})

		f.limiter.EXPECT().
			Consume(gomock.Any(), ratelimit.ScopePing, "u1").
			Return(allow(), nil)

		sess.Handle(context.Background(), []byte(`{"event":"client:ping","data":{}}`))

		req.Len(sink.events, 2)
		_, ok := sink.events[1].(event.Pong)
		req.True(ok)
	})

	t.Run("should notify the caller when ping is rate limited", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		sess, sink := f.open(t, domain.Identity{SubjectID: "u1", DisplayName: "ali"})

		f.limiter.EXPECT().
			Consume(gomock.Any(), ratelimit.ScopePing, "u1").
			Return(ratelimit.Outcome{Allowed: false, RetryAfter: 3 * time.Second}, nil)

		sess.Handle(context.Background(), []byte(`{"event":"client:ping","data":{}}`))

		req.Len(sink.events, 2)
		limited, ok := sink.events[1].(event.RateLimited)
		req.True(ok)
		req.Equal(string(ratelimit.ScopePing), limited.Scope)
		req.Equal(int64(3000), limited.RetryAfterMs)
	})
}

func TestSession_Rooms(t *testing.T) {
	t.Run("should join a room and confirm it", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		sess, sink := f.open(t, domain.Identity{SubjectID: "u1", DisplayName: "ali"})

		f.limiter.EXPECT().
			Consume(gomock.Any(), ratelimit.ScopeJoinRoom, "u1").
			Return(allow(), nil)

		sess.Handle(context.Background(), []byte(`{"event":"client:joinRoom","data":{"room":"alerts"}}`))

		req.Equal(StateInRoom, sess.State())
		room, ok := f.registry.RoomOf(sess.ID())
		req.True(ok)
		req.Equal(domain.Room("alerts"), room)

		joined, ok := sink.events[len(sink.events)-1].(event.RoomJoined)
		req.True(ok)
		req.Equal("alerts", joined.Room)
	})

	t.Run("should swap rooms on a second join", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		sess, _ := f.open(t, domain.Identity{SubjectID: "u1", DisplayName: "ali"})

		f.limiter.EXPECT().
			Consume(gomock.Any(), ratelimit.ScopeJoinRoom, "u1").
			Return(allow(), nil).
			Times(2)

		sess.Handle(context.Background(), []byte(`{"event":"client:joinRoom","data":{"room":"alerts"}}`))
		sess.Handle(context.Background(), []byte(`{"event":"client:joinRoom","data":{"room":"general"}}`))

		room, ok := f.registry.RoomOf(sess.ID())
		req.True(ok)
		req.Equal(domain.Room("general"), room)
		req.Empty(f.registry.SinksForRoom("alerts"))
	})

	t.Run("should leave the current room", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		sess, sink := f.open(t, domain.Identity{SubjectID: "u1", DisplayName: "ali"})

		f.limiter.EXPECT().
			Consume(gomock.Any(), ratelimit.ScopeJoinRoom, "u1").
			Return(allow(), nil)

		sess.Handle(context.Background(), []byte(`{"event":"client:joinRoom","data":{"room":"alerts"}}`))
		sess.Handle(context.Background(), []byte(`{"event":"client:leaveRoom","data":{}}`))

		req.Equal(StateIdle, sess.State())
		_, ok := f.registry.RoomOf(sess.ID())
		req.False(ok)
		_, ok = sink.events[len(sink.events)-1].(event.RoomLeft)
		req.True(ok)
	})

	t.Run("should ignore leave when not in a room", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		sess, sink := f.open(t, domain.Identity{SubjectID: "u1", DisplayName: "ali"})
		before := len(sink.events)

		sess.Handle(context.Background(), []byte(`{"event":"client:leaveRoom","data":{}}`))

		req.Equal(StateIdle, sess.State())
		req.Len(sink.events, before)
	})
}

func TestSession_Messages(t *testing.T) {
	joinRoom := func(t *testing.T, f *fixture, sess *Session) {
		f.limiter.EXPECT().
			Consume(gomock.Any(), ratelimit.ScopeJoinRoom, gomock.Any()).
			Return(allow(), nil)
		sess.Handle(context.Background(), []byte(`{"event":"client:joinRoom","data":{"room":"alerts"}}`))
	}

	t.Run("should publish a message to the bus", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		sess, _ := f.open(t, domain.Identity{SubjectID: "u1", DisplayName: "ali"})
		joinRoom(t, f, sess)

		f.limiter.EXPECT().
			Consume(gomock.Any(), ratelimit.ScopeRoomMessage, "u1").
			Return(allow(), nil)

		var published domain.Envelope
		f.bus.EXPECT().
			Publish(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, env domain.Envelope) error {
				published = env
				return nil
			})

		sess.Handle(context.Background(), []byte(`{"event":"client:roomMessage","data":{"text":"hello"}}`))

		req.Equal(domain.Room("alerts"), published.Room)
		req.Equal("u1", published.SenderID)
		req.Equal("ali", published.SenderName)
		req.Equal("hello", published.Text)
	})

	t.Run("should notify only the offender when rate limited", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		sess, sink := f.open(t, domain.Identity{SubjectID: "u1", DisplayName: "ali"})
		joinRoom(t, f, sess)

		f.limiter.EXPECT().
			Consume(gomock.Any(), ratelimit.ScopeRoomMessage, "u1").
			Return(ratelimit.Outcome{Allowed: false, RetryAfter: 7 * time.Second}, nil)
		f.bus.EXPECT().
			Publish(gomock.Any(), gomock.Any()).
			Times(0)

		sess.Handle(context.Background(), []byte(`{"event":"client:roomMessage","data":{"text":"hello"}}`))

		limited, ok := sink.events[len(sink.events)-1].(event.RateLimited)
		req.True(ok)
		req.Equal(string(ratelimit.ScopeRoomMessage), limited.Scope)
		req.Equal(int64(7000), limited.RetryAfterMs)
		req.Equal(StateInRoom, sess.State())
	})

	t.Run("should drop a message sent outside any room", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		sess, sink := f.open(t, domain.Identity{SubjectID: "u1", DisplayName: "ali"})
		before := len(sink.events)

		f.bus.EXPECT().
			Publish(gomock.Any(), gomock.Any()).
			Times(0)

		sess.Handle(context.Background(), []byte(`{"event":"client:roomMessage","data":{"text":"hello"}}`))

		req.Len(sink.events, before)
	})

	t.Run("should censor text before publishing", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		codec := auth.NewTokenCodec([]byte("dispatcher-test-secret"), time.Hour)
		registry := hub.NewRegistry()
		limiter := mocks.NewMockILimiter(ctrl)
		bus := mocks.NewMockIBus(ctrl)
		f := &fixture{
			dispatcher: NewDispatcher(discardLogger(), codec, limiter, registry, bus, maskingModerator{}),
			registry:   registry,
			limiter:    limiter,
			bus:        bus,
			codec:      codec,
		}

		sess, _ := f.open(t, domain.Identity{SubjectID: "u1", DisplayName: "ali"})
		joinRoom(t, f, sess)

		f.limiter.EXPECT().
			Consume(gomock.Any(), ratelimit.ScopeRoomMessage, "u1").
			Return(allow(), nil)

		var published domain.Envelope
		f.bus.EXPECT().
			Publish(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, env domain.Envelope) error {
				published = env
				return nil
			})

		sess.Handle(context.Background(), []byte(`{"event":"client:roomMessage","data":{"text":"hello"}}`))

		req.Equal("censored", published.Text)
	})
}

type maskingModerator struct{}

func (maskingModerator) Censor(string) string { return "censored" }

func TestSession_InvalidFrames(t *testing.T) {
	frames := map[string]string{
		"not json":       `{{{`,
		"unknown event":  `{"event":"client:selfDestruct","data":{}}`,
		"blank room":     `{"event":"client:joinRoom","data":{"room":"   "}}`,
		"missing text":   `{"event":"client:roomMessage","data":{}}`,
		"empty frame":    ``,
		"missing event":  `{"data":{"text":"hi"}}`,
		"oversized room": `{"event":"client:joinRoom","data":{"room":"` + strings.Repeat("a", 100) + `"}}`,
	}

	for name, raw := range frames {
		t.Run("should silently drop "+name, func(t *testing.T) {
			req := require.New(t)
			f := newFixture(t)
			sess, sink := f.open(t, domain.Identity{SubjectID: "u1", DisplayName: "ali"})
			before := len(sink.events)

			sess.Handle(context.Background(), []byte(raw))

			req.Len(sink.events, before)
			req.Equal(StateIdle, sess.State())
		})
	}
}

func TestSession_Close(t *testing.T) {
	t.Run("should unregister and release the room", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		sess, _ := f.open(t, domain.Identity{SubjectID: "u1", DisplayName: "ali"})

		f.limiter.EXPECT().
			Consume(gomock.Any(), ratelimit.ScopeJoinRoom, "u1").
			Return(allow(), nil)
		sess.Handle(context.Background(), []byte(`{"event":"client:joinRoom","data":{"room":"alerts"}}`))

		sess.Close()
		sess.Close() // idempotent

		req.Equal(StateDisconnected, sess.State())
		conns, rooms := f.registry.Counts()
		req.Zero(conns)
		req.Zero(rooms)
	})

	t.Run("should ignore frames after close", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		sess, sink := f.open(t, domain.Identity{SubjectID: "u1", DisplayName: "ali"})

		sess.Close()
		before := len(sink.events)
		sess.Handle(context.Background(), []byte(`{"event":"client:ping","data":{}}`))

		req.Len(sink.events, before)
	})
}
