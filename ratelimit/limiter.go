//go:generate go run go.uber.org/mock/mockgen -source=limiter.go -destination=../mocks/mock_limiter.go -package=mocks
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pulsex/contract"
	"pulsex/errors"
)

// Scope names a category of rate-limited action. Each scope owns an
// independent quota.
type Scope string

const (
	ScopeLogin       Scope = "login"
	ScopePing        Scope = "ping"
	ScopeRoomMessage Scope = "roomMessage"
	ScopeJoinRoom    Scope = "joinRoom"
)

// Quota is the fixed-window configuration of one scope.
// FailOpen decides the policy when the shared store is unreachable:
// advisory scopes allow the action, authentication-adjacent scopes deny.
type Quota struct {
	Capacity int
	Window   time.Duration
	FailOpen bool
}

// DefaultQuotas mirrors the production configuration.
func DefaultQuotas() map[Scope]Quota {
	return map[Scope]Quota{
		ScopeLogin:       {Capacity: 5, Window: 60 * time.Second, FailOpen: false},
		ScopePing:        {Capacity: 5, Window: 10 * time.Second, FailOpen: true},
		ScopeRoomMessage: {Capacity: 5, Window: 10 * time.Second, FailOpen: true},
		ScopeJoinRoom:    {Capacity: 10, Window: 10 * time.Second, FailOpen: true},
	}
}

type Outcome struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type ILimiter interface {
	Consume(ctx context.Context, scope Scope, key string) (Outcome, error)
}

// Limiter enforces per-key fixed-window quotas against counters held in
// the shared store, so the count is consistent across all processes.
type Limiter struct {
	counter contract.Counter
	quotas  map[Scope]Quota
	prefix  string
	log     *slog.Logger
}

func NewLimiter(log *slog.Logger, counter contract.Counter, quotas map[Scope]Quota) *Limiter {
	return &Limiter{
		counter: counter,
		quotas:  quotas,
		prefix:  "pulsex:rl:",
		log:     log,
	}
}

// Consume spends one unit of the scope's quota for the given key.
//
// The increment-and-check is a single atomic store operation: two callers
// racing on the same key can never both observe a pre-denial state.
//
// When the store is unreachable, Consume returns the scope's fail-open or
// fail-closed outcome together with an error wrapping ErrStoreUnavailable,
// so the call site can log it without special-casing the decision.
func (l *Limiter) Consume(ctx context.Context, scope Scope, key string) (Outcome, error) {
	quota, ok := l.quotas[scope]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", errors.ErrUnknownScope, scope)
	}

	storeKey := fmt.Sprintf("%s%s:%s", l.prefix, scope, key)
	count, ttl, err := l.counter.Incr(ctx, storeKey, quota.Window)
	if err != nil {
		l.log.Error("rate limit counter unreachable",
			"scope", scope, "fail_open", quota.FailOpen, "error", err)
		outcome := Outcome{Allowed: quota.FailOpen}
		if !quota.FailOpen {
			// A fail-closed denial must still tell the caller when to
			// retry; without the store's TTL the full window is the
			// only safe answer.
			outcome.RetryAfter = quota.Window
		}
		return outcome, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	if count > int64(quota.Capacity) {
		retryAfter := ttl
		if retryAfter <= 0 {
			retryAfter = quota.Window
		}
		return Outcome{Allowed: false, RetryAfter: retryAfter}, nil
	}

	return Outcome{Allowed: true, Remaining: quota.Capacity - int(count)}, nil
}
