package errors

import "fmt"

var (
	// Token verification failures. Always terminal for the connection attempt.
	ErrTokenMissing   = fmt.Errorf("no token presented")
	ErrTokenMalformed = fmt.Errorf("token cannot be decoded")
	ErrTokenSignature = fmt.Errorf("token signature mismatch")
	ErrTokenExpired   = fmt.Errorf("token expired")

	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrUserNotFound       = fmt.Errorf("user not found")

	// ErrStoreUnavailable wraps any failure to reach the shared store.
	// Callers decide fail-open vs fail-closed per rate-limit scope.
	ErrStoreUnavailable = fmt.Errorf("shared store unavailable")
	ErrUnknownScope     = fmt.Errorf("unknown rate limit scope")

	ErrInvalidPayload = fmt.Errorf("invalid event payload")
	ErrWorkerPanic    = fmt.Errorf("worker panic")
)
