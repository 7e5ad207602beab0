package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pulsex/domain"
	"pulsex/errors"
)

func TestTokenCodec_RoundTrip(t *testing.T) {
	req := require.New(t)
	codec := NewTokenCodec([]byte("unit-test-secret"), time.Hour)

	identity := domain.Identity{SubjectID: "u1", DisplayName: "ali"}

	token, err := codec.Issue(identity)
	req.NoError(err)
	req.NotEmpty(token)

	got, err := codec.Verify(token)
	req.NoError(err)
	req.Equal(identity, got)
}

func TestTokenCodec_Verify(t *testing.T) {
	secret := []byte("unit-test-secret")
	identity := domain.Identity{SubjectID: "u1", DisplayName: "ali"}

	t.Run("should fail with missing token", func(t *testing.T) {
		req := require.New(t)
		codec := NewTokenCodec(secret, time.Hour)

		_, err := codec.Verify("")
		req.ErrorIs(err, errors.ErrTokenMissing)
	})

	t.Run("should fail with malformed token", func(t *testing.T) {
		req := require.New(t)
		codec := NewTokenCodec(secret, time.Hour)

		_, err := codec.Verify("not.a.jwt")
		req.ErrorIs(err, errors.ErrTokenMalformed)
	})

	t.Run("should fail when signed with another secret", func(t *testing.T) {
		req := require.New(t)
		other := NewTokenCodec([]byte("rotated-secret"), time.Hour)
		token, err := other.Issue(identity)
		req.NoError(err)

		codec := NewTokenCodec(secret, time.Hour)
		_, err = codec.Verify(token)
		req.ErrorIs(err, errors.ErrTokenSignature)
	})

	t.Run("should fail once past the expiry instant", func(t *testing.T) {
		req := require.New(t)
		// Negative validity issues a token that is already expired.
		expired := NewTokenCodec(secret, -time.Minute)
		token, err := expired.Issue(identity)
		req.NoError(err)

		codec := NewTokenCodec(secret, time.Hour)
		_, err = codec.Verify(token)
		req.ErrorIs(err, errors.ErrTokenExpired)
	})
}
