package auth

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pulsex/domain"
	"pulsex/errors"
)

// Claims is the data carried inside the access token.
// subject_id lives in the registered "sub" claim.
type Claims struct {
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies access tokens with a process-wide
// symmetric secret (HMAC-SHA256). Rotating the secret invalidates all
// outstanding tokens; that is accepted behavior.
type TokenCodec struct {
	secret   []byte
	validity time.Duration
}

func NewTokenCodec(secret []byte, validity time.Duration) *TokenCodec {
	return &TokenCodec{secret: secret, validity: validity}
}

// Issue creates a signed token for the given identity.
// This happens once, at login; the hub core only ever verifies.
func (c *TokenCodec) Issue(identity domain.Identity) (string, error) {
	now := time.Now()
	claims := &Claims{
		DisplayName: identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.validity)),
			Issuer:    "pulsex",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return signed, nil
}

// Verify checks the token and extracts the identity claim.
// Pure computation, no I/O, no side effects.
func (c *TokenCodec) Verify(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Identity{}, errors.ErrTokenMissing
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		switch {
		case stderrors.Is(err, jwt.ErrTokenExpired):
			return domain.Identity{}, errors.ErrTokenExpired
		case stderrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return domain.Identity{}, errors.ErrTokenSignature
		default:
			return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrTokenMalformed, err)
		}
	}
	if !token.Valid {
		return domain.Identity{}, errors.ErrTokenSignature
	}

	return domain.Identity{
		SubjectID:   claims.Subject,
		DisplayName: claims.DisplayName,
	}, nil
}
