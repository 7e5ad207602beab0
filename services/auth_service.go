//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	stderrors "errors"
	"fmt"

	"pulsex/auth"
	"pulsex/domain"
	"pulsex/errors"
	"pulsex/repositories"
)

type IAuthService interface {
	Login(username, password string) (string, error)
	Register(username, displayName, password string) (string, error)
}

// AuthService is the login-flow boundary: it exchanges credentials for a
// signed token. The hub core only ever verifies the token it produces.
type AuthService struct {
	users repositories.IUserRepository
	codec *auth.TokenCodec
}

func NewAuthService(users repositories.IUserRepository, codec *auth.TokenCodec) *AuthService {
	return &AuthService{users: users, codec: codec}
}

func (s *AuthService) Login(username, password string) (string, error) {
	if err := auth.ValidateLogin(auth.LoginRequest{Username: username, Password: password}); err != nil {
		return "", errors.ErrInvalidCredentials
	}

	user, err := s.users.GetUserByUsername(username)
	if err != nil {
		// Generic error to prevent user enumeration.
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.codec.Issue(domain.Identity{
		SubjectID:   user.ID,
		DisplayName: user.DisplayName,
	})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return token, nil
}

func (s *AuthService) Register(username, displayName, password string) (string, error) {
	req := auth.RegisterRequest{
		Username:    username,
		DisplayName: displayName,
		Password:    password,
	}
	// Validate before any expensive cryptographic work.
	if err := auth.ValidateRegister(req); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.users.CreateUser(username, displayName, hashedPassword)
	if err != nil {
		return "", err
	}

	token, err := s.codec.Issue(domain.Identity{SubjectID: userID, DisplayName: displayName})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return token, nil
}

// EnsureUser seeds a credential entry if it does not exist yet. Used for
// the demo users in local setups.
func (s *AuthService) EnsureUser(username, displayName, password string) error {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.users.CreateUser(username, displayName, hashedPassword)
	if stderrors.Is(err, errors.ErrUserAlreadyExists) {
		return nil
	}
	return err
}
