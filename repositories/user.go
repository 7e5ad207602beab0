//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"pulsex/errors"
)

const userKeyPrefix = "user:"

type IUserRepository interface {
	CreateUser(username, displayName, hashedPassword string) (string, error)
	GetUserByUsername(username string) (User, error)
}

// User is the repository-level representation of a credential entry.
// Only the login flow reads it; the hub core never sees password hashes.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// CreateUser persists the user and returns its generated ID.
// The username doubles as the key, so duplicates are rejected.
func (r *UserRepository) CreateUser(username, displayName, hashedPassword string) (string, error) {
	user := User{
		ID:           uuid.NewString(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}
	if user.DisplayName == "" {
		user.DisplayName = username
	}

	data, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		key := []byte(userKeyPrefix + username)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (r *UserRepository) GetUserByUsername(username string) (User, error) {
	var user User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userKeyPrefix + username))
		if err != nil {
			if stderrors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrUserNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}
