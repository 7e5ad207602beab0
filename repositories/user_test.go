package repositories_test

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"pulsex/errors"
	"pulsex/repositories"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUserRepository(t *testing.T) {
	t.Run("should create and retrieve a user", func(t *testing.T) {
		req := require.New(t)
		repo := repositories.NewUserRepository(openTestDB(t))

		id, err := repo.CreateUser("ali", "Ali", "$argon2id$fake")
		req.NoError(err)
		req.NotEmpty(id)

		user, err := repo.GetUserByUsername("ali")
		req.NoError(err)
		req.Equal(id, user.ID)
		req.Equal("Ali", user.DisplayName)
		req.Equal("$argon2id$fake", user.PasswordHash)
	})

	t.Run("should default display name to username", func(t *testing.T) {
		req := require.New(t)
		repo := repositories.NewUserRepository(openTestDB(t))

		_, err := repo.CreateUser("test", "", "$argon2id$fake")
		req.NoError(err)

		user, err := repo.GetUserByUsername("test")
		req.NoError(err)
		req.Equal("test", user.DisplayName)
	})

	t.Run("should reject a duplicate username", func(t *testing.T) {
		req := require.New(t)
		repo := repositories.NewUserRepository(openTestDB(t))

		_, err := repo.CreateUser("ali", "Ali", "hash-1")
		req.NoError(err)
		_, err = repo.CreateUser("ali", "Someone Else", "hash-2")
		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})

	t.Run("should report a missing user", func(t *testing.T) {
		req := require.New(t)
		repo := repositories.NewUserRepository(openTestDB(t))

		_, err := repo.GetUserByUsername("ghost")
		req.ErrorIs(err, errors.ErrUserNotFound)
	})
}

func TestBlacklistRepository(t *testing.T) {
	req := require.New(t)
	repo := repositories.NewBlacklistRepository(openTestDB(t))

	words, err := repo.Words()
	req.NoError(err)
	req.Empty(words)

	req.NoError(repo.Add("darn", "heck"))

	words, err = repo.Words()
	req.NoError(err)
	req.ElementsMatch([]string{"darn", "heck"}, words)
}
