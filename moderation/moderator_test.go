package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModerator_Censor(t *testing.T) {
	t.Run("should mask a blacklisted word", func(t *testing.T) {
		req := require.New(t)
		m, err := NewModerator([]string{"heck"}, '*')
		req.NoError(err)

		req.Equal("what the ****", m.Censor("what the heck"))
	})

	t.Run("should match regardless of case", func(t *testing.T) {
		req := require.New(t)
		m, err := NewModerator([]string{"heck"}, '*')
		req.NoError(err)

		req.Equal("****", m.Censor("HeCk"))
	})

	t.Run("should match across spacing and punctuation", func(t *testing.T) {
		req := require.New(t)
		m, err := NewModerator([]string{"heck"}, '*')
		req.NoError(err)

		censored := m.Censor("h.e c-k")
		req.NotContains(censored, "h")
		req.NotContains(censored, "k")
		req.Len([]rune(censored), len([]rune("h.e c-k")))
	})

	t.Run("should leave clean text untouched", func(t *testing.T) {
		req := require.New(t)
		m, err := NewModerator([]string{"heck"}, '*')
		req.NoError(err)

		req.Equal("all good here", m.Censor("all good here"))
	})

	t.Run("should pass through with an empty blacklist", func(t *testing.T) {
		req := require.New(t)
		m, err := NewModerator(nil, '*')
		req.NoError(err)

		req.Equal("heck", m.Censor("heck"))
	})
}
