package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestModerator(t *testing.T, words ...string) *Moderator {
	t.Helper()
	m, err := NewModerator(words, '*')
	require.NoError(t, err)
	return m
}

func TestCensor_PlainWord(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t, "moron")

	censored, matched := m.Censor("you absolute moron")

	req.Equal("you absolute *****", censored)
	req.Equal([]string{"moron"}, matched)
}

func TestCensor_LeetAndCase(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t, "moron")

	censored, matched := m.Censor("M0r0n alert")

	req.Equal("***** alert", censored)
	req.Len(matched, 1)
}

func TestCensor_CleanTextUntouched(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t, "moron")

	input := "perfectly polite sentence"
	censored, matched := m.Censor(input)

	req.Equal(input, censored)
	req.Empty(matched)
}

func TestCensor_EmptyInput(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t, "moron")

	censored, matched := m.Censor("")

	req.Equal("", censored)
	req.Empty(matched)
}

func TestLoadBlacklists(t *testing.T) {
	req := require.New(t)

	data, err := LoadBlacklists()

	req.NoError(err)
	req.NotEmpty(data.Words)
	req.Contains(data.Languages, "en")
	req.Contains(data.Languages, "fr")
}
