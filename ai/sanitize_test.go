package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeRejectsLinksAndSearchTalk(t *testing.T) {
	for _, text := range []string{
		"",
		"   ",
		"Посмотри на https://example.com",
		"источник: http://a.b",
		"найди на ya.ru",
		"Поиск подскажет ответ",
		"Проверь в интернете",
		"[1] сноска",
	} {
		_, err := sanitize(text)
		assert.ErrorIs(t, err, ErrBadOutput, "input: %q", text)
	}
}

func TestSanitizeStripsBoilerplate(t *testing.T) {
	got, err := sanitize("Конечно! Что эта карта напоминает тебе?")
	require.NoError(t, err)
	assert.Equal(t, "Что эта карта напоминает тебе?", got)

	got, err = sanitize("Вот вопрос: «О чём ты мечтаешь?»")
	require.NoError(t, err)
	assert.Equal(t, "О чём ты мечтаешь?", got)
}

func TestSanitizeTrimsQuotes(t *testing.T) {
	got, err := sanitize("\"Что для тебя главное сейчас?\"")
	require.NoError(t, err)
	assert.Equal(t, "Что для тебя главное сейчас?", got)
}

func TestSanitizePassesCleanText(t *testing.T) {
	got, err := sanitize("  Что ты чувствуешь, глядя на эту карту?  ")
	require.NoError(t, err)
	assert.Equal(t, "Что ты чувствуешь, глядя на эту карту?", got)
}
