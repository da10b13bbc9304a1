package ai

import (
	"errors"
	"strings"
)

// ErrBadOutput marks generator output rejected by sanitation.
var ErrBadOutput = errors.New("ai: unusable model output")

// bannedFragments invalidate the whole completion: links and search chatter
// have no place in a reflective dialog.
var bannedFragments = []string{
	"http:",
	"https:",
	"ya.ru",
	"]",
	"поиск",
	"интернет",
}

// boilerplatePrefixes are assistant-style lead-ins stripped from the front of
// the completion before use.
var boilerplatePrefixes = []string{
	"конечно!",
	"конечно,",
	"вот вопрос:",
	"вот мой вопрос:",
	"хороший вопрос:",
	"отличный вопрос:",
	"итак,",
	"ответ:",
}

// sanitize validates and cleans a completion. Empty or link-bearing output
// is rejected so the retry loop can ask again.
func sanitize(text string) (string, error) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return "", ErrBadOutput
	}

	lower := strings.ToLower(cleaned)
	for _, frag := range bannedFragments {
		if strings.Contains(lower, frag) {
			return "", ErrBadOutput
		}
	}

	for _, prefix := range boilerplatePrefixes {
		if strings.HasPrefix(lower, prefix) {
			cleaned = strings.TrimSpace(cleaned[len(prefix):])
			lower = strings.ToLower(cleaned)
		}
	}
	cleaned = strings.Trim(cleaned, "\"«»")
	if cleaned == "" {
		return "", ErrBadOutput
	}
	return cleaned, nil
}
