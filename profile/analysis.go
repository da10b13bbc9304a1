package profile

import "strings"

// Mood labels produced by ClassifyMood.
const (
	MoodPositive = "позитивное"
	MoodNegative = "сниженное"
	MoodNeutral  = "нейтральное"
)

// Trend labels produced by MoodTrend.
const (
	TrendUp     = "улучшается"
	TrendDown   = "снижается"
	TrendStable = "стабильно"
)

var positiveMarkers = []string{
	"хорошо", "рад", "счаст", "спокой", "отлично",
	"легко", "тепло", "благодар", "люблю", "вдохнов",
}

var negativeMarkers = []string{
	"плохо", "груст", "тяжело", "устал", "тревог",
	"страх", "злюсь", "одинок", "боль", "слож",
}

var themeMarkers = map[string][]string{
	"работа":         {"работ", "карьер", "проект", "начальник", "коллег"},
	"отношения":      {"отношен", "семь", "муж", "жена", "друз", "партн", "мама", "папа", "дет"},
	"здоровье":       {"здоров", "болезн", "сон", "энерг", "тело", "спорт"},
	"самореализация": {"себя", "смысл", "цель", "мечт", "будущ", "развит", "уверен"},
	"деньги":         {"деньг", "финанс", "долг", "зарплат"},
}

// themeOrder fixes the output ordering so profiles are deterministic.
var themeOrder = []string{"работа", "отношения", "здоровье", "самореализация", "деньги"}

func moodScore(text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, m := range positiveMarkers {
		if strings.Contains(lower, m) {
			score++
		}
	}
	for _, m := range negativeMarkers {
		if strings.Contains(lower, m) {
			score--
		}
	}
	return score
}

// ClassifyMood labels the overall mood of the given texts by keyword counting.
func ClassifyMood(texts []string) string {
	total := 0
	for _, t := range texts {
		total += moodScore(t)
	}
	switch {
	case total > 0:
		return MoodPositive
	case total < 0:
		return MoodNegative
	default:
		return MoodNeutral
	}
}

// MoodTrend compares the older half of texts against the newer half.
// Texts must be ordered oldest first.
func MoodTrend(texts []string) string {
	if len(texts) < 2 {
		return TrendStable
	}
	mid := len(texts) / 2
	older, newer := 0, 0
	for _, t := range texts[:mid] {
		older += moodScore(t)
	}
	for _, t := range texts[mid:] {
		newer += moodScore(t)
	}
	switch {
	case newer > older:
		return TrendUp
	case newer < older:
		return TrendDown
	default:
		return TrendStable
	}
}

// moodHistoryLimit caps the stored mood sequence length.
const moodHistoryLimit = 5

// MoodSequence classifies each text on its own and returns the most recent
// labels, oldest first. Texts must be ordered oldest first.
func MoodSequence(texts []string) []string {
	var seq []string
	for _, t := range texts {
		seq = append(seq, ClassifyMood([]string{t}))
	}
	if len(seq) > moodHistoryLimit {
		seq = seq[len(seq)-moodHistoryLimit:]
	}
	return seq
}

// ExtractThemes returns the recurring life themes mentioned in the texts,
// in a fixed order.
func ExtractThemes(texts []string) []string {
	seen := make(map[string]bool)
	for _, t := range texts {
		lower := strings.ToLower(t)
		for theme, markers := range themeMarkers {
			if seen[theme] {
				continue
			}
			for _, m := range markers {
				if strings.Contains(lower, m) {
					seen[theme] = true
					break
				}
			}
		}
	}
	var themes []string
	for _, theme := range themeOrder {
		if seen[theme] {
			themes = append(themes, theme)
		}
	}
	return themes
}
