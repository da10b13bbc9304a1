package ai

import (
	"fmt"
	"strings"
)

const personaPrompt = "Ты — тёплый и внимательный проводник по метафорическим ассоциативным картам. " +
	"Ты говоришь по-русски, обращаешься на «ты», пишешь коротко и без ссылок. " +
	"Ты не даёшь советов и не интерпретируешь карту за человека — ты помогаешь ему услышать себя."

func profileLines(pc PromptContext) string {
	var b strings.Builder
	if pc.Name != "" {
		fmt.Fprintf(&b, "Имя: %s.\n", pc.Name)
	}
	if pc.Mood != "" {
		fmt.Fprintf(&b, "Настроение: %s.\n", pc.Mood)
	}
	if pc.MoodTrend != "" {
		fmt.Fprintf(&b, "Динамика настроения: %s.\n", pc.MoodTrend)
	}
	if len(pc.MoodHistory) > 0 {
		fmt.Fprintf(&b, "Настроение за последние сессии: %s.\n", strings.Join(pc.MoodHistory, " -> "))
	}
	if len(pc.Themes) > 0 {
		fmt.Fprintf(&b, "Темы, которые его занимают: %s.\n", strings.Join(pc.Themes, ", "))
	}
	if pc.AvgResponseLength > 0 {
		fmt.Fprintf(&b, "Средняя длина его ответов: %d символов.\n", pc.AvgResponseLength)
	}
	if pc.InitialResource != "" {
		fmt.Fprintf(&b, "Уровень ресурса в начале сессии: %s.\n", pc.InitialResource)
	}
	return b.String()
}

func transcript(request, impression string, history []QA) string {
	var b strings.Builder
	if request != "" {
		fmt.Fprintf(&b, "Запрос: %s\n", request)
	}
	if impression != "" {
		fmt.Fprintf(&b, "Первое впечатление от карты: %s\n", impression)
	}
	for _, qa := range history {
		fmt.Fprintf(&b, "%s\nОтвет: %s\n", qa.Question, qa.Answer)
	}
	return b.String()
}

func questionSystemPrompt(pc PromptContext) string {
	return personaPrompt + "\n\nЧто известно о собеседнике:\n" + profileLines(pc) +
		"\nЗадай один открытый вопрос, который поможет углубиться в образ карты. " +
		"Одно-два предложения, без нумерации, без префиксов, без ссылок."
}

func questionUserPrompt(step int, request, impression string, history []QA) string {
	return fmt.Sprintf(
		"Диалог с картой:\n%s\nСформулируй вопрос номер %d из 3. Не повторяй предыдущие вопросы.",
		transcript(request, impression, history), step,
	)
}

func summarySystemPrompt(pc PromptContext) string {
	return personaPrompt + "\n\nЧто известно о собеседнике:\n" + profileLines(pc) +
		"\nПодведи тёплый итог сессии: что человек увидел, какой внутренний шаг сделал. " +
		"3-4 предложения, без советов, без ссылок."
}

func summaryUserPrompt(request, impression string, history []QA) string {
	return "Вот как прошла сессия:\n" + transcript(request, impression, history)
}

func supportSystemPrompt() string {
	return personaPrompt +
		"\nЧеловеку сейчас тяжело, его ресурс на нуле. Поддержи его коротко и бережно: " +
		"2-3 предложения, без советов и наставлений, без ссылок."
}

func supportUserPrompt(pc PromptContext) string {
	lines := profileLines(pc)
	if lines == "" {
		return "Поддержи человека после трудной сессии с картой."
	}
	return "Поддержи человека после трудной сессии с картой. Вот что о нём известно:\n" + lines
}

func reflectionSystemPrompt() string {
	return personaPrompt +
		"\nЧеловек делится вечерней рефлексией о прожитом дне. " +
		"Отрази его день тепло и внимательно: 3-4 предложения, без советов, без ссылок."
}

func reflectionUserPrompt(good, gratitude, hard string) string {
	return fmt.Sprintf(
		"Хорошие моменты дня: %s\nБлагодарность: %s\nТрудные моменты: %s",
		good, gratitude, hard,
	)
}
