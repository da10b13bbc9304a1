package card

// Resource level keys and their display labels.
const (
	ResourceGood   = "good"
	ResourceMedium = "medium"
	ResourceLow    = "low"
)

// ResourceLabels maps level keys to the labels shown on buttons and stored
// in the journal.
var ResourceLabels = map[string]string{
	ResourceGood:   "😊 Хорошо",
	ResourceMedium: "😐 Средне",
	ResourceLow:    "😔 Низко",
}

const (
	textAskInitialResource = "Привет, %s! Прежде чем вытянуть карту дня — как ты сейчас? Каков твой уровень ресурса?"

	textAskRequestChoice = "Хорошо. Теперь сформулируй запрос к карте. Можешь держать его в голове или написать здесь."

	textAskRequestText = "Напиши свой запрос одним-двумя предложениями."

	textRequestTooShort = "Попробуй сформулировать чуть подробнее — хотя бы несколько слов."

	textCardDrawn = "Вот твоя карта дня. Посмотри на неё внимательно.\n\nЧто ты видишь? Какое первое впечатление, образ или чувство?"

	textImpressionTooShort = "Напиши чуть подробнее — что ты видишь или чувствуешь?"

	textAskExplore = "Хочешь исследовать эту карту глубже? Я задам три вопроса."

	textAnswerTooShort = "Ответь чуть подробнее, пожалуйста."

	textAskFinalResource = "Как ты себя чувствуешь теперь, после работы с картой?"

	textAskRecharge = "Что обычно помогает тебе восстановиться? Напиши свой способ — я запомню его для тебя."

	textRechargeTooShort = "Напиши чуть подробнее — какой способ восстановления тебе помогает?"

	textRechargeThanks = "Записал. Пусть сегодня найдётся время для этого. 💛"

	textAskFeedback = "И последний шаг: как тебе сегодняшняя сессия?"

	textAlreadyDrawn = "Сегодня ты уже тянул карту (%s). Новая будет доступна завтра — а пока можно вернуться к сегодняшней. 🌙"

	textAnotherFlow = "Давай сначала закончим текущий диалог, а потом вытянем карту."

	textPressButton = "Выбери один из вариантов на кнопках выше. 🙂"

	textInternalError = "Что-то пошло не так. Давай попробуем ещё раз чуть позже."
)

// feedbackReplies maps feedback kinds to acknowledgement texts.
var feedbackReplies = map[string]string{
	"helped":      "Рад, что сессия помогла! До завтра. 💛",
	"interesting": "Здорово, что было интересно! До завтра. ✨",
	"notdeep":     "Спасибо за честность — завтра попробуем глубже. 🙏",
}
