package app

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/makbot/core/telegram/keyboard"
)

// Main menu reply-keyboard labels.
const (
	menuCard       = "🎴 Карта дня"
	menuReflection = "🌙 Вечерняя рефлексия"
	menuBonus      = "💌 Подсказка Вселенной"
)

// mainMenu builds the reply keyboard; the bonus row appears only while the
// universe-advice bonus is unclaimed.
func mainMenu(bonus bool) *tele.ReplyMarkup {
	rows := [][]string{{menuCard}, {menuReflection}}
	if bonus {
		rows = append(rows, []string{menuBonus})
	}
	return keyboard.ReplyButtons(rows...)
}

// universeAdvice is the fixed pool for the referral bonus button.
var universeAdvice = []string{
	"Вселенная подсказывает: сегодня стоит довериться первому импульсу — он честнее долгих раздумий.",
	"Сегодня хороший день, чтобы сказать «да» тому, что давно откладываешь.",
	"Обрати внимание на то, что повторяется — в этом есть послание для тебя.",
	"Разреши себе сегодня сделать меньше, но бережнее.",
	"То, что кажется концом, часто оказывается поворотом. Присмотрись.",
	"Сегодня особенно важно побыть с теми, рядом с кем тепло.",
	"Твоя интуиция сегодня громче обычного — дай ей слово.",
}
