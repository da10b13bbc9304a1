package app

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/makbot/core/telegram/ui"
)

var _ ui.FallbackProvider = (*App)(nil)

// UnknownText handles text that matched no command, state or menu button.
func (a *App) UnknownText() tele.HandlerFunc {
	return a.handleUnknownText
}

// UnknownDocument handles files the bot has no use for.
func (a *App) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Send("Я умею работать только с текстом и кнопками. 🙂")
	}
}

// UnknownCallback answers presses on buttons from outdated messages.
func (a *App) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "Эта кнопка уже неактуальна"})
	}
}
