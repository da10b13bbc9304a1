package app

import (
	"context"
	"errors"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/makbot/programs"
)

// errBotNotReady is returned when a background job fires before the bot has
// connected (or after shutdown).
var errBotNotReady = errors.New("app: bot not running")

// botSender delivers messages outside of update handlers: scheduled program
// posts, quiz questions and reminders. The bot handle is set in OnStart.
type botSender struct {
	bot atomic.Pointer[tele.Bot]
}

func (s *botSender) SetBot(b *tele.Bot) {
	s.bot.Store(b)
}

func (s *botSender) Text(ctx context.Context, userID int64, text string, markup *tele.ReplyMarkup) error {
	b := s.bot.Load()
	if b == nil {
		return errBotNotReady
	}
	if markup != nil {
		_, err := b.Send(&tele.User{ID: userID}, text, markup)
		return err
	}
	_, err := b.Send(&tele.User{ID: userID}, text)
	return err
}

func (s *botSender) Photo(ctx context.Context, userID int64, fileURL, caption string, markup *tele.ReplyMarkup) error {
	b := s.bot.Load()
	if b == nil {
		return errBotNotReady
	}
	photo := &tele.Photo{File: tele.FromURL(fileURL), Caption: caption}
	if markup != nil {
		_, err := b.Send(&tele.User{ID: userID}, photo, markup)
		return err
	}
	_, err := b.Send(&tele.User{ID: userID}, photo)
	return err
}

func (s *botSender) Poll(ctx context.Context, userID int64, post programs.Post) error {
	b := s.bot.Load()
	if b == nil {
		return errBotNotReady
	}
	poll := &tele.Poll{
		Type:      tele.PollRegular,
		Question:  post.PollQuestion,
		Anonymous: false,
	}
	if post.PollCorrect > 0 && post.PollCorrect <= len(post.PollOptions) {
		poll.Type = tele.PollQuiz
		poll.CorrectOption = post.PollCorrect - 1
	}
	poll.AddOptions(post.PollOptions...)
	_, err := b.Send(&tele.User{ID: userID}, poll)
	return err
}
