package programs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/makbot/core/logger"
	"github.com/m3rciful/makbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/makbot/core/telegram/helpers"
	"github.com/m3rciful/makbot/core/telegram/keyboard"
	"github.com/m3rciful/makbot/core/telegram/state"
)

// Callback uniques of the quiz keyboards.
const (
	CallbackQuizTruth    = "quiz1"
	CallbackQuizContinue = "quizcont"
	CallbackQuizRate     = "quiz3"
)

// StateQuizFeedback waits for the free-text answer of the last question.
const StateQuizFeedback state.State = "quiz_feedback"

const (
	quizQ1 = "Небольшая проверка! Правда или миф:\n\n«Метафорические карты предсказывают будущее»"
	quizQ2 = "Что помогает карте «работать»?"
	quizQ3 = "Насколько полезным был обучающий курс? Оцени от 1 до 5."
	quizQ4 = "И последнее: напиши пару слов — что было самым ценным для тебя?"
)

var quizQ2Options = []string{
	"Магия изображения",
	"Собственные ассоциации и вопросы к себе",
	"Точность предсказания",
}

const quizQ2Correct = 2 // 1-based

// Quiz runs the four-question check after a tutorial.
// Only the first question contributes to the score.
type Quiz struct {
	sessions state.Manager
	sender   Sender
	journal  Journal
}

// Journal records quiz actions; storage.Actions satisfies it.
type Journal interface {
	Log(ctx context.Context, userID int64, username, action string, details map[string]any) error
}

// NewQuiz wires the quiz over the session manager and sender.
func NewQuiz(sessions state.Manager, sender Sender, journal Journal) *Quiz {
	return &Quiz{sessions: sessions, sender: sender, journal: journal}
}

// Start launches the quiz for a user who just finished a tutorial.
func (q *Quiz) Start(ctx context.Context, userID int64, programID string) error {
	session := q.sessions.Get(userID)
	session.Quiz = &state.QuizSession{Program: programID}
	session.Card = nil
	session.Reflection = nil
	q.sessions.SetState(userID, state.StateIdle)

	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "Правда", Unique: CallbackQuizTruth, Data: "truth"},
		{Text: "Миф", Unique: CallbackQuizTruth, Data: "myth"},
	})
	logger.Info(ctx, "programs", "quiz.start",
		slog.Int64("user_id", userID),
		slog.String("program", programID),
	)
	return q.sender.Text(ctx, userID, quizQ1, markup)
}

// HandleTruth processes the truth/myth answer and moves on to the poll.
func (q *Quiz) HandleTruth(c tele.Context) error {
	userID := c.Sender().ID
	session := q.sessions.Get(userID)
	if session.Quiz == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	answer := callbacks.CallbackPayload(c)
	if answer == "myth" {
		session.Quiz.Score++
		_ = tghelpers.SendText(c, "Верно! Карты не предсказывают — они помогают услышать себя. ✨")
	} else {
		_ = tghelpers.SendText(c, "Это миф! Карты не предсказывают — они помогают услышать себя.")
	}
	q.logStep(ctx, c, "quiz_q1", map[string]any{"answer": answer})

	poll := Post{
		PollQuestion: quizQ2,
		PollOptions:  quizQ2Options,
		PollCorrect:  quizQ2Correct,
	}
	if err := q.sender.Poll(ctx, userID, poll); err != nil {
		return err
	}
	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: continueButtonText, Unique: CallbackQuizContinue, Data: session.Quiz.Program},
	})
	return q.sender.Text(ctx, userID, "Ответь на вопрос выше и жми дальше.", markup)
}

// HandleContinue moves from the poll to the rating question.
func (q *Quiz) HandleContinue(c tele.Context) error {
	userID := c.Sender().ID
	if q.sessions.Get(userID).Quiz == nil {
		return nil
	}
	buttons := make([]keyboard.InlineBtn, 0, 5)
	for i := 1; i <= 5; i++ {
		v := strconv.Itoa(i)
		buttons = append(buttons, keyboard.InlineBtn{Text: v, Unique: CallbackQuizRate, Data: v})
	}
	return tghelpers.SendText(c, quizQ3, &tele.SendOptions{
		ReplyMarkup: keyboard.InlineButtonsNPerRow(buttons, 5),
	})
}

// HandleRate records the Likert rating and asks for free-text feedback.
func (q *Quiz) HandleRate(c tele.Context) error {
	userID := c.Sender().ID
	session := q.sessions.Get(userID)
	if session.Quiz == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	q.logStep(ctx, c, "quiz_q3", map[string]any{"rating": callbacks.CallbackPayload(c)})

	q.sessions.SetState(userID, StateQuizFeedback)
	return tghelpers.SendText(c, quizQ4)
}

// HandleFeedback consumes the final free-text answer and closes the quiz.
func (q *Quiz) HandleFeedback(c tele.Context) error {
	userID := c.Sender().ID
	session := q.sessions.Get(userID)
	if session.Quiz == nil {
		q.sessions.Clear(userID)
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	q.logStep(ctx, c, "quiz_q4", map[string]any{"text": c.Text()})

	score := session.Quiz.Score
	program := session.Quiz.Program
	q.sessions.Clear(userID)

	logger.Info(ctx, "programs", "quiz.done",
		slog.Int64("user_id", userID),
		slog.String("program", program),
		slog.Int("count", score),
	)
	return tghelpers.SendText(c, fmt.Sprintf(
		"Спасибо! Твой результат: %d/1. Обучение завершено — теперь карта дня ждёт тебя каждый день. 🎴", score))
}

func (q *Quiz) logStep(ctx context.Context, c tele.Context, action string, details map[string]any) {
	if q.journal == nil {
		return
	}
	username := ""
	if c.Sender() != nil {
		username = c.Sender().Username
	}
	if err := q.journal.Log(ctx, c.Sender().ID, username, action, details); err != nil {
		logger.Warn(ctx, "programs", "journal.failed",
			slog.String("operation", action),
			slog.String("err", err.Error()),
		)
	}
}
