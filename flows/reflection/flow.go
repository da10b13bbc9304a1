// Package reflection implements the evening reflection journal: three
// questions about the day, an AI summary and a persisted entry.
package reflection

import (
	"context"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/makbot/ai"
	"github.com/m3rciful/makbot/core/logger"
	tghelpers "github.com/m3rciful/makbot/core/telegram/helpers"
	"github.com/m3rciful/makbot/core/telegram/state"
	"github.com/m3rciful/makbot/storage"
)

// FSM states of the reflection flow.
const (
	StateGoodMoments state.State = "reflection_good_moments"
	StateGratitude   state.State = "reflection_gratitude"
	StateHardMoments state.State = "reflection_hard_moments"
)

const minAnswerLen = 3

const (
	textAskGood      = "Давай вспомним сегодняшний день. 🌙\n\nЧто хорошего в нём было?"
	textAskGratitude = "За что или кому ты сегодня благодарен?"
	textAskHard      = "Было ли что-то трудное? Если да — что именно?"
	textTooShort     = "Напиши чуть подробнее, пожалуйста."
	textConclusion   = "Запись сохранена. Спокойной ночи! 🌙"
	textAnotherFlow  = "Давай сначала закончим текущий диалог, а потом вернёмся к рефлексии."
)

// Narrow storage surfaces the flow depends on; the sqlx repositories
// satisfy them.
type userStore interface {
	Get(ctx context.Context, id int64) (storage.User, error)
}

type journal interface {
	Log(ctx context.Context, userID int64, username, action string, details map[string]any) error
}

type reflectionStore interface {
	Add(ctx context.Context, userID int64, good, gratitude, hard string, summary *string) error
}

// Flow owns the evening reflection conversation.
type Flow struct {
	sessions    state.Manager
	users       userStore
	journal     journal
	reflections reflectionStore
	gen         ai.Generator

	// Menu builds the main-menu reply keyboard restored after the session.
	Menu func(bonus bool) *tele.ReplyMarkup
}

// New wires the flow.
func New(sessions state.Manager, store *storage.Storage, gen ai.Generator) *Flow {
	return &Flow{
		sessions:    sessions,
		users:       store.Users,
		journal:     store.Actions,
		reflections: store.Reflections,
		gen:         gen,
	}
}

// RegisterStates binds reflection states to their FSM handlers.
func (f *Flow) RegisterStates() {
	state.RegisterHandler(StateGoodMoments, f.HandleGoodMoments)
	state.RegisterHandler(StateGratitude, f.HandleGratitude)
	state.RegisterHandler(StateHardMoments, f.HandleHardMoments)
}

// Start opens the reflection dialog.
func (f *Flow) Start(c tele.Context) error {
	userID := c.Sender().ID
	if f.sessions.InProgress(userID) {
		return tghelpers.SendText(c, textAnotherFlow)
	}

	session := f.sessions.Get(userID)
	session.Reflection = &state.ReflectionSession{}
	// An abandoned quiz parks at idle; drop it so its callbacks go dead.
	session.Quiz = nil
	f.sessions.SetState(userID, StateGoodMoments)

	ctx := tghelpers.WithHandler(c, "reflection.start")
	f.logStep(ctx, c, "reflection_start", nil)
	return tghelpers.SendText(c, textAskGood)
}

// HandleGoodMoments stores the first answer.
func (f *Flow) HandleGoodMoments(c tele.Context) error {
	session, ok := f.reflectionSession(c.Sender().ID, StateGoodMoments)
	if !ok {
		return nil
	}
	text := strings.TrimSpace(c.Text())
	if len([]rune(text)) < minAnswerLen {
		return tghelpers.SendText(c, textTooShort)
	}
	session.Reflection.GoodMoments = text

	ctx := tghelpers.WithHandler(c, "reflection.good")
	f.logStep(ctx, c, "reflection_good_moments", map[string]any{"text": text})
	f.sessions.SetState(c.Sender().ID, StateGratitude)
	return tghelpers.SendText(c, textAskGratitude)
}

// HandleGratitude stores the second answer.
func (f *Flow) HandleGratitude(c tele.Context) error {
	session, ok := f.reflectionSession(c.Sender().ID, StateGratitude)
	if !ok {
		return nil
	}
	text := strings.TrimSpace(c.Text())
	if len([]rune(text)) < minAnswerLen {
		return tghelpers.SendText(c, textTooShort)
	}
	session.Reflection.Gratitude = text

	ctx := tghelpers.WithHandler(c, "reflection.gratitude")
	f.logStep(ctx, c, "reflection_gratitude", map[string]any{"text": text})
	f.sessions.SetState(c.Sender().ID, StateHardMoments)
	return tghelpers.SendText(c, textAskHard)
}

// HandleHardMoments stores the last answer, summarizes and persists the
// entry. The session is cleared even when persistence fails, so the user is
// never stuck in the flow.
func (f *Flow) HandleHardMoments(c tele.Context) error {
	userID := c.Sender().ID
	session, ok := f.reflectionSession(userID, StateHardMoments)
	if !ok {
		return nil
	}
	text := strings.TrimSpace(c.Text())
	if len([]rune(text)) < minAnswerLen {
		return tghelpers.SendText(c, textTooShort)
	}
	r := session.Reflection
	r.HardMoments = text

	ctx := tghelpers.WithHandler(c, "reflection.hard")
	f.logStep(ctx, c, "reflection_hard_moments", map[string]any{"text": text})
	defer f.sessions.Clear(userID)

	var summaryPtr *string
	summary, err := f.gen.ReflectionSummary(ctx, r.GoodMoments, r.Gratitude, r.HardMoments)
	if err != nil {
		logger.Warn(ctx, "flow.reflection", "summary.fallback", slog.String("err", err.Error()))
	} else {
		summaryPtr = &summary
	}
	if err := tghelpers.SendText(c, summary); err != nil {
		return err
	}

	if err := f.reflections.Add(ctx, userID, r.GoodMoments, r.Gratitude, r.HardMoments, summaryPtr); err != nil {
		logger.Error(ctx, "flow.reflection", "persist.failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}

	var markup *tele.ReplyMarkup
	if f.Menu != nil {
		bonus := false
		if u, err := f.users.Get(ctx, userID); err == nil {
			bonus = u.BonusAvailable
		}
		markup = f.Menu(bonus)
	}
	return tghelpers.SendText(c, textConclusion, &tele.SendOptions{ReplyMarkup: markup})
}

func (f *Flow) reflectionSession(userID int64, expected state.State) (*state.Session, bool) {
	if f.sessions.GetState(userID) != expected {
		return nil, false
	}
	session := f.sessions.Get(userID)
	if session.Reflection == nil {
		return nil, false
	}
	return session, true
}

func (f *Flow) logStep(ctx context.Context, c tele.Context, action string, details map[string]any) {
	username := ""
	if c.Sender() != nil {
		username = c.Sender().Username
	}
	if err := f.journal.Log(ctx, c.Sender().ID, username, action, details); err != nil {
		logger.Warn(ctx, "flow.reflection", "journal.failed",
			slog.String("operation", action),
			slog.String("err", err.Error()),
		)
	}
}
