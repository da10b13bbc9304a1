// Package card implements the card-of-the-day conversation: resource
// check-in, request, draw, exploration questions, summary and feedback.
package card

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/makbot/ai"
	"github.com/m3rciful/makbot/core/logger"
	"github.com/m3rciful/makbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/makbot/core/telegram/helpers"
	"github.com/m3rciful/makbot/core/telegram/keyboard"
	"github.com/m3rciful/makbot/core/telegram/state"
	"github.com/m3rciful/makbot/profile"
	"github.com/m3rciful/makbot/storage"
)

// FSM states of the card flow.
const (
	StateInitialResource state.State = "card_initial_resource"
	StateRequestChoice   state.State = "card_request_choice"
	StateRequestText     state.State = "card_request_text"
	StateFirstImpression state.State = "card_first_impression"
	StateExploreChoice   state.State = "card_explore_choice"
	StateAnswer1         state.State = "card_ai_answer_1"
	StateAnswer2         state.State = "card_ai_answer_2"
	StateAnswer3         state.State = "card_ai_answer_3"
	StateFinalResource   state.State = "card_final_resource"
	StateRecharge        state.State = "card_recharge_method"
)

// Callback uniques of the card flow keyboards.
const (
	CallbackResource      = "cardres"
	CallbackRequestChoice = "cardreq"
	CallbackExplore       = "cardexp"
	CallbackFinalRes      = "cardfin"
	CallbackFeedback      = "cardfb"
)

// Free-text minimum lengths in runes.
const (
	minRequestLen    = 5
	minImpressionLen = 3
	minAnswerLen     = 2
	minRechargeLen   = 5
)

// Config carries the deck and guard settings.
type Config struct {
	CardsDir  string
	DeckSize  int
	Location  *time.Location
	Unlimited func(userID int64) bool
}

// Narrow storage surfaces the flow depends on; the sqlx repositories
// satisfy them.
type userStore interface {
	Get(ctx context.Context, id int64) (storage.User, error)
	LastCardAt(ctx context.Context, id int64) (*time.Time, error)
	TouchCardDraw(ctx context.Context, id int64, at time.Time) error
}

type cardStore interface {
	UsedNumbers(ctx context.Context, userID int64) ([]int, error)
	MarkUsed(ctx context.Context, userID int64, number int) error
	ResetUsed(ctx context.Context, userID int64) error
}

type journal interface {
	Log(ctx context.Context, userID int64, username, action string, details map[string]any) error
}

type resourceStore interface {
	SetResources(ctx context.Context, userID int64, initial, final string) error
}

type rechargeStore interface {
	Add(ctx context.Context, userID int64, method string) error
}

type profileSource interface {
	Get(ctx context.Context, userID int64) (storage.Profile, error)
}

// Flow owns the card-of-the-day conversation.
type Flow struct {
	sessions state.Manager
	users    userStore
	cards    cardStore
	journal  journal
	resource resourceStore
	recharge rechargeStore
	gen      ai.Generator
	profiles profileSource
	cfg      Config

	// Menu builds the main-menu reply keyboard restored after the session.
	Menu func(bonus bool) *tele.ReplyMarkup

	randInt func(n int) int
	now     func() time.Time
}

// New wires the flow. randInt and now default to math/rand and time.Now.
func New(sessions state.Manager, store *storage.Storage, gen ai.Generator, profiles *profile.Builder, cfg Config) *Flow {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Flow{
		sessions: sessions,
		users:    store.Users,
		cards:    store.Cards,
		journal:  store.Actions,
		resource: store.Profiles,
		recharge: store.Recharge,
		gen:      gen,
		profiles: profiles,
		cfg:      cfg,
		randInt:  rand.Intn,
		now:      time.Now,
	}
}

// RegisterStates binds every card state to its FSM handler. Button-expecting
// states get a corrective text handler so stray input never advances them.
func (f *Flow) RegisterStates() {
	state.RegisterHandler(StateRequestText, f.HandleRequestText)
	state.RegisterHandler(StateFirstImpression, f.HandleFirstImpression)
	state.RegisterHandler(StateAnswer1, f.answerHandler(1))
	state.RegisterHandler(StateAnswer2, f.answerHandler(2))
	state.RegisterHandler(StateAnswer3, f.answerHandler(3))
	state.RegisterHandler(StateRecharge, f.HandleRecharge)

	for _, st := range []state.State{
		StateInitialResource, StateRequestChoice, StateExploreChoice, StateFinalResource,
	} {
		state.RegisterHandler(st, func(c tele.Context) error {
			return tghelpers.SendText(c, textPressButton)
		})
	}
}

// Start begins a card session: single-flow and daily guards, then the
// initial resource check-in.
func (f *Flow) Start(c tele.Context) error {
	userID := c.Sender().ID
	ctx := tghelpers.WithHandler(c, "card.start")

	if f.sessions.InProgress(userID) {
		return tghelpers.SendText(c, textAnotherFlow)
	}

	if !f.cfg.Unlimited(userID) {
		last, err := f.users.LastCardAt(ctx, userID)
		if err != nil {
			return f.fail(c, ctx, err)
		}
		if last != nil && tghelpers.SameDay(*last, f.now(), f.cfg.Location) {
			return tghelpers.SendText(c, fmt.Sprintf(textAlreadyDrawn,
				tghelpers.FormatDayTime(*last, f.cfg.Location)))
		}
	}

	session := f.sessions.Get(userID)
	session.Card = &state.CardSession{}
	// An abandoned quiz parks at idle; drop it so its callbacks go dead.
	session.Quiz = nil
	f.sessions.SetState(userID, StateInitialResource)
	f.logStep(ctx, c, "card_start", nil)

	name := f.userName(ctx, c)
	markup := resourceButtons(CallbackResource)
	return tghelpers.SendText(c, fmt.Sprintf(textAskInitialResource, name),
		&tele.SendOptions{ReplyMarkup: markup})
}

// HandleResource stores the initial resource level.
func (f *Flow) HandleResource(c tele.Context) error {
	userID := c.Sender().ID
	session, ok := f.cardSession(userID, StateInitialResource)
	if !ok {
		return nil
	}
	ctx := tghelpers.WithHandler(c, "card.resource")

	level := callbacks.CallbackPayload(c)
	label, known := ResourceLabels[level]
	if !known {
		return nil
	}
	session.Card.InitialResource = label
	f.sessions.SetState(userID, StateRequestChoice)
	f.logStep(ctx, c, "card_initial_resource", map[string]any{"level": level})

	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "🧠 Держу в голове", Unique: CallbackRequestChoice, Data: "mental"},
		{Text: "✍️ Напишу", Unique: CallbackRequestChoice, Data: "typed"},
	})
	return tghelpers.SendText(c, textAskRequestChoice, &tele.SendOptions{ReplyMarkup: markup})
}

// HandleRequestChoice branches between a mental and a written request.
func (f *Flow) HandleRequestChoice(c tele.Context) error {
	userID := c.Sender().ID
	session, ok := f.cardSession(userID, StateRequestChoice)
	if !ok {
		return nil
	}
	ctx := tghelpers.WithHandler(c, "card.request_choice")

	choice := callbacks.CallbackPayload(c)
	switch choice {
	case "typed":
		session.Card.RequestType = choice
		f.sessions.SetState(userID, StateRequestText)
		f.logStep(ctx, c, "card_request_choice", map[string]any{"choice": choice})
		return tghelpers.SendText(c, textAskRequestText)
	case "mental":
		session.Card.RequestType = choice
		f.logStep(ctx, c, "card_request_choice", map[string]any{"choice": choice})
		return f.draw(c, ctx, session)
	}
	return nil
}

// HandleRequestText accepts the written request and draws the card.
func (f *Flow) HandleRequestText(c tele.Context) error {
	userID := c.Sender().ID
	session, ok := f.cardSession(userID, StateRequestText)
	if !ok {
		return nil
	}
	ctx := tghelpers.WithHandler(c, "card.request_text")

	text := strings.TrimSpace(c.Text())
	if len([]rune(text)) < minRequestLen {
		return tghelpers.SendText(c, textRequestTooShort)
	}
	session.Card.RequestText = text
	f.logStep(ctx, c, "card_request_text", map[string]any{"text": text})
	return f.draw(c, ctx, session)
}

// draw picks an unseen card, recycling the deck when it is exhausted.
func (f *Flow) draw(c tele.Context, ctx context.Context, session *state.Session) error {
	userID := c.Sender().ID

	used, err := f.cards.UsedNumbers(ctx, userID)
	if err != nil {
		return f.fail(c, ctx, err)
	}
	usedSet := make(map[int]bool, len(used))
	for _, n := range used {
		usedSet[n] = true
	}

	var candidates []int
	for n := 1; n <= f.cfg.DeckSize; n++ {
		if !usedSet[n] {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		if err := f.cards.ResetUsed(ctx, userID); err != nil {
			return f.fail(c, ctx, err)
		}
		logger.Info(ctx, "flow.card", "deck.recycled", slog.Int64("user_id", userID))
		for n := 1; n <= f.cfg.DeckSize; n++ {
			candidates = append(candidates, n)
		}
	}

	number := candidates[f.randInt(len(candidates))]
	if err := f.cards.MarkUsed(ctx, userID, number); err != nil {
		return f.fail(c, ctx, err)
	}
	if err := f.users.TouchCardDraw(ctx, userID, f.now()); err != nil {
		return f.fail(c, ctx, err)
	}

	session.Card.CardNumber = number
	f.sessions.SetState(userID, StateFirstImpression)
	f.logStep(ctx, c, "card_drawn", map[string]any{"card": number})
	logger.Info(ctx, "flow.card", "card.drawn",
		slog.Int64("user_id", userID),
		slog.Int("card", number),
	)

	photo := &tele.Photo{
		File:    tele.FromDisk(filepath.Join(f.cfg.CardsDir, fmt.Sprintf("%d.jpg", number))),
		Caption: textCardDrawn,
	}
	return c.Send(photo)
}

// HandleFirstImpression stores the impression and offers exploration.
func (f *Flow) HandleFirstImpression(c tele.Context) error {
	userID := c.Sender().ID
	session, ok := f.cardSession(userID, StateFirstImpression)
	if !ok {
		return nil
	}
	ctx := tghelpers.WithHandler(c, "card.impression")

	text := strings.TrimSpace(c.Text())
	if len([]rune(text)) < minImpressionLen {
		return tghelpers.SendText(c, textImpressionTooShort)
	}
	session.Card.FirstImpression = text
	f.sessions.SetState(userID, StateExploreChoice)
	f.logStep(ctx, c, "card_first_impression", map[string]any{"text": text})

	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "🔍 Да, давай", Unique: CallbackExplore, Data: "yes"},
		{Text: "Не сегодня", Unique: CallbackExplore, Data: "no"},
	})
	return tghelpers.SendText(c, textAskExplore, &tele.SendOptions{ReplyMarkup: markup})
}

// HandleExplore starts the question loop or jumps straight to the summary.
func (f *Flow) HandleExplore(c tele.Context) error {
	userID := c.Sender().ID
	session, ok := f.cardSession(userID, StateExploreChoice)
	if !ok {
		return nil
	}
	ctx := tghelpers.WithHandler(c, "card.explore")

	switch callbacks.CallbackPayload(c) {
	case "yes":
		f.logStep(ctx, c, "card_explore_choice", map[string]any{"choice": "yes"})
		return f.askQuestion(c, ctx, session, 1)
	case "no":
		f.logStep(ctx, c, "card_explore_choice", map[string]any{"choice": "no"})
		return f.summarize(c, ctx, session)
	}
	return nil
}

func (f *Flow) answerHandler(step int) tele.HandlerFunc {
	states := map[int]state.State{1: StateAnswer1, 2: StateAnswer2, 3: StateAnswer3}
	return func(c tele.Context) error {
		userID := c.Sender().ID
		session, ok := f.cardSession(userID, states[step])
		if !ok {
			return nil
		}
		ctx := tghelpers.WithHandler(c, fmt.Sprintf("card.answer_%d", step))

		text := strings.TrimSpace(c.Text())
		if len([]rune(text)) < minAnswerLen {
			return tghelpers.SendText(c, textAnswerTooShort)
		}
		session.Card.Answers = append(session.Card.Answers, text)
		f.logStep(ctx, c, fmt.Sprintf("card_ai_answer_%d", step), map[string]any{"text": text})

		if step < 3 {
			return f.askQuestion(c, ctx, session, step+1)
		}
		return f.summarize(c, ctx, session)
	}
}

func (f *Flow) askQuestion(c tele.Context, ctx context.Context, session *state.Session, step int) error {
	userID := c.Sender().ID
	pc := f.promptContext(ctx, c, session)

	question, err := f.gen.Question(ctx, step, pc,
		session.Card.RequestText, session.Card.FirstImpression, f.history(session))
	if err != nil {
		logger.Warn(ctx, "flow.card", "question.fallback",
			slog.Int("step", step),
			slog.String("err", err.Error()),
		)
	}
	session.Card.Questions = append(session.Card.Questions, question)

	states := map[int]state.State{1: StateAnswer1, 2: StateAnswer2, 3: StateAnswer3}
	f.sessions.SetState(userID, states[step])
	return tghelpers.SendText(c, question)
}

// summarize generates the session summary and asks for the final resource.
func (f *Flow) summarize(c tele.Context, ctx context.Context, session *state.Session) error {
	userID := c.Sender().ID
	pc := f.promptContext(ctx, c, session)

	summary, err := f.gen.Summary(ctx, pc,
		session.Card.RequestText, session.Card.FirstImpression, f.history(session))
	if err != nil {
		logger.Warn(ctx, "flow.card", "summary.fallback", slog.String("err", err.Error()))
	}
	if err := tghelpers.SendText(c, summary); err != nil {
		return err
	}

	f.sessions.SetState(userID, StateFinalResource)
	return tghelpers.SendText(c, textAskFinalResource,
		&tele.SendOptions{ReplyMarkup: resourceButtons(CallbackFinalRes)})
}

// HandleFinalResource closes the session or branches into recharge support.
func (f *Flow) HandleFinalResource(c tele.Context) error {
	userID := c.Sender().ID
	session, ok := f.cardSession(userID, StateFinalResource)
	if !ok {
		return nil
	}
	ctx := tghelpers.WithHandler(c, "card.final_resource")

	level := callbacks.CallbackPayload(c)
	label, known := ResourceLabels[level]
	if !known {
		return nil
	}
	session.Card.FinalResource = label
	f.logStep(ctx, c, "card_final_resource", map[string]any{"level": level})

	if err := f.resource.SetResources(ctx, userID,
		session.Card.InitialResource, session.Card.FinalResource); err != nil {
		logger.Warn(ctx, "flow.card", "profile.resources_failed", slog.String("err", err.Error()))
	}

	if level == ResourceLow {
		pc := f.promptContext(ctx, c, session)
		support, err := f.gen.Support(ctx, pc)
		if err != nil {
			logger.Warn(ctx, "flow.card", "support.fallback", slog.String("err", err.Error()))
		}
		if err := tghelpers.SendText(c, support); err != nil {
			return err
		}
		f.sessions.SetState(userID, StateRecharge)
		return tghelpers.SendText(c, textAskRecharge)
	}
	return f.finishWithFeedback(c, ctx, session)
}

// HandleRecharge stores the recharge method and closes the session.
func (f *Flow) HandleRecharge(c tele.Context) error {
	userID := c.Sender().ID
	session, ok := f.cardSession(userID, StateRecharge)
	if !ok {
		return nil
	}
	ctx := tghelpers.WithHandler(c, "card.recharge")

	text := strings.TrimSpace(c.Text())
	if len([]rune(text)) < minRechargeLen {
		return tghelpers.SendText(c, textRechargeTooShort)
	}
	if err := f.recharge.Add(ctx, userID, text); err != nil {
		return f.fail(c, ctx, err)
	}
	f.logStep(ctx, c, "card_recharge_method", map[string]any{"text": text})
	if err := tghelpers.SendText(c, textRechargeThanks); err != nil {
		return err
	}
	return f.finishWithFeedback(c, ctx, session)
}

// finishWithFeedback clears the session and asks for feedback. The feedback
// buttons carry the card number, so the press is handled statelessly.
func (f *Flow) finishWithFeedback(c tele.Context, ctx context.Context, session *state.Session) error {
	userID := c.Sender().ID
	card := session.Card.CardNumber
	f.sessions.Clear(userID)

	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "💛 Помогло", Unique: CallbackFeedback, Data: fmt.Sprintf("helped|%d", card)},
			{Text: "✨ Интересно", Unique: CallbackFeedback, Data: fmt.Sprintf("interesting|%d", card)},
		},
		[]keyboard.InlineBtn{
			{Text: "🤔 Не хватило глубины", Unique: CallbackFeedback, Data: fmt.Sprintf("notdeep|%d", card)},
		},
	)
	return tghelpers.SendText(c, textAskFeedback, &tele.SendOptions{ReplyMarkup: markup})
}

// HandleFeedback acknowledges feedback and restores the main menu.
func (f *Flow) HandleFeedback(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "card.feedback")

	parts := strings.SplitN(callbacks.CallbackPayload(c), "|", 2)
	kind := parts[0]
	card := 0
	if len(parts) == 2 {
		card, _ = strconv.Atoi(parts[1])
	}
	reply, known := feedbackReplies[kind]
	if !known {
		return nil
	}
	f.logStep(ctx, c, "card_feedback", map[string]any{"kind": kind, "card": card})

	var markup *tele.ReplyMarkup
	if f.Menu != nil {
		bonus := false
		if u, err := f.users.Get(ctx, c.Sender().ID); err == nil {
			bonus = u.BonusAvailable
		}
		markup = f.Menu(bonus)
	}
	return tghelpers.SendText(c, reply, &tele.SendOptions{ReplyMarkup: markup})
}

// cardSession fetches the live session iff the card flow is in the expected
// state; wrong-shaped input is ignored so the state never advances.
func (f *Flow) cardSession(userID int64, expected state.State) (*state.Session, bool) {
	if f.sessions.GetState(userID) != expected {
		return nil, false
	}
	session := f.sessions.Get(userID)
	if session.Card == nil {
		return nil, false
	}
	return session, true
}

func (f *Flow) history(session *state.Session) []ai.QA {
	qa := make([]ai.QA, 0, len(session.Card.Answers))
	for i, answer := range session.Card.Answers {
		question := ""
		if i < len(session.Card.Questions) {
			question = session.Card.Questions[i]
		}
		qa = append(qa, ai.QA{Question: question, Answer: answer})
	}
	return qa
}

func (f *Flow) promptContext(ctx context.Context, c tele.Context, session *state.Session) ai.PromptContext {
	pc := ai.PromptContext{
		Name:            f.userName(ctx, c),
		InitialResource: session.Card.InitialResource,
	}
	p, err := f.profiles.Get(ctx, c.Sender().ID)
	if err != nil {
		logger.Warn(ctx, "flow.card", "profile.unavailable", slog.String("err", err.Error()))
		return pc
	}
	pc.Mood = p.Mood
	pc.MoodTrend = p.MoodTrend
	pc.MoodHistory = p.MoodHistory
	pc.Themes = p.Themes
	pc.AvgResponseLength = p.AvgResponseLength
	return pc
}

func (f *Flow) userName(ctx context.Context, c tele.Context) string {
	if u, err := f.users.Get(ctx, c.Sender().ID); err == nil {
		if name := u.Name(); name != "" {
			return name
		}
	}
	if c.Sender() != nil && c.Sender().FirstName != "" {
		return c.Sender().FirstName
	}
	return "друг"
}

// fail logs the error, resets the session and apologizes.
func (f *Flow) fail(c tele.Context, ctx context.Context, err error) error {
	logger.Error(ctx, "flow.card", "step.failed",
		slog.Int64("user_id", c.Sender().ID),
		slog.String("err", err.Error()),
	)
	f.sessions.Clear(c.Sender().ID)
	return tghelpers.SendText(c, textInternalError)
}

func (f *Flow) logStep(ctx context.Context, c tele.Context, action string, details map[string]any) {
	username := ""
	if c.Sender() != nil {
		username = c.Sender().Username
	}
	if err := f.journal.Log(ctx, c.Sender().ID, username, action, details); err != nil {
		logger.Warn(ctx, "flow.card", "journal.failed",
			slog.String("operation", action),
			slog.String("err", err.Error()),
		)
	}
}

func resourceButtons(unique string) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: ResourceLabels[ResourceGood], Unique: unique, Data: ResourceGood},
		{Text: ResourceLabels[ResourceMedium], Unique: unique, Data: ResourceMedium},
		{Text: ResourceLabels[ResourceLow], Unique: unique, Data: ResourceLow},
	})
}
