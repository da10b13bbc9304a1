package app

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/makbot/core/logger"
	"github.com/m3rciful/makbot/core/telegram/callbacks"
	"github.com/m3rciful/makbot/core/telegram/format"
	tghelpers "github.com/m3rciful/makbot/core/telegram/helpers"
	"github.com/m3rciful/makbot/core/telegram/keyboard"
	"github.com/m3rciful/makbot/core/telegram/state"
)

// FSM states owned by the app layer.
const (
	stateWaitingName   state.State = "waiting_name"
	stateRemindMorning state.State = "remind_morning"
	stateRemindEvening state.State = "remind_evening"
)

const remindOff = "выкл"

const startGreeting = "Привет, %s! 👋\n\nЯ помогу тебе каждый день делать маленькую паузу для себя: " +
	"вытягивать карту дня, размышлять над ней и подводить вечерние итоги.\n\nВыбирай, с чего начнём. 👇"

// handleStart registers the user, processes a referral payload and shows the
// main menu.
func (a *App) handleStart(c tele.Context) error {
	sender := c.Sender()
	ctx := tghelpers.WithHandler(c, "start")

	if err := a.store.Users.Upsert(ctx, sender.ID, sender.Username, sender.FirstName); err != nil {
		logger.Error(ctx, "tg", "start.upsert_failed", slog.String("err", err.Error()))
		return tghelpers.SendText(c, "Что-то пошло не так. Попробуй ещё раз чуть позже.")
	}
	a.handleReferral(c)

	bonus := false
	if u, err := a.store.Users.Get(ctx, sender.ID); err == nil {
		bonus = u.BonusAvailable
	}
	return tghelpers.SendText(c, fmt.Sprintf(startGreeting, a.userName(c)),
		&tele.SendOptions{ReplyMarkup: mainMenu(bonus)})
}

// handleReferral parses a "ref_<id>" start payload, links the referral and
// grants the referrer the universe-advice bonus.
func (a *App) handleReferral(c tele.Context) {
	ctx := tghelpers.BuildContext(c)
	payload := ""
	if c.Message() != nil {
		payload = strings.TrimSpace(c.Message().Payload)
	}
	if !strings.HasPrefix(payload, "ref_") {
		return
	}
	referrerID, err := strconv.ParseInt(strings.TrimPrefix(payload, "ref_"), 10, 64)
	if err != nil || referrerID <= 0 {
		return
	}

	added, err := a.store.Referrals.Add(ctx, referrerID, c.Sender().ID)
	if err != nil {
		logger.Warn(ctx, "tg", "referral.failed", slog.String("err", err.Error()))
		return
	}
	if !added {
		return
	}
	if err := a.store.Users.SetBonus(ctx, referrerID, true); err != nil {
		logger.Warn(ctx, "tg", "referral.bonus_failed", slog.String("err", err.Error()))
		return
	}
	logger.Info(ctx, "tg", "referral.linked",
		slog.Int64("user_id", c.Sender().ID),
		slog.Int64("chat_id", referrerID),
	)
	_ = a.sender.Text(ctx, referrerID,
		"По твоей ссылке пришёл новый человек! 💌 Тебе доступна подсказка Вселенной — загляни в меню.",
		mainMenu(true))
}

// handleName asks how to address the user.
func (a *App) handleName(c tele.Context) error {
	userID := c.Sender().ID
	if a.sessions.InProgress(userID) {
		return tghelpers.SendText(c, "Давай сначала закончим текущий диалог.")
	}
	a.sessions.Get(userID).Quiz = nil
	a.sessions.SetState(userID, stateWaitingName)
	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "Оставить как есть", Unique: "nameskip", Data: "skip"},
	})
	return tghelpers.SendText(c, "Как мне к тебе обращаться? Напиши имя.",
		&tele.SendOptions{ReplyMarkup: markup})
}

func (a *App) handleNameText(c tele.Context) error {
	userID := c.Sender().ID
	name := strings.TrimSpace(c.Text())
	if name == "" || len([]rune(name)) > 64 {
		return tghelpers.SendText(c, "Напиши имя покороче, пожалуйста.")
	}
	ctx := tghelpers.WithHandler(c, "name.set")
	if err := a.store.Users.SetDisplayName(ctx, userID, name); err != nil {
		logger.Error(ctx, "tg", "name.save_failed", slog.String("err", err.Error()))
	}
	a.sessions.Clear(userID)
	return tghelpers.SendText(c, fmt.Sprintf("Приятно познакомиться, %s! 🤝", name))
}

func (a *App) handleNameSkip(c tele.Context) error {
	userID := c.Sender().ID
	if a.sessions.GetState(userID) != stateWaitingName {
		return nil
	}
	a.sessions.Clear(userID)
	return tghelpers.SendText(c, "Хорошо, оставим как есть. 🙂")
}

// handleRemind starts the two-step reminder setup.
func (a *App) handleRemind(c tele.Context) error {
	userID := c.Sender().ID
	if a.sessions.InProgress(userID) {
		return tghelpers.SendText(c, "Давай сначала закончим текущий диалог.")
	}
	session := a.sessions.Get(userID)
	session.Remind = &state.RemindSession{}
	session.Quiz = nil
	a.sessions.SetState(userID, stateRemindMorning)
	return tghelpers.SendText(c,
		"Настроим напоминания. Во сколько напоминать о карте дня? Напиши время в формате ЧЧ:ММ или «выкл».")
}

func (a *App) handleRemindMorning(c tele.Context) error {
	userID := c.Sender().ID
	session := a.sessions.Get(userID)
	if session.Remind == nil {
		a.sessions.Clear(userID)
		return nil
	}

	value, ok := parseRemindAnswer(c.Text())
	if !ok {
		return tghelpers.SendText(c, "Не понял время. Напиши в формате ЧЧ:ММ, например 09:30, или «выкл».")
	}
	session.Remind.Morning = value
	a.sessions.SetState(userID, stateRemindEvening)
	return tghelpers.SendText(c,
		"Принято. А во сколько напоминать о вечерней рефлексии? ЧЧ:ММ или «выкл».")
}

func (a *App) handleRemindEvening(c tele.Context) error {
	userID := c.Sender().ID
	session := a.sessions.Get(userID)
	if session.Remind == nil {
		a.sessions.Clear(userID)
		return nil
	}

	evening, ok := parseRemindAnswer(c.Text())
	if !ok {
		return tghelpers.SendText(c, "Не понял время. Напиши в формате ЧЧ:ММ, например 21:30, или «выкл».")
	}
	morning := session.Remind.Morning
	ctx := tghelpers.WithHandler(c, "remind.save")
	if err := a.store.Users.SetReminders(ctx, userID, morning, evening); err != nil {
		logger.Error(ctx, "tg", "remind.save_failed", slog.String("err", err.Error()))
		a.sessions.Clear(userID)
		return tghelpers.SendText(c, "Не получилось сохранить. Попробуй /remind ещё раз.")
	}
	a.sessions.Clear(userID)

	return tghelpers.SendText(c, fmt.Sprintf(
		"Готово! Утром: %s, вечером: %s.", remindLabel(morning), remindLabel(evening)))
}

// parseRemindAnswer accepts an HH:MM time or the "off" word. The returned
// pointer is nil for "off".
func parseRemindAnswer(input string) (*string, bool) {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == remindOff || text == "off" {
		return nil, true
	}
	clock, ok := tghelpers.ParseClock(text)
	if !ok {
		return nil, false
	}
	return &clock, true
}

func remindLabel(v *string) string {
	return format.DerefString(v, "выключено")
}

// handleTraining and handleMarathon list programs of a kind to start.
func (a *App) handleTraining(c tele.Context) error {
	return a.listPrograms(c, true, "Выбери обучение:")
}

func (a *App) handleMarathon(c tele.Context) error {
	return a.listPrograms(c, false, "Выбери марафон:")
}

func (a *App) listPrograms(c tele.Context, tutorials bool, prompt string) error {
	lib := a.engine.Library()
	var buttons []keyboard.InlineBtn
	for _, id := range lib.IDs() {
		if lib.IsTutorial(id) != tutorials {
			continue
		}
		title, _ := lib.Title(id)
		buttons = append(buttons, keyboard.InlineBtn{Text: title, Unique: "progstart", Data: id})
	}
	if len(buttons) == 0 {
		return tghelpers.SendText(c, "Пока здесь пусто — новые программы уже в работе. 🙌")
	}
	return tghelpers.SendText(c, prompt,
		&tele.SendOptions{ReplyMarkup: keyboard.InlineButtons(buttons)})
}

// handleProgramStart launches the chosen program.
func (a *App) handleProgramStart(c tele.Context) error {
	userID := c.Sender().ID
	if a.sessions.InProgress(userID) {
		return tghelpers.SendText(c, "Давай сначала закончим текущий диалог.")
	}
	programID := callbacks.CallbackPayload(c)
	ctx := tghelpers.WithHandler(c, "program.start")
	if err := a.engine.Start(ctx, userID, programID); err != nil {
		logger.Error(ctx, "programs", "start.failed",
			slog.String("program", programID),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, "Не получилось запустить программу. Попробуй чуть позже.")
	}
	return nil
}

// handleProgramAdvance handles the continue button: strips the pressed
// keyboard and delivers the next post.
func (a *App) handleProgramAdvance(c tele.Context) error {
	parts := strings.SplitN(callbacks.CallbackPayload(c), "|", 2)
	if len(parts) != 2 {
		return nil
	}
	postID, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil
	}
	_ = c.Edit(&tele.ReplyMarkup{})

	ctx := tghelpers.WithHandler(c, "program.advance")
	return a.engine.AdvanceOnButton(ctx, c.Sender().ID, parts[0], postID)
}

// handleBonus serves the universe-advice bonus, one-shot.
func (a *App) handleBonus(c tele.Context) error {
	userID := c.Sender().ID
	ctx := tghelpers.WithHandler(c, "bonus")

	u, err := a.store.Users.Get(ctx, userID)
	if err != nil || !u.BonusAvailable {
		return tghelpers.SendText(c, "Подсказка Вселенной появится, когда по твоей ссылке придёт друг. 💌",
			&tele.SendOptions{ReplyMarkup: mainMenu(false)})
	}
	if err := a.store.Users.SetBonus(ctx, userID, false); err != nil {
		logger.Warn(ctx, "tg", "bonus.clear_failed", slog.String("err", err.Error()))
	}
	advice := universeAdvice[rand.Intn(len(universeAdvice))]
	return tghelpers.SendText(c, "💌 "+advice, &tele.SendOptions{ReplyMarkup: mainMenu(false)})
}

// handleStats reports basic usage numbers. Admin-only.
func (a *App) handleStats(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "stats")

	users, err := a.store.Users.Count(ctx)
	if err != nil {
		logger.Error(ctx, "tg", "stats.failed", slog.String("err", err.Error()))
		return tghelpers.SendText(c, "Не получилось собрать статистику.")
	}
	reflections, err := a.store.Reflections.Count(ctx)
	if err != nil {
		logger.Error(ctx, "tg", "stats.failed", slog.String("err", err.Error()))
		return tghelpers.SendText(c, "Не получилось собрать статистику.")
	}

	return tghelpers.SendText(c, fmt.Sprintf(
		"Пользователей: %d\nВечерних рефлексий: %d\nОтложенных постов: %d",
		users, reflections, a.timers.Pending()))
}

// handleUnknownText nudges the user towards the menu.
func (a *App) handleUnknownText(c tele.Context) error {
	bonus := false
	ctx := tghelpers.BuildContext(c)
	if u, err := a.store.Users.Get(ctx, c.Sender().ID); err == nil {
		bonus = u.BonusAvailable
	}
	return tghelpers.SendText(c, "Я не понял. Выбери действие в меню. 👇",
		&tele.SendOptions{ReplyMarkup: mainMenu(bonus)})
}

func (a *App) userName(c tele.Context) string {
	ctx := tghelpers.BuildContext(c)
	if u, err := a.store.Users.Get(ctx, c.Sender().ID); err == nil {
		if name := u.Name(); name != "" {
			return name
		}
	}
	if c.Sender() != nil && c.Sender().FirstName != "" {
		return c.Sender().FirstName
	}
	return "друг"
}
