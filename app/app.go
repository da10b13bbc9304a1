// Package app wires the bot together: storage, flows, programs, reminders,
// command and callback registries, and the Telegram runtime options.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/makbot/ai"
	"github.com/m3rciful/makbot/config"
	"github.com/m3rciful/makbot/core/logger"
	coretelegram "github.com/m3rciful/makbot/core/telegram"
	"github.com/m3rciful/makbot/core/telegram/commands"
	"github.com/m3rciful/makbot/core/telegram/router"
	"github.com/m3rciful/makbot/core/telegram/state"
	"github.com/m3rciful/makbot/flows/card"
	"github.com/m3rciful/makbot/flows/reflection"
	"github.com/m3rciful/makbot/notify"
	"github.com/m3rciful/makbot/profile"
	"github.com/m3rciful/makbot/programs"
	"github.com/m3rciful/makbot/sched"
	"github.com/m3rciful/makbot/storage"
)

// App holds the assembled application.
type App struct {
	cfg      *config.Config
	store    *storage.Storage
	sessions state.Manager
	sender   *botSender

	cardFlow *card.Flow
	reflFlow *reflection.Flow
	engine   *programs.Engine
	quiz     *programs.Quiz
	sweeper  *notify.Sweeper
	timers   *sched.Timers
	cron     *sched.Cron
}

// New builds the application over an initialized database pool.
func New(cfg *config.Config, db *sqlx.DB) (*App, error) {
	store := storage.New(db)
	sessions := state.NewMemoryManager()
	sender := &botSender{}
	timers := sched.NewTimers()
	loc := cfg.Location()

	gen := ai.New(ai.Options{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
	})
	profiles := profile.NewBuilder(store, time.Duration(cfg.Profile.TTLSeconds)*time.Second, nil)

	source, err := buildScheduleSource(cfg)
	if err != nil {
		return nil, err
	}
	cache := programs.NewCache(source, time.Duration(cfg.Sheets.CacheTTLSeconds)*time.Second, nil)
	lib := programs.NewLibrary(cfg.Programs.Tutorials, cfg.Programs.Marathons)
	engine := programs.NewEngine(lib, cache, sender, timers)
	quiz := programs.NewQuiz(sessions, sender, store.Actions)

	cardFlow := card.New(sessions, store, gen, profiles, card.Config{
		CardsDir:  cfg.Cards.Dir,
		DeckSize:  cfg.Cards.DeckSize,
		Location:  loc,
		Unlimited: cfg.Unlimited,
	})
	cardFlow.Menu = mainMenu
	reflFlow := reflection.New(sessions, store, gen)
	reflFlow.Menu = mainMenu

	a := &App{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		sender:   sender,
		cardFlow: cardFlow,
		reflFlow: reflFlow,
		engine:   engine,
		quiz:     quiz,
		sweeper:  notify.NewSweeper(store.Users, sender, loc, nil),
		timers:   timers,
		cron:     sched.NewCron(),
	}

	engine.OnComplete = a.onProgramComplete
	a.registerStates()
	return a, nil
}

// buildScheduleSource degrades to an empty schedule when the sheet is not
// configured, so the rest of the bot keeps working.
func buildScheduleSource(cfg *config.Config) (programs.Loader, error) {
	if cfg.Sheets.CredentialsFile == "" || cfg.Sheets.SpreadsheetID == "" {
		logger.Warn(context.Background(), "programs", "sheets.not_configured")
		return emptyLoader{}, nil
	}
	source, err := programs.NewSheetSource(context.Background(),
		cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.ReadRange)
	if err != nil {
		return nil, fmt.Errorf("app: schedule source: %w", err)
	}
	return source, nil
}

type emptyLoader struct{}

func (emptyLoader) Load(context.Context) (programs.Schedule, error) {
	return programs.NewSchedule(nil), nil
}

// registerStates binds every FSM state handled by the bot.
func (a *App) registerStates() {
	a.cardFlow.RegisterStates()
	a.reflFlow.RegisterStates()
	state.RegisterHandler(stateWaitingName, a.handleNameText)
	state.RegisterHandler(stateRemindMorning, a.handleRemindMorning)
	state.RegisterHandler(stateRemindEvening, a.handleRemindEvening)
	state.RegisterHandler(programs.StateQuizFeedback, a.quiz.HandleFeedback)
}

// onProgramComplete runs after the final post of a program: tutorials hand
// over to the quiz, marathons get a completion message.
func (a *App) onProgramComplete(ctx context.Context, userID int64, programID string) {
	lib := a.engine.Library()
	if lib.IsTutorial(programID) {
		if err := a.quiz.Start(ctx, userID, programID); err != nil {
			logger.Error(ctx, "programs", "quiz.start_failed",
				slog.Int64("user_id", userID),
				slog.String("program", programID),
				slog.String("err", err.Error()),
			)
		}
		return
	}
	title, _ := lib.Title(programID)
	text := fmt.Sprintf("Поздравляю! Марафон «%s» завершён. 🎉 Ты дошёл до конца — это дорогого стоит.", title)
	if err := a.sender.Text(ctx, userID, text, nil); err != nil {
		logger.Warn(ctx, "programs", "complete.send_failed",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}

func (a *App) buildRegistry() *coretelegram.Registry {
	reg := coretelegram.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Начать работу с ботом",
	})
	reg.RegisterCommand("/card", commands.Command{
		Handler:     a.cardFlow.Start,
		Description: "Вытянуть карту дня",
	})
	reg.RegisterCommand("/reflection", commands.Command{
		Handler:     a.reflFlow.Start,
		Description: "Вечерняя рефлексия",
	})
	reg.RegisterCommand("/name", commands.Command{
		Handler:     a.handleName,
		Description: "Как к тебе обращаться",
	})
	reg.RegisterCommand("/remind", commands.Command{
		Handler:     a.handleRemind,
		Description: "Настроить напоминания",
	})
	reg.RegisterCommand("/training", commands.Command{
		Handler:     a.handleTraining,
		Description: "Обучающие программы",
	})
	reg.RegisterCommand("/marathon", commands.Command{
		Handler:     a.handleMarathon,
		Description: "Марафоны",
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Статистика бота",
		AdminOnly:   true,
		Hidden:      true,
	})

	_ = reg.RegisterCallback(card.CallbackResource, a.cardFlow.HandleResource)
	_ = reg.RegisterCallback(card.CallbackRequestChoice, a.cardFlow.HandleRequestChoice)
	_ = reg.RegisterCallback(card.CallbackExplore, a.cardFlow.HandleExplore)
	_ = reg.RegisterCallback(card.CallbackFinalRes, a.cardFlow.HandleFinalResource)
	_ = reg.RegisterCallback(card.CallbackFeedback, a.cardFlow.HandleFeedback)
	_ = reg.RegisterCallback(programs.CallbackAdvance, a.handleProgramAdvance)
	_ = reg.RegisterCallback("progstart", a.handleProgramStart)
	_ = reg.RegisterCallback(programs.CallbackQuizTruth, a.quiz.HandleTruth)
	_ = reg.RegisterCallback(programs.CallbackQuizContinue, a.quiz.HandleContinue)
	_ = reg.RegisterCallback(programs.CallbackQuizRate, a.quiz.HandleRate)
	_ = reg.RegisterCallback("nameskip", a.handleNameSkip)

	reg.SetTextFallback(a.handleMenuText)
	reg.SetCallbackNotFound(a.UnknownCallback())
	return reg
}

// handleMenuText routes main-menu button presses; anything else gets a hint.
func (a *App) handleMenuText(c tele.Context) error {
	switch c.Text() {
	case menuCard:
		return a.cardFlow.Start(c)
	case menuReflection:
		return a.reflFlow.Start(c)
	case menuBonus:
		return a.handleBonus(c)
	}
	return a.handleUnknownText(c)
}

// TelegramRunOptions assembles the bot runtime: registry, routes,
// middleware chain and lifecycle hooks.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := a.buildRegistry()
	core := a.cfg.CoreConfig()

	var routes []coretelegram.Route
	routes = append(routes, router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: core.Telegram.AdminID,
	})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.sessions, reg, router.TextOptions{
		UnknownText:     a.UnknownText(),
		UnknownDocument: a.UnknownDocument(),
	})...)

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	a.sender.SetBot(rt.Bot)
	if err := a.cron.Add("* * * * *", "reminders", func() {
		a.sweeper.Sweep(logger.Background())
	}); err != nil {
		return fmt.Errorf("app: reminder job: %w", err)
	}
	a.cron.Start()
	return nil
}

func (a *App) onStop(ctx context.Context, rt coretelegram.Runtime) error {
	a.cron.Stop()
	a.timers.StopAll()
	a.sender.SetBot(nil)
	return nil
}
