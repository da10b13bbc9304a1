package programs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/makbot/core/logger"
	"github.com/m3rciful/makbot/core/telegram/keyboard"
	"github.com/m3rciful/makbot/sched"
)

// CallbackAdvance is the unique of the continue button; its payload is
// "<program>|<post id>".
const CallbackAdvance = "progstep"

const continueButtonText = "Дальше ➡️"

// captionLimit is Telegram's maximum photo caption length in runes.
const captionLimit = 1024

// Sender delivers rendered program content to a user chat.
type Sender interface {
	Text(ctx context.Context, userID int64, text string, markup *tele.ReplyMarkup) error
	Photo(ctx context.Context, userID int64, fileURL, caption string, markup *tele.ReplyMarkup) error
	Poll(ctx context.Context, userID int64, post Post) error
}

// Engine drives program delivery: entry, trigger dispatch and completion.
type Engine struct {
	lib      Library
	source   Loader
	sender   Sender
	timers   *sched.Timers
	progress *progressTable

	// OnComplete runs after the last post of a program has been delivered
	// and progress has been cleared. The app hooks quiz launch and
	// completion messages here.
	OnComplete func(ctx context.Context, userID int64, programID string)
}

// NewEngine wires the delivery engine.
func NewEngine(lib Library, source Loader, sender Sender, timers *sched.Timers) *Engine {
	return &Engine{
		lib:      lib,
		source:   source,
		sender:   sender,
		timers:   timers,
		progress: newProgressTable(),
	}
}

// Library exposes the configured program catalogue.
func (e *Engine) Library() Library {
	return e.lib
}

// Progress reports the user's current position, if any.
func (e *Engine) Progress(userID int64) (Progress, bool) {
	return e.progress.get(userID)
}

// Start enrolls the user into a program and delivers its entry post.
func (e *Engine) Start(ctx context.Context, userID int64, programID string) error {
	if _, ok := e.lib.Title(programID); !ok {
		return fmt.Errorf("programs: unknown program %q", programID)
	}
	schedule, err := e.source.Load(ctx)
	if err != nil {
		return err
	}
	first, ok := schedule.First(programID)
	if !ok {
		logger.Warn(ctx, "programs", "start.no_entry",
			slog.Int64("user_id", userID),
			slog.String("program", programID),
		)
		return e.sender.Text(ctx, userID,
			"Материалы программы ещё готовятся. Загляни чуть позже!", nil)
	}
	logger.Info(ctx, "programs", "start",
		slog.Int64("user_id", userID),
		slog.String("program", programID),
		slog.Int("post_id", first.PostID),
	)
	return e.Deliver(ctx, userID, programID, first.PostID)
}

// Deliver sends one post and dispatches the follow-up trigger.
func (e *Engine) Deliver(ctx context.Context, userID int64, programID string, postID int) error {
	schedule, err := e.source.Load(ctx)
	if err != nil {
		return err
	}
	post, ok := schedule.Find(programID, postID)
	if !ok {
		// Content may have been re-edited since the button was shown.
		logger.Warn(ctx, "programs", "deliver.stale_post",
			slog.Int64("user_id", userID),
			slog.String("program", programID),
			slog.Int("post_id", postID),
		)
		return nil
	}

	next, hasNext := schedule.Next(programID, postID)
	var markup *tele.ReplyMarkup
	if hasNext && next.Trigger == TriggerButton {
		markup = keyboard.InlineButtonsRows([]keyboard.InlineBtn{{
			Text:   continueButtonText,
			Unique: CallbackAdvance,
			Data:   fmt.Sprintf("%s|%d", programID, next.PostID),
		}})
	}

	if err := e.render(ctx, userID, post, markup); err != nil {
		return fmt.Errorf("programs: deliver %s/%d: %w", programID, postID, err)
	}
	e.progress.set(userID, Progress{ProgramID: programID, LastPostID: postID})
	logger.Info(ctx, "programs", "deliver",
		slog.Int64("user_id", userID),
		slog.String("program", programID),
		slog.Int("post_id", postID),
		slog.Int("day", post.Day),
		slog.String("trigger", string(post.Trigger)),
	)

	if !hasNext {
		e.progress.clear(userID)
		if e.OnComplete != nil {
			e.OnComplete(ctx, userID, programID)
		}
		return nil
	}

	switch next.Trigger {
	case TriggerImmediate:
		return e.Deliver(ctx, userID, programID, next.PostID)
	case TriggerDelay:
		delay, err := next.Delay()
		if err != nil {
			logger.Warn(ctx, "programs", "deliver.bad_delay",
				slog.String("program", programID),
				slog.Int("post_id", next.PostID),
				slog.String("err", err.Error()),
			)
			return nil
		}
		e.scheduleContinuation(userID, programID, next.PostID, delay)
	}
	return nil
}

// AdvanceOnButton handles the continue button press.
func (e *Engine) AdvanceOnButton(ctx context.Context, userID int64, programID string, postID int) error {
	return e.Deliver(ctx, userID, programID, postID)
}

func (e *Engine) scheduleContinuation(userID int64, programID string, postID int, delay time.Duration) {
	key := fmt.Sprintf("prog:%d:%s", userID, programID)
	e.timers.Schedule(key, delay, func() {
		ctx := logger.Background()
		if err := e.Deliver(ctx, userID, programID, postID); err != nil {
			logger.Error(ctx, "programs", "continuation.failed",
				slog.Int64("user_id", userID),
				slog.String("program", programID),
				slog.Int("post_id", postID),
				slog.String("err", err.Error()),
			)
		}
	})
	if logger.Programs != nil {
		logger.Programs.Debug("continuation armed",
			slog.String("event", "continuation.armed"),
			slog.Int64("user_id", userID),
			slog.String("program", programID),
			slog.Int("post_id", postID),
			slog.Int64("delay_ms", delay.Milliseconds()),
		)
	}
}

func (e *Engine) render(ctx context.Context, userID int64, post Post, markup *tele.ReplyMarkup) error {
	if post.IsPoll() {
		if markup != nil {
			// Polls cannot carry an inline keyboard; ship the button separately.
			if err := e.sender.Poll(ctx, userID, post); err != nil {
				return err
			}
			return e.sender.Text(ctx, userID, "Когда будешь готов — продолжим.", markup)
		}
		return e.sender.Poll(ctx, userID, post)
	}

	if post.ImageURL != "" {
		caption, rest := SplitCaption(post.Text)
		if rest == "" {
			return e.sender.Photo(ctx, userID, post.ImageURL, caption, markup)
		}
		if err := e.sender.Photo(ctx, userID, post.ImageURL, caption, nil); err != nil {
			return err
		}
		return e.sender.Text(ctx, userID, rest, markup)
	}

	return e.sender.Text(ctx, userID, post.Text, markup)
}

// SplitCaption splits text into a photo caption within Telegram's limit and
// the remainder, preferring to break on the last newline before the limit.
func SplitCaption(text string) (caption, rest string) {
	runes := []rune(text)
	if len(runes) <= captionLimit {
		return text, ""
	}
	cut := captionLimit
	for i := captionLimit; i > 0; i-- {
		if runes[i-1] == '\n' {
			cut = i - 1
			break
		}
	}
	caption = string(runes[:cut])
	rest = string(runes[cut:])
	for len(rest) > 0 && (rest[0] == '\n' || rest[0] == ' ') {
		rest = rest[1:]
	}
	return caption, rest
}
