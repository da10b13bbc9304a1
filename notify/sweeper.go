// Package notify delivers daily reminders. A cron-driven sweep compares
// each user's configured wall-clock reminder times against the current
// minute and sends the matching nudges.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/makbot/core/logger"
	tghelpers "github.com/m3rciful/makbot/core/telegram/helpers"
	"github.com/m3rciful/makbot/storage"
)

const (
	morningTemplate = "Доброе утро, %s! 🌅 Твоя карта дня уже ждёт — загляни, когда будет минутка."
	eveningTemplate = "Добрый вечер, %s! 🌙 Самое время для вечерней рефлексии."
)

// Texter sends a plain text message to a user chat.
type Texter interface {
	Text(ctx context.Context, userID int64, text string, markup *tele.ReplyMarkup) error
}

// ReminderSource lists users with at least one reminder configured;
// storage.Users satisfies it.
type ReminderSource interface {
	WithReminders(ctx context.Context) ([]storage.User, error)
}

// Sweeper checks reminder times once a minute.
type Sweeper struct {
	users  ReminderSource
	sender Texter
	loc    *time.Location
	now    func() time.Time
}

// NewSweeper wires the sweeper. The now func defaults to time.Now.
func NewSweeper(users ReminderSource, sender Texter, loc *time.Location, now func() time.Time) *Sweeper {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Sweeper{users: users, sender: sender, loc: loc, now: now}
}

// Sweep sends every reminder due at the current minute. Send failures are
// logged per user; the sweep continues.
func (s *Sweeper) Sweep(ctx context.Context) {
	users, err := s.users.WithReminders(ctx)
	if err != nil {
		logger.Error(ctx, "notify", "sweep.failed", slog.String("err", err.Error()))
		return
	}
	clock := s.now().In(s.loc).Format("15:04")

	sent := 0
	for _, u := range users {
		if u.MorningReminder != nil && *u.MorningReminder == clock && s.cardAvailable(ctx, u) {
			if s.send(ctx, u, fmt.Sprintf(morningTemplate, u.Name())) {
				sent++
			}
		}
		if u.EveningReminder != nil && *u.EveningReminder == clock {
			if s.send(ctx, u, fmt.Sprintf(eveningTemplate, u.Name())) {
				sent++
			}
		}
	}
	if sent > 0 {
		logger.Info(ctx, "notify", "sweep",
			slog.String("reminder", clock),
			slog.Int("count", sent),
		)
	}
}

// cardAvailable suppresses the morning nudge once today's card is drawn.
func (s *Sweeper) cardAvailable(ctx context.Context, u storage.User) bool {
	return u.LastCardAt == nil || !tghelpers.SameDay(*u.LastCardAt, s.now(), s.loc)
}

func (s *Sweeper) send(ctx context.Context, u storage.User, text string) bool {
	if err := s.sender.Text(ctx, u.ID, text, nil); err != nil {
		logger.Warn(ctx, "notify", "send.failed",
			slog.Int64("user_id", u.ID),
			slog.String("err", err.Error()),
		)
		return false
	}
	return true
}
