package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/makbot/storage"
)

type fakeSource struct {
	users []storage.User
}

func (f fakeSource) WithReminders(context.Context) ([]storage.User, error) {
	return f.users, nil
}

type fakeTexter struct {
	sent map[int64][]string
}

func (f *fakeTexter) Text(_ context.Context, userID int64, text string, _ *tele.ReplyMarkup) error {
	if f.sent == nil {
		f.sent = make(map[int64][]string)
	}
	f.sent[userID] = append(f.sent[userID], text)
	return nil
}

func strPtr(s string) *string { return &s }

func TestSweepSendsDueReminders(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)

	source := fakeSource{users: []storage.User{
		{ID: 1, FirstName: "Аня", MorningReminder: strPtr("09:30"), LastCardAt: &yesterday},
		{ID: 2, FirstName: "Борис", MorningReminder: strPtr("08:00")},
		{ID: 3, FirstName: "Вера", EveningReminder: strPtr("09:30")},
	}}
	texter := &fakeTexter{}
	s := NewSweeper(source, texter, time.UTC, func() time.Time { return now })

	s.Sweep(context.Background())

	assert.Len(t, texter.sent[1], 1, "due morning reminder is sent")
	assert.Contains(t, texter.sent[1][0], "Аня")
	assert.Empty(t, texter.sent[2], "off-minute reminder is skipped")
	assert.Len(t, texter.sent[3], 1, "evening reminder matches regardless of card state")
}

func TestSweepSkipsMorningAfterTodaysDraw(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC)
	drawnToday := now.Add(-time.Hour)

	source := fakeSource{users: []storage.User{
		{ID: 1, FirstName: "Аня", MorningReminder: strPtr("09:30"), LastCardAt: &drawnToday},
	}}
	texter := &fakeTexter{}
	s := NewSweeper(source, texter, time.UTC, func() time.Time { return now })

	s.Sweep(context.Background())
	assert.Empty(t, texter.sent[1], "morning nudge is suppressed once today's card is drawn")
}

func TestSweepHonoursTimezone(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Moscow")
	// 06:30 UTC is 09:30 in Moscow.
	now := time.Date(2026, 8, 30, 6, 30, 0, 0, time.UTC)

	source := fakeSource{users: []storage.User{
		{ID: 1, FirstName: "Аня", MorningReminder: strPtr("09:30")},
	}}
	texter := &fakeTexter{}
	s := NewSweeper(source, texter, loc, func() time.Time { return now })

	s.Sweep(context.Background())
	assert.Len(t, texter.sent[1], 1)
}
