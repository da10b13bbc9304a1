package programs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/makbot/sched"
)

type staticLoader struct {
	schedule Schedule
}

func (l staticLoader) Load(context.Context) (Schedule, error) {
	return l.schedule, nil
}

type sentItem struct {
	kind   string
	userID int64
	text   string
	markup *tele.ReplyMarkup
	post   Post
}

type recordingSender struct {
	items []sentItem
}

func (s *recordingSender) Text(_ context.Context, userID int64, text string, markup *tele.ReplyMarkup) error {
	s.items = append(s.items, sentItem{kind: "text", userID: userID, text: text, markup: markup})
	return nil
}

func (s *recordingSender) Photo(_ context.Context, userID int64, fileURL, caption string, markup *tele.ReplyMarkup) error {
	s.items = append(s.items, sentItem{kind: "photo", userID: userID, text: caption, markup: markup})
	return nil
}

func (s *recordingSender) Poll(_ context.Context, userID int64, post Post) error {
	s.items = append(s.items, sentItem{kind: "poll", userID: userID, post: post})
	return nil
}

func testEngine(posts []Post) (*Engine, *recordingSender, *sched.Timers) {
	lib := NewLibrary(map[string]string{"p": "Программа"}, nil)
	sender := &recordingSender{}
	timers := sched.NewTimers()
	engine := NewEngine(lib, staticLoader{schedule: NewSchedule(posts)}, sender, timers)
	return engine, sender, timers
}

func TestStartChainsImmediatePosts(t *testing.T) {
	engine, sender, _ := testEngine([]Post{
		{ProgramID: "p", Day: 1, PostID: 1, Trigger: TriggerImmediate, Text: "первый"},
		{ProgramID: "p", Day: 1, PostID: 2, Trigger: TriggerImmediate, Text: "второй"},
		{ProgramID: "p", Day: 1, PostID: 3, Trigger: TriggerButton, Text: "третий"},
	})

	require.NoError(t, engine.Start(context.Background(), 7, "p"))

	require.Len(t, sender.items, 2, "immediate posts chain, button post waits")
	assert.Equal(t, "первый", sender.items[0].text)
	assert.Nil(t, sender.items[0].markup)
	assert.Equal(t, "второй", sender.items[1].text)
	require.NotNil(t, sender.items[1].markup, "post before a button trigger carries the continue button")

	progress, ok := engine.Progress(7)
	require.True(t, ok)
	assert.Equal(t, Progress{ProgramID: "p", LastPostID: 2}, progress)
}

func TestAdvanceOnButtonCompletesProgram(t *testing.T) {
	engine, sender, _ := testEngine([]Post{
		{ProgramID: "p", Day: 1, PostID: 1, Trigger: TriggerImmediate, Text: "первый"},
		{ProgramID: "p", Day: 1, PostID: 2, Trigger: TriggerButton, Text: "финал"},
	})
	var completed []string
	engine.OnComplete = func(_ context.Context, userID int64, programID string) {
		completed = append(completed, programID)
	}

	require.NoError(t, engine.Start(context.Background(), 7, "p"))
	sender.items = nil

	require.NoError(t, engine.AdvanceOnButton(context.Background(), 7, "p", 2))
	require.Len(t, sender.items, 1)
	assert.Equal(t, "финал", sender.items[0].text)
	assert.Equal(t, []string{"p"}, completed)

	_, ok := engine.Progress(7)
	assert.False(t, ok, "progress is cleared on completion")
}

func TestStartUnknownProgram(t *testing.T) {
	engine, _, _ := testEngine(nil)
	err := engine.Start(context.Background(), 7, "ghost")
	assert.Error(t, err)
}

func TestStartWithoutEntryPost(t *testing.T) {
	engine, sender, _ := testEngine([]Post{
		{ProgramID: "p", Day: 1, PostID: 1, Trigger: TriggerButton, Text: "застрял"},
	})

	require.NoError(t, engine.Start(context.Background(), 7, "p"))
	require.Len(t, sender.items, 1)
	assert.Contains(t, sender.items[0].text, "готовятся")
}

func TestDelayTriggerArmsTimer(t *testing.T) {
	engine, sender, timers := testEngine([]Post{
		{ProgramID: "p", Day: 1, PostID: 1, Trigger: TriggerImmediate, Text: "первый"},
		{ProgramID: "p", Day: 2, PostID: 2, Trigger: TriggerDelay, TriggerValue: "1h", Text: "позже"},
	})
	defer timers.StopAll()

	require.NoError(t, engine.Start(context.Background(), 7, "p"))
	assert.Len(t, sender.items, 1)
	assert.Equal(t, 1, timers.Pending())
}

func TestDeliverStalePostIsSkipped(t *testing.T) {
	engine, sender, _ := testEngine([]Post{
		{ProgramID: "p", Day: 1, PostID: 1, Trigger: TriggerImmediate, Text: "первый"},
	})

	require.NoError(t, engine.Deliver(context.Background(), 7, "p", 99))
	assert.Empty(t, sender.items)
}

func TestRenderPollWithButtonShipsSeparateMessage(t *testing.T) {
	engine, sender, _ := testEngine([]Post{
		{ProgramID: "p", Day: 1, PostID: 1, Trigger: TriggerImmediate,
			PollQuestion: "Вопрос?", PollOptions: []string{"да", "нет"}},
		{ProgramID: "p", Day: 1, PostID: 2, Trigger: TriggerButton, Text: "дальше"},
	})

	require.NoError(t, engine.Start(context.Background(), 7, "p"))
	require.Len(t, sender.items, 2)
	assert.Equal(t, "poll", sender.items[0].kind)
	assert.Equal(t, "text", sender.items[1].kind)
	assert.NotNil(t, sender.items[1].markup)
}

func TestRenderLongPhotoCaptionOverflows(t *testing.T) {
	long := strings.Repeat("а", 1000) + "\n" + strings.Repeat("б", 200)
	engine, sender, _ := testEngine([]Post{
		{ProgramID: "p", Day: 1, PostID: 1, Trigger: TriggerImmediate,
			Text: long, ImageURL: "https://cdn.example.com/1.jpg"},
	})

	require.NoError(t, engine.Start(context.Background(), 7, "p"))
	require.Len(t, sender.items, 2)
	assert.Equal(t, "photo", sender.items[0].kind)
	assert.Equal(t, strings.Repeat("а", 1000), sender.items[0].text)
	assert.Equal(t, "text", sender.items[1].kind)
	assert.Equal(t, strings.Repeat("б", 200), sender.items[1].text)
}

func TestSplitCaption(t *testing.T) {
	short := "короткий текст"
	caption, rest := SplitCaption(short)
	assert.Equal(t, short, caption)
	assert.Empty(t, rest)

	// No newline within the limit: hard cut at the limit.
	solid := strings.Repeat("x", 1500)
	caption, rest = SplitCaption(solid)
	assert.Len(t, []rune(caption), 1024)
	assert.Len(t, []rune(rest), 476)

	// Break lands on the last newline before the limit.
	text := strings.Repeat("a", 500) + "\n" + strings.Repeat("b", 600)
	caption, rest = SplitCaption(text)
	assert.Equal(t, strings.Repeat("a", 500), caption)
	assert.Equal(t, strings.Repeat("b", 600), rest)
}

func TestScheduleReplacesPendingContinuation(t *testing.T) {
	timers := sched.NewTimers()
	defer timers.StopAll()

	fired := make(chan string, 2)
	timers.Schedule("k", time.Hour, func() { fired <- "old" })
	timers.Schedule("k", 5*time.Millisecond, func() { fired <- "new" })

	select {
	case v := <-fired:
		assert.Equal(t, "new", v)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Equal(t, 0, timers.Pending())
}
