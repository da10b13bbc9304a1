package reflection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/makbot/ai"
	"github.com/m3rciful/makbot/core/telegram/state"
	"github.com/m3rciful/makbot/storage"
)

type fakeContext struct {
	tele.Context
	sender *tele.User
	text   string
	store  map[string]any
	sent   []any
}

func newFakeContext(userID int64) *fakeContext {
	return &fakeContext{
		sender: &tele.User{ID: userID, FirstName: "Оля", Username: "olya"},
		store:  make(map[string]any),
	}
}

func (f *fakeContext) Sender() *tele.User    { return f.sender }
func (f *fakeContext) Chat() *tele.Chat      { return &tele.Chat{ID: f.sender.ID} }
func (f *fakeContext) Update() tele.Update   { return tele.Update{} }
func (f *fakeContext) Text() string          { return f.text }
func (f *fakeContext) Get(key string) any    { return f.store[key] }
func (f *fakeContext) Set(key string, v any) { f.store[key] = v }
func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	f.sent = append(f.sent, what)
	return nil
}

func (f *fakeContext) lastText() string {
	if len(f.sent) == 0 {
		return ""
	}
	s, _ := f.sent[len(f.sent)-1].(string)
	return s
}

type fakeUsers struct {
	user storage.User
}

func (f *fakeUsers) Get(ctx context.Context, id int64) (storage.User, error) {
	return f.user, nil
}

type fakeJournal struct {
	actions []string
}

func (f *fakeJournal) Log(ctx context.Context, userID int64, username, action string, details map[string]any) error {
	f.actions = append(f.actions, action)
	return nil
}

type savedEntry struct {
	good, gratitude, hard string
	summary               *string
}

type fakeReflections struct {
	saved []savedEntry
	err   error
}

func (f *fakeReflections) Add(ctx context.Context, userID int64, good, gratitude, hard string, summary *string) error {
	f.saved = append(f.saved, savedEntry{good, gratitude, hard, summary})
	return f.err
}

type fakeGen struct {
	summary string
	err     error
}

func (g *fakeGen) Question(ctx context.Context, step int, pc ai.PromptContext, request, impression string, history []ai.QA) (string, error) {
	return "", nil
}

func (g *fakeGen) Summary(ctx context.Context, pc ai.PromptContext, request, impression string, history []ai.QA) (string, error) {
	return "", nil
}

func (g *fakeGen) Support(ctx context.Context, pc ai.PromptContext) (string, error) {
	return "", nil
}

func (g *fakeGen) ReflectionSummary(ctx context.Context, good, gratitude, hard string) (string, error) {
	return g.summary, g.err
}

func testFlow(gen *fakeGen) (*Flow, *fakeReflections, *fakeJournal) {
	reflections := &fakeReflections{}
	journal := &fakeJournal{}
	f := &Flow{
		sessions:    state.NewMemoryManager(),
		users:       &fakeUsers{},
		journal:     journal,
		reflections: reflections,
		gen:         gen,
	}
	return f, reflections, journal
}

func TestStartBlocksSecondFlow(t *testing.T) {
	f, _, _ := testFlow(&fakeGen{})
	f.sessions.SetState(1, "card_first_impression")

	c := newFakeContext(1)
	require.NoError(t, f.Start(c))

	assert.Equal(t, textAnotherFlow, c.lastText())
	assert.Equal(t, state.State("card_first_impression"), f.sessions.GetState(1))
}

func TestStartDropsAbandonedQuiz(t *testing.T) {
	f, _, _ := testFlow(&fakeGen{})
	f.sessions.Get(1).Quiz = &state.QuizSession{Program: "mak_basics"}

	c := newFakeContext(1)
	require.NoError(t, f.Start(c))

	assert.Nil(t, f.sessions.Get(1).Quiz, "stale quiz callbacks go dead once a reflection begins")
	assert.Equal(t, StateGoodMoments, f.sessions.GetState(1))
}

func TestLinearProgressionPersistsEntry(t *testing.T) {
	f, reflections, journal := testFlow(&fakeGen{summary: "день был тёплым"})

	c := newFakeContext(1)
	require.NoError(t, f.Start(c))
	assert.Equal(t, StateGoodMoments, f.sessions.GetState(1))
	assert.Equal(t, textAskGood, c.lastText())

	c.text = "прогулка в парке"
	require.NoError(t, f.HandleGoodMoments(c))
	assert.Equal(t, StateGratitude, f.sessions.GetState(1))
	assert.Equal(t, textAskGratitude, c.lastText())

	c.text = "да"
	require.NoError(t, f.HandleGratitude(c))
	assert.Equal(t, textTooShort, c.lastText())
	assert.Equal(t, StateGratitude, f.sessions.GetState(1), "short input does not advance")

	c.text = "благодарна коллеге"
	require.NoError(t, f.HandleGratitude(c))
	assert.Equal(t, StateHardMoments, f.sessions.GetState(1))

	c.text = "тяжёлый разговор"
	require.NoError(t, f.HandleHardMoments(c))

	require.Len(t, reflections.saved, 1)
	entry := reflections.saved[0]
	assert.Equal(t, "прогулка в парке", entry.good)
	assert.Equal(t, "благодарна коллеге", entry.gratitude)
	assert.Equal(t, "тяжёлый разговор", entry.hard)
	require.NotNil(t, entry.summary)
	assert.Equal(t, "день был тёплым", *entry.summary)

	assert.False(t, f.sessions.InProgress(1), "finished flow clears the session")
	assert.Equal(t, textConclusion, c.lastText())
	assert.Equal(t, []string{
		"reflection_start",
		"reflection_good_moments",
		"reflection_gratitude",
		"reflection_hard_moments",
	}, journal.actions)
}

func TestSummaryFailureStillPersists(t *testing.T) {
	f, reflections, _ := testFlow(&fakeGen{err: errors.New("model offline")})

	c := newFakeContext(1)
	require.NoError(t, f.Start(c))
	c.text = "хороший обед"
	require.NoError(t, f.HandleGoodMoments(c))
	c.text = "благодарен другу"
	require.NoError(t, f.HandleGratitude(c))
	c.text = "ничего трудного"
	require.NoError(t, f.HandleHardMoments(c))

	require.Len(t, reflections.saved, 1)
	assert.Nil(t, reflections.saved[0].summary, "entry is saved without a summary")
	assert.False(t, f.sessions.InProgress(1))
}

func TestOutOfStateInputIsIgnored(t *testing.T) {
	f, reflections, _ := testFlow(&fakeGen{})

	c := newFakeContext(1)
	c.text = "неожиданный текст"
	require.NoError(t, f.HandleHardMoments(c))

	assert.Empty(t, reflections.saved)
	assert.Empty(t, c.sent, "handler stays silent outside its state")
}
