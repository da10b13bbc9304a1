package card

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/makbot/ai"
	"github.com/m3rciful/makbot/core/telegram/state"
	"github.com/m3rciful/makbot/storage"
)

type fakeContext struct {
	tele.Context
	sender   *tele.User
	text     string
	callback *tele.Callback
	store    map[string]any
	sent     []any
	sendErr  error
}

func newFakeContext(userID int64) *fakeContext {
	return &fakeContext{
		sender: &tele.User{ID: userID, FirstName: "Аня", Username: "anya"},
		store:  make(map[string]any),
	}
}

func (f *fakeContext) Sender() *tele.User        { return f.sender }
func (f *fakeContext) Chat() *tele.Chat          { return &tele.Chat{ID: f.sender.ID} }
func (f *fakeContext) Update() tele.Update       { return tele.Update{} }
func (f *fakeContext) Text() string              { return f.text }
func (f *fakeContext) Callback() *tele.Callback  { return f.callback }
func (f *fakeContext) Get(key string) any        { return f.store[key] }
func (f *fakeContext) Set(key string, v any)     { f.store[key] = v }
func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	f.sent = append(f.sent, what)
	return f.sendErr
}

// lastText returns the most recent sent item as text, or "" for photos etc.
func (f *fakeContext) lastText() string {
	if len(f.sent) == 0 {
		return ""
	}
	s, _ := f.sent[len(f.sent)-1].(string)
	return s
}

type fakeUsers struct {
	user     storage.User
	getErr   error
	last     *time.Time
	lastErr  error
	touched  []time.Time
	touchErr error
}

func (f *fakeUsers) Get(ctx context.Context, id int64) (storage.User, error) {
	return f.user, f.getErr
}

func (f *fakeUsers) LastCardAt(ctx context.Context, id int64) (*time.Time, error) {
	return f.last, f.lastErr
}

func (f *fakeUsers) TouchCardDraw(ctx context.Context, id int64, at time.Time) error {
	f.touched = append(f.touched, at)
	return f.touchErr
}

type fakeCards struct {
	used    []int
	usedErr error
	marked  []int
	resets  int
}

func (f *fakeCards) UsedNumbers(ctx context.Context, userID int64) ([]int, error) {
	return f.used, f.usedErr
}

func (f *fakeCards) MarkUsed(ctx context.Context, userID int64, number int) error {
	f.marked = append(f.marked, number)
	return nil
}

func (f *fakeCards) ResetUsed(ctx context.Context, userID int64) error {
	f.resets++
	f.used = nil
	return nil
}

type fakeJournal struct {
	actions []string
}

func (f *fakeJournal) Log(ctx context.Context, userID int64, username, action string, details map[string]any) error {
	f.actions = append(f.actions, action)
	return nil
}

type fakeResources struct {
	initial string
	final   string
	calls   int
}

func (f *fakeResources) SetResources(ctx context.Context, userID int64, initial, final string) error {
	f.initial, f.final = initial, final
	f.calls++
	return nil
}

type fakeRecharge struct {
	methods []string
	err     error
}

func (f *fakeRecharge) Add(ctx context.Context, userID int64, method string) error {
	f.methods = append(f.methods, method)
	return f.err
}

type fakeProfiles struct{}

func (fakeProfiles) Get(ctx context.Context, userID int64) (storage.Profile, error) {
	return storage.Profile{}, storage.ErrNotFound
}

type fakeGen struct {
	summaryHistory []ai.QA
	questionSteps  []int
	supported      int
}

func (g *fakeGen) Question(ctx context.Context, step int, pc ai.PromptContext, request, impression string, history []ai.QA) (string, error) {
	g.questionSteps = append(g.questionSteps, step)
	return fmt.Sprintf("Вопрос (%d/3): что откликается?", step), nil
}

func (g *fakeGen) Summary(ctx context.Context, pc ai.PromptContext, request, impression string, history []ai.QA) (string, error) {
	g.summaryHistory = history
	return "итог сессии", nil
}

func (g *fakeGen) Support(ctx context.Context, pc ai.PromptContext) (string, error) {
	g.supported++
	return "тёплые слова", nil
}

func (g *fakeGen) ReflectionSummary(ctx context.Context, good, gratitude, hard string) (string, error) {
	return "", nil
}

type flowFixture struct {
	flow     *Flow
	users    *fakeUsers
	cards    *fakeCards
	journal  *fakeJournal
	resource *fakeResources
	recharge *fakeRecharge
	gen      *fakeGen
	now      time.Time
}

func newFixture() *flowFixture {
	fx := &flowFixture{
		users:    &fakeUsers{},
		cards:    &fakeCards{},
		journal:  &fakeJournal{},
		resource: &fakeResources{},
		recharge: &fakeRecharge{},
		gen:      &fakeGen{},
		now:      time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	fx.flow = &Flow{
		sessions: state.NewMemoryManager(),
		users:    fx.users,
		cards:    fx.cards,
		journal:  fx.journal,
		resource: fx.resource,
		recharge: fx.recharge,
		gen:      fx.gen,
		profiles: fakeProfiles{},
		cfg: Config{
			CardsDir:  "cards",
			DeckSize:  3,
			Location:  time.UTC,
			Unlimited: func(int64) bool { return false },
		},
		randInt: func(n int) int { return 0 },
		now:     func() time.Time { return fx.now },
	}
	return fx
}

func TestStartBlocksSecondFlow(t *testing.T) {
	fx := newFixture()
	fx.flow.sessions.SetState(1, "reflection_good_moments")

	c := newFakeContext(1)
	require.NoError(t, fx.flow.Start(c))

	assert.Equal(t, textAnotherFlow, c.lastText())
	assert.Equal(t, state.State("reflection_good_moments"), fx.flow.sessions.GetState(1))
}

func TestStartDropsAbandonedQuiz(t *testing.T) {
	fx := newFixture()
	fx.flow.sessions.Get(1).Quiz = &state.QuizSession{Program: "mak_basics", Score: 1}

	c := newFakeContext(1)
	require.NoError(t, fx.flow.Start(c))

	assert.Nil(t, fx.flow.sessions.Get(1).Quiz, "stale quiz callbacks go dead once a card session begins")
	assert.Equal(t, StateInitialResource, fx.flow.sessions.GetState(1))
}

func TestStartEnforcesDailyLimit(t *testing.T) {
	fx := newFixture()
	last := fx.now.Add(-2 * time.Hour)
	fx.users.last = &last

	c := newFakeContext(1)
	require.NoError(t, fx.flow.Start(c))

	assert.Contains(t, c.lastText(), "Сегодня ты уже тянул карту")
	assert.False(t, fx.flow.sessions.InProgress(1))
}

func TestStartAllowsNextDay(t *testing.T) {
	fx := newFixture()
	last := fx.now.AddDate(0, 0, -1)
	fx.users.last = &last

	c := newFakeContext(1)
	require.NoError(t, fx.flow.Start(c))

	assert.Equal(t, StateInitialResource, fx.flow.sessions.GetState(1))
	assert.Contains(t, c.lastText(), "Привет, Аня!")
}

func TestStartUnlimitedBypassesDailyLimit(t *testing.T) {
	fx := newFixture()
	last := fx.now.Add(-time.Hour)
	fx.users.last = &last
	fx.flow.cfg.Unlimited = func(int64) bool { return true }

	c := newFakeContext(1)
	require.NoError(t, fx.flow.Start(c))

	assert.Equal(t, StateInitialResource, fx.flow.sessions.GetState(1))
}

func TestDrawRecyclesExhaustedDeck(t *testing.T) {
	fx := newFixture()
	fx.cards.used = []int{1, 2, 3}

	c := newFakeContext(1)
	require.NoError(t, fx.flow.Start(c))
	c.callback = &tele.Callback{Data: CallbackResource + "|good"}
	require.NoError(t, fx.flow.HandleResource(c))
	c.callback = &tele.Callback{Data: CallbackRequestChoice + "|mental"}
	require.NoError(t, fx.flow.HandleRequestChoice(c))

	assert.Equal(t, 1, fx.cards.resets, "exhausted deck is recycled once")
	require.Len(t, fx.cards.marked, 1)
	assert.Equal(t, 1, fx.cards.marked[0], "first candidate after recycle")
	assert.Len(t, fx.users.touched, 1)
	assert.Equal(t, StateFirstImpression, fx.flow.sessions.GetState(1))

	photo, ok := c.sent[len(c.sent)-1].(*tele.Photo)
	require.True(t, ok, "card is delivered as a photo")
	assert.Contains(t, photo.Caption, "карта дня")
}

func TestWrittenRequestValidatesLength(t *testing.T) {
	fx := newFixture()
	c := newFakeContext(1)
	require.NoError(t, fx.flow.Start(c))
	c.callback = &tele.Callback{Data: CallbackResource + "|medium"}
	require.NoError(t, fx.flow.HandleResource(c))
	c.callback = &tele.Callback{Data: CallbackRequestChoice + "|typed"}
	require.NoError(t, fx.flow.HandleRequestChoice(c))
	require.Equal(t, StateRequestText, fx.flow.sessions.GetState(1))

	c.text = "??"
	require.NoError(t, fx.flow.HandleRequestText(c))
	assert.Equal(t, textRequestTooShort, c.lastText())
	assert.Equal(t, StateRequestText, fx.flow.sessions.GetState(1), "short input does not advance")
	assert.Empty(t, fx.cards.marked)

	c.text = "Как мне найти опору?"
	require.NoError(t, fx.flow.HandleRequestText(c))
	assert.Equal(t, StateFirstImpression, fx.flow.sessions.GetState(1))
	assert.Equal(t, "Как мне найти опору?", fx.flow.sessions.Get(1).Card.RequestText)
}

func TestExplorationAccumulatesHistory(t *testing.T) {
	fx := newFixture()
	c := newFakeContext(1)
	require.NoError(t, fx.flow.Start(c))
	c.callback = &tele.Callback{Data: CallbackResource + "|good"}
	require.NoError(t, fx.flow.HandleResource(c))
	c.callback = &tele.Callback{Data: CallbackRequestChoice + "|mental"}
	require.NoError(t, fx.flow.HandleRequestChoice(c))

	c.text = "Вижу дорогу через лес"
	require.NoError(t, fx.flow.HandleFirstImpression(c))
	c.callback = &tele.Callback{Data: CallbackExplore + "|yes"}
	require.NoError(t, fx.flow.HandleExplore(c))
	require.Equal(t, StateAnswer1, fx.flow.sessions.GetState(1))

	answers := []string{"ответ один", "ответ два", "ответ три"}
	for i, answer := range answers {
		c.text = answer
		require.NoError(t, fx.flow.answerHandler(i+1)(c), "answer %d", i+1)
	}

	assert.Equal(t, []int{1, 2, 3}, fx.gen.questionSteps)
	require.Len(t, fx.gen.summaryHistory, 3, "summary sees all question/answer pairs")
	assert.Equal(t, "ответ три", fx.gen.summaryHistory[2].Answer)
	assert.Equal(t, StateFinalResource, fx.flow.sessions.GetState(1))
}

func TestSkipExplorationGoesStraightToSummary(t *testing.T) {
	fx := newFixture()
	c := newFakeContext(1)
	require.NoError(t, fx.flow.Start(c))
	c.callback = &tele.Callback{Data: CallbackResource + "|good"}
	require.NoError(t, fx.flow.HandleResource(c))
	c.callback = &tele.Callback{Data: CallbackRequestChoice + "|mental"}
	require.NoError(t, fx.flow.HandleRequestChoice(c))
	c.text = "Маяк в тумане"
	require.NoError(t, fx.flow.HandleFirstImpression(c))

	c.callback = &tele.Callback{Data: CallbackExplore + "|no"}
	require.NoError(t, fx.flow.HandleExplore(c))

	assert.Empty(t, fx.gen.questionSteps)
	assert.Empty(t, fx.gen.summaryHistory)
	assert.Equal(t, StateFinalResource, fx.flow.sessions.GetState(1))
}

func TestFinalResourceClosesSession(t *testing.T) {
	fx := newFixture()
	c := newFakeContext(1)
	fx.flow.sessions.Get(1).Card = &state.CardSession{CardNumber: 2, InitialResource: ResourceLabels[ResourceGood]}
	fx.flow.sessions.SetState(1, StateFinalResource)

	c.callback = &tele.Callback{Data: CallbackFinalRes + "|good"}
	require.NoError(t, fx.flow.HandleFinalResource(c))

	assert.Equal(t, 1, fx.resource.calls)
	assert.Equal(t, ResourceLabels[ResourceGood], fx.resource.final)
	assert.False(t, fx.flow.sessions.InProgress(1), "session cleared before feedback")
	assert.Equal(t, textAskFeedback, c.lastText())
	assert.Zero(t, fx.gen.supported)
}

func TestLowFinalResourceBranchesIntoRecharge(t *testing.T) {
	fx := newFixture()
	c := newFakeContext(1)
	fx.flow.sessions.Get(1).Card = &state.CardSession{CardNumber: 2}
	fx.flow.sessions.SetState(1, StateFinalResource)

	c.callback = &tele.Callback{Data: CallbackFinalRes + "|low"}
	require.NoError(t, fx.flow.HandleFinalResource(c))

	assert.Equal(t, 1, fx.gen.supported)
	assert.Equal(t, StateRecharge, fx.flow.sessions.GetState(1))
	assert.Equal(t, textAskRecharge, c.lastText())

	c.text = "гуляю"
	require.NoError(t, fx.flow.HandleRecharge(c))
	assert.Equal(t, textRechargeTooShort, c.lastText())
	assert.Empty(t, fx.recharge.methods)

	c.text = "долгая прогулка у воды"
	require.NoError(t, fx.flow.HandleRecharge(c))
	assert.Equal(t, []string{"долгая прогулка у воды"}, fx.recharge.methods)
	assert.False(t, fx.flow.sessions.InProgress(1))
	assert.Equal(t, textAskFeedback, c.lastText())
}

func TestStorageFailureResetsSession(t *testing.T) {
	fx := newFixture()
	fx.cards.usedErr = fmt.Errorf("db down")

	c := newFakeContext(1)
	require.NoError(t, fx.flow.Start(c))
	c.callback = &tele.Callback{Data: CallbackResource + "|good"}
	require.NoError(t, fx.flow.HandleResource(c))
	c.callback = &tele.Callback{Data: CallbackRequestChoice + "|mental"}
	require.NoError(t, fx.flow.HandleRequestChoice(c))

	assert.Equal(t, textInternalError, c.lastText())
	assert.False(t, fx.flow.sessions.InProgress(1), "failed step leaves no stuck session")
}

func TestFeedbackRestoresMenu(t *testing.T) {
	fx := newFixture()
	fx.users.user = storage.User{ID: 1, FirstName: "Аня", BonusAvailable: true}
	menuBonus := false
	fx.flow.Menu = func(bonus bool) *tele.ReplyMarkup {
		menuBonus = bonus
		return &tele.ReplyMarkup{}
	}

	c := newFakeContext(1)
	c.callback = &tele.Callback{Data: CallbackFeedback + "|helped|4"}
	require.NoError(t, fx.flow.HandleFeedback(c))

	assert.Equal(t, feedbackReplies["helped"], c.lastText())
	assert.True(t, menuBonus, "bonus flag flows into the menu")
	assert.Contains(t, fx.journal.actions, "card_feedback")
}

func TestHistoryPairsQuestionsWithAnswers(t *testing.T) {
	f := &Flow{}
	session := &state.Session{Card: &state.CardSession{
		Questions: []string{"Вопрос (1/3): q1", "Вопрос (2/3): q2"},
		Answers:   []string{"a1"},
	}}

	h := f.history(session)
	require.Len(t, h, 1, "only answered questions enter the history")
	assert.Equal(t, ai.QA{Question: "Вопрос (1/3): q1", Answer: "a1"}, h[0])
}

func TestCardSessionGuards(t *testing.T) {
	sessions := state.NewMemoryManager()
	f := &Flow{sessions: sessions}

	_, ok := f.cardSession(1, StateFirstImpression)
	assert.False(t, ok, "idle user has no card session")

	sessions.SetState(1, StateFirstImpression)
	_, ok = f.cardSession(1, StateFirstImpression)
	assert.False(t, ok, "state without a card payload is rejected")

	sessions.Get(1).Card = &state.CardSession{CardNumber: 3}
	_, ok = f.cardSession(1, StateExploreChoice)
	assert.False(t, ok, "wrong expected state is rejected")

	session, ok := f.cardSession(1, StateFirstImpression)
	require.True(t, ok)
	assert.Equal(t, 3, session.Card.CardNumber)
}

func TestResourceButtonsCoverAllLevels(t *testing.T) {
	markup := resourceButtons(CallbackResource)
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 3)

	texts := []string{
		markup.InlineKeyboard[0][0].Text,
		markup.InlineKeyboard[0][1].Text,
		markup.InlineKeyboard[0][2].Text,
	}
	assert.Equal(t, []string{
		ResourceLabels[ResourceGood],
		ResourceLabels[ResourceMedium],
		ResourceLabels[ResourceLow],
	}, texts)
}
