package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/makbot/storage"
)

type fakeProfiles struct {
	stored   storage.Profile
	getErr   error
	upserted []storage.Profile
}

func (f *fakeProfiles) Get(ctx context.Context, userID int64) (storage.Profile, error) {
	return f.stored, f.getErr
}

func (f *fakeProfiles) Upsert(ctx context.Context, p storage.Profile) error {
	f.upserted = append(f.upserted, p)
	return nil
}

type fakeActions struct {
	rows       []storage.Action
	activeDays int
	calls      int
	since      time.Time
}

func (f *fakeActions) RecentByUser(ctx context.Context, userID int64, limit int) ([]storage.Action, error) {
	f.calls++
	return f.rows, nil
}

func (f *fakeActions) ActiveDays(ctx context.Context, userID int64, since time.Time) (int, error) {
	f.since = since
	return f.activeDays, nil
}

type fakeReflections struct {
	rows  []storage.Reflection
	total int
}

func (f *fakeReflections) RecentByUser(ctx context.Context, userID int64, limit int) ([]storage.Reflection, error) {
	return f.rows, nil
}

func (f *fakeReflections) CountByUser(ctx context.Context, userID int64) (int, error) {
	return f.total, nil
}

type fakeCards struct {
	drawn int
}

func (f *fakeCards) DrawCount(ctx context.Context, userID int64) (int, error) {
	return f.drawn, nil
}

type fakeRecharge struct {
	method string
	err    error
}

func (f *fakeRecharge) Last(ctx context.Context, userID int64) (string, error) {
	return f.method, f.err
}

type builderFixture struct {
	builder     *Builder
	profiles    *fakeProfiles
	actions     *fakeActions
	reflections *fakeReflections
	now         time.Time
}

func newBuilderFixture() *builderFixture {
	fx := &builderFixture{
		profiles:    &fakeProfiles{getErr: storage.ErrNotFound},
		actions:     &fakeActions{},
		reflections: &fakeReflections{},
		now:         time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	fx.builder = &Builder{
		profiles:    fx.profiles,
		actions:     fx.actions,
		reflections: fx.reflections,
		cards:       &fakeCards{drawn: 4},
		recharge:    &fakeRecharge{err: storage.ErrNotFound},
		ttl:         30 * time.Minute,
		now:         func() time.Time { return fx.now },
	}
	return fx
}

func TestGetServesFreshProfile(t *testing.T) {
	fx := newBuilderFixture()
	fx.profiles.getErr = nil
	fx.profiles.stored = storage.Profile{
		UserID:      1,
		Mood:        "спокойное",
		LastUpdated: fx.now.Add(-time.Minute),
	}

	p, err := fx.builder.Get(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "спокойное", p.Mood)
	assert.Zero(t, fx.actions.calls, "fresh profile skips the rebuild")
	assert.Empty(t, fx.profiles.upserted)
}

func TestGetRebuildsStaleProfile(t *testing.T) {
	fx := newBuilderFixture()
	fx.profiles.getErr = nil
	fx.profiles.stored = storage.Profile{
		UserID:         1,
		RechargeMethod: "прогулка",
		LastUpdated:    fx.now.Add(-2 * time.Hour),
	}
	fx.actions.rows = []storage.Action{
		{Details: []byte(`{"text":"радуюсь новой работе"}`)},
		{Details: []byte(`{"choice":"typed"}`)},
	}
	fx.actions.activeDays = 9
	fx.reflections.total = 7
	reflectedAt := fx.now.Add(-20 * time.Hour)
	fx.reflections.rows = []storage.Reflection{
		{GoodMoments: "обед с другом", Gratitude: "спасибо коллеге", HardMoments: "устал", CreatedAt: reflectedAt},
	}

	p, err := fx.builder.Get(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, fx.profiles.upserted, 1, "rebuilt aggregate is persisted")
	assert.Equal(t, p, fx.profiles.upserted[0])
	assert.Equal(t, 4, p.ResponseCount, "one action text plus three reflection fields")
	assert.Equal(t, 4, p.TotalCardsDrawn)
	assert.Equal(t, "прогулка", p.RechargeMethod, "previous method survives an empty recharge log")
	assert.Equal(t, fx.now, p.LastUpdated)
	assert.Positive(t, p.AvgResponseLength)

	assert.Equal(t, 9, p.DaysActive)
	assert.Equal(t, fx.now.Add(-30*24*time.Hour), fx.actions.since, "activity window is 30 days")
	assert.Equal(t, 7, p.ReflectionCount)
	require.NotNil(t, p.LastReflectionAt)
	assert.Equal(t, reflectedAt, *p.LastReflectionAt)
	require.Len(t, p.MoodHistory, 4, "one label per collected text")
	assert.Equal(t, MoodPositive, p.MoodHistory[0], "action texts come first, oldest first")
}

func TestGetRebuildsMissingProfile(t *testing.T) {
	fx := newBuilderFixture()

	p, err := fx.builder.Get(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), p.UserID)
	assert.Zero(t, p.ResponseCount)
	assert.Zero(t, p.ReflectionCount)
	assert.Nil(t, p.LastReflectionAt)
	assert.Empty(t, p.MoodHistory)
	require.Len(t, fx.profiles.upserted, 1)
}
