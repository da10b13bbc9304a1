// Package profile aggregates a user's journal into a compact profile used to
// personalize AI prompts: mood, mood trend, recurring themes and response
// statistics. Rebuilds are throttled by a TTL on the stored aggregate.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/m3rciful/makbot/core/logger"
	"github.com/m3rciful/makbot/storage"
)

const recentActionLimit = 100

// activityWindow bounds the distinct-day activity counter.
const activityWindow = 30 * 24 * time.Hour

// Narrow storage surfaces the builder depends on; the sqlx repositories
// satisfy them.
type profileStore interface {
	Get(ctx context.Context, userID int64) (storage.Profile, error)
	Upsert(ctx context.Context, p storage.Profile) error
}

type actionSource interface {
	RecentByUser(ctx context.Context, userID int64, limit int) ([]storage.Action, error)
	ActiveDays(ctx context.Context, userID int64, since time.Time) (int, error)
}

type reflectionSource interface {
	RecentByUser(ctx context.Context, userID int64, limit int) ([]storage.Reflection, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
}

type drawCounter interface {
	DrawCount(ctx context.Context, userID int64) (int, error)
}

type rechargeSource interface {
	Last(ctx context.Context, userID int64) (string, error)
}

// Builder produces and caches user profiles.
type Builder struct {
	profiles    profileStore
	actions     actionSource
	reflections reflectionSource
	cards       drawCounter
	recharge    rechargeSource
	ttl         time.Duration
	now         func() time.Time
}

// NewBuilder wires the builder over storage. The now func is injectable for
// tests and defaults to time.Now.
func NewBuilder(store *storage.Storage, ttl time.Duration, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Builder{
		profiles:    store.Profiles,
		actions:     store.Actions,
		reflections: store.Reflections,
		cards:       store.Cards,
		recharge:    store.Recharge,
		ttl:         ttl,
		now:         now,
	}
}

// Get returns the stored profile when it is fresh enough, otherwise rebuilds
// it synchronously from the journal and persists the new aggregate.
func (b *Builder) Get(ctx context.Context, userID int64) (storage.Profile, error) {
	existing, err := b.profiles.Get(ctx, userID)
	if err == nil && b.now().Sub(existing.LastUpdated) < b.ttl {
		logger.Debug(ctx, "profile", "cache",
			slog.String("cache", "hit"),
			slog.Int64("user_id", userID),
		)
		return existing, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return storage.Profile{}, err
	}

	logger.Debug(ctx, "profile", "cache",
		slog.String("cache", "miss"),
		slog.Int64("user_id", userID),
	)
	return b.rebuild(ctx, userID, existing)
}

func (b *Builder) rebuild(ctx context.Context, userID int64, prev storage.Profile) (storage.Profile, error) {
	actions, err := b.actions.RecentByUser(ctx, userID, recentActionLimit)
	if err != nil {
		return storage.Profile{}, fmt.Errorf("profile rebuild: %w", err)
	}
	reflections, err := b.reflections.RecentByUser(ctx, userID, 10)
	if err != nil {
		return storage.Profile{}, fmt.Errorf("profile rebuild: %w", err)
	}

	// Collect free-text answers oldest first for trend analysis.
	var texts []string
	for i := len(actions) - 1; i >= 0; i-- {
		if t := actionText(actions[i]); t != "" {
			texts = append(texts, t)
		}
	}
	for i := len(reflections) - 1; i >= 0; i-- {
		r := reflections[i]
		texts = append(texts, r.GoodMoments, r.Gratitude, r.HardMoments)
	}

	totalLen := 0
	for _, t := range texts {
		totalLen += len([]rune(t))
	}
	avgLen := 0
	if len(texts) > 0 {
		avgLen = totalLen / len(texts)
	}

	drawn, err := b.cards.DrawCount(ctx, userID)
	if err != nil {
		return storage.Profile{}, fmt.Errorf("profile rebuild: %w", err)
	}

	daysActive, err := b.actions.ActiveDays(ctx, userID, b.now().Add(-activityWindow))
	if err != nil {
		return storage.Profile{}, fmt.Errorf("profile rebuild: %w", err)
	}
	reflCount, err := b.reflections.CountByUser(ctx, userID)
	if err != nil {
		return storage.Profile{}, fmt.Errorf("profile rebuild: %w", err)
	}
	var lastReflection *time.Time
	if len(reflections) > 0 {
		t := reflections[0].CreatedAt
		lastReflection = &t
	}

	recharge := prev.RechargeMethod
	if method, err := b.recharge.Last(ctx, userID); err == nil {
		recharge = method
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.Profile{}, fmt.Errorf("profile rebuild: %w", err)
	}

	p := storage.Profile{
		UserID:            userID,
		Mood:              ClassifyMood(texts),
		MoodTrend:         MoodTrend(texts),
		MoodHistory:       pq.StringArray(MoodSequence(texts)),
		Themes:            pq.StringArray(ExtractThemes(texts)),
		ResponseCount:     len(texts),
		AvgResponseLength: avgLen,
		InitialResource:   prev.InitialResource,
		FinalResource:     prev.FinalResource,
		RechargeMethod:    recharge,
		TotalCardsDrawn:   drawn,
		DaysActive:        daysActive,
		ReflectionCount:   reflCount,
		LastReflectionAt:  lastReflection,
		LastUpdated:       b.now(),
	}
	if err := b.profiles.Upsert(ctx, p); err != nil {
		return storage.Profile{}, fmt.Errorf("profile rebuild: %w", err)
	}
	logger.Info(ctx, "profile", "rebuilt",
		slog.Int64("user_id", userID),
		slog.String("mood", p.Mood),
		slog.Int("count", p.ResponseCount),
	)
	return p, nil
}

// actionText pulls the free-text answer out of a journaled action, if any.
func actionText(a storage.Action) string {
	if len(a.Details) == 0 {
		return ""
	}
	var details struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(a.Details, &details); err != nil {
		return ""
	}
	return details.Text
}
