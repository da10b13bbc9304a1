package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ProfilesRepo persists aggregated user profiles.
type ProfilesRepo struct {
	db *sqlx.DB
}

// Get fetches a profile by user ID.
func (r *ProfilesRepo) Get(ctx context.Context, userID int64) (Profile, error) {
	var p Profile
	err := r.db.GetContext(ctx, &p, `SELECT * FROM user_profiles WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile %d: %w", userID, err)
	}
	return p, nil
}

// Upsert writes the whole profile row, replacing any previous aggregate.
func (r *ProfilesRepo) Upsert(ctx context.Context, p Profile) error {
	const q = `
		INSERT INTO user_profiles (
			user_id, mood, mood_trend, mood_history, themes, response_count,
			avg_response_length, initial_resource, final_resource,
			recharge_method, total_cards_drawn, days_active,
			reflection_count, last_reflection_at, last_updated
		) VALUES (
			:user_id, :mood, :mood_trend, :mood_history, :themes, :response_count,
			:avg_response_length, :initial_resource, :final_resource,
			:recharge_method, :total_cards_drawn, :days_active,
			:reflection_count, :last_reflection_at, :last_updated
		)
		ON CONFLICT (user_id) DO UPDATE SET
			mood = EXCLUDED.mood,
			mood_trend = EXCLUDED.mood_trend,
			mood_history = EXCLUDED.mood_history,
			themes = EXCLUDED.themes,
			response_count = EXCLUDED.response_count,
			avg_response_length = EXCLUDED.avg_response_length,
			initial_resource = EXCLUDED.initial_resource,
			final_resource = EXCLUDED.final_resource,
			recharge_method = EXCLUDED.recharge_method,
			total_cards_drawn = EXCLUDED.total_cards_drawn,
			days_active = EXCLUDED.days_active,
			reflection_count = EXCLUDED.reflection_count,
			last_reflection_at = EXCLUDED.last_reflection_at,
			last_updated = EXCLUDED.last_updated`
	if _, err := r.db.NamedExecContext(ctx, q, p); err != nil {
		return fmt.Errorf("upsert profile %d: %w", p.UserID, err)
	}
	return nil
}

// SetResources updates only the resource fields captured by the card flow.
func (r *ProfilesRepo) SetResources(ctx context.Context, userID int64, initial, final string) error {
	const q = `
		INSERT INTO user_profiles (user_id, initial_resource, final_resource, last_updated)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE SET
			initial_resource = EXCLUDED.initial_resource,
			final_resource = EXCLUDED.final_resource`
	if _, err := r.db.ExecContext(ctx, q, userID, initial, final); err != nil {
		return fmt.Errorf("set resources for %d: %w", userID, err)
	}
	return nil
}
