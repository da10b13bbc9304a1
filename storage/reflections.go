package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ReflectionsRepo stores evening reflections.
type ReflectionsRepo struct {
	db *sqlx.DB
}

// Add persists one finished reflection. Summary may be nil when the
// generator failed; the reflection is still saved.
func (r *ReflectionsRepo) Add(ctx context.Context, userID int64, good, gratitude, hard string, summary *string) error {
	const q = `
		INSERT INTO evening_reflections (user_id, good_moments, gratitude, hard_moments, ai_summary)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, q, userID, good, gratitude, hard, summary); err != nil {
		return fmt.Errorf("add reflection for %d: %w", userID, err)
	}
	return nil
}

// Count returns the total number of stored reflections.
func (r *ReflectionsRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM evening_reflections`); err != nil {
		return 0, fmt.Errorf("count reflections: %w", err)
	}
	return n, nil
}

// CountByUser returns how many reflections the user has stored.
func (r *ReflectionsRepo) CountByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	const q = `SELECT COUNT(*) FROM evening_reflections WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &n, q, userID); err != nil {
		return 0, fmt.Errorf("count reflections for %d: %w", userID, err)
	}
	return n, nil
}

// RecentByUser returns the newest reflections, newest first.
func (r *ReflectionsRepo) RecentByUser(ctx context.Context, userID int64, limit int) ([]Reflection, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []Reflection
	const q = `
		SELECT * FROM evening_reflections
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	if err := r.db.SelectContext(ctx, &rows, q, userID, limit); err != nil {
		return nil, fmt.Errorf("recent reflections for %d: %w", userID, err)
	}
	return rows, nil
}
