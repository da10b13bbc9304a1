package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ActionsRepo journals every user step through the flows. Rows feed the
// profile builder and ad-hoc analytics.
type ActionsRepo struct {
	db *sqlx.DB
}

// Log stores one action row. Details are marshaled into a jsonb column.
func (r *ActionsRepo) Log(ctx context.Context, userID int64, username, action string, details map[string]any) error {
	payload := []byte("{}")
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal action details: %w", err)
		}
		payload = data
	}
	const q = `
		INSERT INTO actions (user_id, username, action, details)
		VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, q, userID, username, action, payload); err != nil {
		return fmt.Errorf("log action %q for %d: %w", action, userID, err)
	}
	return nil
}

// RecentByUser returns the newest rows for a user, newest first.
func (r *ActionsRepo) RecentByUser(ctx context.Context, userID int64, limit int) ([]Action, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []Action
	const q = `
		SELECT * FROM actions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	if err := r.db.SelectContext(ctx, &rows, q, userID, limit); err != nil {
		return nil, fmt.Errorf("recent actions for %d: %w", userID, err)
	}
	return rows, nil
}

// ActiveDays counts distinct calendar days with at least one action since the
// given moment.
func (r *ActionsRepo) ActiveDays(ctx context.Context, userID int64, since time.Time) (int, error) {
	var n int
	const q = `
		SELECT count(DISTINCT created_at::date) FROM actions
		WHERE user_id = $1 AND created_at >= $2`
	if err := r.db.GetContext(ctx, &n, q, userID, since); err != nil {
		return 0, fmt.Errorf("active days for %d: %w", userID, err)
	}
	return n, nil
}
