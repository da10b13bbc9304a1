package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// RechargeRepo stores recharge methods named by users after low-resource
// card sessions.
type RechargeRepo struct {
	db *sqlx.DB
}

// Add saves one recharge method answer.
func (r *RechargeRepo) Add(ctx context.Context, userID int64, method string) error {
	const q = `INSERT INTO user_recharge_methods (user_id, method) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, q, userID, method); err != nil {
		return fmt.Errorf("add recharge method for %d: %w", userID, err)
	}
	return nil
}

// Last returns the most recently saved method, or ErrNotFound.
func (r *RechargeRepo) Last(ctx context.Context, userID int64) (string, error) {
	var method string
	const q = `
		SELECT method FROM user_recharge_methods
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	err := r.db.GetContext(ctx, &method, q, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("last recharge method for %d: %w", userID, err)
	}
	return method, nil
}
