package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CardsRepo tracks which deck cards a user has already seen.
type CardsRepo struct {
	db *sqlx.DB
}

// UsedNumbers returns the card numbers the user has already drawn.
func (r *CardsRepo) UsedNumbers(ctx context.Context, userID int64) ([]int, error) {
	var nums []int
	const q = `SELECT card_number FROM user_cards WHERE user_id = $1 ORDER BY card_number`
	if err := r.db.SelectContext(ctx, &nums, q, userID); err != nil {
		return nil, fmt.Errorf("used cards for %d: %w", userID, err)
	}
	return nums, nil
}

// MarkUsed records a drawn card. Re-drawing the same number after a deck
// reset is expected, hence the upsert.
func (r *CardsRepo) MarkUsed(ctx context.Context, userID int64, card int) error {
	const q = `
		INSERT INTO user_cards (user_id, card_number)
		VALUES ($1, $2)
		ON CONFLICT (user_id, card_number) DO UPDATE SET used_at = now()`
	if _, err := r.db.ExecContext(ctx, q, userID, card); err != nil {
		return fmt.Errorf("mark card %d used for %d: %w", card, userID, err)
	}
	return nil
}

// ResetUsed clears the used set once the whole deck has been exhausted.
func (r *CardsRepo) ResetUsed(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_cards WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("reset used cards for %d: %w", userID, err)
	}
	return nil
}

// DrawCount returns the lifetime number of recorded draws.
func (r *CardsRepo) DrawCount(ctx context.Context, userID int64) (int, error) {
	var n int
	const q = `SELECT count(*) FROM user_cards WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &n, q, userID); err != nil {
		return 0, fmt.Errorf("draw count for %d: %w", userID, err)
	}
	return n, nil
}
