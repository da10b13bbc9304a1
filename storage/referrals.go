package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ReferralsRepo records who invited whom.
type ReferralsRepo struct {
	db *sqlx.DB
}

// Add links a referred user to the referrer. Returns false when the referred
// user was already linked (each user is counted once) or refers to themself.
func (r *ReferralsRepo) Add(ctx context.Context, referrerID, referredID int64) (bool, error) {
	if referrerID == referredID {
		return false, nil
	}
	const q = `
		INSERT INTO referrals (referrer_id, referred_id)
		VALUES ($1, $2)
		ON CONFLICT (referred_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, q, referrerID, referredID)
	if err != nil {
		return false, fmt.Errorf("add referral %d -> %d: %w", referrerID, referredID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("referral rows affected: %w", err)
	}
	return n > 0, nil
}

// Count returns how many users the referrer has brought in.
func (r *ReferralsRepo) Count(ctx context.Context, referrerID int64) (int, error) {
	var n int
	const q = `SELECT count(*) FROM referrals WHERE referrer_id = $1`
	if err := r.db.GetContext(ctx, &n, q, referrerID); err != nil {
		return 0, fmt.Errorf("referral count for %d: %w", referrerID, err)
	}
	return n, nil
}
