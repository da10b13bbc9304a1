package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

// UsersRepo manages the users table.
type UsersRepo struct {
	db *sqlx.DB
}

// Upsert registers a user on first contact and refreshes username/first name
// on subsequent ones. Existing display name and reminders are preserved.
func (r *UsersRepo) Upsert(ctx context.Context, id int64, username, firstName string) error {
	const q = `
		INSERT INTO users (user_id, username, first_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username, first_name = EXCLUDED.first_name`
	if _, err := r.db.ExecContext(ctx, q, id, username, firstName); err != nil {
		return fmt.Errorf("upsert user %d: %w", id, err)
	}
	return nil
}

// Get fetches a user by Telegram ID.
func (r *UsersRepo) Get(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE user_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// SetDisplayName stores the name the user asked to be called by.
func (r *UsersRepo) SetDisplayName(ctx context.Context, id int64, name string) error {
	const q = `UPDATE users SET display_name = $2 WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, q, id, name); err != nil {
		return fmt.Errorf("set display name for %d: %w", id, err)
	}
	return nil
}

// TouchCardDraw records the moment of the latest card draw.
func (r *UsersRepo) TouchCardDraw(ctx context.Context, id int64, at time.Time) error {
	const q = `UPDATE users SET last_card_at = $2 WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, q, id, at); err != nil {
		return fmt.Errorf("touch card draw for %d: %w", id, err)
	}
	return nil
}

// LastCardAt returns the latest draw time, or nil when the user never drew.
func (r *UsersRepo) LastCardAt(ctx context.Context, id int64) (*time.Time, error) {
	var t sql.NullTime
	err := r.db.GetContext(ctx, &t, `SELECT last_card_at FROM users WHERE user_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last card time for %d: %w", id, err)
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

// SetBonus flips the universe-advice bonus flag.
func (r *UsersRepo) SetBonus(ctx context.Context, id int64, available bool) error {
	const q = `UPDATE users SET bonus_available = $2 WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, q, id, available); err != nil {
		return fmt.Errorf("set bonus for %d: %w", id, err)
	}
	return nil
}

// SetReminders stores reminder times as HH:MM strings; nil disables a slot.
func (r *UsersRepo) SetReminders(ctx context.Context, id int64, morning, evening *string) error {
	const q = `UPDATE users SET morning_reminder = $2, evening_reminder = $3 WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, q, id, morning, evening); err != nil {
		return fmt.Errorf("set reminders for %d: %w", id, err)
	}
	return nil
}

// Count returns the total number of registered users.
func (r *UsersRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// WithReminders lists users that have at least one reminder slot configured.
func (r *UsersRepo) WithReminders(ctx context.Context) ([]User, error) {
	var users []User
	const q = `
		SELECT * FROM users
		WHERE morning_reminder IS NOT NULL OR evening_reminder IS NOT NULL`
	if err := r.db.SelectContext(ctx, &users, q); err != nil {
		return nil, fmt.Errorf("users with reminders: %w", err)
	}
	return users, nil
}
