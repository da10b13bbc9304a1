package storage

import (
	"time"

	"github.com/lib/pq"
)

// User is a bot user row.
type User struct {
	ID              int64      `db:"user_id"`
	Username        string     `db:"username"`
	FirstName       string     `db:"first_name"`
	DisplayName     *string    `db:"display_name"`
	LastCardAt      *time.Time `db:"last_card_at"`
	BonusAvailable  bool       `db:"bonus_available"`
	MorningReminder *string    `db:"morning_reminder"`
	EveningReminder *string    `db:"evening_reminder"`
	CreatedAt       time.Time  `db:"created_at"`
}

// Name returns the name to address the user with in messages.
func (u User) Name() string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.FirstName
}

// Action is a journal row recording one user step through a flow.
type Action struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	Name      string    `db:"action"`
	Details   []byte    `db:"details"`
	CreatedAt time.Time `db:"created_at"`
}

// Reflection is a persisted evening reflection.
type Reflection struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	GoodMoments string    `db:"good_moments"`
	Gratitude   string    `db:"gratitude"`
	HardMoments string    `db:"hard_moments"`
	AISummary   *string   `db:"ai_summary"`
	CreatedAt   time.Time `db:"created_at"`
}

// Profile is the aggregated user profile used to personalize AI prompts.
type Profile struct {
	UserID            int64          `db:"user_id"`
	Mood              string         `db:"mood"`
	MoodTrend         string         `db:"mood_trend"`
	MoodHistory       pq.StringArray `db:"mood_history"`
	Themes            pq.StringArray `db:"themes"`
	ResponseCount     int            `db:"response_count"`
	AvgResponseLength int            `db:"avg_response_length"`
	InitialResource   string         `db:"initial_resource"`
	FinalResource     string         `db:"final_resource"`
	RechargeMethod    string         `db:"recharge_method"`
	TotalCardsDrawn   int            `db:"total_cards_drawn"`
	DaysActive        int            `db:"days_active"`
	ReflectionCount   int            `db:"reflection_count"`
	LastReflectionAt  *time.Time     `db:"last_reflection_at"`
	LastUpdated       time.Time      `db:"last_updated"`
}

// RechargeMethod is one saved answer to the recharge question.
type RechargeMethod struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Method    string    `db:"method"`
	CreatedAt time.Time `db:"created_at"`
}
