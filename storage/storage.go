// Package storage provides sqlx repositories over the bot's Postgres schema:
// users, drawn cards, action journal, evening reflections, user profiles,
// recharge methods and referrals.
package storage

import "github.com/jmoiron/sqlx"

// Storage groups all repositories over a shared connection pool.
type Storage struct {
	Users       *UsersRepo
	Cards       *CardsRepo
	Actions     *ActionsRepo
	Reflections *ReflectionsRepo
	Profiles    *ProfilesRepo
	Recharge    *RechargeRepo
	Referrals   *ReferralsRepo
}

// New builds the repository set on top of the given pool.
func New(db *sqlx.DB) *Storage {
	return &Storage{
		Users:       &UsersRepo{db: db},
		Cards:       &CardsRepo{db: db},
		Actions:     &ActionsRepo{db: db},
		Reflections: &ReflectionsRepo{db: db},
		Profiles:    &ProfilesRepo{db: db},
		Recharge:    &RechargeRepo{db: db},
		Referrals:   &ReferralsRepo{db: db},
	}
}
