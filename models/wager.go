package models

import (
	"time"
)

// Wager represents a user's stake on one outcome of a bet
type Wager struct {
	ID       int64     `db:"id"`
	BetID    int64     `db:"bet_id"`
	UserID   int64     `db:"user_id"`
	Choice   Outcome   `db:"choice"`
	Amount   int64     `db:"amount"`
	PlacedAt time.Time `db:"placed_at"`
	Refunded bool      `db:"refunded"`
	Username string    `db:"-"` // Joined from users for display
}

// PlacedAfter checks if the wager was placed strictly after the cutoff
func (w *Wager) PlacedAfter(cutoff time.Time) bool {
	return w.PlacedAt.After(cutoff)
}
