package models

import (
	"time"
)

// User represents a chat-platform account holding a balance
type User struct {
	TelegramID  int64      `db:"telegram_id"`
	Username    string     `db:"username"`
	Balance     int64      `db:"balance"`
	LastDailyAt *time.Time `db:"last_daily_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// CanClaimDaily checks if the daily reward is available at the given time
func (u *User) CanClaimDaily(now time.Time, interval time.Duration) bool {
	if u.LastDailyAt == nil {
		return true
	}
	return now.Sub(*u.LastDailyAt) >= interval
}

// NextDailyClaimAt returns when the daily reward becomes available again.
// A user who never claimed can claim immediately, reported as the zero time.
func (u *User) NextDailyClaimAt(interval time.Duration) time.Time {
	if u.LastDailyAt == nil {
		return time.Time{}
	}
	return u.LastDailyAt.Add(interval)
}
