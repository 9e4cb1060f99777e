package testutil

import (
	"context"
	"testing"
	"time"

	"shekkle/database"
	"shekkle/models"

	"github.com/stretchr/testify/require"
)

// CreateTestUser creates a test user with default values
func CreateTestUser(userID int64, username string) *models.User {
	now := time.Now()
	return &models.User{
		TelegramID: userID,
		Username:   username,
		Balance:    100,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CreateTestBet creates an open test bet closing at deadline
func CreateTestBet(creatorID int64, deadline time.Time) *models.Bet {
	return &models.Bet{
		CreatorID:   creatorID,
		Description: "Will the build pass?",
		OptionA:     "Yes",
		OptionB:     "No",
		Deadline:    deadline,
		Status:      models.BetStatusOpen,
	}
}

// InsertUser writes a user row directly
func InsertUser(t *testing.T, db *database.DB, userID int64, username string, balance int64) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`INSERT INTO users (telegram_id, username, balance) VALUES ($1, $2, $3)`,
		userID, username, balance)
	require.NoError(t, err)
}

// InsertBet writes an open bet row directly and returns its id
func InsertBet(t *testing.T, db *database.DB, creatorID int64, deadline time.Time) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(),
		`INSERT INTO bets (creator_id, description, option_a, option_b, deadline)
		 VALUES ($1, 'Will the build pass?', 'Yes', 'No', $2) RETURNING id`,
		creatorID, deadline).Scan(&id)
	require.NoError(t, err)
	return id
}

// InsertWager writes a wager row without touching balances and returns its id
func InsertWager(t *testing.T, db *database.DB, betID, userID int64, choice models.Outcome, amount int64, placedAt time.Time) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(),
		`INSERT INTO wagers (bet_id, user_id, choice, amount, placed_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		betID, userID, string(choice), amount, placedAt).Scan(&id)
	require.NoError(t, err)
	return id
}

// GetBalance reads a user's balance
func GetBalance(t *testing.T, db *database.DB, userID int64) int64 {
	t.Helper()
	var balance int64
	err := db.QueryRow(context.Background(),
		`SELECT balance FROM users WHERE telegram_id = $1`, userID).Scan(&balance)
	require.NoError(t, err)
	return balance
}

// TotalBalance sums every user's balance
func TotalBalance(t *testing.T, db *database.DB) int64 {
	t.Helper()
	var total int64
	err := db.QueryRow(context.Background(),
		`SELECT COALESCE(SUM(balance), 0)::BIGINT FROM users`).Scan(&total)
	require.NoError(t, err)
	return total
}

// OutstandingStakes sums the non-refunded stakes of bets not yet settled
func OutstandingStakes(t *testing.T, db *database.DB) int64 {
	t.Helper()
	var total int64
	err := db.QueryRow(context.Background(),
		`SELECT COALESCE(SUM(w.amount), 0)::BIGINT
		 FROM wagers w JOIN bets b ON b.id = w.bet_id
		 WHERE NOT w.refunded AND b.status IN ('open', 'pending_resolution')`).Scan(&total)
	require.NoError(t, err)
	return total
}
