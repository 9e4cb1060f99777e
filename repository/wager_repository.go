package repository

import (
	"context"
	"time"

	"shekkle/database"
	"shekkle/models"
	"shekkle/service"
)

// WagerRepository implements the WagerRepository interface
type WagerRepository struct {
	q queryable
}

// NewWagerRepository creates a new wager repository
func NewWagerRepository(db *database.DB) *WagerRepository {
	return &WagerRepository{q: db.Pool}
}

// newWagerRepositoryWithTx creates a new wager repository with a transaction
func newWagerRepositoryWithTx(tx queryable) *WagerRepository {
	return &WagerRepository{q: tx}
}

func scanWager(row rowScanner) (*models.Wager, error) {
	var (
		wager  models.Wager
		choice string
	)
	err := row.Scan(
		&wager.ID,
		&wager.BetID,
		&wager.UserID,
		&choice,
		&wager.Amount,
		&wager.PlacedAt,
		&wager.Refunded,
		&wager.Username,
	)
	if err != nil {
		return nil, err
	}

	wager.Choice = models.Outcome(choice)
	return &wager, nil
}

func (r *WagerRepository) queryWagers(ctx context.Context, op string, query string, args ...any) ([]*models.Wager, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, service.NewStorageError(op, err)
	}
	defer rows.Close()

	var wagers []*models.Wager
	for rows.Next() {
		wager, err := scanWager(rows)
		if err != nil {
			return nil, service.NewStorageError("scan wager", err)
		}
		wagers = append(wagers, wager)
	}

	if err := rows.Err(); err != nil {
		return nil, service.NewStorageError(op, err)
	}

	return wagers, nil
}

// Create inserts a wager and fills in its ID
func (r *WagerRepository) Create(ctx context.Context, wager *models.Wager) error {
	query := `
		INSERT INTO wagers (bet_id, user_id, choice, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		wager.BetID,
		wager.UserID,
		string(wager.Choice),
		wager.Amount,
		wager.PlacedAt,
	).Scan(&wager.ID)
	if err != nil {
		return service.NewStorageError("create wager", err)
	}

	return nil
}

// ListByBet returns the wagers of a bet with usernames, in placement order
func (r *WagerRepository) ListByBet(ctx context.Context, betID int64, includeRefunded bool) ([]*models.Wager, error) {
	query := `
		SELECT w.id, w.bet_id, w.user_id, w.choice, w.amount, w.placed_at, w.refunded, u.username
		FROM wagers w
		JOIN users u ON u.telegram_id = w.user_id
		WHERE w.bet_id = $1 AND ($2 OR NOT w.refunded)
		ORDER BY w.placed_at, w.id
	`
	return r.queryWagers(ctx, "list wagers", query, betID, includeRefunded)
}

// MarkRefunded flags a wager refunded, reporting false if it already was
func (r *WagerRepository) MarkRefunded(ctx context.Context, wagerID int64) (bool, error) {
	query := `UPDATE wagers SET refunded = TRUE WHERE id = $1 AND NOT refunded`

	result, err := r.q.Exec(ctx, query, wagerID)
	if err != nil {
		return false, service.NewStorageError("mark wager refunded", err)
	}

	return result.RowsAffected() == 1, nil
}

// MarkRefundedAfter flags every non-refunded wager placed after cutoff and returns them
func (r *WagerRepository) MarkRefundedAfter(ctx context.Context, betID int64, cutoff time.Time) ([]*models.Wager, error) {
	query := `
		WITH flagged AS (
			UPDATE wagers
			SET refunded = TRUE
			WHERE bet_id = $1 AND placed_at > $2 AND NOT refunded
			RETURNING id, bet_id, user_id, choice, amount, placed_at, refunded
		)
		SELECT f.id, f.bet_id, f.user_id, f.choice, f.amount, f.placed_at, f.refunded, u.username
		FROM flagged f
		JOIN users u ON u.telegram_id = f.user_id
		ORDER BY f.placed_at, f.id
	`
	return r.queryWagers(ctx, "refund late wagers", query, betID, cutoff)
}

// CountByBet returns the number of wagers recorded for a bet
func (r *WagerRepository) CountByBet(ctx context.Context, betID int64) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM wagers WHERE bet_id = $1`, betID).Scan(&count)
	if err != nil {
		return 0, service.NewStorageError("count wagers", err)
	}
	return count, nil
}
