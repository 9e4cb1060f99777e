package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shekkle/database"
	"shekkle/models"
	"shekkle/service"

	"github.com/jackc/pgx/v5"
)

const betColumns = `id, creator_id, description, option_a, option_b, deadline, outcome, status, cutoff_at, created_at, resolved_at`

// BetRepository implements the BetRepository interface
type BetRepository struct {
	q queryable
}

// NewBetRepository creates a new bet repository
func NewBetRepository(db *database.DB) *BetRepository {
	return &BetRepository{q: db.Pool}
}

// newBetRepositoryWithTx creates a new bet repository with a transaction
func newBetRepositoryWithTx(tx queryable) *BetRepository {
	return &BetRepository{q: tx}
}

func scanBet(row rowScanner) (*models.Bet, error) {
	var (
		bet     models.Bet
		outcome *string
		status  string
	)
	err := row.Scan(
		&bet.ID,
		&bet.CreatorID,
		&bet.Description,
		&bet.OptionA,
		&bet.OptionB,
		&bet.Deadline,
		&outcome,
		&status,
		&bet.CutoffAt,
		&bet.CreatedAt,
		&bet.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	bet.Status = models.BetStatus(status)
	if outcome != nil {
		o := models.Outcome(*outcome)
		bet.Outcome = &o
	}

	return &bet, nil
}

func (r *BetRepository) queryBets(ctx context.Context, op string, query string, args ...any) ([]*models.Bet, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, service.NewStorageError(op, err)
	}
	defer rows.Close()

	var bets []*models.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, service.NewStorageError("scan bet", err)
		}
		bets = append(bets, bet)
	}

	if err := rows.Err(); err != nil {
		return nil, service.NewStorageError(op, err)
	}

	return bets, nil
}

// Create inserts a new bet and fills in its ID and CreatedAt
func (r *BetRepository) Create(ctx context.Context, bet *models.Bet) error {
	query := `
		INSERT INTO bets (creator_id, description, option_a, option_b, deadline, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		bet.CreatorID,
		bet.Description,
		bet.OptionA,
		bet.OptionB,
		bet.Deadline,
		string(bet.Status),
	).Scan(&bet.ID, &bet.CreatedAt)
	if err != nil {
		return service.NewStorageError("create bet", err)
	}

	return nil
}

// GetByID retrieves a bet by its ID
func (r *BetRepository) GetByID(ctx context.Context, betID int64) (*models.Bet, error) {
	return r.getByID(ctx, betID, "")
}

// GetByIDForUpdate retrieves a bet and locks the row for the rest of the transaction
func (r *BetRepository) GetByIDForUpdate(ctx context.Context, betID int64) (*models.Bet, error) {
	return r.getByID(ctx, betID, " FOR UPDATE")
}

func (r *BetRepository) getByID(ctx context.Context, betID int64, lock string) (*models.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE id = $1` + lock

	bet, err := scanBet(r.q.QueryRow(ctx, query, betID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, service.NewStorageError("get bet", err)
	}

	return bet, nil
}

// ListByStatus returns all bets in a status, oldest deadline first
func (r *BetRepository) ListByStatus(ctx context.Context, status models.BetStatus) ([]*models.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE status = $1 ORDER BY deadline, id`
	return r.queryBets(ctx, "list bets by status", query, string(status))
}

// ListExpiredOpen returns open bets whose deadline is strictly before now
func (r *BetRepository) ListExpiredOpen(ctx context.Context, now time.Time) ([]*models.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE status = 'open' AND deadline < $1 ORDER BY deadline, id`
	return r.queryBets(ctx, "list expired bets", query, now)
}

// ListResolvedWithCutoff returns resolved bets that recorded a cutoff
func (r *BetRepository) ListResolvedWithCutoff(ctx context.Context) ([]*models.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE status = 'resolved' AND cutoff_at IS NOT NULL ORDER BY id`
	return r.queryBets(ctx, "list resolved bets", query)
}

// TransitionStatus moves a bet from one status to another only if it is still in from
func (r *BetRepository) TransitionStatus(ctx context.Context, betID int64, from, to models.BetStatus) (bool, error) {
	query := `UPDATE bets SET status = $3 WHERE id = $1 AND status = $2`

	result, err := r.q.Exec(ctx, query, betID, string(from), string(to))
	if err != nil {
		return false, service.NewStorageError("update bet status", err)
	}

	return result.RowsAffected() == 1, nil
}

// MarkResolved records the outcome and optional cutoff of a bet still open or pending
func (r *BetRepository) MarkResolved(ctx context.Context, betID int64, outcome models.Outcome, cutoff *time.Time, resolvedAt time.Time) error {
	query := `
		UPDATE bets
		SET status = 'resolved', outcome = $2, cutoff_at = $3, resolved_at = $4
		WHERE id = $1 AND status IN ('open', 'pending_resolution')
	`

	result, err := r.q.Exec(ctx, query, betID, string(outcome), cutoff, resolvedAt)
	if err != nil {
		return service.NewStorageError("resolve bet", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: bet %d is not awaiting resolution", service.ErrInvalidTransition, betID)
	}

	return nil
}

// MarkCancelled closes a bet still open or pending without an outcome
func (r *BetRepository) MarkCancelled(ctx context.Context, betID int64, cancelledAt time.Time) error {
	query := `
		UPDATE bets
		SET status = 'cancelled', resolved_at = $2
		WHERE id = $1 AND status IN ('open', 'pending_resolution')
	`

	result, err := r.q.Exec(ctx, query, betID, cancelledAt)
	if err != nil {
		return service.NewStorageError("cancel bet", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: bet %d is already final", service.ErrInvalidTransition, betID)
	}

	return nil
}
