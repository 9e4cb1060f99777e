package repository

import (
	"context"
	"errors"
	"time"

	"shekkle/database"
	"shekkle/models"
	"shekkle/service"

	"github.com/jackc/pgx/v5"
)

const userColumns = `telegram_id, username, balance, last_daily_at, created_at, updated_at`

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.TelegramID,
		&user.Username,
		&user.Balance,
		&user.LastDailyAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by their Telegram ID
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	return r.getByID(ctx, userID, "")
}

// GetByIDForUpdate retrieves a user and locks the row for the rest of the transaction
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, userID int64) (*models.User, error) {
	return r.getByID(ctx, userID, " FOR UPDATE")
}

func (r *UserRepository) getByID(ctx context.Context, userID int64, lock string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1` + lock

	user, err := scanUser(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, service.NewStorageError("get user", err)
	}

	return user, nil
}

// Create inserts the user with the initial balance unless it already exists
func (r *UserRepository) Create(ctx context.Context, userID int64, username string, initialBalance int64) (bool, error) {
	query := `
		INSERT INTO users (telegram_id, username, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id) DO NOTHING
	`

	result, err := r.q.Exec(ctx, query, userID, username, initialBalance)
	if err != nil {
		return false, service.NewStorageError("create user", err)
	}

	return result.RowsAffected() == 1, nil
}

// AddBalance applies a signed delta in SQL and returns the new balance
func (r *UserRepository) AddBalance(ctx context.Context, userID int64, delta int64) (int64, error) {
	query := `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE telegram_id = $1
		RETURNING balance
	`

	var balance int64
	err := r.q.QueryRow(ctx, query, userID, delta).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, service.ErrUserNotFound
	}
	if err != nil {
		return 0, service.NewStorageError("update balance", err)
	}

	return balance, nil
}

// SetLastDailyAt records the time of the last daily claim
func (r *UserRepository) SetLastDailyAt(ctx context.Context, userID int64, at time.Time) error {
	query := `
		UPDATE users
		SET last_daily_at = $2, updated_at = NOW()
		WHERE telegram_id = $1
	`

	result, err := r.q.Exec(ctx, query, userID, at)
	if err != nil {
		return service.NewStorageError("record daily claim", err)
	}
	if result.RowsAffected() == 0 {
		return service.ErrUserNotFound
	}

	return nil
}

// UpdateUsername refreshes the stored display name
func (r *UserRepository) UpdateUsername(ctx context.Context, userID int64, username string) error {
	query := `
		UPDATE users
		SET username = $2, updated_at = NOW()
		WHERE telegram_id = $1
	`

	if _, err := r.q.Exec(ctx, query, userID, username); err != nil {
		return service.NewStorageError("update username", err)
	}

	return nil
}

// GetAll returns all users ordered by id
func (r *UserRepository) GetAll(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY telegram_id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, service.NewStorageError("list users", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, service.NewStorageError("scan user", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, service.NewStorageError("iterate users", err)
	}

	return users, nil
}
