package service

import (
	"context"
	"time"

	"shekkle/events"
	"shekkle/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user, returning nil when absent
	GetByID(ctx context.Context, userID int64) (*models.User, error)

	// GetByIDForUpdate retrieves a user and locks the row until the transaction ends
	GetByIDForUpdate(ctx context.Context, userID int64) (*models.User, error)

	// Create inserts the user if absent and reports whether a row was created
	Create(ctx context.Context, userID int64, username string, initialBalance int64) (bool, error)

	// AddBalance applies a signed delta and returns the new balance.
	// Returns ErrUserNotFound when the user does not exist.
	AddBalance(ctx context.Context, userID int64, delta int64) (int64, error)

	// SetLastDailyAt records the last daily claim time
	SetLastDailyAt(ctx context.Context, userID int64, at time.Time) error

	// UpdateUsername refreshes the advisory display name
	UpdateUsername(ctx context.Context, userID int64, username string) error

	// GetAll returns all users
	GetAll(ctx context.Context) ([]*models.User, error)
}

// BetRepository defines the interface for bet data access
type BetRepository interface {
	// Create inserts a new bet and fills in its ID and CreatedAt
	Create(ctx context.Context, bet *models.Bet) error

	// GetByID retrieves a bet, returning nil when absent
	GetByID(ctx context.Context, betID int64) (*models.Bet, error)

	// GetByIDForUpdate retrieves a bet and locks the row until the transaction ends
	GetByIDForUpdate(ctx context.Context, betID int64) (*models.Bet, error)

	// ListByStatus returns all bets in a status, oldest deadline first
	ListByStatus(ctx context.Context, status models.BetStatus) ([]*models.Bet, error)

	// ListExpiredOpen returns open bets whose deadline is strictly before now
	ListExpiredOpen(ctx context.Context, now time.Time) ([]*models.Bet, error)

	// TransitionStatus moves a bet from one status to another only if it is still in from
	TransitionStatus(ctx context.Context, betID int64, from, to models.BetStatus) (bool, error)

	// MarkResolved records the outcome and optional cutoff of a bet
	MarkResolved(ctx context.Context, betID int64, outcome models.Outcome, cutoff *time.Time, resolvedAt time.Time) error

	// MarkCancelled marks a bet cancelled without an outcome
	MarkCancelled(ctx context.Context, betID int64, cancelledAt time.Time) error

	// ListResolvedWithCutoff returns resolved bets that recorded a cutoff
	ListResolvedWithCutoff(ctx context.Context) ([]*models.Bet, error)
}

// WagerRepository defines the interface for wager data access
type WagerRepository interface {
	// Create inserts a wager and fills in its ID
	Create(ctx context.Context, wager *models.Wager) error

	// ListByBet returns wagers of a bet joined with usernames, in placement order
	ListByBet(ctx context.Context, betID int64, includeRefunded bool) ([]*models.Wager, error)

	// MarkRefunded flags a wager refunded, reporting false if it already was
	MarkRefunded(ctx context.Context, wagerID int64) (bool, error)

	// MarkRefundedAfter flags every non-refunded wager placed after cutoff and returns them
	MarkRefundedAfter(ctx context.Context, betID int64, cutoff time.Time) ([]*models.Wager, error)

	// CountByBet returns the number of wagers recorded for a bet
	CountByBet(ctx context.Context, betID int64) (int, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a read-write transaction
	Begin(ctx context.Context) error

	// BeginReadOnly starts a read-only transaction reading from one snapshot
	BeginReadOnly(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	BetRepository() BetRepository
	WagerRepository() WagerRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// UserService defines the interface for user and balance operations
type UserService interface {
	// CreateUser creates the user with the starting balance if absent
	CreateUser(ctx context.Context, userID int64, username string) (bool, error)

	// GetUser returns the user or nil when absent
	GetUser(ctx context.Context, userID int64) (*models.User, error)

	// GetOrCreateUser returns the user, creating it lazily on first interaction
	GetOrCreateUser(ctx context.Context, userID int64, username string) (*models.User, error)

	// AdjustBalance credits or debits a user, returning false if the user does not exist
	AdjustBalance(ctx context.Context, userID int64, delta int64) (bool, error)

	// CanClaimDaily reports whether the daily reward is available
	CanClaimDaily(ctx context.Context, userID int64) (bool, error)

	// ClaimDaily credits the daily reward and returns the new balance
	ClaimDaily(ctx context.Context, userID int64, amount int64) (int64, error)

	// TimeUntilDailyClaim returns how long until the next claim, 0 if available now
	TimeUntilDailyClaim(ctx context.Context, userID int64) (time.Duration, error)

	// ListUsers returns every known user
	ListUsers(ctx context.Context) ([]*models.User, error)
}

// BetService defines the interface for bet lifecycle operations
type BetService interface {
	// CreateBet opens a new bet and returns its id
	CreateBet(ctx context.Context, creatorID int64, description string, deadline time.Time, optionA, optionB string) (int64, error)

	// GetBet returns the bet or nil when absent
	GetBet(ctx context.Context, betID int64) (*models.Bet, error)

	// ListOpenBets returns every bet still accepting wagers
	ListOpenBets(ctx context.Context) ([]*models.Bet, error)

	// ListExpiredOpenBets returns open bets past their deadline at now
	ListExpiredOpenBets(ctx context.Context, now time.Time) ([]*models.Bet, error)

	// SetBetStatus closes an open bet for wagering
	SetBetStatus(ctx context.Context, betID int64, status models.BetStatus) error

	// TransitionExpiredBets moves every expired open bet to pending resolution
	TransitionExpiredBets(ctx context.Context) ([]*models.Bet, error)
}

// WagerService defines the interface for wager admission
type WagerService interface {
	// PlaceWager debits the user and records the wager atomically
	PlaceWager(ctx context.Context, userID, betID int64, choice models.Outcome, amount int64) (*models.Wager, error)

	// ListWagers returns the non-refunded wagers of a bet with usernames
	ListWagers(ctx context.Context, betID int64) ([]*models.Wager, error)
}

// SettlementService defines the interface for resolving bets
type SettlementService interface {
	// ResolveBet declares the outcome and distributes the pool.
	// Wagers placed after a non-nil cutoff are refunded instead of settled.
	ResolveBet(ctx context.Context, betID int64, outcome models.Outcome, cutoff *time.Time) (*models.Settlement, error)

	// CancelBet refunds every wager and closes the bet without an outcome
	CancelBet(ctx context.Context, betID int64) (*models.Settlement, error)
}

// MaintenanceService defines administrative correction operations
type MaintenanceService interface {
	// RefundLateWagers refunds wagers placed after the recorded cutoff of resolved bets
	RefundLateWagers(ctx context.Context) (*models.RefundReport, error)
}

// StatsService defines the interface for leaderboard projections
type StatsService interface {
	// ComputeLeaderboard recomputes profit and loss from resolved bets
	ComputeLeaderboard(ctx context.Context) (*models.Leaderboard, error)
}
