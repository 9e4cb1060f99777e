package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shekkle/events"
	"shekkle/models"

	log "github.com/sirupsen/logrus"
)

// UserSettings holds the economy values the user service needs
type UserSettings struct {
	StartingBalance    int64
	DailyClaimInterval time.Duration
}

// userService implements the UserService interface
type userService struct {
	uowFactory UnitOfWorkFactory
	settings   UserSettings
	now        func() time.Time
}

// NewUserService creates a new user service
func NewUserService(uowFactory UnitOfWorkFactory, settings UserSettings, opts ...Option) UserService {
	o := applyOptions(opts)
	return &userService{
		uowFactory: uowFactory,
		settings:   settings,
		now:        o.now,
	}
}

// CreateUser creates the user with the starting balance if absent
func (s *userService) CreateUser(ctx context.Context, userID int64, username string) (created bool, err error) {
	defer func() { logStorageFailure(err, "create_user", log.Fields{"user_id": userID}) }()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	created, err = uow.UserRepository().Create(ctx, userID, username, s.settings.StartingBalance)
	if err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}

	if created {
		s.publishUserCreated(uow, userID, username)
	}

	if err := uow.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return created, nil
}

// GetUser returns the user or nil when absent
func (s *userService) GetUser(ctx context.Context, userID int64) (user *models.User, err error) {
	defer func() { logStorageFailure(err, "get_user", log.Fields{"user_id": userID}) }()

	uow := s.uowFactory.Create()
	if err := uow.BeginReadOnly(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err = uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetOrCreateUser returns the user, creating it lazily on first interaction.
// The display name is advisory and refreshed when it changes.
func (s *userService) GetOrCreateUser(ctx context.Context, userID int64, username string) (user *models.User, err error) {
	defer func() { logStorageFailure(err, "get_or_create_user", log.Fields{"user_id": userID}) }()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	userRepo := uow.UserRepository()

	user, err = userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	// Nothing to write
	if user != nil && (username == "" || user.Username == username) {
		return user, nil
	}

	if user == nil {
		created, err := userRepo.Create(ctx, userID, username, s.settings.StartingBalance)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		if created {
			s.publishUserCreated(uow, userID, username)
		}

		user, err = userRepo.GetByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load created user: %w", err)
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
	} else {
		if err := userRepo.UpdateUsername(ctx, userID, username); err != nil {
			return nil, fmt.Errorf("failed to update username: %w", err)
		}
		user.Username = username
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return user, nil
}

// AdjustBalance credits or debits a user, returning false if the user does not exist
func (s *userService) AdjustBalance(ctx context.Context, userID int64, delta int64) (ok bool, err error) {
	defer func() {
		logStorageFailure(err, "adjust_balance", log.Fields{"user_id": userID, "delta": delta})
	}()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	newBalance, err := uow.UserRepository().AddBalance(ctx, userID, delta)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to adjust balance: %w", err)
	}

	if delta != 0 {
		uow.EventBus().Publish(events.BalanceChangeEvent{
			UserID:       userID,
			NewBalance:   newBalance,
			ChangeAmount: delta,
			Reason:       models.BalanceChangeAdjustment,
		})
	}

	if err := uow.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id":     userID,
		"delta":       delta,
		"new_balance": newBalance,
	}).Info("Balance adjusted")

	return true, nil
}

// CanClaimDaily reports whether the daily reward is available.
// Unknown users cannot claim.
func (s *userService) CanClaimDaily(ctx context.Context, userID int64) (bool, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}
	return user.CanClaimDaily(s.now(), s.settings.DailyClaimInterval), nil
}

// ClaimDaily credits the daily reward and returns the new balance.
// The user row is locked so concurrent claims can't both pay out.
func (s *userService) ClaimDaily(ctx context.Context, userID int64, amount int64) (newBalance int64, err error) {
	defer func() { logStorageFailure(err, "claim_daily", log.Fields{"user_id": userID}) }()

	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	userRepo := uow.UserRepository()

	user, err := userRepo.GetByIDForUpdate(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return 0, ErrUserNotFound
	}

	now := s.now()
	if !user.CanClaimDaily(now, s.settings.DailyClaimInterval) {
		return 0, ErrDailyAlreadyClaimed
	}

	newBalance, err = userRepo.AddBalance(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to credit daily reward: %w", err)
	}
	if err := userRepo.SetLastDailyAt(ctx, userID, now); err != nil {
		return 0, fmt.Errorf("failed to record daily claim: %w", err)
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:       userID,
		NewBalance:   newBalance,
		ChangeAmount: amount,
		Reason:       models.BalanceChangeDailyClaim,
	})

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return newBalance, nil
}

// TimeUntilDailyClaim returns how long until the next claim, 0 if available now
func (s *userService) TimeUntilDailyClaim(ctx context.Context, userID int64) (time.Duration, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, ErrUserNotFound
	}

	next := user.NextDailyClaimAt(s.settings.DailyClaimInterval)
	remaining := next.Sub(s.now())
	if next.IsZero() || remaining <= 0 {
		return 0, nil
	}
	return remaining, nil
}

// ListUsers returns every known user
func (s *userService) ListUsers(ctx context.Context) (users []*models.User, err error) {
	defer func() { logStorageFailure(err, "list_users", nil) }()

	uow := s.uowFactory.Create()
	if err := uow.BeginReadOnly(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	users, err = uow.UserRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	return users, nil
}

func (s *userService) publishUserCreated(uow UnitOfWork, userID int64, username string) {
	uow.EventBus().Publish(events.UserCreatedEvent{
		UserID:         userID,
		Username:       username,
		InitialBalance: s.settings.StartingBalance,
	})
	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:       userID,
		NewBalance:   s.settings.StartingBalance,
		ChangeAmount: s.settings.StartingBalance,
		Reason:       models.BalanceChangeInitial,
	})
}
