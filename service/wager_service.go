package service

import (
	"context"
	"fmt"
	"time"

	"shekkle/events"
	"shekkle/models"

	log "github.com/sirupsen/logrus"
)

// wagerService implements the WagerService interface
type wagerService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewWagerService creates a new wager service
func NewWagerService(uowFactory UnitOfWorkFactory, opts ...Option) WagerService {
	o := applyOptions(opts)
	return &wagerService{
		uowFactory: uowFactory,
		now:        o.now,
	}
}

// PlaceWager debits the user and records the wager in one transaction.
// Both the bet and the user row stay locked from the checks to the insert.
func (s *wagerService) PlaceWager(ctx context.Context, userID, betID int64, choice models.Outcome, amount int64) (wager *models.Wager, err error) {
	defer func() {
		logStorageFailure(err, "place_wager", log.Fields{"user_id": userID, "bet_id": betID, "amount": amount})
	}()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bet, err := uow.BetRepository().GetByIDForUpdate(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return nil, ErrBetNotFound
	}
	if !bet.IsOpen() {
		return nil, ErrBetClosed
	}

	now := s.now()
	if bet.IsExpired(now) {
		return nil, ErrDeadlinePassed
	}

	userRepo := uow.UserRepository()

	user, err := userRepo.GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !choice.IsValid() {
		return nil, ErrInvalidOutcome
	}
	if user.Balance < amount {
		return nil, insufficientFunds(user.Balance, amount)
	}

	newBalance, err := userRepo.AddBalance(ctx, userID, -amount)
	if err != nil {
		return nil, fmt.Errorf("failed to debit wager: %w", err)
	}

	wager = &models.Wager{
		BetID:    betID,
		UserID:   userID,
		Choice:   choice,
		Amount:   amount,
		PlacedAt: now,
		Username: user.Username,
	}
	if err := uow.WagerRepository().Create(ctx, wager); err != nil {
		return nil, fmt.Errorf("failed to record wager: %w", err)
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:       userID,
		NewBalance:   newBalance,
		ChangeAmount: -amount,
		Reason:       models.BalanceChangeWagerPlaced,
		BetID:        betID,
	})
	uow.EventBus().Publish(events.WagerPlacedEvent{
		WagerID: wager.ID,
		BetID:   betID,
		UserID:  userID,
		Choice:  choice,
		Amount:  amount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"wager_id": wager.ID,
		"bet_id":   betID,
		"user_id":  userID,
		"choice":   choice,
		"amount":   amount,
	}).Debug("Wager placed")

	return wager, nil
}

// ListWagers returns the non-refunded wagers of a bet with usernames
func (s *wagerService) ListWagers(ctx context.Context, betID int64) (wagers []*models.Wager, err error) {
	defer func() { logStorageFailure(err, "list_wagers", log.Fields{"bet_id": betID}) }()

	uow := s.uowFactory.Create()
	if err := uow.BeginReadOnly(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wagers, err = uow.WagerRepository().ListByBet(ctx, betID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list wagers: %w", err)
	}

	return wagers, nil
}
