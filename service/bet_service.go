package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shekkle/events"
	"shekkle/models"

	log "github.com/sirupsen/logrus"
)

// betService implements the BetService interface
type betService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewBetService creates a new bet service
func NewBetService(uowFactory UnitOfWorkFactory, opts ...Option) BetService {
	o := applyOptions(opts)
	return &betService{
		uowFactory: uowFactory,
		now:        o.now,
	}
}

// CreateBet opens a new bet and returns its id
func (s *betService) CreateBet(ctx context.Context, creatorID int64, description string, deadline time.Time, optionA, optionB string) (betID int64, err error) {
	defer func() { logStorageFailure(err, "create_bet", log.Fields{"creator_id": creatorID}) }()

	description = strings.TrimSpace(description)
	optionA = strings.TrimSpace(optionA)
	optionB = strings.TrimSpace(optionB)

	if description == "" {
		return 0, fmt.Errorf("%w: description is required", ErrInvalidBet)
	}
	if optionA == "" || optionB == "" {
		return 0, fmt.Errorf("%w: both options are required", ErrInvalidBet)
	}

	now := s.now()
	if !deadline.After(now) {
		return 0, fmt.Errorf("%w: deadline must be in the future", ErrInvalidBet)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	creator, err := uow.UserRepository().GetByID(ctx, creatorID)
	if err != nil {
		return 0, fmt.Errorf("failed to get creator: %w", err)
	}
	if creator == nil {
		return 0, ErrUserNotFound
	}

	bet := &models.Bet{
		CreatorID:   creatorID,
		Description: description,
		OptionA:     optionA,
		OptionB:     optionB,
		Deadline:    deadline,
		Status:      models.BetStatusOpen,
		CreatedAt:   now,
	}
	if err := uow.BetRepository().Create(ctx, bet); err != nil {
		return 0, fmt.Errorf("failed to create bet: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"bet_id":     bet.ID,
		"creator_id": creatorID,
		"deadline":   deadline,
	}).Info("Bet created")

	return bet.ID, nil
}

// GetBet returns the bet or nil when absent
func (s *betService) GetBet(ctx context.Context, betID int64) (bet *models.Bet, err error) {
	defer func() { logStorageFailure(err, "get_bet", log.Fields{"bet_id": betID}) }()

	uow := s.uowFactory.Create()
	if err := uow.BeginReadOnly(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bet, err = uow.BetRepository().GetByID(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}

	return bet, nil
}

// ListOpenBets returns every bet still accepting wagers
func (s *betService) ListOpenBets(ctx context.Context) (bets []*models.Bet, err error) {
	defer func() { logStorageFailure(err, "list_open_bets", nil) }()

	uow := s.uowFactory.Create()
	if err := uow.BeginReadOnly(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bets, err = uow.BetRepository().ListByStatus(ctx, models.BetStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to list open bets: %w", err)
	}

	return bets, nil
}

// ListExpiredOpenBets returns open bets past their deadline at now
func (s *betService) ListExpiredOpenBets(ctx context.Context, now time.Time) (bets []*models.Bet, err error) {
	defer func() { logStorageFailure(err, "list_expired_open_bets", nil) }()

	uow := s.uowFactory.Create()
	if err := uow.BeginReadOnly(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bets, err = uow.BetRepository().ListExpiredOpen(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired bets: %w", err)
	}

	return bets, nil
}

// SetBetStatus closes an open bet for wagering. Resolution and cancellation
// go through the settlement service so balances move with the status.
func (s *betService) SetBetStatus(ctx context.Context, betID int64, status models.BetStatus) (err error) {
	defer func() {
		logStorageFailure(err, "set_bet_status", log.Fields{"bet_id": betID, "status": status})
	}()

	if status != models.BetStatusPendingResolution {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	betRepo := uow.BetRepository()

	bet, err := betRepo.GetByIDForUpdate(ctx, betID)
	if err != nil {
		return fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return ErrBetNotFound
	}
	if !models.CanTransition(bet.Status, status) {
		return fmt.Errorf("%w: bet %d is %s", ErrInvalidTransition, betID, bet.Status)
	}

	changed, err := betRepo.TransitionStatus(ctx, betID, bet.Status, status)
	if err != nil {
		return fmt.Errorf("failed to update bet status: %w", err)
	}
	if !changed {
		return fmt.Errorf("%w: bet %d changed concurrently", ErrInvalidTransition, betID)
	}

	uow.EventBus().Publish(events.BetStateChangeEvent{
		BetID:       betID,
		Description: bet.Description,
		OldState:    bet.Status,
		NewState:    status,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// TransitionExpiredBets moves every expired open bet to pending resolution
// and returns the bets that were moved.
func (s *betService) TransitionExpiredBets(ctx context.Context) (moved []*models.Bet, err error) {
	defer func() { logStorageFailure(err, "transition_expired_bets", nil) }()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	betRepo := uow.BetRepository()

	expired, err := betRepo.ListExpiredOpen(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list expired bets: %w", err)
	}

	for _, bet := range expired {
		changed, err := betRepo.TransitionStatus(ctx, bet.ID, models.BetStatusOpen, models.BetStatusPendingResolution)
		if err != nil {
			return nil, fmt.Errorf("failed to close bet %d: %w", bet.ID, err)
		}
		// Already moved by someone else
		if !changed {
			continue
		}

		bet.Status = models.BetStatusPendingResolution
		moved = append(moved, bet)

		wagerCount, err := uow.WagerRepository().CountByBet(ctx, bet.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count wagers of bet %d: %w", bet.ID, err)
		}

		uow.EventBus().Publish(events.BetStateChangeEvent{
			BetID:       bet.ID,
			Description: bet.Description,
			OldState:    models.BetStatusOpen,
			NewState:    models.BetStatusPendingResolution,
			WagerCount:  wagerCount,
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if len(moved) > 0 {
		log.WithFields(log.Fields{
			"count": len(moved),
		}).Info("Closed expired bets")
	}

	return moved, nil
}
