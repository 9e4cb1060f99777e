package service

import (
	"context"
	"fmt"
	"time"

	"shekkle/events"
	"shekkle/models"

	log "github.com/sirupsen/logrus"
)

// settlementService implements the SettlementService interface
type settlementService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewSettlementService creates a new settlement service
func NewSettlementService(uowFactory UnitOfWorkFactory, opts ...Option) SettlementService {
	o := applyOptions(opts)
	return &settlementService{
		uowFactory: uowFactory,
		now:        o.now,
	}
}

// ResolveBet declares the outcome of a bet and distributes its pool.
//
// Wagers placed after a non-nil cutoff are refunded and excluded from both
// pools. If nobody backed the outcome every remaining wager is refunded.
// Otherwise each winning wager is credited floor(amount*total/winning) and
// losing wagers keep nothing. The whole settlement commits or none of it does.
func (s *settlementService) ResolveBet(ctx context.Context, betID int64, outcome models.Outcome, cutoff *time.Time) (settlement *models.Settlement, err error) {
	defer func() {
		logStorageFailure(err, "resolve_bet", log.Fields{"bet_id": betID, "outcome": outcome})
	}()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bet, err := s.lockSettleableBet(ctx, uow, betID)
	if err != nil {
		return nil, err
	}
	if !outcome.IsValid() {
		return nil, ErrInvalidOutcome
	}

	wagers, err := uow.WagerRepository().ListByBet(ctx, betID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get wagers: %w", err)
	}

	settlement = &models.Settlement{
		Bet:           bet,
		Outcome:       &outcome,
		Cutoff:        cutoff,
		PayoutDetails: make(map[int64]int64),
	}

	var credits creditBatch
	valid := make([]*models.Wager, 0, len(wagers))
	for _, w := range wagers {
		if cutoff == nil || !w.PlacedAfter(*cutoff) {
			valid = append(valid, w)
			continue
		}

		refunded, err := refundWager(ctx, uow, w, models.BalanceChangeCutoffRefund, &credits)
		if err != nil {
			return nil, err
		}
		if refunded {
			settlement.CutoffRefunds = append(settlement.CutoffRefunds, w)
			settlement.TotalRefunded += w.Amount
			settlement.PayoutDetails[w.UserID] += w.Amount
		}
	}

	pools := ComputePools(valid, outcome)
	settlement.Pools = pools

	resolvedAt := s.now()
	if err := uow.BetRepository().MarkResolved(ctx, betID, outcome, cutoff, resolvedAt); err != nil {
		return nil, fmt.Errorf("failed to mark bet resolved: %w", err)
	}

	switch {
	case len(valid) == 0:
		settlement.Kind = models.SettlementEmpty

	case !pools.HasWinners():
		settlement.Kind = models.SettlementRefunded
		for _, w := range valid {
			refunded, err := refundWager(ctx, uow, w, models.BalanceChangeRefund, &credits)
			if err != nil {
				return nil, err
			}
			if refunded {
				settlement.TotalRefunded += w.Amount
				settlement.PayoutDetails[w.UserID] += w.Amount
			}
		}

	default:
		settlement.Kind = models.SettlementPaid
		for _, w := range valid {
			if w.Choice != outcome {
				continue
			}
			payout := pools.Payout(w.Amount)
			credits.add(w.UserID, payout, models.BalanceChangePayout, betID)
			settlement.WinnerCount++
			settlement.TotalPaid += payout
			settlement.PayoutDetails[w.UserID] += payout
		}
	}

	if err := credits.apply(ctx, uow); err != nil {
		return nil, err
	}

	oldStatus := bet.Status
	bet.Status = models.BetStatusResolved
	bet.Outcome = &outcome
	bet.CutoffAt = cutoff
	bet.ResolvedAt = &resolvedAt

	s.publishSettled(uow, bet, oldStatus, settlement)

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"bet_id":         betID,
		"outcome":        outcome,
		"kind":           settlement.Kind,
		"total_pool":     pools.TotalPool,
		"winning_pool":   pools.WinningPool,
		"winners":        settlement.WinnerCount,
		"total_paid":     settlement.TotalPaid,
		"total_refunded": settlement.TotalRefunded,
		"cutoff_refunds": len(settlement.CutoffRefunds),
		"unallocated":    settlement.Unallocated(),
	}).Info("Bet resolved")

	return settlement, nil
}

// CancelBet refunds every wager and closes the bet without an outcome
func (s *settlementService) CancelBet(ctx context.Context, betID int64) (settlement *models.Settlement, err error) {
	defer func() { logStorageFailure(err, "cancel_bet", log.Fields{"bet_id": betID}) }()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bet, err := s.lockSettleableBet(ctx, uow, betID)
	if err != nil {
		return nil, err
	}

	wagers, err := uow.WagerRepository().ListByBet(ctx, betID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get wagers: %w", err)
	}

	settlement = &models.Settlement{
		Bet:           bet,
		Kind:          models.SettlementCancelled,
		PayoutDetails: make(map[int64]int64),
	}

	var credits creditBatch

	for _, w := range wagers {
		refunded, err := refundWager(ctx, uow, w, models.BalanceChangeRefund, &credits)
		if err != nil {
			return nil, err
		}
		if refunded {
			settlement.Pools.TotalPool += w.Amount
			settlement.TotalRefunded += w.Amount
			settlement.PayoutDetails[w.UserID] += w.Amount
		}
	}

	if err := credits.apply(ctx, uow); err != nil {
		return nil, err
	}

	cancelledAt := s.now()
	if err := uow.BetRepository().MarkCancelled(ctx, betID, cancelledAt); err != nil {
		return nil, fmt.Errorf("failed to mark bet cancelled: %w", err)
	}

	oldStatus := bet.Status
	bet.Status = models.BetStatusCancelled
	bet.ResolvedAt = &cancelledAt

	s.publishSettled(uow, bet, oldStatus, settlement)

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"bet_id":         betID,
		"total_refunded": settlement.TotalRefunded,
	}).Info("Bet cancelled")

	return settlement, nil
}

// lockSettleableBet locks the bet row and rejects bets that are already final
func (s *settlementService) lockSettleableBet(ctx context.Context, uow UnitOfWork, betID int64) (*models.Bet, error) {
	bet, err := uow.BetRepository().GetByIDForUpdate(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return nil, ErrBetNotFound
	}
	if bet.IsResolved() {
		return nil, ErrAlreadyResolved
	}
	if bet.IsCancelled() {
		return nil, ErrBetCancelled
	}
	return bet, nil
}

func (s *settlementService) publishSettled(uow UnitOfWork, bet *models.Bet, oldStatus models.BetStatus, settlement *models.Settlement) {
	uow.EventBus().Publish(events.BetStateChangeEvent{
		BetID:       bet.ID,
		Description: bet.Description,
		OldState:    oldStatus,
		NewState:    bet.Status,
	})
	uow.EventBus().Publish(events.BetSettledEvent{
		BetID:         bet.ID,
		Kind:          settlement.Kind,
		Outcome:       settlement.Outcome,
		TotalPool:     settlement.Pools.TotalPool,
		WinnerCount:   settlement.WinnerCount,
		TotalPaid:     settlement.TotalPaid,
		TotalRefunded: settlement.TotalRefunded,
	})
}
