package service

import (
	"context"
	"fmt"
	"sort"

	"shekkle/events"
	"shekkle/models"
)

// creditBalance adds amount to a user's balance and queues the balance event.
// Settlement and maintenance credit through here.
func creditBalance(ctx context.Context, uow UnitOfWork, userID, amount int64, reason models.BalanceChangeReason, betID int64) error {
	newBalance, err := uow.UserRepository().AddBalance(ctx, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to credit user %d: %w", userID, err)
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:       userID,
		NewBalance:   newBalance,
		ChangeAmount: amount,
		Reason:       reason,
		BetID:        betID,
	})

	return nil
}

// pendingCredit is a balance credit waiting to be applied
type pendingCredit struct {
	userID int64
	amount int64
	reason models.BalanceChangeReason
	betID  int64
}

// creditBatch collects the credits of one transaction. Users are credited in
// ascending id order so concurrent settlements take row locks in the same order.
type creditBatch []pendingCredit

func (b *creditBatch) add(userID, amount int64, reason models.BalanceChangeReason, betID int64) {
	*b = append(*b, pendingCredit{userID: userID, amount: amount, reason: reason, betID: betID})
}

func (b creditBatch) apply(ctx context.Context, uow UnitOfWork) error {
	ordered := make([]pendingCredit, len(b))
	copy(ordered, b)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].userID < ordered[j].userID
	})

	for _, c := range ordered {
		if err := creditBalance(ctx, uow, c.userID, c.amount, c.reason, c.betID); err != nil {
			return err
		}
	}
	return nil
}

// refundWager flags a wager refunded and queues the return of its stake.
// Reports false without queueing anything if the wager was already refunded.
func refundWager(ctx context.Context, uow UnitOfWork, wager *models.Wager, reason models.BalanceChangeReason, credits *creditBatch) (bool, error) {
	changed, err := uow.WagerRepository().MarkRefunded(ctx, wager.ID)
	if err != nil {
		return false, fmt.Errorf("failed to mark wager %d refunded: %w", wager.ID, err)
	}
	if !changed {
		return false, nil
	}

	credits.add(wager.UserID, wager.Amount, reason, wager.BetID)
	wager.Refunded = true
	return true, nil
}
