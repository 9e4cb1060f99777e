package service

import (
	"context"
	"fmt"

	"shekkle/models"

	log "github.com/sirupsen/logrus"
)

// maintenanceService implements the MaintenanceService interface
type maintenanceService struct {
	uowFactory UnitOfWorkFactory
}

// NewMaintenanceService creates a new maintenance service
func NewMaintenanceService(uowFactory UnitOfWorkFactory) MaintenanceService {
	return &maintenanceService{
		uowFactory: uowFactory,
	}
}

// RefundLateWagers applies the recorded cutoff of every resolved bet after
// the fact: wagers placed after it are flagged refunded and their stake is
// returned. A second run finds nothing left to flag and credits nothing.
func (s *maintenanceService) RefundLateWagers(ctx context.Context) (report *models.RefundReport, err error) {
	defer func() { logStorageFailure(err, "refund_late_wagers", nil) }()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bets, err := uow.BetRepository().ListResolvedWithCutoff(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolved bets: %w", err)
	}

	report = &models.RefundReport{
		ByBet: make(map[int64]int),
	}

	var credits creditBatch

	for _, bet := range bets {
		if bet.CutoffAt == nil {
			continue
		}
		report.BetsChecked++

		late, err := uow.WagerRepository().MarkRefundedAfter(ctx, bet.ID, *bet.CutoffAt)
		if err != nil {
			return nil, fmt.Errorf("failed to flag late wagers of bet %d: %w", bet.ID, err)
		}

		for _, w := range late {
			credits.add(w.UserID, w.Amount, models.BalanceChangeCutoffRefund, bet.ID)
			report.WagersRefunded++
			report.TotalRefunded += w.Amount
		}

		if len(late) > 0 {
			report.ByBet[bet.ID] = len(late)
			log.WithFields(log.Fields{
				"bet_id":      bet.ID,
				"description": bet.Description,
				"cutoff_at":   *bet.CutoffAt,
				"refunded":    len(late),
			}).Info("Refunded wagers placed after cutoff")
		}
	}

	if err := credits.apply(ctx, uow); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"bets_checked":    report.BetsChecked,
		"wagers_refunded": report.WagersRefunded,
		"total_refunded":  report.TotalRefunded,
	}).Info("Late wager refund run complete")

	return report, nil
}
