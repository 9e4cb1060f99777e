package service

import (
	"context"
	"testing"
	"time"

	"shekkle/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceService_RefundLateWagers(t *testing.T) {
	ctx := context.Background()

	cutoff := testNow.Add(-time.Hour)
	withCutoff := resolvedBet(10, models.OutcomeA)
	withCutoff.CutoffAt = &cutoff

	t.Run("credits wagers placed after the cutoff", func(t *testing.T) {
		m := newLedgerMocks()
		svc := NewMaintenanceService(m.factory)
		setupBasicTransactionMocks(m.uow)

		late := createTestWager(5, 10, 2, models.OutcomeB, 30)
		late.PlacedAt = cutoff.Add(time.Second)
		late.Refunded = true

		m.betRepo.On("ListResolvedWithCutoff", mock.Anything).Return([]*models.Bet{withCutoff}, nil)
		m.wagerRepo.On("MarkRefundedAfter", mock.Anything, int64(10), cutoff).Return([]*models.Wager{late}, nil)
		m.userRepo.On("AddBalance", mock.Anything, int64(2), int64(30)).Return(int64(80), nil)

		report, err := svc.RefundLateWagers(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, report.BetsChecked)
		assert.Equal(t, 1, report.WagersRefunded)
		assert.Equal(t, int64(30), report.TotalRefunded)
		assert.Equal(t, map[int64]int{10: 1}, report.ByBet)
		m.assertExpectations(t)
	})

	t.Run("second run credits nothing", func(t *testing.T) {
		m := newLedgerMocks()
		svc := NewMaintenanceService(m.factory)
		setupBasicTransactionMocks(m.uow)

		m.betRepo.On("ListResolvedWithCutoff", mock.Anything).Return([]*models.Bet{withCutoff}, nil)
		m.wagerRepo.On("MarkRefundedAfter", mock.Anything, int64(10), cutoff).Return([]*models.Wager{}, nil)

		report, err := svc.RefundLateWagers(ctx)

		require.NoError(t, err)
		assert.Equal(t, 0, report.WagersRefunded)
		assert.Empty(t, report.ByBet)
		m.userRepo.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything, mock.Anything)
	})
}
