package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"shekkle/events"
	"shekkle/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func createTestSettlementService() (SettlementService, *ledgerMocks) {
	m := newLedgerMocks()
	return NewSettlementService(m.factory, fixedClock()), m
}

func TestSettlementService_ResolveBet(t *testing.T) {
	ctx := context.Background()
	noCutoff := (*time.Time)(nil)

	t.Run("sixty forty split pays the winner the whole pool", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupBasicTransactionMocks(m.uow)

		bet := createTestBet(10, models.BetStatusPendingResolution)
		wagers := []*models.Wager{
			createTestWager(1, 10, 1, models.OutcomeA, 60),
			createTestWager(2, 10, 2, models.OutcomeB, 40),
		}

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).Return(bet, nil)
		m.wagerRepo.On("ListByBet", mock.Anything, int64(10), false).Return(wagers, nil)
		m.betRepo.On("MarkResolved", mock.Anything, int64(10), models.OutcomeA, noCutoff, testNow).Return(nil)
		m.userRepo.On("AddBalance", mock.Anything, int64(1), int64(100)).Return(int64(140), nil)

		settlement, err := svc.ResolveBet(ctx, 10, models.OutcomeA, nil)

		require.NoError(t, err)
		assert.Equal(t, models.SettlementPaid, settlement.Kind)
		assert.Equal(t, int64(100), settlement.Pools.TotalPool)
		assert.Equal(t, int64(60), settlement.Pools.WinningPool)
		assert.Equal(t, 1, settlement.WinnerCount)
		assert.Equal(t, int64(100), settlement.TotalPaid)
		assert.Equal(t, int64(0), settlement.TotalRefunded)
		assert.Equal(t, map[int64]int64{1: 100}, settlement.PayoutDetails)
		assert.Equal(t, models.BetStatusResolved, settlement.Bet.Status)
		require.NotNil(t, settlement.Bet.Outcome)
		assert.Equal(t, models.OutcomeA, *settlement.Bet.Outcome)

		m.userRepo.AssertNotCalled(t, "AddBalance", mock.Anything, int64(2), mock.Anything)
		m.wagerRepo.AssertNotCalled(t, "MarkRefunded", mock.Anything, mock.Anything)
		m.bus.AssertCalled(t, "Publish", mock.MatchedBy(func(e events.Event) bool {
			settled, ok := e.(events.BetSettledEvent)
			return ok && settled.BetID == 10 && settled.TotalPaid == 100 && settled.Kind == models.SettlementPaid
		}))
		m.assertExpectations(t)
	})

	t.Run("pools in the billions pay winners in full", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupBasicTransactionMocks(m.uow)

		bet := createTestBet(10, models.BetStatusPendingResolution)
		wagers := []*models.Wager{
			createTestWager(1, 10, 1, models.OutcomeA, 4_000_000_000),
			createTestWager(2, 10, 2, models.OutcomeB, 4_000_000_000),
		}

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).Return(bet, nil)
		m.wagerRepo.On("ListByBet", mock.Anything, int64(10), false).Return(wagers, nil)
		m.betRepo.On("MarkResolved", mock.Anything, int64(10), models.OutcomeA, noCutoff, testNow).Return(nil)
		m.userRepo.On("AddBalance", mock.Anything, int64(1), int64(8_000_000_000)).Return(int64(8_000_000_000), nil)

		settlement, err := svc.ResolveBet(ctx, 10, models.OutcomeA, nil)

		require.NoError(t, err)
		assert.Equal(t, int64(8_000_000_000), settlement.TotalPaid)
		assert.Zero(t, settlement.Unallocated())
		m.userRepo.AssertNotCalled(t, "AddBalance", mock.Anything, int64(2), mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("nobody backed the outcome refunds everyone", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupBasicTransactionMocks(m.uow)

		bet := createTestBet(10, models.BetStatusPendingResolution)
		wagers := []*models.Wager{
			createTestWager(1, 10, 1, models.OutcomeA, 50),
			createTestWager(2, 10, 2, models.OutcomeA, 30),
		}

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).Return(bet, nil)
		m.wagerRepo.On("ListByBet", mock.Anything, int64(10), false).Return(wagers, nil)
		m.betRepo.On("MarkResolved", mock.Anything, int64(10), models.OutcomeB, noCutoff, testNow).Return(nil)
		m.wagerRepo.On("MarkRefunded", mock.Anything, int64(1)).Return(true, nil)
		m.wagerRepo.On("MarkRefunded", mock.Anything, int64(2)).Return(true, nil)
		m.userRepo.On("AddBalance", mock.Anything, int64(1), int64(50)).Return(int64(100), nil)
		m.userRepo.On("AddBalance", mock.Anything, int64(2), int64(30)).Return(int64(100), nil)

		settlement, err := svc.ResolveBet(ctx, 10, models.OutcomeB, nil)

		require.NoError(t, err)
		assert.Equal(t, models.SettlementRefunded, settlement.Kind)
		assert.Equal(t, int64(80), settlement.Pools.TotalPool)
		assert.Equal(t, int64(0), settlement.Pools.WinningPool)
		assert.Equal(t, 0, settlement.WinnerCount)
		assert.Equal(t, int64(0), settlement.TotalPaid)
		assert.Equal(t, int64(80), settlement.TotalRefunded)
		assert.Equal(t, map[int64]int64{1: 50, 2: 30}, settlement.PayoutDetails)
		m.assertExpectations(t)
	})

	t.Run("wagers after the cutoff are refunded and excluded", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupBasicTransactionMocks(m.uow)

		cutoff := testNow.Add(-10 * time.Minute)
		bet := createTestBet(10, models.BetStatusPendingResolution)

		early := createTestWager(1, 10, 1, models.OutcomeA, 50)
		early.PlacedAt = cutoff.Add(-time.Minute)
		late := createTestWager(2, 10, 2, models.OutcomeA, 50)
		late.PlacedAt = cutoff.Add(time.Second)
		loser := createTestWager(3, 10, 3, models.OutcomeB, 50)
		loser.PlacedAt = cutoff.Add(-2 * time.Minute)

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).Return(bet, nil)
		m.wagerRepo.On("ListByBet", mock.Anything, int64(10), false).
			Return([]*models.Wager{early, late, loser}, nil)
		m.wagerRepo.On("MarkRefunded", mock.Anything, int64(2)).Return(true, nil)
		m.userRepo.On("AddBalance", mock.Anything, int64(2), int64(50)).Return(int64(100), nil)
		m.betRepo.On("MarkResolved", mock.Anything, int64(10), models.OutcomeA, &cutoff, testNow).Return(nil)
		m.userRepo.On("AddBalance", mock.Anything, int64(1), int64(100)).Return(int64(150), nil)

		settlement, err := svc.ResolveBet(ctx, 10, models.OutcomeA, &cutoff)

		require.NoError(t, err)
		assert.Equal(t, models.SettlementPaid, settlement.Kind)
		assert.Equal(t, int64(100), settlement.Pools.TotalPool)
		assert.Equal(t, int64(50), settlement.Pools.WinningPool)
		require.Len(t, settlement.CutoffRefunds, 1)
		assert.Equal(t, int64(2), settlement.CutoffRefunds[0].ID)
		assert.True(t, settlement.CutoffRefunds[0].Refunded)
		assert.Equal(t, int64(100), settlement.TotalPaid)
		assert.Equal(t, int64(50), settlement.TotalRefunded)
		assert.Equal(t, map[int64]int64{1: 100, 2: 50}, settlement.PayoutDetails)
		assert.Equal(t, &cutoff, settlement.Bet.CutoffAt)

		m.userRepo.AssertNotCalled(t, "AddBalance", mock.Anything, int64(3), mock.Anything)
		m.assertExpectations(t)
	})

	t.Run("wager at the cutoff instant is still valid", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupBasicTransactionMocks(m.uow)

		cutoff := testNow.Add(-10 * time.Minute)
		bet := createTestBet(10, models.BetStatusPendingResolution)
		onTime := createTestWager(1, 10, 1, models.OutcomeA, 20)
		onTime.PlacedAt = cutoff

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).Return(bet, nil)
		m.wagerRepo.On("ListByBet", mock.Anything, int64(10), false).Return([]*models.Wager{onTime}, nil)
		m.betRepo.On("MarkResolved", mock.Anything, int64(10), models.OutcomeA, &cutoff, testNow).Return(nil)
		m.userRepo.On("AddBalance", mock.Anything, int64(1), int64(20)).Return(int64(100), nil)

		settlement, err := svc.ResolveBet(ctx, 10, models.OutcomeA, &cutoff)

		require.NoError(t, err)
		assert.Empty(t, settlement.CutoffRefunds)
		assert.Equal(t, int64(20), settlement.TotalPaid)
		m.wagerRepo.AssertNotCalled(t, "MarkRefunded", mock.Anything, mock.Anything)
	})

	t.Run("late wager already refunded is not credited twice", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupBasicTransactionMocks(m.uow)

		cutoff := testNow.Add(-10 * time.Minute)
		bet := createTestBet(10, models.BetStatusPendingResolution)
		late := createTestWager(2, 10, 2, models.OutcomeA, 50)
		late.PlacedAt = cutoff.Add(time.Second)

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).Return(bet, nil)
		m.wagerRepo.On("ListByBet", mock.Anything, int64(10), false).Return([]*models.Wager{late}, nil)
		m.wagerRepo.On("MarkRefunded", mock.Anything, int64(2)).Return(false, nil)
		m.betRepo.On("MarkResolved", mock.Anything, int64(10), models.OutcomeA, &cutoff, testNow).Return(nil)

		settlement, err := svc.ResolveBet(ctx, 10, models.OutcomeA, &cutoff)

		require.NoError(t, err)
		assert.Equal(t, models.SettlementEmpty, settlement.Kind)
		assert.Empty(t, settlement.CutoffRefunds)
		assert.Equal(t, int64(0), settlement.TotalRefunded)
		m.userRepo.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no wagers resolves empty", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupBasicTransactionMocks(m.uow)

		bet := createTestBet(10, models.BetStatusOpen)

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).Return(bet, nil)
		m.wagerRepo.On("ListByBet", mock.Anything, int64(10), false).Return([]*models.Wager{}, nil)
		m.betRepo.On("MarkResolved", mock.Anything, int64(10), models.OutcomeB, noCutoff, testNow).Return(nil)

		settlement, err := svc.ResolveBet(ctx, 10, models.OutcomeB, nil)

		require.NoError(t, err)
		assert.Equal(t, models.SettlementEmpty, settlement.Kind)
		assert.Equal(t, int64(0), settlement.Pools.TotalPool)
		m.assertExpectations(t)
	})

	t.Run("floor rounding never pays out more than the pool", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupBasicTransactionMocks(m.uow)

		bet := createTestBet(10, models.BetStatusPendingResolution)
		wagers := []*models.Wager{
			createTestWager(1, 10, 1, models.OutcomeA, 1),
			createTestWager(2, 10, 2, models.OutcomeA, 1),
			createTestWager(3, 10, 3, models.OutcomeA, 1),
			createTestWager(4, 10, 4, models.OutcomeB, 1),
		}

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).Return(bet, nil)
		m.wagerRepo.On("ListByBet", mock.Anything, int64(10), false).Return(wagers, nil)
		m.betRepo.On("MarkResolved", mock.Anything, int64(10), models.OutcomeA, noCutoff, testNow).Return(nil)
		m.userRepo.On("AddBalance", mock.Anything, mock.Anything, int64(1)).Return(int64(100), nil)

		settlement, err := svc.ResolveBet(ctx, 10, models.OutcomeA, nil)

		require.NoError(t, err)
		assert.Equal(t, 3, settlement.WinnerCount)
		assert.Equal(t, int64(3), settlement.TotalPaid)
		assert.Equal(t, int64(1), settlement.Unallocated())
		m.userRepo.AssertNumberOfCalls(t, "AddBalance", 3)
	})

	t.Run("rejects an already resolved bet without touching balances", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupRejectedTransactionMocks(m.uow)

		bet := createTestBet(10, models.BetStatusResolved)
		outcome := models.OutcomeA
		bet.Outcome = &outcome

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).Return(bet, nil)

		settlement, err := svc.ResolveBet(ctx, 10, models.OutcomeB, nil)

		assert.Nil(t, settlement)
		assert.ErrorIs(t, err, ErrAlreadyResolved)
		assert.ErrorIs(t, err, ErrStateConflict)
		m.userRepo.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything, mock.Anything)
		m.betRepo.AssertNotCalled(t, "MarkResolved", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		m.uow.AssertNotCalled(t, "Commit")
		m.assertExpectations(t)
	})

	t.Run("rejects a cancelled bet", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupRejectedTransactionMocks(m.uow)

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).
			Return(createTestBet(10, models.BetStatusCancelled), nil)

		_, err := svc.ResolveBet(ctx, 10, models.OutcomeA, nil)

		assert.ErrorIs(t, err, ErrBetCancelled)
		m.assertExpectations(t)
	})

	t.Run("unknown bet", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupRejectedTransactionMocks(m.uow)

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(404)).Return(nil, nil)

		_, err := svc.ResolveBet(ctx, 404, models.OutcomeA, nil)

		assert.ErrorIs(t, err, ErrBetNotFound)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid outcome", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupRejectedTransactionMocks(m.uow)

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).
			Return(createTestBet(10, models.BetStatusPendingResolution), nil)

		_, err := svc.ResolveBet(ctx, 10, models.Outcome("C"), nil)

		assert.ErrorIs(t, err, ErrInvalidOutcome)
		assert.ErrorIs(t, err, ErrInvalidInput)
		m.wagerRepo.AssertNotCalled(t, "ListByBet", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("storage failure aborts the settlement", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupRejectedTransactionMocks(m.uow)

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).
			Return(createTestBet(10, models.BetStatusPendingResolution), nil)
		m.wagerRepo.On("ListByBet", mock.Anything, int64(10), false).
			Return(nil, NewStorageError("list wagers", errors.New("connection reset")))

		_, err := svc.ResolveBet(ctx, 10, models.OutcomeA, nil)

		assert.ErrorIs(t, err, ErrStorage)
		m.uow.AssertNotCalled(t, "Commit")
		m.assertExpectations(t)
	})

	t.Run("begin failure", func(t *testing.T) {
		svc, m := createTestSettlementService()
		m.uow.On("Begin", mock.Anything).Return(NewStorageError("begin transaction", errors.New("pool closed")))

		_, err := svc.ResolveBet(ctx, 10, models.OutcomeA, nil)

		assert.ErrorIs(t, err, ErrStorage)
		m.betRepo.AssertNotCalled(t, "GetByIDForUpdate", mock.Anything, mock.Anything)
	})
}

func TestSettlementService_ResolveBet_Conservation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		outcome models.Outcome
		wagers  []*models.Wager
	}{
		{
			name:    "uneven stakes",
			outcome: models.OutcomeB,
			wagers: []*models.Wager{
				createTestWager(1, 10, 1, models.OutcomeA, 17),
				createTestWager(2, 10, 2, models.OutcomeB, 7),
				createTestWager(3, 10, 3, models.OutcomeB, 11),
				createTestWager(4, 10, 1, models.OutcomeB, 5),
			},
		},
		{
			name:    "single winner",
			outcome: models.OutcomeA,
			wagers: []*models.Wager{
				createTestWager(1, 10, 1, models.OutcomeA, 1),
				createTestWager(2, 10, 2, models.OutcomeB, 999),
			},
		},
		{
			name:    "everyone wins",
			outcome: models.OutcomeA,
			wagers: []*models.Wager{
				createTestWager(1, 10, 1, models.OutcomeA, 33),
				createTestWager(2, 10, 2, models.OutcomeA, 67),
			},
		},
		{
			name:    "everyone loses",
			outcome: models.OutcomeA,
			wagers: []*models.Wager{
				createTestWager(1, 10, 1, models.OutcomeB, 33),
				createTestWager(2, 10, 2, models.OutcomeB, 67),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := createTestSettlementService()
			setupBasicTransactionMocks(m.uow)

			m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).
				Return(createTestBet(10, models.BetStatusPendingResolution), nil)
			m.wagerRepo.On("ListByBet", mock.Anything, int64(10), false).Return(tt.wagers, nil)
			m.wagerRepo.On("MarkRefunded", mock.Anything, mock.Anything).Return(true, nil)
			m.betRepo.On("MarkResolved", mock.Anything, int64(10), tt.outcome, mock.Anything, testNow).Return(nil)
			m.userRepo.On("AddBalance", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)

			settlement, err := svc.ResolveBet(ctx, 10, tt.outcome, nil)
			require.NoError(t, err)

			var staked, credited int64
			for _, w := range tt.wagers {
				staked += w.Amount
			}
			for _, amount := range settlement.PayoutDetails {
				credited += amount
			}

			assert.LessOrEqual(t, credited, staked)
			assert.Equal(t, settlement.TotalPaid+settlement.TotalRefunded, credited)
			if settlement.Kind == models.SettlementPaid {
				assert.Less(t, settlement.Pools.TotalPool-settlement.TotalPaid, int64(settlement.WinnerCount)+1)
			} else {
				assert.Equal(t, staked, credited)
			}
		})
	}
}

func TestSettlementService_CancelBet(t *testing.T) {
	ctx := context.Background()

	t.Run("refunds every wager", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupBasicTransactionMocks(m.uow)

		bet := createTestBet(10, models.BetStatusPendingResolution)
		wagers := []*models.Wager{
			createTestWager(1, 10, 1, models.OutcomeA, 25),
			createTestWager(2, 10, 2, models.OutcomeB, 75),
		}

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).Return(bet, nil)
		m.wagerRepo.On("ListByBet", mock.Anything, int64(10), false).Return(wagers, nil)
		m.wagerRepo.On("MarkRefunded", mock.Anything, int64(1)).Return(true, nil)
		m.wagerRepo.On("MarkRefunded", mock.Anything, int64(2)).Return(true, nil)
		m.userRepo.On("AddBalance", mock.Anything, int64(1), int64(25)).Return(int64(100), nil)
		m.userRepo.On("AddBalance", mock.Anything, int64(2), int64(75)).Return(int64(100), nil)
		m.betRepo.On("MarkCancelled", mock.Anything, int64(10), testNow).Return(nil)

		settlement, err := svc.CancelBet(ctx, 10)

		require.NoError(t, err)
		assert.Equal(t, models.SettlementCancelled, settlement.Kind)
		assert.Nil(t, settlement.Outcome)
		assert.Equal(t, int64(100), settlement.TotalRefunded)
		assert.Equal(t, models.BetStatusCancelled, settlement.Bet.Status)
		assert.Nil(t, settlement.Bet.Outcome)

		m.bus.AssertCalled(t, "Publish", mock.MatchedBy(func(e events.Event) bool {
			change, ok := e.(events.BetStateChangeEvent)
			return ok && change.OldState == models.BetStatusPendingResolution && change.NewState == models.BetStatusCancelled
		}))
		m.assertExpectations(t)
	})

	t.Run("rejects a resolved bet", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupRejectedTransactionMocks(m.uow)

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).
			Return(createTestBet(10, models.BetStatusResolved), nil)

		_, err := svc.CancelBet(ctx, 10)

		assert.ErrorIs(t, err, ErrAlreadyResolved)
		m.betRepo.AssertNotCalled(t, "MarkCancelled", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects a second cancel", func(t *testing.T) {
		svc, m := createTestSettlementService()
		setupRejectedTransactionMocks(m.uow)

		m.betRepo.On("GetByIDForUpdate", mock.Anything, int64(10)).
			Return(createTestBet(10, models.BetStatusCancelled), nil)

		_, err := svc.CancelBet(ctx, 10)

		assert.ErrorIs(t, err, ErrBetCancelled)
	})
}
