package service

import (
	"context"
	"fmt"
	"sort"

	"shekkle/models"

	log "github.com/sirupsen/logrus"
)

// statsService implements the StatsService interface
type statsService struct {
	uowFactory UnitOfWorkFactory
}

// NewStatsService creates a new stats service
func NewStatsService(uowFactory UnitOfWorkFactory) StatsService {
	return &statsService{
		uowFactory: uowFactory,
	}
}

// ComputeLeaderboard recomputes every user's profit and loss from resolved
// bets. Nothing is cached, so the result always matches the current ledger.
func (s *statsService) ComputeLeaderboard(ctx context.Context) (board *models.Leaderboard, err error) {
	defer func() { logStorageFailure(err, "compute_leaderboard", nil) }()

	uow := s.uowFactory.Create()
	if err := uow.BeginReadOnly(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	users, err := uow.UserRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	stats := make([]*models.UserStat, 0, len(users))
	byUser := make(map[int64]*models.UserStat, len(users))
	for _, u := range users {
		stat := &models.UserStat{UserID: u.TelegramID, Username: u.Username}
		stats = append(stats, stat)
		byUser[u.TelegramID] = stat
	}

	bets, err := uow.BetRepository().ListByStatus(ctx, models.BetStatusResolved)
	if err != nil {
		return nil, fmt.Errorf("failed to get resolved bets: %w", err)
	}

	for _, bet := range bets {
		if bet.Outcome == nil {
			continue
		}
		outcome := *bet.Outcome

		wagers, err := uow.WagerRepository().ListByBet(ctx, bet.ID, false)
		if err != nil {
			return nil, fmt.Errorf("failed to get wagers for bet %d: %w", bet.ID, err)
		}

		pools := ComputePools(wagers, outcome)
		// Everyone was refunded, nobody won or lost
		if !pools.HasWinners() {
			continue
		}

		for _, w := range wagers {
			stat, ok := byUser[w.UserID]
			if !ok {
				stat = &models.UserStat{UserID: w.UserID, Username: w.Username}
				stats = append(stats, stat)
				byUser[w.UserID] = stat
			}

			stat.BetsPlaced++
			if w.Choice == outcome {
				profit := pools.Payout(w.Amount) - w.Amount
				stat.BetsWon++
				stat.GrossWon += profit
				stat.NetProfit += profit
			} else {
				stat.GrossLost += w.Amount
				stat.NetProfit -= w.Amount
			}
		}
	}

	board = &models.Leaderboard{
		Winners: make([]*models.UserStat, len(stats)),
		Losers:  make([]*models.UserStat, len(stats)),
	}
	copy(board.Winners, stats)
	copy(board.Losers, stats)

	sort.SliceStable(board.Winners, func(i, j int) bool {
		return board.Winners[i].NetProfit > board.Winners[j].NetProfit
	})
	sort.SliceStable(board.Losers, func(i, j int) bool {
		return board.Losers[i].NetProfit < board.Losers[j].NetProfit
	})

	log.WithFields(log.Fields{
		"users":         len(stats),
		"resolved_bets": len(bets),
	}).Debug("Leaderboard computed")

	return board, nil
}
