package service

import (
	"shekkle/models"
)

// ComputePools sums the pools of a bet for the declared outcome.
// Refunded wagers never count towards either pool. Settlement and the
// leaderboard both go through here so they always agree on payouts.
func ComputePools(wagers []*models.Wager, outcome models.Outcome) models.Pools {
	var pools models.Pools
	for _, w := range wagers {
		if w.Refunded {
			continue
		}
		pools.TotalPool += w.Amount
		if w.Choice == outcome {
			pools.WinningPool += w.Amount
		}
	}

	if pools.WinningPool > 0 {
		pools.Ratio = float64(pools.TotalPool) / float64(pools.WinningPool)
	}

	return pools
}
