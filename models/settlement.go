package models

import (
	"math"
	"math/bits"
	"time"
)

// SettlementKind describes which branch of settlement was taken
type SettlementKind string

const (
	// SettlementPaid means at least one winning wager shared the pool
	SettlementPaid SettlementKind = "paid"
	// SettlementRefunded means nobody backed the outcome and every valid wager was refunded
	SettlementRefunded SettlementKind = "refunded"
	// SettlementEmpty means there were no valid wagers to settle
	SettlementEmpty SettlementKind = "empty"
	// SettlementCancelled means the bet was called off and every wager refunded
	SettlementCancelled SettlementKind = "cancelled"
)

// Pools holds the pool sizes of a bet for a declared outcome
type Pools struct {
	TotalPool   int64
	WinningPool int64
	Ratio       float64 // TotalPool / WinningPool, 0 when WinningPool is 0
}

// HasWinners checks if anyone backed the declared outcome
func (p Pools) HasWinners() bool {
	return p.WinningPool > 0
}

// Payout returns floor(amount * TotalPool / WinningPool). The product is taken
// in 128 bits so large pools never wrap. Any remainder stays unallocated and
// the result is never negative.
func (p Pools) Payout(amount int64) int64 {
	if amount <= 0 || p.TotalPool <= 0 || p.WinningPool <= 0 {
		return 0
	}

	hi, lo := bits.Mul64(uint64(amount), uint64(p.TotalPool))
	divisor := uint64(p.WinningPool)
	if hi >= divisor {
		// Quotient does not fit in 64 bits, only possible if amount > WinningPool
		return math.MaxInt64
	}

	quo, _ := bits.Div64(hi, lo, divisor)
	if quo > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(quo)
}

// Settlement summarises the resolution of a bet
type Settlement struct {
	Bet           *Bet
	Kind          SettlementKind
	Outcome       *Outcome
	Cutoff        *time.Time
	Pools         Pools
	WinnerCount   int
	TotalPaid     int64
	TotalRefunded int64
	CutoffRefunds []*Wager
	PayoutDetails map[int64]int64 // user id -> total credited (payouts and refunds)
}

// Unallocated returns the part of the pool kept by floor rounding
func (s *Settlement) Unallocated() int64 {
	if s.Kind != SettlementPaid {
		return 0
	}
	return s.Pools.TotalPool - s.TotalPaid
}

// RefundReport summarises a retroactive cutoff refund run
type RefundReport struct {
	BetsChecked    int
	WagersRefunded int
	TotalRefunded  int64
	ByBet          map[int64]int // bet id -> wagers refunded
}
