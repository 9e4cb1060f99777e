package models

// BalanceChangeReason represents why a balance moved
type BalanceChangeReason string

const (
	BalanceChangeInitial      BalanceChangeReason = "initial"
	BalanceChangeWagerPlaced  BalanceChangeReason = "wager_placed"
	BalanceChangePayout       BalanceChangeReason = "payout"
	BalanceChangeRefund       BalanceChangeReason = "refund"
	BalanceChangeCutoffRefund BalanceChangeReason = "cutoff_refund"
	BalanceChangeDailyClaim   BalanceChangeReason = "daily_claim"
	BalanceChangeAdjustment   BalanceChangeReason = "adjustment"
)
