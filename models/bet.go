package models

import (
	"fmt"
	"strings"
	"time"
)

// BetStatus represents the lifecycle state of a bet
type BetStatus string

const (
	BetStatusOpen              BetStatus = "open"
	BetStatusPendingResolution BetStatus = "pending_resolution"
	BetStatusResolved          BetStatus = "resolved"
	BetStatusCancelled         BetStatus = "cancelled"
)

// Outcome is one of the two options of a bet
type Outcome string

const (
	OutcomeA Outcome = "A"
	OutcomeB Outcome = "B"
)

// IsValid checks if the outcome is one of the two option tokens
func (o Outcome) IsValid() bool {
	return o == OutcomeA || o == OutcomeB
}

// ParseOutcome parses a case-insensitive outcome token
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToUpper(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", fmt.Errorf("outcome must be 'A' or 'B', got %q", s)
	}
	return o, nil
}

// Bet represents a two-outcome proposition open for wagering until its deadline
type Bet struct {
	ID          int64      `db:"id"`
	CreatorID   int64      `db:"creator_id"`
	Description string     `db:"description"`
	OptionA     string     `db:"option_a"`
	OptionB     string     `db:"option_b"`
	Deadline    time.Time  `db:"deadline"`
	Outcome     *Outcome   `db:"outcome"`
	Status      BetStatus  `db:"status"`
	CutoffAt    *time.Time `db:"cutoff_at"`
	CreatedAt   time.Time  `db:"created_at"`
	ResolvedAt  *time.Time `db:"resolved_at"`
}

// IsOpen checks if the bet is still accepting wagers by status
func (b *Bet) IsOpen() bool {
	return b.Status == BetStatusOpen
}

// IsResolved checks if an outcome has been declared
func (b *Bet) IsResolved() bool {
	return b.Status == BetStatusResolved
}

// IsCancelled checks if the bet was cancelled and refunded
func (b *Bet) IsCancelled() bool {
	return b.Status == BetStatusCancelled
}

// IsExpired checks if the deadline has elapsed at the given time
func (b *Bet) IsExpired(now time.Time) bool {
	return now.After(b.Deadline)
}

// OptionLabel returns the free-text label of an outcome
func (b *Bet) OptionLabel(o Outcome) string {
	switch o {
	case OutcomeA:
		return b.OptionA
	case OutcomeB:
		return b.OptionB
	default:
		return ""
	}
}

// CanTransition checks if moving from one status to another is allowed
func CanTransition(from, to BetStatus) bool {
	switch from {
	case BetStatusOpen:
		return to == BetStatusPendingResolution || to == BetStatusResolved || to == BetStatusCancelled
	case BetStatusPendingResolution:
		return to == BetStatusResolved || to == BetStatusCancelled
	default:
		return false
	}
}
