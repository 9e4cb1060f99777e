package service

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Error categories. Every error returned by a service matches exactly one of
// these with errors.Is, so adapters can map them to user-facing messages.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrStateConflict     = errors.New("state conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrStorage           = errors.New("storage error")
)

// Specific reasons, each wrapping its category
var (
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	ErrBetNotFound  = fmt.Errorf("bet %w", ErrNotFound)

	ErrInvalidAmount  = fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	ErrInvalidOutcome = fmt.Errorf("%w: outcome must be 'A' or 'B'", ErrInvalidInput)
	ErrInvalidBet     = fmt.Errorf("%w: invalid bet", ErrInvalidInput)
	ErrInvalidStatus  = fmt.Errorf("%w: invalid status", ErrInvalidInput)

	ErrBetClosed           = fmt.Errorf("%w: bet is no longer open", ErrStateConflict)
	ErrDeadlinePassed      = fmt.Errorf("%w: betting deadline has passed", ErrStateConflict)
	ErrAlreadyResolved     = fmt.Errorf("%w: bet is already resolved", ErrStateConflict)
	ErrBetCancelled        = fmt.Errorf("%w: bet was cancelled", ErrStateConflict)
	ErrInvalidTransition   = fmt.Errorf("%w: status transition not allowed", ErrStateConflict)
	ErrDailyAlreadyClaimed = fmt.Errorf("%w: daily reward already claimed", ErrStateConflict)
)

// StorageError reports a failed read or write against the ledger store
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps a driver error with the operation that failed
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes every StorageError match ErrStorage
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// insufficientFunds builds the funds error carrying the current balance
func insufficientFunds(balance, amount int64) error {
	return fmt.Errorf("%w: you have %d, need %d", ErrInsufficientFunds, balance, amount)
}

// logStorageFailure logs storage faults at the operation boundary. Domain
// errors are expected outcomes and are left to the caller.
func logStorageFailure(err error, operation string, fields log.Fields) {
	if err == nil || !errors.Is(err, ErrStorage) {
		return
	}
	log.WithFields(fields).WithFields(log.Fields{
		"operation": operation,
	}).WithError(err).Error("Ledger operation failed, transaction rolled back")
}
