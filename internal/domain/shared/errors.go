package shared

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidCurrency = errors.New("currency must be a 3-letter code")
	ErrUnauthorized    = errors.New("actor is not authorized for this action")
	ErrPersistence     = errors.New("persistence failure")

	// ErrReconciliationRequired marks money that is out of sync between the account
	// and card ledgers after a failed compensation.
	ErrReconciliationRequired = errors.New("reconciliation required between account and card ledgers")
)

// ErrInsufficientFunds reports a debit larger than the available balance
type ErrInsufficientFunds struct {
	Required  int64
	Available int64
}

func (e ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: required %d, available %d", e.Required, e.Available)
}

// Is matches any ErrInsufficientFunds regardless of amounts
func (e ErrInsufficientFunds) Is(target error) bool {
	_, ok := target.(ErrInsufficientFunds)
	return ok
}

// ErrReconciliation carries the step that failed and the compensation that could not undo it
type ErrReconciliation struct {
	Operation       string
	Cause           error
	CompensationErr error
}

func (e ErrReconciliation) Error() string {
	return fmt.Sprintf("%s: %s failed (%v) and compensation failed (%v)",
		ErrReconciliationRequired.Error(), e.Operation, e.Cause, e.CompensationErr)
}

func (e ErrReconciliation) Unwrap() []error {
	return []error{ErrReconciliationRequired, e.Cause}
}

// PersistenceError wraps a storage failure so callers can branch on ErrPersistence
func PersistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
