package card

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// ErrCardNotFound indicates a missing card
type ErrCardNotFound struct {
	CardID uuid.UUID
}

func (e ErrCardNotFound) Error() string {
	return "card not found: " + e.CardID.String()
}

// Is matches any ErrCardNotFound when the target carries no id
func (e ErrCardNotFound) Is(target error) bool {
	t, ok := target.(ErrCardNotFound)
	if !ok {
		return false
	}
	return t.CardID == uuid.Nil || t.CardID == e.CardID
}

// ErrBalanceNotFound indicates a card without an initialized balance
type ErrBalanceNotFound struct {
	CardID uuid.UUID
}

func (e ErrBalanceNotFound) Error() string {
	return "card balance not found: " + e.CardID.String()
}

// Is matches any ErrBalanceNotFound when the target carries no id
func (e ErrBalanceNotFound) Is(target error) bool {
	t, ok := target.(ErrBalanceNotFound)
	if !ok {
		return false
	}
	return t.CardID == uuid.Nil || t.CardID == e.CardID
}

// ErrBalanceExists indicates a second Initialize for the same card
type ErrBalanceExists struct {
	CardID uuid.UUID
}

func (e ErrBalanceExists) Error() string {
	return "card balance already initialized: " + e.CardID.String()
}

// ErrTransactionNotFound indicates a missing card transaction
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "card transaction not found: " + e.TransactionID.String()
}

// Is matches any ErrTransactionNotFound when the target carries no id
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || t.TransactionID == e.TransactionID
}

// ErrInvalidTransition indicates a status change the card transaction state machine forbids
type ErrInvalidTransition struct {
	From shared.TransactionStatus
	To   shared.TransactionStatus
}

func (e ErrInvalidTransition) Error() string {
	from := string(e.From)
	if from == "" {
		from = "NEW"
	}
	return fmt.Sprintf("invalid card transaction transition %s -> %s", from, e.To)
}

// ErrInsufficientHold indicates a bucket transfer that would drive a bucket negative
type ErrInsufficientHold struct {
	CardID    uuid.UUID
	Amount    int64
	From      shared.TransactionStatus
	To        shared.TransactionStatus
	Available int64
	Reserved  int64
	Used      int64
}

func (e ErrInsufficientHold) Error() string {
	return fmt.Sprintf("insufficient hold on card %s: moving %d for %s -> %s (available %d, reserved %d, used %d)",
		e.CardID, e.Amount, e.From, e.To, e.Available, e.Reserved, e.Used)
}

// Is matches any ErrInsufficientHold
func (e ErrInsufficientHold) Is(target error) bool {
	_, ok := target.(ErrInsufficientHold)
	return ok
}

// ErrConcurrentModification indicates optimistic lock failure on a card or card balance
type ErrConcurrentModification struct {
	ID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for card record: " + e.ID.String()
}

// ErrLimitExceeded indicates a transaction breaching a card limit
type ErrLimitExceeded struct {
	Type      LimitType
	Limit     int64
	Attempted int64
}

func (e ErrLimitExceeded) Error() string {
	return fmt.Sprintf("%s limit of %d exceeded: %d", e.Type, e.Limit, e.Attempted)
}
