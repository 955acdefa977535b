package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// Repository defines account balance and account transaction persistence
type Repository interface {
	// CreateIfNotExists inserts b unless a balance already exists for its scope
	CreateIfNotExists(ctx context.Context, b *Balance) error
	GetByScope(ctx context.Context, scope Scope) (*Balance, error)

	// LockForUpdate acquires a row lock on the scope's balance
	LockForUpdate(ctx context.Context, scope Scope) (*Balance, error)
	LockByID(ctx context.Context, id uuid.UUID) (*Balance, error)

	// Update persists b using optimistic locking on Version
	Update(ctx context.Context, b *Balance) error

	CreateTransaction(ctx context.Context, t *Transaction) error
	LockTransactionForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error)
	UpdateTransaction(ctx context.Context, t *Transaction) error
	ListTransactions(ctx context.Context, balanceID uuid.UUID, filter ListFilter) ([]*Transaction, int64, error)

	// CountActivity returns distinct related cards on completed entries and the number of pending entries
	CountActivity(ctx context.Context, balanceID uuid.UUID) (distinctCards int, pending int, err error)

	WithTx(tx pgx.Tx) Repository
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	BalanceID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for account balance: " + e.BalanceID.String()
}

// ErrAccountNotFound indicates a missing account balance
type ErrAccountNotFound struct {
	OrganizationID uuid.UUID
}

func (e ErrAccountNotFound) Error() string {
	return "account balance not found for organization: " + e.OrganizationID.String()
}

// Is matches any ErrAccountNotFound when the target carries no id
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	return t.OrganizationID == uuid.Nil || t.OrganizationID == e.OrganizationID
}

// ErrTransactionNotFound indicates a missing account transaction
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "account transaction not found: " + e.TransactionID.String()
}

// Is matches any ErrTransactionNotFound when the target carries no id
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || t.TransactionID == e.TransactionID
}

// ErrNotReversible indicates a reversal of an entry that is not COMPLETED
type ErrNotReversible struct {
	TransactionID uuid.UUID
	Status        shared.TransactionStatus
}

func (e ErrNotReversible) Error() string {
	return "account transaction " + e.TransactionID.String() + " cannot be reversed from status " + string(e.Status)
}

// ErrUnknownTransactionType indicates a log entry with an unsupported type
type ErrUnknownTransactionType struct {
	Type TransactionType
}

func (e ErrUnknownTransactionType) Error() string {
	return "unknown account transaction type: " + string(e.Type)
}
