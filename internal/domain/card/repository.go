package card

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines card and card limit persistence
type Repository interface {
	Create(ctx context.Context, c *Card) error
	GetByID(ctx context.Context, id uuid.UUID) (*Card, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Card, error)
	Update(ctx context.Context, c *Card) error
	ListByOrganization(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]*Card, int64, error)

	ListLimits(ctx context.Context, cardID uuid.UUID) ([]*Limit, error)
	// ReplaceLimits deactivates the card's current limits and stores the new set
	ReplaceLimits(ctx context.Context, cardID uuid.UUID, limits []*Limit) error

	WithTx(tx pgx.Tx) Repository
}

// LedgerRepository defines card balance and card transaction persistence
type LedgerRepository interface {
	CreateBalance(ctx context.Context, b *Balance) error
	GetBalance(ctx context.Context, cardID uuid.UUID) (*Balance, error)
	LockBalanceForUpdate(ctx context.Context, cardID uuid.UUID) (*Balance, error)
	// UpdateBalance persists b using optimistic locking on Version
	UpdateBalance(ctx context.Context, b *Balance) error

	CreateTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	LockTransactionForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error)
	UpdateTransaction(ctx context.Context, t *Transaction) error
	ListTransactions(ctx context.Context, cardID uuid.UUID, limit, offset int) ([]*Transaction, int64, error)

	// SumBuckets totals the log into what should be held (PENDING) and what has
	// been captured (COMPLETED, or DISPUTED and never reversed)
	SumBuckets(ctx context.Context, cardID uuid.UUID) (reserved int64, used int64, err error)
	// SpentSince totals holds and captures created at or after since, excluding reversals
	SpentSince(ctx context.Context, cardID uuid.UUID, since time.Time) (int64, error)

	WithTx(tx pgx.Tx) LedgerRepository
}
