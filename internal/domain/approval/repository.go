package approval

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines approval persistence
type Repository interface {
	Create(ctx context.Context, a *Approval) error
	GetByID(ctx context.Context, id uuid.UUID) (*Approval, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Approval, error)
	// Update persists a decision or application using optimistic locking on Version
	Update(ctx context.Context, a *Approval) error
	ListByCard(ctx context.Context, cardID uuid.UUID) ([]*Approval, error)
	// ListPending returns requests still decidable at now, oldest first
	ListPending(ctx context.Context, organizationID uuid.UUID, now time.Time) ([]*Approval, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrApprovalNotFound indicates a missing approval
type ErrApprovalNotFound struct {
	ApprovalID uuid.UUID
}

func (e ErrApprovalNotFound) Error() string {
	return "approval not found: " + e.ApprovalID.String()
}

// Is matches any ErrApprovalNotFound when the target carries no id
func (e ErrApprovalNotFound) Is(target error) bool {
	t, ok := target.(ErrApprovalNotFound)
	if !ok {
		return false
	}
	return t.ApprovalID == uuid.Nil || t.ApprovalID == e.ApprovalID
}

// ErrConcurrentModification indicates optimistic lock failure on an approval
type ErrConcurrentModification struct {
	ApprovalID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for approval: " + e.ApprovalID.String()
}
