package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/virtupay-ledger/internal/domain/approval"
	"github.com/virtupay-ledger/internal/domain/shared"
	"github.com/virtupay-ledger/internal/platform/persistence"
)

const approvalColumns = `id, organization_id, card_id, action_type, requested_by, requester_role, approved_by, status,
		reason, decision_comment, action_data, created_at, resolved_at, expires_at, applied_at, version`

// ApprovalRepository implements the approval.Repository interface for PostgreSQL
type ApprovalRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewApprovalRepository(logger *slog.Logger, db *persistence.PostgresDB) approval.Repository {
	return &ApprovalRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *ApprovalRepository) WithTx(tx pgx.Tx) approval.Repository {
	return &ApprovalRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanApproval(row rowScanner) (*approval.Approval, error) {
	var a approval.Approval
	err := row.Scan(
		&a.ID,
		&a.OrganizationID,
		&a.CardID,
		&a.ActionType,
		&a.RequestedBy,
		&a.RequesterRole,
		&a.ApprovedBy,
		&a.Status,
		&a.Reason,
		&a.DecisionComment,
		&a.ActionData,
		&a.CreatedAt,
		&a.ResolvedAt,
		&a.ExpiresAt,
		&a.AppliedAt,
		&a.Version,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create stores a new pending approval request
func (r *ApprovalRepository) Create(ctx context.Context, a *approval.Approval) error {
	query := `
		INSERT INTO card_approvals (` + approvalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	data := a.ActionData
	if len(data) == 0 {
		data = []byte("{}")
	}
	_, err := r.querier.Exec(ctx, query,
		a.ID,
		a.OrganizationID,
		a.CardID,
		a.ActionType,
		a.RequestedBy,
		a.RequesterRole,
		a.ApprovedBy,
		a.Status,
		a.Reason,
		a.DecisionComment,
		data,
		a.CreatedAt,
		a.ResolvedAt,
		a.ExpiresAt,
		a.AppliedAt,
		a.Version,
	)
	if err != nil {
		r.logger.Error("Failed to create approval", "approval_id", a.ID.String(), "error", err)
		return shared.PersistenceError("create approval", err)
	}
	return nil
}

// GetByID retrieves an approval by its ID
func (r *ApprovalRepository) GetByID(ctx context.Context, id uuid.UUID) (*approval.Approval, error) {
	return r.get(ctx, id, "")
}

// LockForUpdate obtains a row lock on the approval so concurrent decisions serialize
func (r *ApprovalRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*approval.Approval, error) {
	return r.get(ctx, id, "FOR UPDATE")
}

func (r *ApprovalRepository) get(ctx context.Context, id uuid.UUID, lock string) (*approval.Approval, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM card_approvals
		WHERE id = $1
		` + lock

	a, err := scanApproval(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, approval.ErrApprovalNotFound{ApprovalID: id}
		}
		r.logger.Error("Failed to get approval", "approval_id", id.String(), "error", err)
		return nil, shared.PersistenceError("get approval", err)
	}
	return a, nil
}

// Update persists a decision or application using optimistic locking on version
func (r *ApprovalRepository) Update(ctx context.Context, a *approval.Approval) error {
	query := `
		UPDATE card_approvals
		SET card_id = $1, approved_by = $2, status = $3, decision_comment = $4, resolved_at = $5, applied_at = $6, version = $7
		WHERE id = $8 AND version = $9
	`

	result, err := r.querier.Exec(ctx, query,
		a.CardID, a.ApprovedBy, a.Status, a.DecisionComment, a.ResolvedAt, a.AppliedAt, a.Version, a.ID, a.Version-1)
	if err != nil {
		r.logger.Error("Failed to update approval", "approval_id", a.ID.String(), "error", err)
		return shared.PersistenceError("update approval", err)
	}
	if result.RowsAffected() == 0 {
		return approval.ErrConcurrentModification{ApprovalID: a.ID}
	}
	return nil
}

// ListByCard returns every approval raised for the card, newest first
func (r *ApprovalRepository) ListByCard(ctx context.Context, cardID uuid.UUID) ([]*approval.Approval, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM card_approvals
		WHERE card_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, "list card approvals", query, cardID)
}

// ListPending returns the organization's requests still decidable at now, oldest first
func (r *ApprovalRepository) ListPending(ctx context.Context, organizationID uuid.UUID, now time.Time) ([]*approval.Approval, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM card_approvals
		WHERE organization_id = $1 AND status = 'PENDING' AND expires_at > $2
		ORDER BY created_at ASC
	`
	return r.list(ctx, "list pending approvals", query, organizationID, now)
}

func (r *ApprovalRepository) list(ctx context.Context, op, query string, args ...any) ([]*approval.Approval, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query approvals", "op", op, "error", err)
		return nil, shared.PersistenceError(op, err)
	}
	defer rows.Close()

	var approvals []*approval.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, shared.PersistenceError(op, err)
		}
		approvals = append(approvals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.PersistenceError(op, err)
	}
	return approvals, nil
}
