package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/approval"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/shared"
	"github.com/virtupay-ledger/internal/ledger"
)

// ApprovalServiceImpl implements the ApprovalService interface
type ApprovalServiceImpl struct {
	workflow ApprovalWorkflow
	cards    CardManager
	logger   *slog.Logger
}

// NewApprovalService creates a new approval service
func NewApprovalService(logger *slog.Logger, workflow ApprovalWorkflow, cards CardManager) ApprovalService {
	return &ApprovalServiceImpl{
		workflow: workflow,
		cards:    cards,
		logger:   logger,
	}
}

// Request opens an approval explicitly. Any member except an Auditor may ask.
func (s *ApprovalServiceImpl) Request(ctx context.Context, actor org.Actor, cardID *uuid.UUID, action approval.ActionType, data json.RawMessage, reason string) (*approval.Approval, error) {
	if !actor.HasRole(org.RoleViewer) {
		return nil, shared.ErrUnauthorized
	}
	return s.workflow.Request(ctx, ledger.ApprovalRequest{
		CardID:     cardID,
		Action:     action,
		Requester:  actor,
		ActionData: data,
		Reason:     reason,
	})
}

// Approve decides the request and applies it in a second transaction. When the
// application fails the approval stays APPROVED and can be retried with Apply.
func (s *ApprovalServiceImpl) Approve(ctx context.Context, actor org.Actor, approvalID uuid.UUID, comment string) (*approval.Approval, error) {
	if _, err := s.workflow.Approve(ctx, approvalID, actor, comment); err != nil {
		return nil, err
	}
	applied, err := s.workflow.Apply(ctx, approvalID, actor, s.cards.ApplyApproved(actor))
	if err != nil {
		s.logger.Warn("Approved action could not be applied", "approval_id", approvalID.String(), "error", err)
		return nil, fmt.Errorf("approval %s approved but not applied: %w", approvalID, err)
	}
	return applied, nil
}

func (s *ApprovalServiceImpl) Reject(ctx context.Context, actor org.Actor, approvalID uuid.UUID, reason string) (*approval.Approval, error) {
	return s.workflow.Reject(ctx, approvalID, actor, reason)
}

// Apply needs at least Approver
func (s *ApprovalServiceImpl) Apply(ctx context.Context, actor org.Actor, approvalID uuid.UUID) (*approval.Approval, error) {
	if !actor.HasRole(org.RoleApprover) {
		return nil, shared.ErrUnauthorized
	}
	return s.workflow.Apply(ctx, approvalID, actor, s.cards.ApplyApproved(actor))
}

func (s *ApprovalServiceImpl) Get(ctx context.Context, actor org.Actor, approvalID uuid.UUID) (*approval.Approval, error) {
	a, err := s.workflow.Get(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if !actor.HasRole(org.RoleAuditor) || !actor.BelongsTo(a.OrganizationID) {
		return nil, shared.ErrUnauthorized
	}
	return a, nil
}

func (s *ApprovalServiceImpl) Pending(ctx context.Context, actor org.Actor) ([]*approval.Approval, error) {
	if !actor.HasRole(org.RoleAuditor) {
		return nil, shared.ErrUnauthorized
	}
	return s.workflow.Pending(ctx, actor.OrganizationID)
}

// Requirements is readable by any member
func (s *ApprovalServiceImpl) Requirements(_ context.Context, actor org.Actor, action approval.ActionType) (approval.Requirement, error) {
	if !actor.HasRole(org.RoleAuditor) {
		return approval.Requirement{}, shared.ErrUnauthorized
	}
	return s.workflow.Requirements(action, actor.Role)
}

func (s *ApprovalServiceImpl) History(ctx context.Context, actor org.Actor, cardID uuid.UUID) ([]*approval.Approval, error) {
	if !actor.HasRole(org.RoleAuditor) {
		return nil, shared.ErrUnauthorized
	}
	if _, err := s.cards.Get(ctx, actor, cardID); err != nil {
		return nil, err
	}
	return s.workflow.History(ctx, cardID)
}
