package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/virtupay-ledger/internal/domain/approval"
	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/card"
	"github.com/virtupay-ledger/internal/domain/notification"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// ApprovalRequest asks for permission to perform a card action
type ApprovalRequest struct {
	CardID     *uuid.UUID
	Action     approval.ActionType
	Requester  org.Actor
	ActionData json.RawMessage
	Reason     string
}

// ApplyFunc performs an approved action inside the approval's transaction
type ApplyFunc func(ctx context.Context, tx pgx.Tx, a *approval.Approval) error

// ApprovalWorkflow records approval requests and decisions. It never mutates
// cards itself; callers apply an approved action through Apply.
type ApprovalWorkflow struct {
	db        TxRunner
	approvals approval.Repository
	cards     card.Repository
	members   org.Repository
	events    *EventRecorder
	notifier  notification.Sink
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewApprovalWorkflow(
	db TxRunner,
	approvals approval.Repository,
	cards card.Repository,
	members org.Repository,
	events *EventRecorder,
	notifier notification.Sink,
	ttl time.Duration,
	logger *slog.Logger,
) *ApprovalWorkflow {
	if notifier == nil {
		notifier = notification.NopSink{}
	}
	if ttl <= 0 {
		ttl = approval.DefaultTTL
	}
	return &ApprovalWorkflow{
		db:        db,
		approvals: approvals,
		cards:     cards,
		members:   members,
		events:    events,
		notifier:  notifier,
		ttl:       ttl,
		logger:    logger.With("component", "approval_workflow"),
		now:       time.Now,
	}
}

// IsRequired reports whether role must ask before performing action
func (w *ApprovalWorkflow) IsRequired(action approval.ActionType, role org.Role) bool {
	return approval.IsRequired(action, role)
}

// Requirements explains how role is gated for action, including how long a request stays open
func (w *ApprovalWorkflow) Requirements(action approval.ActionType, role org.Role) (approval.Requirement, error) {
	req, err := approval.RequirementFor(action, role)
	if err != nil {
		return approval.Requirement{}, err
	}
	req.ExpiresAfter = w.ttl
	return req, nil
}

// Request opens a pending approval expiring after the configured TTL
func (w *ApprovalWorkflow) Request(ctx context.Context, req ApprovalRequest) (*approval.Approval, error) {
	if req.CardID != nil {
		cd, err := w.cards.GetByID(ctx, *req.CardID)
		if err != nil {
			return nil, err
		}
		if !req.Requester.BelongsTo(cd.OrganizationID) {
			return nil, shared.ErrUnauthorized
		}
	}
	if _, err := approval.DecodeAction(req.Action, req.ActionData); err != nil {
		return nil, err
	}

	a, err := approval.New(req.Requester, req.CardID, req.Action, req.ActionData, req.Reason, w.now(), w.ttl)
	if err != nil {
		return nil, err
	}

	err = w.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := w.approvals.WithTx(tx).Create(ctx, a); err != nil {
			return err
		}
		return w.events.Record(ctx, tx, w.event(a, audit.ActionApprovalRequested, req.Requester.MembershipID, map[string]any{
			"action_type": string(a.ActionType),
			"reason":      a.Reason,
			"expires_at":  a.ExpiresAt,
		}))
	})
	if err != nil {
		return nil, err
	}

	intent := notification.NewIntent(notification.KindApprovalRequest, a.OrganizationID, a.CardID,
		"Approval requested for "+string(a.ActionType), map[string]any{"requested_by": a.RequestedBy.String()})
	intent.ApprovalID = &a.ID
	intent.CorrelationID = shared.CorrelationIDFromContext(ctx)
	w.notifier.Notify(ctx, intent)

	w.logger.Info("Approval requested", "approval_id", a.ID.String(), "action_type", string(a.ActionType))
	return a, nil
}

// Approve records a positive decision. Expired or decided requests fail with
// approval.ErrNotPending; an approver who may not decide fails with shared.ErrUnauthorized.
func (w *ApprovalWorkflow) Approve(ctx context.Context, id uuid.UUID, approver org.Actor, comment string) (*approval.Approval, error) {
	return w.decide(ctx, id, approver, comment, true)
}

// Reject records a negative decision under the same guards as Approve
func (w *ApprovalWorkflow) Reject(ctx context.Context, id uuid.UUID, approver org.Actor, reason string) (*approval.Approval, error) {
	return w.decide(ctx, id, approver, reason, false)
}

func (w *ApprovalWorkflow) decide(ctx context.Context, id uuid.UUID, approver org.Actor, comment string, approve bool) (*approval.Approval, error) {
	var a *approval.Approval
	err := w.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := w.approvals.WithTx(tx)

		var err error
		a, err = repo.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		decider, err := w.activeActor(ctx, tx, approver)
		if err != nil {
			return err
		}

		now := w.now()
		action := audit.ActionApprovalApproved
		if approve {
			err = a.Approve(decider, comment, now)
		} else {
			action = audit.ActionApprovalRejected
			err = a.Reject(decider, comment, now)
		}
		if err != nil {
			return err
		}

		if err := repo.Update(ctx, a); err != nil {
			return err
		}
		return w.events.Record(ctx, tx, w.event(a, action, decider.MembershipID, map[string]any{
			"action_type": string(a.ActionType),
			"comment":     comment,
		}))
	})
	if err != nil {
		w.logger.Info("Approval decision refused", "approval_id", id.String(), "approver_id", approver.MembershipID.String(), "reason", err.Error())
		return nil, err
	}

	w.notifier.Notify(ctx, w.statusIntent(ctx, a))
	w.logger.Info("Approval decided", "approval_id", a.ID.String(), "status", string(a.Status))
	return a, nil
}

// Apply runs fn for an approved, unexpired and not yet applied request and marks
// it applied, all in one transaction. The actor must belong to the request's organization.
func (w *ApprovalWorkflow) Apply(ctx context.Context, id uuid.UUID, actor org.Actor, fn ApplyFunc) (*approval.Approval, error) {
	var a *approval.Approval
	err := w.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := w.approvals.WithTx(tx)

		var err error
		a, err = repo.LockForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.BelongsTo(a.OrganizationID) {
			return shared.ErrUnauthorized
		}
		if err := a.MarkApplied(w.now()); err != nil {
			return err
		}
		if err := fn(ctx, tx, a); err != nil {
			return err
		}
		if err := repo.Update(ctx, a); err != nil {
			return err
		}
		return w.events.Record(ctx, tx, w.event(a, audit.ActionApprovalApplied, actor.MembershipID, map[string]any{
			"action_type": string(a.ActionType),
		}))
	})
	if err != nil {
		return nil, err
	}
	w.logger.Info("Approval applied", "approval_id", a.ID.String(), "action_type", string(a.ActionType))
	return a, nil
}

// Get returns one approval
func (w *ApprovalWorkflow) Get(ctx context.Context, id uuid.UUID) (*approval.Approval, error) {
	return w.approvals.GetByID(ctx, id)
}

// History lists every approval raised for a card, newest first
func (w *ApprovalWorkflow) History(ctx context.Context, cardID uuid.UUID) ([]*approval.Approval, error) {
	return w.approvals.ListByCard(ctx, cardID)
}

// Pending lists the organization's requests that can still be decided
func (w *ApprovalWorkflow) Pending(ctx context.Context, organizationID uuid.UUID) ([]*approval.Approval, error) {
	return w.approvals.ListPending(ctx, organizationID, w.now())
}

// activeActor resolves the approver's stored membership so a stale or deactivated
// identity cannot decide
func (w *ApprovalWorkflow) activeActor(ctx context.Context, tx pgx.Tx, actor org.Actor) (org.Actor, error) {
	m, err := w.members.WithTx(tx).GetMembership(ctx, actor.MembershipID)
	if err != nil {
		return org.Actor{}, err
	}
	if !m.IsActive() || m.OrganizationID != actor.OrganizationID {
		return org.Actor{}, shared.ErrUnauthorized
	}
	return m.Actor(), nil
}

func (w *ApprovalWorkflow) event(a *approval.Approval, action audit.Action, by uuid.UUID, changes map[string]any) *audit.Event {
	if a.CardID != nil {
		changes["card_id"] = a.CardID.String()
	}
	changes["status"] = string(a.Status)
	return audit.NewEvent(a.OrganizationID, action, audit.ResourceApproval, a.ID, changes).By(by)
}

func (w *ApprovalWorkflow) statusIntent(ctx context.Context, a *approval.Approval) notification.Intent {
	intent := notification.NewIntent(notification.KindStatusChange, a.OrganizationID, a.CardID,
		"Approval "+string(a.Status), map[string]any{
			"action_type": string(a.ActionType),
			"status":      string(a.Status),
		})
	intent.ApprovalID = &a.ID
	intent.CorrelationID = shared.CorrelationIDFromContext(ctx)
	return intent
}
