package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/approval"
	"github.com/virtupay-ledger/internal/domain/card"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/shared"
	"github.com/virtupay-ledger/internal/ledger"
)

// CardServiceImpl implements the CardService interface. A sensitive change is
// applied directly only when the actor holds at least Approver and the policy
// lets their role act alone; otherwise an approval is opened on their behalf.
type CardServiceImpl struct {
	cards      CardManager
	cardLedger CardLedger
	workflow   ApprovalWorkflow
	logger     *slog.Logger
}

// NewCardService creates a new card service
func NewCardService(logger *slog.Logger, cards CardManager, cardLedger CardLedger, workflow ApprovalWorkflow) CardService {
	return &CardServiceImpl{
		cards:      cards,
		cardLedger: cardLedger,
		workflow:   workflow,
		logger:     logger,
	}
}

func (s *CardServiceImpl) Create(ctx context.Context, actor org.Actor, req approval.CreateCardAction, reason string) (*CardResult, error) {
	return s.gated(ctx, actor, nil, approval.ActionCreateCard, &req, reason, func() (*card.Card, error) {
		return s.cards.Create(ctx, actor, req)
	})
}

func (s *CardServiceImpl) Get(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Card, error) {
	if !actor.HasRole(org.RoleAuditor) {
		return nil, shared.ErrUnauthorized
	}
	return s.cards.Get(ctx, actor, cardID)
}

// List returns one page of the organization's cards with the total count
func (s *CardServiceImpl) List(ctx context.Context, actor org.Actor, page, perPage int) ([]*card.Card, int64, error) {
	if !actor.HasRole(org.RoleAuditor) {
		return nil, 0, shared.ErrUnauthorized
	}
	return s.cards.List(ctx, actor, perPage, (page-1)*perPage)
}

func (s *CardServiceImpl) Balance(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Balance, error) {
	if _, err := s.Get(ctx, actor, cardID); err != nil {
		return nil, err
	}
	return s.cardLedger.GetBalance(ctx, cardID)
}

func (s *CardServiceImpl) Limits(ctx context.Context, actor org.Actor, cardID uuid.UUID) ([]*card.Limit, error) {
	if !actor.HasRole(org.RoleAuditor) {
		return nil, shared.ErrUnauthorized
	}
	return s.cards.Limits(ctx, actor, cardID)
}

func (s *CardServiceImpl) Fund(ctx context.Context, actor org.Actor, cardID uuid.UUID, amount int64, reason, referenceID string) (*card.Balance, error) {
	if err := s.authorizeCard(ctx, actor, cardID, org.RoleAdmin); err != nil {
		return nil, err
	}
	return s.cardLedger.Fund(ctx, cardID, amount, reason, referenceID)
}

func (s *CardServiceImpl) Recalculate(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Balance, error) {
	if err := s.authorizeCard(ctx, actor, cardID, org.RoleAdmin); err != nil {
		return nil, err
	}
	return s.cardLedger.Recalculate(ctx, cardID)
}

func (s *CardServiceImpl) Freeze(ctx context.Context, actor org.Actor, cardID uuid.UUID, reason string) (*CardResult, error) {
	payload := &approval.FreezeCardAction{Reason: reason}
	return s.gated(ctx, actor, &cardID, approval.ActionFreezeCard, payload, reason, func() (*card.Card, error) {
		return s.cards.Freeze(ctx, actor, cardID, reason)
	})
}

func (s *CardServiceImpl) Unfreeze(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Card, error) {
	if !actor.HasRole(org.RoleApprover) {
		return nil, shared.ErrUnauthorized
	}
	return s.cards.Unfreeze(ctx, actor, cardID)
}

func (s *CardServiceImpl) Cancel(ctx context.Context, actor org.Actor, cardID uuid.UUID, reason string) (*CardResult, error) {
	payload := &approval.DeleteCardAction{Reason: reason}
	return s.gated(ctx, actor, &cardID, approval.ActionDeleteCard, payload, reason, func() (*card.Card, error) {
		return s.cards.Cancel(ctx, actor, cardID, reason)
	})
}

func (s *CardServiceImpl) SetInternational(ctx context.Context, actor org.Actor, cardID uuid.UUID, enabled bool, reason string) (*CardResult, error) {
	payload := &approval.EnableInternationalAction{Enabled: enabled}
	return s.gated(ctx, actor, &cardID, approval.ActionEnableInternational, payload, reason, func() (*card.Card, error) {
		return s.cards.SetInternational(ctx, actor, cardID, enabled)
	})
}

func (s *CardServiceImpl) ChangeMerchants(ctx context.Context, actor org.Actor, cardID uuid.UUID, blockedMCCs []string, reason string) (*CardResult, error) {
	payload := &approval.ChangeMerchantsAction{BlockedMCCs: blockedMCCs}
	return s.gated(ctx, actor, &cardID, approval.ActionChangeMerchants, payload, reason, func() (*card.Card, error) {
		return s.cards.ChangeMerchants(ctx, actor, cardID, blockedMCCs)
	})
}

func (s *CardServiceImpl) ChangeLimits(ctx context.Context, actor org.Actor, cardID uuid.UUID, limits []approval.LimitSpec, reason string) (*CardResult, error) {
	payload := &approval.ChangeLimitsAction{Limits: limits}
	return s.gated(ctx, actor, &cardID, approval.ActionChangeLimits, payload, reason, func() (*card.Card, error) {
		return s.cards.ChangeLimits(ctx, actor, cardID, limits)
	})
}

// gated applies the change directly or opens an approval for it. Auditors can do neither.
func (s *CardServiceImpl) gated(ctx context.Context, actor org.Actor, cardID *uuid.UUID, action approval.ActionType, payload any, reason string, apply func() (*card.Card, error)) (*CardResult, error) {
	if !actor.HasRole(org.RoleViewer) {
		return nil, shared.ErrUnauthorized
	}

	if actor.HasRole(org.RoleApprover) && !s.workflow.IsRequired(action, actor.Role) {
		c, err := apply()
		if err != nil {
			return nil, err
		}
		return &CardResult{Card: c}, nil
	}

	data, err := approval.EncodeAction(payload)
	if err != nil {
		return nil, err
	}
	a, err := s.workflow.Request(ctx, ledger.ApprovalRequest{
		CardID:     cardID,
		Action:     action,
		Requester:  actor,
		ActionData: data,
		Reason:     reason,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Card change routed to approval",
		"approval_id", a.ID.String(),
		"action_type", string(action),
		"role", string(actor.Role),
	)
	return &CardResult{Approval: a}, nil
}

func (s *CardServiceImpl) authorizeCard(ctx context.Context, actor org.Actor, cardID uuid.UUID, required org.Role) error {
	if !actor.HasRole(required) {
		return shared.ErrUnauthorized
	}
	_, err := s.cards.Get(ctx, actor, cardID)
	return err
}
