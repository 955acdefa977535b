package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/virtupay-ledger/internal/domain/approval"
	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/card"
	"github.com/virtupay-ledger/internal/domain/notification"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// CardManager issues cards and changes their settings. Each change is locked,
// versioned and audited in one transaction. Deciding whether a change needs an
// approval first is the caller's job.
type CardManager struct {
	db         TxRunner
	cards      card.Repository
	members    org.Repository
	cardLedger *CardLedger
	events     *EventRecorder
	notifier   notification.Sink
	logger     *slog.Logger
}

func NewCardManager(db TxRunner, cards card.Repository, members org.Repository, cardLedger *CardLedger, events *EventRecorder, notifier notification.Sink, logger *slog.Logger) *CardManager {
	if notifier == nil {
		notifier = notification.NopSink{}
	}
	return &CardManager{
		db:         db,
		cards:      cards,
		members:    members,
		cardLedger: cardLedger,
		events:     events,
		notifier:   notifier,
		logger:     logger.With("component", "card_manager"),
	}
}

// Get returns a card of the actor's organization
func (m *CardManager) Get(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Card, error) {
	c, err := m.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if !actor.BelongsTo(c.OrganizationID) {
		return nil, shared.ErrUnauthorized
	}
	return c, nil
}

// List pages through the actor's organization cards, newest first
func (m *CardManager) List(ctx context.Context, actor org.Actor, limit, offset int) ([]*card.Card, int64, error) {
	return m.cards.ListByOrganization(ctx, actor.OrganizationID, limit, offset)
}

// Limits returns the card's active limits
func (m *CardManager) Limits(ctx context.Context, actor org.Actor, cardID uuid.UUID) ([]*card.Limit, error) {
	if _, err := m.Get(ctx, actor, cardID); err != nil {
		return nil, err
	}
	return m.cards.ListLimits(ctx, cardID)
}

// Create issues a card to an active member of the actor's organization and
// initializes its balance in the same transaction
func (m *CardManager) Create(ctx context.Context, actor org.Actor, req approval.CreateCardAction) (*card.Card, error) {
	var c *card.Card
	err := m.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		c, err = m.createTx(ctx, tx, actor, req, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.notifyStatus(ctx, c, "Card issued")
	return c, nil
}

func (m *CardManager) Freeze(ctx context.Context, actor org.Actor, cardID uuid.UUID, reason string) (*card.Card, error) {
	return m.change(ctx, actor, cardID, &approval.FreezeCardAction{Reason: reason})
}

func (m *CardManager) Unfreeze(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Card, error) {
	return m.change(ctx, actor, cardID, unfreezeCard{})
}

func (m *CardManager) Cancel(ctx context.Context, actor org.Actor, cardID uuid.UUID, reason string) (*card.Card, error) {
	return m.change(ctx, actor, cardID, &approval.DeleteCardAction{Reason: reason})
}

func (m *CardManager) SetInternational(ctx context.Context, actor org.Actor, cardID uuid.UUID, enabled bool) (*card.Card, error) {
	return m.change(ctx, actor, cardID, &approval.EnableInternationalAction{Enabled: enabled})
}

func (m *CardManager) ChangeMerchants(ctx context.Context, actor org.Actor, cardID uuid.UUID, blockedMCCs []string) (*card.Card, error) {
	return m.change(ctx, actor, cardID, &approval.ChangeMerchantsAction{BlockedMCCs: blockedMCCs})
}

func (m *CardManager) ChangeLimits(ctx context.Context, actor org.Actor, cardID uuid.UUID, limits []approval.LimitSpec) (*card.Card, error) {
	return m.change(ctx, actor, cardID, &approval.ChangeLimitsAction{Limits: limits})
}

// ApplyApproved returns the ApplyFunc that performs an approved request on behalf of actor
func (m *CardManager) ApplyApproved(actor org.Actor) ApplyFunc {
	return func(ctx context.Context, tx pgx.Tx, a *approval.Approval) error {
		payload, err := approval.DecodeAction(a.ActionType, a.ActionData)
		if err != nil {
			return err
		}
		approvalID := a.ID
		if create, ok := payload.(*approval.CreateCardAction); ok {
			c, err := m.createTx(ctx, tx, actor, *create, &approvalID)
			if err != nil {
				return err
			}
			a.CardID = &c.ID
			return nil
		}
		if a.CardID == nil {
			return fmt.Errorf("approval %s has no card to apply %s to", a.ID, a.ActionType)
		}
		_, err = m.changeTx(ctx, tx, actor, *a.CardID, payload, &approvalID)
		return err
	}
}

// unfreezeCard is the one card change that is never approval gated
type unfreezeCard struct{}

func (m *CardManager) change(ctx context.Context, actor org.Actor, cardID uuid.UUID, payload any) (*card.Card, error) {
	var c *card.Card
	err := m.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		c, err = m.changeTx(ctx, tx, actor, cardID, payload, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.notifyStatus(ctx, c, "Card settings changed")
	return c, nil
}

func (m *CardManager) changeTx(ctx context.Context, tx pgx.Tx, actor org.Actor, cardID uuid.UUID, payload any, approvalID *uuid.UUID) (*card.Card, error) {
	repo := m.cards.WithTx(tx)
	c, err := repo.LockForUpdate(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if !actor.BelongsTo(c.OrganizationID) {
		return nil, shared.ErrUnauthorized
	}

	var (
		action  audit.Action
		changes = map[string]any{"status_before": string(c.Status)}
	)
	switch p := payload.(type) {
	case *approval.FreezeCardAction:
		action, changes["reason"] = audit.ActionCardFrozen, p.Reason
		err = c.Freeze(p.Reason)
	case unfreezeCard:
		action = audit.ActionCardUnfrozen
		err = c.Unfreeze()
	case *approval.DeleteCardAction:
		action, changes["reason"] = audit.ActionCardCancelled, p.Reason
		err = c.Cancel()
	case *approval.EnableInternationalAction:
		action, changes["allow_international"] = audit.ActionCardInternational, p.Enabled
		err = c.SetInternational(p.Enabled)
	case *approval.ChangeMerchantsAction:
		action, changes["blocked_mccs_before"] = audit.ActionCardMerchantsChanged, c.BlockedMCCs
		err = c.SetBlockedMCCs(p.BlockedMCCs)
		changes["blocked_mccs"] = c.BlockedMCCs
	case *approval.ChangeLimitsAction:
		action = audit.ActionCardLimitsChanged
		err = m.replaceLimits(ctx, repo, c, p.Limits, changes)
	default:
		return nil, fmt.Errorf("unsupported card change %T", payload)
	}
	if err != nil {
		return nil, err
	}

	if err := repo.Update(ctx, c); err != nil {
		return nil, err
	}
	changes["status"] = string(c.Status)
	if approvalID != nil {
		changes["approval_id"] = approvalID.String()
	}
	if err := m.events.Record(ctx, tx, audit.NewEvent(c.OrganizationID, action, audit.ResourceCard, c.ID, changes).By(actor.MembershipID)); err != nil {
		return nil, err
	}

	m.logger.Info("Card changed", "card_id", c.ID.String(), "action", string(action), "status", string(c.Status))
	return c, nil
}

func (m *CardManager) replaceLimits(ctx context.Context, repo card.Repository, c *card.Card, specs []approval.LimitSpec, changes map[string]any) error {
	limits := make([]*card.Limit, 0, len(specs))
	for _, spec := range specs {
		l, err := card.NewLimit(c.ID, card.LimitType(spec.Type), spec.Amount, spec.Threshold)
		if err != nil {
			return err
		}
		limits = append(limits, l)
	}
	if err := c.TouchLimits(); err != nil {
		return err
	}
	if err := repo.ReplaceLimits(ctx, c.ID, limits); err != nil {
		return err
	}
	changes["limits"] = specs
	return nil
}

func (m *CardManager) createTx(ctx context.Context, tx pgx.Tx, actor org.Actor, req approval.CreateCardAction, approvalID *uuid.UUID) (*card.Card, error) {
	owner, err := m.members.WithTx(tx).GetMembership(ctx, req.OwnerMembershipID)
	if err != nil {
		return nil, err
	}
	if !owner.IsActive() || !actor.BelongsTo(owner.OrganizationID) {
		return nil, shared.ErrUnauthorized
	}

	c, err := card.NewCard(owner.OrganizationID, owner.ID, req.Currency)
	if err != nil {
		return nil, err
	}
	if err := m.cards.WithTx(tx).Create(ctx, c); err != nil {
		return nil, err
	}
	if _, err := m.cardLedger.InitializeTx(ctx, tx, c.ID, req.InitialAmount, c.Currency); err != nil {
		return nil, err
	}

	changes := map[string]any{
		"owner_membership_id": owner.ID.String(),
		"card_number":         c.MaskedNumber(),
		"initial_amount":      req.InitialAmount,
		"currency":            c.Currency,
	}
	if approvalID != nil {
		changes["approval_id"] = approvalID.String()
	}
	if err := m.events.Record(ctx, tx, audit.NewEvent(c.OrganizationID, audit.ActionCardCreated, audit.ResourceCard, c.ID, changes).By(actor.MembershipID)); err != nil {
		return nil, err
	}
	m.logger.Info("Card issued", "card_id", c.ID.String(), "owner_membership_id", owner.ID.String())
	return c, nil
}

func (m *CardManager) notifyStatus(ctx context.Context, c *card.Card, message string) {
	intent := notification.NewIntent(notification.KindStatusChange, c.OrganizationID, &c.ID, message, map[string]any{
		"status":              string(c.Status),
		"allow_international": c.AllowInternational,
	})
	intent.CorrelationID = shared.CorrelationIDFromContext(ctx)
	m.notifier.Notify(ctx, intent)
}
