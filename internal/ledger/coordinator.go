package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/account"
	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/card"
	"github.com/virtupay-ledger/internal/domain/notification"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// CardTransactionRequest describes a card spend to authorize
type CardTransactionRequest struct {
	CardID        uuid.UUID
	Amount        int64
	Merchant      string
	MCC           string
	ReferenceID   string
	International bool
	InitiatedBy   *uuid.UUID
}

// Coordinator moves money between the account and card ledgers
type Coordinator struct {
	cards      card.Repository
	cardLedger *CardLedger
	accounts   *AccountLedger
	events     *EventRecorder
	notifier   notification.Sink
	logger     *slog.Logger
	now        func() time.Time
}

func NewCoordinator(cards card.Repository, cardLedger *CardLedger, accounts *AccountLedger, events *EventRecorder, notifier notification.Sink, logger *slog.Logger) *Coordinator {
	if notifier == nil {
		notifier = notification.NopSink{}
	}
	return &Coordinator{
		cards:      cards,
		cardLedger: cardLedger,
		accounts:   accounts,
		events:     events,
		notifier:   notifier,
		logger:     logger.With("component", "coordinator"),
		now:        time.Now,
	}
}

// CreateCardTransaction holds the amount on the card and withdraws it from the
// organization's account. The account is debited now, not at completion.
func (c *Coordinator) CreateCardTransaction(ctx context.Context, req CardTransactionRequest) (*card.Transaction, error) {
	if req.Amount <= 0 {
		return nil, shared.ErrInvalidAmount
	}
	logger := c.logger.With("card_id", req.CardID.String())
	if id := shared.CorrelationIDFromContext(ctx); id != "" {
		logger = logger.With("correlation_id", id)
	}

	cd, err := c.cards.GetByID(ctx, req.CardID)
	if err != nil {
		return nil, err
	}
	if err := cd.Authorize(req.MCC, req.International); err != nil {
		logger.Info("Card declined transaction", "reason", err.Error())
		return nil, err
	}

	warnings, err := c.checkLimits(ctx, cd, req.Amount)
	if err != nil {
		logger.Info("Card limit declined transaction", "reason", err.Error())
		return nil, err
	}

	scope := account.OrganizationScope(cd.OrganizationID)
	acct, err := c.accounts.GetOrCreate(ctx, scope, cd.Currency)
	if err != nil {
		return nil, err
	}
	if acct.Available < req.Amount {
		return nil, shared.ErrInsufficientFunds{Required: req.Amount, Available: acct.Available}
	}
	cardBalance, err := c.cardLedger.GetBalance(ctx, cd.ID)
	if err != nil {
		return nil, err
	}
	if cardBalance.Available < req.Amount {
		return nil, shared.ErrInsufficientFunds{Required: req.Amount, Available: cardBalance.Available}
	}

	txn, err := card.NewTransaction(cd.ID, req.Amount, cd.Currency, req.Merchant, req.MCC, req.ReferenceID, req.International)
	if err != nil {
		return nil, err
	}

	saga := NewSaga("create-card-transaction", logger).
		Then(Step{
			Name: "card-hold",
			Do: func(ctx context.Context) error {
				_, err := c.cardLedger.Hold(ctx, txn)
				return err
			},
			Compensate: func(ctx context.Context) error {
				_, _, err := c.cardLedger.Transition(ctx, txn.ID, shared.TransactionStatusReversed, "account withdrawal failed")
				return err
			},
		}).
		Then(Step{
			Name: "account-withdraw",
			Do: func(ctx context.Context) error {
				_, _, err := c.accounts.Withdraw(ctx, scope, Movement{
					Amount:                   req.Amount,
					Reason:                   "Card transaction at " + req.Merchant,
					ReferenceID:              txn.Reference(),
					InitiatedBy:              req.InitiatedBy,
					RelatedCardID:            &cd.ID,
					RelatedCardTransactionID: &txn.ID,
				})
				return err
			},
		})

	if err := saga.Run(ctx); err != nil {
		c.alertIfUnreconciled(ctx, cd, txn, err)
		return nil, err
	}

	for _, w := range warnings {
		c.notifier.Notify(ctx, c.intent(ctx, notification.KindLimitWarning, cd, fmt.Sprintf("%s spend at %d of %d", w.Type, w.Projected, w.Limit), map[string]any{
			"limit_type": string(w.Type),
			"limit":      w.Limit,
			"projected":  w.Projected,
			"threshold":  w.Threshold,
		}))
	}
	c.notifier.Notify(ctx, c.intent(ctx, notification.KindTransaction, cd, "Card transaction created", map[string]any{
		"card_transaction_id": txn.ID.String(),
		"amount":              txn.Amount,
		"merchant":            txn.Merchant,
		"status":              string(txn.Status),
	}))

	logger.Info("Card transaction created", "card_transaction_id", txn.ID.String(), "amount", txn.Amount)
	return txn, nil
}

// CompleteTransaction captures a held amount. The account side is not touched again.
func (c *Coordinator) CompleteTransaction(ctx context.Context, transactionID uuid.UUID) (*card.Transaction, error) {
	txn, _, err := c.cardLedger.Transition(ctx, transactionID, shared.TransactionStatusCompleted, "")
	if err != nil {
		return nil, err
	}
	c.notifyTransaction(ctx, txn, "Card transaction completed")
	return txn, nil
}

// ReverseTransaction releases the card side and credits the amount back to the
// organization's account tagged REVERSE-<reference>.
func (c *Coordinator) ReverseTransaction(ctx context.Context, transactionID uuid.UUID, reason string, initiatedBy *uuid.UUID) (*card.Transaction, error) {
	existing, err := c.cardLedger.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	cd, err := c.cards.GetByID(ctx, existing.CardID)
	if err != nil {
		return nil, err
	}
	logger := c.logger.With("card_id", cd.ID.String(), "card_transaction_id", transactionID.String())

	var reversed *card.Transaction
	saga := NewSaga("reverse-card-transaction", logger).
		Then(Step{
			Name: "card-reverse",
			Do: func(ctx context.Context) error {
				var err error
				reversed, _, err = c.cardLedger.Transition(ctx, transactionID, shared.TransactionStatusReversed, reason)
				return err
			},
		}).
		Then(Step{
			Name: "account-credit",
			Do: func(ctx context.Context) error {
				_, _, err := c.accounts.Fund(ctx, account.OrganizationScope(cd.OrganizationID), Movement{
					Amount:                   reversed.Amount,
					Currency:                 cd.Currency,
					Reason:                   "Reversal: " + reason,
					ReferenceID:              "REVERSE-" + reversed.Reference(),
					InitiatedBy:              initiatedBy,
					RelatedCardID:            &cd.ID,
					RelatedCardTransactionID: &reversed.ID,
				})
				return err
			},
		})

	if err := saga.Run(ctx); err != nil {
		c.alertIfUnreconciled(ctx, cd, existing, err)
		return nil, err
	}

	c.notifyTransaction(ctx, reversed, "Card transaction reversed")
	logger.Info("Card transaction reversed", "amount", reversed.Amount)
	return reversed, nil
}

// DisputeTransaction records a dispute; no balance moves
func (c *Coordinator) DisputeTransaction(ctx context.Context, transactionID uuid.UUID, reason string) (*card.Transaction, error) {
	txn, _, err := c.cardLedger.Transition(ctx, transactionID, shared.TransactionStatusDisputed, reason)
	if err != nil {
		return nil, err
	}
	c.notifyTransaction(ctx, txn, "Card transaction disputed")
	return txn, nil
}

func (c *Coordinator) checkLimits(ctx context.Context, cd *card.Card, amount int64) ([]card.LimitWarning, error) {
	limits, err := c.cards.ListLimits(ctx, cd.ID)
	if err != nil {
		return nil, err
	}
	return card.CheckLimits(limits, amount, c.now(), func(since time.Time) (int64, error) {
		return c.cardLedger.SpentSince(ctx, cd.ID, since)
	})
}

func (c *Coordinator) alertIfUnreconciled(ctx context.Context, cd *card.Card, txn *card.Transaction, err error) {
	if !errors.Is(err, shared.ErrReconciliationRequired) {
		return
	}
	event := audit.NewEvent(cd.OrganizationID, audit.ActionReconciliationAlert, audit.ResourceCardTransaction, txn.ID, map[string]any{
		"card_id": cd.ID.String(),
		"amount":  txn.Amount,
	}).Failed(err)
	if recErr := c.events.RecordAlone(context.WithoutCancel(ctx), event); recErr != nil {
		c.logger.Error("Failed to record reconciliation alert", "card_transaction_id", txn.ID.String(), "error", recErr, "original_error", err)
	}
}

func (c *Coordinator) notifyTransaction(ctx context.Context, txn *card.Transaction, message string) {
	cd, err := c.cards.GetByID(ctx, txn.CardID)
	if err != nil {
		c.logger.Warn("Skipping transaction notification", "card_transaction_id", txn.ID.String(), "error", err)
		return
	}
	c.notifier.Notify(ctx, c.intent(ctx, notification.KindTransaction, cd, message, map[string]any{
		"card_transaction_id": txn.ID.String(),
		"amount":              txn.Amount,
		"status":              string(txn.Status),
	}))
}

func (c *Coordinator) intent(ctx context.Context, kind notification.Kind, cd *card.Card, message string, data map[string]any) notification.Intent {
	cardID := cd.ID
	intent := notification.NewIntent(kind, cd.OrganizationID, &cardID, message, data)
	intent.CorrelationID = shared.CorrelationIDFromContext(ctx)
	return intent
}
