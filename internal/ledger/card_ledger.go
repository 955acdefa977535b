package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/card"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// CardLedger owns card balances and the card transaction log
type CardLedger struct {
	db     TxRunner
	cards  card.Repository
	ledger card.LedgerRepository
	events *EventRecorder
	logger *slog.Logger
}

func NewCardLedger(db TxRunner, cards card.Repository, ledger card.LedgerRepository, events *EventRecorder, logger *slog.Logger) *CardLedger {
	return &CardLedger{
		db:     db,
		cards:  cards,
		ledger: ledger,
		events: events,
		logger: logger.With("component", "card_ledger"),
	}
}

// GetBalance returns the card's balance
func (l *CardLedger) GetBalance(ctx context.Context, cardID uuid.UUID) (*card.Balance, error) {
	return l.ledger.GetBalance(ctx, cardID)
}

// Initialize creates the card's one balance. A second call fails with ErrBalanceExists.
func (l *CardLedger) Initialize(ctx context.Context, cardID uuid.UUID, initialAmount int64, currency string) (*card.Balance, error) {
	var balance *card.Balance
	err := l.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		balance, err = l.InitializeTx(ctx, tx, cardID, initialAmount, currency)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// InitializeTx is Initialize inside the caller's transaction
func (l *CardLedger) InitializeTx(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, initialAmount int64, currency string) (*card.Balance, error) {
	c, err := l.cards.WithTx(tx).GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if currency == "" {
		currency = c.Currency
	}

	repo := l.ledger.WithTx(tx)
	if _, err := repo.GetBalance(ctx, cardID); err == nil {
		return nil, card.ErrBalanceExists{CardID: cardID}
	} else if !errors.Is(err, card.ErrBalanceNotFound{}) {
		return nil, err
	}

	balance, err := card.NewBalance(cardID, initialAmount, currency)
	if err != nil {
		return nil, err
	}
	if err := repo.CreateBalance(ctx, balance); err != nil {
		return nil, err
	}

	event := audit.NewEvent(c.OrganizationID, audit.ActionCardBalanceCreated, audit.ResourceCardBalance, balance.ID, map[string]any{
		"card_id":        cardID.String(),
		"initial_amount": initialAmount,
		"currency":       balance.Currency,
	})
	if err := l.events.Record(ctx, tx, event); err != nil {
		return nil, err
	}
	l.logger.Info("Card balance initialized", "card_id", cardID.String(), "available", balance.Available)
	return balance, nil
}

// Fund adds to the card's available bucket only
func (l *CardLedger) Fund(ctx context.Context, cardID uuid.UUID, amount int64, reason, referenceID string) (*card.Balance, error) {
	if amount <= 0 {
		return nil, shared.ErrInvalidAmount
	}

	var balance *card.Balance
	err := l.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		c, err := l.cards.WithTx(tx).GetByID(ctx, cardID)
		if err != nil {
			return err
		}
		repo := l.ledger.WithTx(tx)
		balance, err = repo.LockBalanceForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		before := balance.Available
		if err := balance.Fund(amount); err != nil {
			return err
		}
		if err := repo.UpdateBalance(ctx, balance); err != nil {
			return err
		}
		return l.events.Record(ctx, tx, audit.NewEvent(c.OrganizationID, audit.ActionCardBalanceFunded, audit.ResourceCardBalance, balance.ID, map[string]any{
			"card_id":          cardID.String(),
			"amount":           amount,
			"available_before": before,
			"available_after":  balance.Available,
			"reason":           reason,
			"reference_id":     referenceID,
		}))
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("Card balance funded", "card_id", cardID.String(), "amount", amount, "available", balance.Available)
	return balance, nil
}

// ApplyTransaction moves amount between the card's buckets for a status change
func (l *CardLedger) ApplyTransaction(ctx context.Context, cardID uuid.UUID, amount int64, from, to shared.TransactionStatus) (*card.Balance, error) {
	var balance *card.Balance
	err := l.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		balance, err = l.applyLocked(ctx, l.ledger.WithTx(tx), cardID, amount, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// Hold records txn as PENDING and reserves its amount on the card. txn is only
// updated once the transaction commits, so a rerun starts from the caller's copy.
func (l *CardLedger) Hold(ctx context.Context, txn *card.Transaction) (*card.Transaction, error) {
	var held card.Transaction
	err := l.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		held = *txn
		c, err := l.cards.WithTx(tx).GetByID(ctx, held.CardID)
		if err != nil {
			return err
		}
		from, err := held.TransitionTo(shared.TransactionStatusPending, "")
		if err != nil {
			return err
		}

		repo := l.ledger.WithTx(tx)
		balance, err := l.applyLocked(ctx, repo, held.CardID, held.Amount, from, held.Status)
		if err != nil {
			return err
		}
		if err := repo.CreateTransaction(ctx, &held); err != nil {
			return err
		}
		return l.events.Record(ctx, tx, audit.NewEvent(c.OrganizationID, audit.ActionCardTxnCreated, audit.ResourceCardTransaction, held.ID, map[string]any{
			"card_id":   held.CardID.String(),
			"amount":    held.Amount,
			"merchant":  held.Merchant,
			"mcc":       held.MCC,
			"available": balance.Available,
			"reserved":  balance.Reserved,
		}))
	})
	if err != nil {
		return nil, err
	}
	*txn = held
	l.logger.Info("Card transaction held", "card_id", txn.CardID.String(), "card_transaction_id", txn.ID.String(), "amount", txn.Amount)
	return txn, nil
}

// Transition moves a card transaction to a new status and applies the matching
// bucket transfer. It returns the transaction and the status it left.
func (l *CardLedger) Transition(ctx context.Context, transactionID uuid.UUID, to shared.TransactionStatus, reason string) (*card.Transaction, shared.TransactionStatus, error) {
	var (
		txn  *card.Transaction
		from shared.TransactionStatus
	)
	err := l.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := l.ledger.WithTx(tx)

		var err error
		txn, err = repo.LockTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		c, err := l.cards.WithTx(tx).GetByID(ctx, txn.CardID)
		if err != nil {
			return err
		}
		from, err = txn.TransitionTo(to, reason)
		if err != nil {
			return err
		}

		changes := map[string]any{
			"card_id": txn.CardID.String(),
			"amount":  txn.Amount,
			"from":    string(from),
			"to":      string(txn.Status),
		}
		action := audit.ActionCardTxnTransitioned
		if to == shared.TransactionStatusDisputed {
			action = audit.ActionCardTxnDisputed
			changes["dispute_reason"] = reason
		} else {
			balance, err := l.applyLocked(ctx, repo, txn.CardID, txn.Amount, from, to)
			if err != nil {
				return err
			}
			changes["available"] = balance.Available
			changes["reserved"] = balance.Reserved
			changes["used"] = balance.Used
			if reason != "" {
				changes["reason"] = reason
			}
		}

		if err := repo.UpdateTransaction(ctx, txn); err != nil {
			return err
		}
		return l.events.Record(ctx, tx, audit.NewEvent(c.OrganizationID, action, audit.ResourceCardTransaction, txn.ID, changes))
	})
	if err != nil {
		return nil, from, err
	}
	l.logger.Info("Card transaction transitioned", "card_transaction_id", transactionID.String(), "from", string(from), "to", string(to))
	return txn, from, nil
}

// Recalculate rebuilds reserved and used from the transaction log. Available is left as stored.
func (l *CardLedger) Recalculate(ctx context.Context, cardID uuid.UUID) (*card.Balance, error) {
	var balance *card.Balance
	err := l.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		c, err := l.cards.WithTx(tx).GetByID(ctx, cardID)
		if err != nil {
			return err
		}
		repo := l.ledger.WithTx(tx)
		balance, err = repo.LockBalanceForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		reserved, used, err := repo.SumBuckets(ctx, cardID)
		if err != nil {
			return err
		}

		changes := map[string]any{
			"reserved_before": balance.Reserved,
			"used_before":     balance.Used,
			"reserved_after":  reserved,
			"used_after":      used,
		}
		if reserved != balance.Reserved || used != balance.Used {
			l.logger.Warn("Card balance drifted from its log", "card_id", cardID.String(),
				"reserved", balance.Reserved, "reserved_from_log", reserved,
				"used", balance.Used, "used_from_log", used,
			)
		}
		balance.Rebuild(reserved, used)
		if err := repo.UpdateBalance(ctx, balance); err != nil {
			return err
		}
		return l.events.Record(ctx, tx, audit.NewEvent(c.OrganizationID, audit.ActionCardBalanceRebuilt, audit.ResourceCardBalance, balance.ID, changes))
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// GetTransaction returns one card transaction
func (l *CardLedger) GetTransaction(ctx context.Context, id uuid.UUID) (*card.Transaction, error) {
	return l.ledger.GetTransaction(ctx, id)
}

// ListTransactions pages through a card's transactions, newest first
func (l *CardLedger) ListTransactions(ctx context.Context, cardID uuid.UUID, limit, offset int) ([]*card.Transaction, int64, error) {
	return l.ledger.ListTransactions(ctx, cardID, limit, offset)
}

// SpentSince totals what the card has held or captured since the given time
func (l *CardLedger) SpentSince(ctx context.Context, cardID uuid.UUID, since time.Time) (int64, error) {
	return l.ledger.SpentSince(ctx, cardID, since)
}

func (l *CardLedger) applyLocked(ctx context.Context, repo card.LedgerRepository, cardID uuid.UUID, amount int64, from, to shared.TransactionStatus) (*card.Balance, error) {
	balance, err := repo.LockBalanceForUpdate(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := balance.Apply(amount, from, to); err != nil {
		if errors.Is(err, card.ErrInsufficientHold{}) {
			l.logger.Error("Card bucket transfer would go negative", "card_id", cardID.String(), "error", err)
		}
		return nil, err
	}
	if err := repo.UpdateBalance(ctx, balance); err != nil {
		return nil, err
	}
	return balance, nil
}
