package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/virtupay-ledger/internal/domain/account"
	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// Movement describes one credit or debit of an account balance
type Movement struct {
	Amount                   int64
	Currency                 string // Used only when the balance is created by this movement
	Reason                   string
	ReferenceID              string
	InitiatedBy              *uuid.UUID
	RelatedCardID            *uuid.UUID
	RelatedCardTransactionID *uuid.UUID
}

func (m Movement) tag(t *account.Transaction) {
	t.Reason = m.Reason
	t.ReferenceID = m.ReferenceID
	t.InitiatedBy = m.InitiatedBy
	t.RelatedCardID = m.RelatedCardID
	t.RelatedCardTransactionID = m.RelatedCardTransactionID
}

// AccountLedger owns organization master balances and their transaction log
type AccountLedger struct {
	db       TxRunner
	accounts account.Repository
	events   *EventRecorder
	logger   *slog.Logger
}

func NewAccountLedger(db TxRunner, accounts account.Repository, events *EventRecorder, logger *slog.Logger) *AccountLedger {
	return &AccountLedger{
		db:       db,
		accounts: accounts,
		events:   events,
		logger:   logger.With("component", "account_ledger"),
	}
}

// GetOrCreate returns the scope's balance, creating a zero balance on first use
func (l *AccountLedger) GetOrCreate(ctx context.Context, scope account.Scope, currency string) (*account.Balance, error) {
	b, err := l.accounts.GetByScope(ctx, scope)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, account.ErrAccountNotFound{}) {
		return nil, err
	}

	fresh, err := account.NewBalance(scope, currency)
	if err != nil {
		return nil, err
	}
	if err := l.accounts.CreateIfNotExists(ctx, fresh); err != nil {
		return nil, err
	}
	l.logger.Info("Account balance ready", "organization_id", scope.OrganizationID.String(), "currency", fresh.Currency)
	return l.accounts.GetByScope(ctx, scope)
}

// Fund credits the scope's balance and logs a FUNDING entry in one transaction
func (l *AccountLedger) Fund(ctx context.Context, scope account.Scope, m Movement) (*account.Balance, *account.Transaction, error) {
	if m.Amount <= 0 {
		return nil, nil, shared.ErrInvalidAmount
	}

	var (
		balance *account.Balance
		entry   *account.Transaction
	)
	err := l.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := l.accounts.WithTx(tx)

		fresh, err := account.NewBalance(scope, m.Currency)
		if err != nil {
			return err
		}
		if err := repo.CreateIfNotExists(ctx, fresh); err != nil {
			return err
		}

		balance, err = repo.LockForUpdate(ctx, scope)
		if err != nil {
			return err
		}
		entry, err = account.FundBalance(balance, m.Amount)
		if err != nil {
			return err
		}
		m.tag(entry)

		return l.persist(ctx, tx, repo, balance, entry, audit.ActionAccountFunded, m.InitiatedBy)
	})
	if err != nil {
		l.logger.Warn("Funding failed", "organization_id", scope.OrganizationID.String(), "amount", m.Amount, "error", err)
		return nil, nil, err
	}

	l.logger.Info("Account funded", "balance_id", balance.ID.String(), "amount", m.Amount, "available", balance.Available)
	return balance, entry, nil
}

// Withdraw debits the scope's balance and logs a WITHDRAWAL entry in one transaction.
// Insufficient funds leave the balance untouched.
func (l *AccountLedger) Withdraw(ctx context.Context, scope account.Scope, m Movement) (*account.Balance, *account.Transaction, error) {
	if m.Amount <= 0 {
		return nil, nil, shared.ErrInvalidAmount
	}

	var (
		balance *account.Balance
		entry   *account.Transaction
	)
	err := l.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := l.accounts.WithTx(tx)

		var err error
		balance, err = repo.LockForUpdate(ctx, scope)
		if err != nil {
			return err
		}
		entry, err = account.WithdrawBalance(balance, m.Amount)
		if err != nil {
			return err
		}
		m.tag(entry)

		return l.persist(ctx, tx, repo, balance, entry, audit.ActionAccountWithdrawn, m.InitiatedBy)
	})
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientFunds{}) {
			l.logger.Info("Withdrawal declined", "organization_id", scope.OrganizationID.String(), "amount", m.Amount, "reason", err.Error())
		} else {
			l.logger.Warn("Withdrawal failed", "organization_id", scope.OrganizationID.String(), "amount", m.Amount, "error", err)
		}
		return nil, nil, err
	}

	l.logger.Info("Account debited", "balance_id", balance.ID.String(), "amount", m.Amount, "available", balance.Available)
	return balance, entry, nil
}

// Reverse undoes a completed entry in place and flips it to REVERSED. It reports
// false without error when the entry is missing or already reversed.
func (l *AccountLedger) Reverse(ctx context.Context, transactionID uuid.UUID, reason string, initiatedBy *uuid.UUID) (bool, error) {
	reversed := false
	err := l.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := l.accounts.WithTx(tx)

		entry, err := repo.LockTransactionForUpdate(ctx, transactionID)
		if err != nil {
			if errors.Is(err, account.ErrTransactionNotFound{}) {
				return nil
			}
			return err
		}
		if !entry.IsReversible() {
			return nil
		}

		balance, err := repo.LockByID(ctx, entry.BalanceID)
		if err != nil {
			return err
		}
		before := balance.Available
		if err := balance.Revert(entry.Type, entry.Amount); err != nil {
			return err
		}
		if err := entry.MarkReversed(reason); err != nil {
			return err
		}

		if err := repo.Update(ctx, balance); err != nil {
			return err
		}
		if err := repo.UpdateTransaction(ctx, entry); err != nil {
			return err
		}

		event := audit.NewEvent(balance.OrganizationID, audit.ActionAccountReversed, audit.ResourceAccountTransaction, entry.ID, map[string]any{
			"type":            string(entry.Type),
			"amount":          entry.Amount,
			"balance_before":  before,
			"balance_after":   balance.Available,
			"reversal_reason": reason,
		})
		if initiatedBy != nil {
			event.By(*initiatedBy)
		}
		if err := l.events.Record(ctx, tx, event); err != nil {
			return err
		}
		reversed = true
		return nil
	})
	if err != nil {
		l.logger.Warn("Reversal failed", "transaction_id", transactionID.String(), "error", err)
		return false, err
	}
	if reversed {
		l.logger.Info("Account transaction reversed", "transaction_id", transactionID.String())
	}
	return reversed, nil
}

// Summary aggregates the scope's balance with activity from its log
func (l *AccountLedger) Summary(ctx context.Context, scope account.Scope) (*account.Summary, error) {
	b, err := l.accounts.GetByScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	cards, pending, err := l.accounts.CountActivity(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	return &account.Summary{
		Available:           b.Available,
		TotalFunded:         b.TotalFunded,
		TotalWithdrawn:      b.TotalWithdrawn,
		Currency:            b.Currency,
		DistinctCardsFunded: cards,
		ActiveTransactions:  pending,
	}, nil
}

// ListTransactions pages through the scope's log, newest first
func (l *AccountLedger) ListTransactions(ctx context.Context, scope account.Scope, filter account.ListFilter) ([]*account.Transaction, int64, error) {
	b, err := l.accounts.GetByScope(ctx, scope)
	if err != nil {
		return nil, 0, err
	}
	return l.accounts.ListTransactions(ctx, b.ID, filter)
}

func (l *AccountLedger) persist(ctx context.Context, tx pgx.Tx, repo account.Repository, b *account.Balance, entry *account.Transaction, action audit.Action, initiatedBy *uuid.UUID) error {
	if err := repo.Update(ctx, b); err != nil {
		return err
	}
	if err := repo.CreateTransaction(ctx, entry); err != nil {
		return err
	}

	event := audit.NewEvent(b.OrganizationID, action, audit.ResourceAccountTransaction, entry.ID, map[string]any{
		"balance_id":     b.ID.String(),
		"amount":         entry.Amount,
		"balance_before": entry.BalanceBefore,
		"balance_after":  entry.BalanceAfter,
		"reference_id":   entry.ReferenceID,
	})
	if initiatedBy != nil {
		event.By(*initiatedBy)
	}
	return l.events.Record(ctx, tx, event)
}
