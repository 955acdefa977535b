// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository can be rebound to a transaction with WithTx so that balance
// changes, their log entries and the queued audit events commit together.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/virtupay-ledger/internal/domain/account"
	"github.com/virtupay-ledger/internal/domain/shared"
	"github.com/virtupay-ledger/internal/platform/persistence"
)

const accountBalanceColumns = `id, organization_id, membership_id, available_balance, total_funded, total_withdrawn, currency, version, created_at, updated_at`

const accountTransactionColumns = `id, account_balance_id, transaction_type, amount, balance_before, balance_after, status,
		reason, reference_id, related_card_id, related_card_transaction_id, initiated_by, reversal_reason,
		created_at, completed_at, reversed_at`

// rowScanner is satisfied by both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) account.Repository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *AccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return &AccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanAccountBalance(row rowScanner) (*account.Balance, error) {
	var b account.Balance
	err := row.Scan(
		&b.ID,
		&b.OrganizationID,
		&b.MembershipID,
		&b.Available,
		&b.TotalFunded,
		&b.TotalWithdrawn,
		&b.Currency,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanAccountTransaction(row rowScanner) (*account.Transaction, error) {
	var t account.Transaction
	err := row.Scan(
		&t.ID,
		&t.BalanceID,
		&t.Type,
		&t.Amount,
		&t.BalanceBefore,
		&t.BalanceAfter,
		&t.Status,
		&t.Reason,
		&t.ReferenceID,
		&t.RelatedCardID,
		&t.RelatedCardTransactionID,
		&t.InitiatedBy,
		&t.ReversalReason,
		&t.CreatedAt,
		&t.CompletedAt,
		&t.ReversedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateIfNotExists inserts b unless its scope already has a balance
func (r *AccountRepository) CreateIfNotExists(ctx context.Context, b *account.Balance) error {
	query := `
		INSERT INTO account_balances (` + accountBalanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
	`

	_, err := r.querier.Exec(ctx, query,
		b.ID,
		b.OrganizationID,
		b.MembershipID,
		b.Available,
		b.TotalFunded,
		b.TotalWithdrawn,
		b.Currency,
		b.Version,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create account balance", "organization_id", b.OrganizationID.String(), "error", err)
		return shared.PersistenceError("create account balance", err)
	}
	return nil
}

// GetByScope retrieves the balance of an organization or one of its memberships
func (r *AccountRepository) GetByScope(ctx context.Context, scope account.Scope) (*account.Balance, error) {
	return r.getByScope(ctx, scope, "")
}

// LockForUpdate obtains a row lock on the scope's balance.
// This should be used within a transaction.
func (r *AccountRepository) LockForUpdate(ctx context.Context, scope account.Scope) (*account.Balance, error) {
	return r.getByScope(ctx, scope, "FOR UPDATE")
}

func (r *AccountRepository) getByScope(ctx context.Context, scope account.Scope, lock string) (*account.Balance, error) {
	query := `
		SELECT ` + accountBalanceColumns + `
		FROM account_balances
		WHERE organization_id = $1 AND membership_id IS NOT DISTINCT FROM $2
		` + lock

	b, err := scanAccountBalance(r.querier.QueryRow(ctx, query, scope.OrganizationID, scope.MembershipID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{OrganizationID: scope.OrganizationID}
		}
		r.logger.Error("Failed to get account balance", "organization_id", scope.OrganizationID.String(), "error", err)
		return nil, shared.PersistenceError("get account balance", err)
	}
	return b, nil
}

// LockByID locks a balance by its own id
func (r *AccountRepository) LockByID(ctx context.Context, id uuid.UUID) (*account.Balance, error) {
	query := `
		SELECT ` + accountBalanceColumns + `
		FROM account_balances
		WHERE id = $1
		FOR UPDATE
	`

	b, err := scanAccountBalance(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{}
		}
		r.logger.Error("Failed to lock account balance", "id", id.String(), "error", err)
		return nil, shared.PersistenceError("lock account balance", err)
	}
	return b, nil
}

// Update persists the running totals using optimistic locking on version
func (r *AccountRepository) Update(ctx context.Context, b *account.Balance) error {
	query := `
		UPDATE account_balances
		SET available_balance = $1, total_funded = $2, total_withdrawn = $3, version = $4, updated_at = $5
		WHERE id = $6 AND version = $7
	`

	result, err := r.querier.Exec(ctx, query,
		b.Available,
		b.TotalFunded,
		b.TotalWithdrawn,
		b.Version,
		b.UpdatedAt,
		b.ID,
		b.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update account balance", "id", b.ID.String(), "error", err)
		return shared.PersistenceError("update account balance", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrConcurrentModification{BalanceID: b.ID}
	}
	return nil
}

// CreateTransaction appends an entry to the account log
func (r *AccountRepository) CreateTransaction(ctx context.Context, t *account.Transaction) error {
	query := `
		INSERT INTO account_transactions (` + accountTransactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.querier.Exec(ctx, query,
		t.ID,
		t.BalanceID,
		t.Type,
		t.Amount,
		t.BalanceBefore,
		t.BalanceAfter,
		t.Status,
		t.Reason,
		t.ReferenceID,
		t.RelatedCardID,
		t.RelatedCardTransactionID,
		t.InitiatedBy,
		t.ReversalReason,
		t.CreatedAt,
		t.CompletedAt,
		t.ReversedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create account transaction", "id", t.ID.String(), "error", err)
		return shared.PersistenceError("create account transaction", err)
	}
	return nil
}

// LockTransactionForUpdate locks a log entry ahead of a reversal
func (r *AccountRepository) LockTransactionForUpdate(ctx context.Context, id uuid.UUID) (*account.Transaction, error) {
	query := `
		SELECT ` + accountTransactionColumns + `
		FROM account_transactions
		WHERE id = $1
		FOR UPDATE
	`

	t, err := scanAccountTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to lock account transaction", "id", id.String(), "error", err)
		return nil, shared.PersistenceError("lock account transaction", err)
	}
	return t, nil
}

// UpdateTransaction persists a status change of a log entry
func (r *AccountRepository) UpdateTransaction(ctx context.Context, t *account.Transaction) error {
	query := `
		UPDATE account_transactions
		SET status = $1, reversal_reason = $2, completed_at = $3, reversed_at = $4
		WHERE id = $5
	`

	result, err := r.querier.Exec(ctx, query, t.Status, t.ReversalReason, t.CompletedAt, t.ReversedAt, t.ID)
	if err != nil {
		r.logger.Error("Failed to update account transaction", "id", t.ID.String(), "error", err)
		return shared.PersistenceError("update account transaction", err)
	}
	if result.RowsAffected() == 0 {
		return account.ErrTransactionNotFound{TransactionID: t.ID}
	}
	return nil
}

// ListTransactions returns a page of the balance's log, newest first, and the total matching count
func (r *AccountRepository) ListTransactions(ctx context.Context, balanceID uuid.UUID, filter account.ListFilter) ([]*account.Transaction, int64, error) {
	where := []string{"account_balance_id = $1"}
	args := []any{balanceID}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		where = append(where, fmt.Sprintf("transaction_type = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int64
	if err := r.querier.QueryRow(ctx, "SELECT COUNT(*) FROM account_transactions WHERE "+clause, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count account transactions", "balance_id", balanceID.String(), "error", err)
		return nil, 0, shared.PersistenceError("count account transactions", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM account_transactions
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, accountTransactionColumns, clause, len(args)-1, len(args))

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list account transactions", "balance_id", balanceID.String(), "error", err)
		return nil, 0, shared.PersistenceError("list account transactions", err)
	}
	defer rows.Close()

	var txns []*account.Transaction
	for rows.Next() {
		t, err := scanAccountTransaction(rows)
		if err != nil {
			return nil, 0, shared.PersistenceError("scan account transaction", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.PersistenceError("iterate account transactions", err)
	}
	return txns, total, nil
}

// CountActivity returns how many distinct cards completed entries relate to and how many entries are pending
func (r *AccountRepository) CountActivity(ctx context.Context, balanceID uuid.UUID) (int, int, error) {
	query := `
		SELECT
			COUNT(DISTINCT related_card_id) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status = 'PENDING')
		FROM account_transactions
		WHERE account_balance_id = $1
	`

	var distinctCards, pending int
	if err := r.querier.QueryRow(ctx, query, balanceID).Scan(&distinctCards, &pending); err != nil {
		r.logger.Error("Failed to count account activity", "balance_id", balanceID.String(), "error", err)
		return 0, 0, shared.PersistenceError("count account activity", err)
	}
	return distinctCards, pending, nil
}
