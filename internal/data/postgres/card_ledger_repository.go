package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/virtupay-ledger/internal/domain/card"
	"github.com/virtupay-ledger/internal/domain/shared"
	"github.com/virtupay-ledger/internal/platform/persistence"
)

const cardBalanceColumns = `id, card_id, available_balance, reserved_balance, used_balance, currency, version, created_at, updated_at`

const cardTransactionColumns = `id, card_id, amount, currency, merchant, mcc, reference_id, international, status,
		can_be_disputed, dispute_reason, reversal_reason, created_at, completed_at, reversed_at, disputed_at`

// CardLedgerRepository implements the card.LedgerRepository interface for PostgreSQL
type CardLedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewCardLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) card.LedgerRepository {
	return &CardLedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *CardLedgerRepository) WithTx(tx pgx.Tx) card.LedgerRepository {
	return &CardLedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanCardBalance(row rowScanner) (*card.Balance, error) {
	var b card.Balance
	err := row.Scan(&b.ID, &b.CardID, &b.Available, &b.Reserved, &b.Used, &b.Currency, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanCardTransaction(row rowScanner) (*card.Transaction, error) {
	var t card.Transaction
	err := row.Scan(
		&t.ID,
		&t.CardID,
		&t.Amount,
		&t.Currency,
		&t.Merchant,
		&t.MCC,
		&t.ReferenceID,
		&t.International,
		&t.Status,
		&t.CanBeDisputed,
		&t.DisputeReason,
		&t.ReversalReason,
		&t.CreatedAt,
		&t.CompletedAt,
		&t.ReversedAt,
		&t.DisputedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateBalance stores the card's one balance. A second balance for the same
// card is rejected with ErrBalanceExists.
func (r *CardLedgerRepository) CreateBalance(ctx context.Context, b *card.Balance) error {
	query := `
		INSERT INTO card_balances (` + cardBalanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (card_id) DO NOTHING
	`

	result, err := r.querier.Exec(ctx, query,
		b.ID, b.CardID, b.Available, b.Reserved, b.Used, b.Currency, b.Version, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create card balance", "card_id", b.CardID.String(), "error", err)
		return shared.PersistenceError("create card balance", err)
	}
	if result.RowsAffected() == 0 {
		return card.ErrBalanceExists{CardID: b.CardID}
	}
	return nil
}

// GetBalance retrieves a card's balance
func (r *CardLedgerRepository) GetBalance(ctx context.Context, cardID uuid.UUID) (*card.Balance, error) {
	return r.getBalance(ctx, cardID, "")
}

// LockBalanceForUpdate obtains a row lock on the card's balance
func (r *CardLedgerRepository) LockBalanceForUpdate(ctx context.Context, cardID uuid.UUID) (*card.Balance, error) {
	return r.getBalance(ctx, cardID, "FOR UPDATE")
}

func (r *CardLedgerRepository) getBalance(ctx context.Context, cardID uuid.UUID, lock string) (*card.Balance, error) {
	query := `
		SELECT ` + cardBalanceColumns + `
		FROM card_balances
		WHERE card_id = $1
		` + lock

	b, err := scanCardBalance(r.querier.QueryRow(ctx, query, cardID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, card.ErrBalanceNotFound{CardID: cardID}
		}
		r.logger.Error("Failed to get card balance", "card_id", cardID.String(), "error", err)
		return nil, shared.PersistenceError("get card balance", err)
	}
	return b, nil
}

// UpdateBalance persists the three buckets using optimistic locking on version
func (r *CardLedgerRepository) UpdateBalance(ctx context.Context, b *card.Balance) error {
	query := `
		UPDATE card_balances
		SET available_balance = $1, reserved_balance = $2, used_balance = $3, version = $4, updated_at = $5
		WHERE id = $6 AND version = $7
	`

	result, err := r.querier.Exec(ctx, query, b.Available, b.Reserved, b.Used, b.Version, b.UpdatedAt, b.ID, b.Version-1)
	if err != nil {
		r.logger.Error("Failed to update card balance", "card_id", b.CardID.String(), "error", err)
		return shared.PersistenceError("update card balance", err)
	}
	if result.RowsAffected() == 0 {
		return card.ErrConcurrentModification{ID: b.ID}
	}
	return nil
}

// CreateTransaction appends a card transaction to the log
func (r *CardLedgerRepository) CreateTransaction(ctx context.Context, t *card.Transaction) error {
	query := `
		INSERT INTO card_transactions (` + cardTransactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.querier.Exec(ctx, query,
		t.ID,
		t.CardID,
		t.Amount,
		t.Currency,
		t.Merchant,
		t.MCC,
		t.ReferenceID,
		t.International,
		t.Status,
		t.CanBeDisputed,
		t.DisputeReason,
		t.ReversalReason,
		t.CreatedAt,
		t.CompletedAt,
		t.ReversedAt,
		t.DisputedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create card transaction", "id", t.ID.String(), "card_id", t.CardID.String(), "error", err)
		return shared.PersistenceError("create card transaction", err)
	}
	return nil
}

// GetTransaction retrieves a card transaction by its ID
func (r *CardLedgerRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*card.Transaction, error) {
	return r.getTransaction(ctx, id, "")
}

// LockTransactionForUpdate obtains a row lock on a card transaction
func (r *CardLedgerRepository) LockTransactionForUpdate(ctx context.Context, id uuid.UUID) (*card.Transaction, error) {
	return r.getTransaction(ctx, id, "FOR UPDATE")
}

func (r *CardLedgerRepository) getTransaction(ctx context.Context, id uuid.UUID, lock string) (*card.Transaction, error) {
	query := `
		SELECT ` + cardTransactionColumns + `
		FROM card_transactions
		WHERE id = $1
		` + lock

	t, err := scanCardTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, card.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get card transaction", "id", id.String(), "error", err)
		return nil, shared.PersistenceError("get card transaction", err)
	}
	return t, nil
}

// UpdateTransaction persists a status change of a card transaction
func (r *CardLedgerRepository) UpdateTransaction(ctx context.Context, t *card.Transaction) error {
	query := `
		UPDATE card_transactions
		SET status = $1, can_be_disputed = $2, dispute_reason = $3, reversal_reason = $4,
			completed_at = $5, reversed_at = $6, disputed_at = $7
		WHERE id = $8
	`

	result, err := r.querier.Exec(ctx, query,
		t.Status, t.CanBeDisputed, t.DisputeReason, t.ReversalReason, t.CompletedAt, t.ReversedAt, t.DisputedAt, t.ID)
	if err != nil {
		r.logger.Error("Failed to update card transaction", "id", t.ID.String(), "error", err)
		return shared.PersistenceError("update card transaction", err)
	}
	if result.RowsAffected() == 0 {
		return card.ErrTransactionNotFound{TransactionID: t.ID}
	}
	return nil
}

// ListTransactions returns a page of the card's log, newest first, and the total count
func (r *CardLedgerRepository) ListTransactions(ctx context.Context, cardID uuid.UUID, limit, offset int) ([]*card.Transaction, int64, error) {
	var total int64
	err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM card_transactions WHERE card_id = $1`, cardID).Scan(&total)
	if err != nil {
		r.logger.Error("Failed to count card transactions", "card_id", cardID.String(), "error", err)
		return nil, 0, shared.PersistenceError("count card transactions", err)
	}

	query := `
		SELECT ` + cardTransactionColumns + `
		FROM card_transactions
		WHERE card_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.querier.Query(ctx, query, cardID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list card transactions", "card_id", cardID.String(), "error", err)
		return nil, 0, shared.PersistenceError("list card transactions", err)
	}
	defer rows.Close()

	var txns []*card.Transaction
	for rows.Next() {
		t, err := scanCardTransaction(rows)
		if err != nil {
			return nil, 0, shared.PersistenceError("scan card transaction", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.PersistenceError("iterate card transactions", err)
	}
	return txns, total, nil
}

// SumBuckets totals the log into reserved (PENDING) and used (COMPLETED, or
// DISPUTED and never reversed)
func (r *CardLedgerRepository) SumBuckets(ctx context.Context, cardID uuid.UUID) (int64, int64, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = 'PENDING'), 0)::BIGINT,
			COALESCE(SUM(amount) FILTER (WHERE status = 'COMPLETED' OR (status = 'DISPUTED' AND reversed_at IS NULL)), 0)::BIGINT
		FROM card_transactions
		WHERE card_id = $1
	`

	var reserved, used int64
	if err := r.querier.QueryRow(ctx, query, cardID).Scan(&reserved, &used); err != nil {
		r.logger.Error("Failed to sum card transactions", "card_id", cardID.String(), "error", err)
		return 0, 0, shared.PersistenceError("sum card transactions", err)
	}
	return reserved, used, nil
}

// SpentSince totals the card's holds and captures created at or after since.
// A reversal returns the money even if the row was disputed afterwards.
func (r *CardLedgerRepository) SpentSince(ctx context.Context, cardID uuid.UUID, since time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)::BIGINT
		FROM card_transactions
		WHERE card_id = $1 AND created_at >= $2 AND status <> 'REVERSED' AND reversed_at IS NULL
	`

	var spent int64
	if err := r.querier.QueryRow(ctx, query, cardID, since).Scan(&spent); err != nil {
		r.logger.Error("Failed to sum card spend", "card_id", cardID.String(), "error", err)
		return 0, shared.PersistenceError("sum card spend", err)
	}
	return spent, nil
}
