package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/virtupay-ledger/internal/domain/card"
	"github.com/virtupay-ledger/internal/domain/shared"
	"github.com/virtupay-ledger/internal/platform/persistence"
)

const cardColumns = `id, organization_id, owner_membership_id, card_number, status, allow_international, blocked_mccs,
		freeze_reason, frozen_at, cancelled_at, currency, version, created_at, updated_at`

const cardLimitColumns = `id, card_id, limit_type, amount, threshold, is_active, created_at, updated_at`

// CardRepository implements the card.Repository interface for PostgreSQL
type CardRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewCardRepository(logger *slog.Logger, db *persistence.PostgresDB) card.Repository {
	return &CardRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *CardRepository) WithTx(tx pgx.Tx) card.Repository {
	return &CardRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanCard(row rowScanner) (*card.Card, error) {
	var c card.Card
	var freezeReason *string
	err := row.Scan(
		&c.ID,
		&c.OrganizationID,
		&c.OwnerMembershipID,
		&c.CardNumber,
		&c.Status,
		&c.AllowInternational,
		&c.BlockedMCCs,
		&freezeReason,
		&c.FrozenAt,
		&c.CancelledAt,
		&c.Currency,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if freezeReason != nil {
		c.FreezeReason = *freezeReason
	}
	return &c, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func mccs(c *card.Card) []string {
	if c.BlockedMCCs == nil {
		return []string{}
	}
	return c.BlockedMCCs
}

// Create stores a new card. The card number is unique across all organizations.
func (r *CardRepository) Create(ctx context.Context, c *card.Card) error {
	query := `
		INSERT INTO virtual_cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.querier.Exec(ctx, query,
		c.ID,
		c.OrganizationID,
		c.OwnerMembershipID,
		c.CardNumber,
		c.Status,
		c.AllowInternational,
		mccs(c),
		nullableString(c.FreezeReason),
		c.FrozenAt,
		c.CancelledAt,
		c.Currency,
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create card", "card_id", c.ID.String(), "error", err)
		return shared.PersistenceError("create card", err)
	}
	return nil
}

// GetByID retrieves a card by its ID
func (r *CardRepository) GetByID(ctx context.Context, id uuid.UUID) (*card.Card, error) {
	return r.get(ctx, id, "")
}

// LockForUpdate obtains a row lock on the card
func (r *CardRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*card.Card, error) {
	return r.get(ctx, id, "FOR UPDATE")
}

func (r *CardRepository) get(ctx context.Context, id uuid.UUID, lock string) (*card.Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM virtual_cards
		WHERE id = $1
		` + lock

	c, err := scanCard(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, card.ErrCardNotFound{CardID: id}
		}
		r.logger.Error("Failed to get card", "card_id", id.String(), "error", err)
		return nil, shared.PersistenceError("get card", err)
	}
	return c, nil
}

// Update persists card settings and status using optimistic locking on version
func (r *CardRepository) Update(ctx context.Context, c *card.Card) error {
	query := `
		UPDATE virtual_cards
		SET status = $1, allow_international = $2, blocked_mccs = $3, freeze_reason = $4,
			frozen_at = $5, cancelled_at = $6, version = $7, updated_at = $8
		WHERE id = $9 AND version = $10
	`

	result, err := r.querier.Exec(ctx, query,
		c.Status,
		c.AllowInternational,
		mccs(c),
		nullableString(c.FreezeReason),
		c.FrozenAt,
		c.CancelledAt,
		c.Version,
		c.UpdatedAt,
		c.ID,
		c.Version-1,
	)
	if err != nil {
		r.logger.Error("Failed to update card", "card_id", c.ID.String(), "error", err)
		return shared.PersistenceError("update card", err)
	}
	if result.RowsAffected() == 0 {
		return card.ErrConcurrentModification{ID: c.ID}
	}
	return nil
}

// ListByOrganization returns a page of the organization's cards, newest first, and the total count
func (r *CardRepository) ListByOrganization(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]*card.Card, int64, error) {
	var total int64
	err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM virtual_cards WHERE organization_id = $1`, organizationID).Scan(&total)
	if err != nil {
		r.logger.Error("Failed to count cards", "organization_id", organizationID.String(), "error", err)
		return nil, 0, shared.PersistenceError("count cards", err)
	}

	query := `
		SELECT ` + cardColumns + `
		FROM virtual_cards
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.querier.Query(ctx, query, organizationID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list cards", "organization_id", organizationID.String(), "error", err)
		return nil, 0, shared.PersistenceError("list cards", err)
	}
	defer rows.Close()

	var cards []*card.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, 0, shared.PersistenceError("scan card", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.PersistenceError("iterate cards", err)
	}
	return cards, total, nil
}

// ListLimits returns the card's active limits
func (r *CardRepository) ListLimits(ctx context.Context, cardID uuid.UUID) ([]*card.Limit, error) {
	query := `
		SELECT ` + cardLimitColumns + `
		FROM card_limits
		WHERE card_id = $1 AND is_active
		ORDER BY created_at ASC
	`

	rows, err := r.querier.Query(ctx, query, cardID)
	if err != nil {
		r.logger.Error("Failed to list card limits", "card_id", cardID.String(), "error", err)
		return nil, shared.PersistenceError("list card limits", err)
	}
	defer rows.Close()

	var limits []*card.Limit
	for rows.Next() {
		var l card.Limit
		if err := rows.Scan(&l.ID, &l.CardID, &l.Type, &l.Amount, &l.Threshold, &l.IsActive, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, shared.PersistenceError("scan card limit", err)
		}
		limits = append(limits, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.PersistenceError("iterate card limits", err)
	}
	return limits, nil
}

// ReplaceLimits deactivates the card's active limits and inserts the new set.
// Run it inside a transaction.
func (r *CardRepository) ReplaceLimits(ctx context.Context, cardID uuid.UUID, limits []*card.Limit) error {
	_, err := r.querier.Exec(ctx, `
		UPDATE card_limits
		SET is_active = FALSE, updated_at = NOW()
		WHERE card_id = $1 AND is_active
	`, cardID)
	if err != nil {
		r.logger.Error("Failed to deactivate card limits", "card_id", cardID.String(), "error", err)
		return shared.PersistenceError("deactivate card limits", err)
	}

	query := `
		INSERT INTO card_limits (` + cardLimitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, l := range limits {
		_, err := r.querier.Exec(ctx, query, l.ID, cardID, l.Type, l.Amount, l.Threshold, l.IsActive, l.CreatedAt, l.UpdatedAt)
		if err != nil {
			r.logger.Error("Failed to insert card limit", "card_id", cardID.String(), "limit_type", string(l.Type), "error", err)
			return shared.PersistenceError("insert card limit", err)
		}
	}
	return nil
}
