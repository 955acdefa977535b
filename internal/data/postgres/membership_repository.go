package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/shared"
	"github.com/virtupay-ledger/internal/platform/persistence"
)

const membershipColumns = `id, organization_id, user_id, role, status, created_at, updated_at`

// MembershipRepository implements the org.Repository interface for PostgreSQL
type MembershipRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewMembershipRepository(logger *slog.Logger, db *persistence.PostgresDB) org.Repository {
	return &MembershipRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *MembershipRepository) WithTx(tx pgx.Tx) org.Repository {
	return &MembershipRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanMembership(row rowScanner) (*org.Membership, error) {
	var m org.Membership
	if err := row.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMembership retrieves a membership by its ID
func (r *MembershipRepository) GetMembership(ctx context.Context, id uuid.UUID) (*org.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM organization_memberships
		WHERE id = $1
	`

	m, err := scanMembership(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, org.ErrMembershipNotFound{MembershipID: id}
		}
		r.logger.Error("Failed to get membership", "membership_id", id.String(), "error", err)
		return nil, shared.PersistenceError("get membership", err)
	}
	return m, nil
}

// GetMembershipByUser resolves the user's membership in an organization
func (r *MembershipRepository) GetMembershipByUser(ctx context.Context, organizationID, userID uuid.UUID) (*org.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM organization_memberships
		WHERE organization_id = $1 AND user_id = $2
	`

	m, err := scanMembership(r.querier.QueryRow(ctx, query, organizationID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, org.ErrMembershipNotFound{}
		}
		r.logger.Error("Failed to get membership by user",
			"organization_id", organizationID.String(),
			"user_id", userID.String(),
			"error", err,
		)
		return nil, shared.PersistenceError("get membership by user", err)
	}
	return m, nil
}
