package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/shared"
	"github.com/virtupay-ledger/internal/platform/persistence"
)

const organizationColumns = `id, name, industry, status, created_at, updated_at`

// OrganizationRepository implements the org.DirectoryRepository interface for PostgreSQL
type OrganizationRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewOrganizationRepository(logger *slog.Logger, db *persistence.PostgresDB) org.DirectoryRepository {
	return &OrganizationRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *OrganizationRepository) WithTx(tx pgx.Tx) org.DirectoryRepository {
	return &OrganizationRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanOrganization(row rowScanner) (*org.Organization, error) {
	var o org.Organization
	if err := row.Scan(&o.ID, &o.Name, &o.Industry, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrganizationRepository) CreateOrganization(ctx context.Context, o *org.Organization) error {
	query := `
		INSERT INTO organizations (` + organizationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query, o.ID, o.Name, o.Industry, o.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create organization", "organization_id", o.ID.String(), "error", err)
		return shared.PersistenceError("create organization", err)
	}
	return nil
}

func (r *OrganizationRepository) GetOrganization(ctx context.Context, id uuid.UUID) (*org.Organization, error) {
	return r.getOrganization(ctx, id, "")
}

func (r *OrganizationRepository) LockOrganization(ctx context.Context, id uuid.UUID) (*org.Organization, error) {
	return r.getOrganization(ctx, id, "FOR UPDATE")
}

func (r *OrganizationRepository) getOrganization(ctx context.Context, id uuid.UUID, lock string) (*org.Organization, error) {
	query := `
		SELECT ` + organizationColumns + `
		FROM organizations
		WHERE id = $1
		` + lock

	o, err := scanOrganization(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, org.ErrOrganizationNotFound{OrganizationID: id}
		}
		r.logger.Error("Failed to get organization", "organization_id", id.String(), "error", err)
		return nil, shared.PersistenceError("get organization", err)
	}
	return o, nil
}

func (r *OrganizationRepository) UpdateOrganization(ctx context.Context, o *org.Organization) error {
	query := `
		UPDATE organizations
		SET name = $1, industry = $2, status = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.querier.Exec(ctx, query, o.Name, o.Industry, o.Status, o.UpdatedAt, o.ID)
	if err != nil {
		r.logger.Error("Failed to update organization", "organization_id", o.ID.String(), "error", err)
		return shared.PersistenceError("update organization", err)
	}
	if result.RowsAffected() == 0 {
		return org.ErrOrganizationNotFound{OrganizationID: o.ID}
	}
	return nil
}

func (r *OrganizationRepository) CountOrganizations(ctx context.Context) (int64, error) {
	var count int64
	if err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&count); err != nil {
		r.logger.Error("Failed to count organizations", "error", err)
		return 0, shared.PersistenceError("count organizations", err)
	}
	return count, nil
}

// CreateMembership inserts m. A second membership for the same user and
// organization is reported as ErrMembershipExists.
func (r *OrganizationRepository) CreateMembership(ctx context.Context, m *org.Membership) error {
	query := `
		INSERT INTO organization_memberships (` + membershipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.querier.Exec(ctx, query, m.ID, m.OrganizationID, m.UserID, m.Role, m.Status, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return org.ErrMembershipExists{OrganizationID: m.OrganizationID, UserID: m.UserID}
		}
		r.logger.Error("Failed to create membership",
			"organization_id", m.OrganizationID.String(),
			"user_id", m.UserID.String(),
			"error", err,
		)
		return shared.PersistenceError("create membership", err)
	}
	return nil
}

func (r *OrganizationRepository) LockMembership(ctx context.Context, organizationID, userID uuid.UUID) (*org.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM organization_memberships
		WHERE organization_id = $1 AND user_id = $2
		FOR UPDATE
	`

	m, err := scanMembership(r.querier.QueryRow(ctx, query, organizationID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, org.ErrMembershipNotFound{}
		}
		r.logger.Error("Failed to lock membership",
			"organization_id", organizationID.String(),
			"user_id", userID.String(),
			"error", err,
		)
		return nil, shared.PersistenceError("lock membership", err)
	}
	return m, nil
}

func (r *OrganizationRepository) UpdateMembership(ctx context.Context, m *org.Membership) error {
	query := `
		UPDATE organization_memberships
		SET role = $1, status = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query, m.Role, m.Status, m.UpdatedAt, m.ID)
	if err != nil {
		r.logger.Error("Failed to update membership", "membership_id", m.ID.String(), "error", err)
		return shared.PersistenceError("update membership", err)
	}
	if result.RowsAffected() == 0 {
		return org.ErrMembershipNotFound{MembershipID: m.ID}
	}
	return nil
}

// ListMembers returns the organization's memberships, oldest first
func (r *OrganizationRepository) ListMembers(ctx context.Context, organizationID uuid.UUID, includeInactive bool) ([]*org.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM organization_memberships
		WHERE organization_id = $1 AND ($2 OR status = 'Active')
		ORDER BY created_at ASC
	`

	rows, err := r.querier.Query(ctx, query, organizationID, includeInactive)
	if err != nil {
		r.logger.Error("Failed to list members", "organization_id", organizationID.String(), "error", err)
		return nil, shared.PersistenceError("list members", err)
	}
	defer rows.Close()

	var members []*org.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, shared.PersistenceError("scan membership", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.PersistenceError("iterate members", err)
	}
	return members, nil
}
