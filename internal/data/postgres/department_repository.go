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

const departmentColumns = `id, organization_id, name, budget, manager_membership_id, status, created_at, updated_at, deleted_at`

// DepartmentRepository implements the org.DepartmentRepository interface for PostgreSQL
type DepartmentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewDepartmentRepository(logger *slog.Logger, db *persistence.PostgresDB) org.DepartmentRepository {
	return &DepartmentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *DepartmentRepository) WithTx(tx pgx.Tx) org.DepartmentRepository {
	return &DepartmentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func scanDepartment(row rowScanner) (*org.Department, error) {
	var d org.Department
	err := row.Scan(&d.ID, &d.OrganizationID, &d.Name, &d.Budget, &d.ManagerMembershipID, &d.Status,
		&d.CreatedAt, &d.UpdatedAt, &d.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DepartmentRepository) CreateDepartment(ctx context.Context, d *org.Department) error {
	query := `
		INSERT INTO departments (` + departmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query, d.ID, d.OrganizationID, d.Name, d.Budget, d.ManagerMembershipID, d.Status,
		d.CreatedAt, d.UpdatedAt, d.DeletedAt)
	if err != nil {
		r.logger.Error("Failed to create department", "department_id", d.ID.String(), "error", err)
		return shared.PersistenceError("create department", err)
	}
	return nil
}

func (r *DepartmentRepository) GetDepartment(ctx context.Context, id uuid.UUID) (*org.Department, error) {
	return r.getDepartment(ctx, id, "")
}

func (r *DepartmentRepository) LockDepartment(ctx context.Context, id uuid.UUID) (*org.Department, error) {
	return r.getDepartment(ctx, id, "FOR UPDATE")
}

func (r *DepartmentRepository) getDepartment(ctx context.Context, id uuid.UUID, lock string) (*org.Department, error) {
	query := `
		SELECT ` + departmentColumns + `
		FROM departments
		WHERE id = $1 AND deleted_at IS NULL
		` + lock

	d, err := scanDepartment(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, org.ErrDepartmentNotFound{DepartmentID: id}
		}
		r.logger.Error("Failed to get department", "department_id", id.String(), "error", err)
		return nil, shared.PersistenceError("get department", err)
	}
	return d, nil
}

// UpdateDepartment writes every mutable column, including deleted_at for a soft delete
func (r *DepartmentRepository) UpdateDepartment(ctx context.Context, d *org.Department) error {
	query := `
		UPDATE departments
		SET name = $1, budget = $2, manager_membership_id = $3, status = $4, updated_at = $5, deleted_at = $6
		WHERE id = $7 AND deleted_at IS NULL
	`

	result, err := r.querier.Exec(ctx, query, d.Name, d.Budget, d.ManagerMembershipID, d.Status, d.UpdatedAt, d.DeletedAt, d.ID)
	if err != nil {
		r.logger.Error("Failed to update department", "department_id", d.ID.String(), "error", err)
		return shared.PersistenceError("update department", err)
	}
	if result.RowsAffected() == 0 {
		return org.ErrDepartmentNotFound{DepartmentID: d.ID}
	}
	return nil
}

// ListDepartments pages through the organization's live departments, newest first
func (r *DepartmentRepository) ListDepartments(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]*org.Department, int64, error) {
	var total int64
	err := r.querier.QueryRow(ctx,
		`SELECT COUNT(*) FROM departments WHERE organization_id = $1 AND deleted_at IS NULL`,
		organizationID,
	).Scan(&total)
	if err != nil {
		r.logger.Error("Failed to count departments", "organization_id", organizationID.String(), "error", err)
		return nil, 0, shared.PersistenceError("count departments", err)
	}

	query := `
		SELECT ` + departmentColumns + `
		FROM departments
		WHERE organization_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.querier.Query(ctx, query, organizationID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list departments", "organization_id", organizationID.String(), "error", err)
		return nil, 0, shared.PersistenceError("list departments", err)
	}
	defer rows.Close()

	var departments []*org.Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, 0, shared.PersistenceError("scan department", err)
		}
		departments = append(departments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.PersistenceError("iterate departments", err)
	}
	return departments, total, nil
}
