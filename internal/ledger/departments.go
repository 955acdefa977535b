package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// Departments manages an organization's departments. Any member may read them;
// only owners create, change or delete them.
type Departments struct {
	db          TxRunner
	departments org.DepartmentRepository
	members     org.Repository
	events      *EventRecorder
	logger      *slog.Logger
}

func NewDepartments(db TxRunner, departments org.DepartmentRepository, members org.Repository, events *EventRecorder, logger *slog.Logger) *Departments {
	return &Departments{
		db:          db,
		departments: departments,
		members:     members,
		events:      events,
		logger:      logger.With("component", "departments"),
	}
}

// Create opens a department in the actor's organization
func (d *Departments) Create(ctx context.Context, actor org.Actor, name string, budget int64, managerMembershipID *uuid.UUID) (*org.Department, error) {
	if !actor.HasRole(org.RoleOwner) {
		return nil, shared.ErrUnauthorized
	}

	var dept *org.Department
	err := d.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := d.checkManager(ctx, tx, actor.OrganizationID, managerMembershipID); err != nil {
			return err
		}
		var err error
		if dept, err = org.NewDepartment(actor.OrganizationID, name, budget, managerMembershipID); err != nil {
			return err
		}
		if err := d.departments.WithTx(tx).CreateDepartment(ctx, dept); err != nil {
			return err
		}
		return d.events.Record(ctx, tx, audit.NewEvent(actor.OrganizationID, audit.ActionDepartmentCreated, audit.ResourceDepartment, dept.ID, departmentChanges(dept)).By(actor.MembershipID))
	})
	if err != nil {
		return nil, err
	}
	d.logger.Info("Department created", "organization_id", actor.OrganizationID.String(), "department_id", dept.ID.String())
	return dept, nil
}

// Get returns a live department of the actor's organization
func (d *Departments) Get(ctx context.Context, actor org.Actor, departmentID uuid.UUID) (*org.Department, error) {
	dept, err := d.departments.GetDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if !actor.BelongsTo(dept.OrganizationID) {
		// Other tenants' departments look missing
		return nil, org.ErrDepartmentNotFound{DepartmentID: departmentID}
	}
	return dept, nil
}

// List pages through the actor's organization departments, newest first
func (d *Departments) List(ctx context.Context, actor org.Actor, limit, offset int) ([]*org.Department, int64, error) {
	return d.departments.ListDepartments(ctx, actor.OrganizationID, limit, offset)
}

// Update applies a partial change
func (d *Departments) Update(ctx context.Context, actor org.Actor, departmentID uuid.UUID, change org.DepartmentChange) (*org.Department, error) {
	return d.mutate(ctx, actor, departmentID, audit.ActionDepartmentUpdated, func(ctx context.Context, tx pgx.Tx, dept *org.Department) error {
		if err := d.checkManager(ctx, tx, dept.OrganizationID, change.ManagerMembershipID); err != nil {
			return err
		}
		return dept.Apply(change)
	})
}

// Delete soft-deletes the department; it disappears from reads afterwards
func (d *Departments) Delete(ctx context.Context, actor org.Actor, departmentID uuid.UUID) error {
	_, err := d.mutate(ctx, actor, departmentID, audit.ActionDepartmentDeleted, func(_ context.Context, _ pgx.Tx, dept *org.Department) error {
		return dept.Delete()
	})
	return err
}

func (d *Departments) mutate(ctx context.Context, actor org.Actor, departmentID uuid.UUID, action audit.Action, fn func(context.Context, pgx.Tx, *org.Department) error) (*org.Department, error) {
	if !actor.HasRole(org.RoleOwner) {
		return nil, shared.ErrUnauthorized
	}

	var dept *org.Department
	err := d.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := d.departments.WithTx(tx)
		var err error
		if dept, err = repo.LockDepartment(ctx, departmentID); err != nil {
			return err
		}
		if !actor.BelongsTo(dept.OrganizationID) {
			return org.ErrDepartmentNotFound{DepartmentID: departmentID}
		}
		if err := fn(ctx, tx, dept); err != nil {
			return err
		}
		if err := repo.UpdateDepartment(ctx, dept); err != nil {
			return err
		}
		return d.events.Record(ctx, tx, audit.NewEvent(dept.OrganizationID, action, audit.ResourceDepartment, dept.ID, departmentChanges(dept)).By(actor.MembershipID))
	})
	if err != nil {
		return nil, err
	}
	d.logger.Info("Department changed", "department_id", departmentID.String(), "action", string(action))
	return dept, nil
}

// checkManager requires the manager, when given, to be an active member of the organization
func (d *Departments) checkManager(ctx context.Context, tx pgx.Tx, organizationID uuid.UUID, managerMembershipID *uuid.UUID) error {
	if managerMembershipID == nil {
		return nil
	}
	m, err := d.members.WithTx(tx).GetMembership(ctx, *managerMembershipID)
	if errors.Is(err, org.ErrMembershipNotFound{}) {
		return org.ErrInvalidManager
	}
	if err != nil {
		return err
	}
	if m.OrganizationID != organizationID || !m.IsActive() {
		return org.ErrInvalidManager
	}
	return nil
}

func departmentChanges(dept *org.Department) map[string]any {
	changes := map[string]any{
		"name":   dept.Name,
		"budget": dept.Budget,
		"status": string(dept.Status),
	}
	if dept.ManagerMembershipID != nil {
		changes["manager_membership_id"] = dept.ManagerMembershipID.String()
	}
	return changes
}
