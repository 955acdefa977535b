package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// DepartmentServiceImpl implements the DepartmentService interface
type DepartmentServiceImpl struct {
	departments Departments
	logger      *slog.Logger
}

// NewDepartmentService creates a new department service
func NewDepartmentService(logger *slog.Logger, departments Departments) DepartmentService {
	return &DepartmentServiceImpl{
		departments: departments,
		logger:      logger,
	}
}

func (s *DepartmentServiceImpl) Create(ctx context.Context, actor org.Actor, name string, budget int64, managerMembershipID *uuid.UUID) (*org.Department, error) {
	if !actor.HasRole(org.RoleOwner) {
		return nil, shared.ErrUnauthorized
	}
	return s.departments.Create(ctx, actor, name, budget, managerMembershipID)
}

func (s *DepartmentServiceImpl) Get(ctx context.Context, actor org.Actor, departmentID uuid.UUID) (*org.Department, error) {
	if !actor.HasRole(org.RoleAuditor) {
		return nil, shared.ErrUnauthorized
	}
	return s.departments.Get(ctx, actor, departmentID)
}

func (s *DepartmentServiceImpl) List(ctx context.Context, actor org.Actor, page, perPage int) ([]*org.Department, int64, error) {
	if !actor.HasRole(org.RoleAuditor) {
		return nil, 0, shared.ErrUnauthorized
	}
	return s.departments.List(ctx, actor, perPage, (page-1)*perPage)
}

func (s *DepartmentServiceImpl) Update(ctx context.Context, actor org.Actor, departmentID uuid.UUID, change org.DepartmentChange) (*org.Department, error) {
	if !actor.HasRole(org.RoleOwner) {
		return nil, shared.ErrUnauthorized
	}
	return s.departments.Update(ctx, actor, departmentID, change)
}

func (s *DepartmentServiceImpl) Delete(ctx context.Context, actor org.Actor, departmentID uuid.UUID) error {
	if !actor.HasRole(org.RoleOwner) {
		return shared.ErrUnauthorized
	}
	if err := s.departments.Delete(ctx, actor, departmentID); err != nil {
		return err
	}
	s.logger.Info("Department deleted", "department_id", departmentID.String(), "membership_id", actor.MembershipID.String())
	return nil
}
