package org

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DepartmentStatus marks whether a department is in use
type DepartmentStatus string

const (
	DepartmentStatusActive   DepartmentStatus = "Active"
	DepartmentStatusInactive DepartmentStatus = "Inactive"
)

var (
	ErrInvalidDepartment = errors.New("department needs a name of at most 255 characters and a non-negative budget")
	ErrDepartmentDeleted = errors.New("department is deleted")
	ErrInvalidManager    = errors.New("department manager must be an active member of the organization")
)

// Department groups members of an organization under a budget and an optional manager
type Department struct {
	ID                  uuid.UUID        `json:"id"`
	OrganizationID      uuid.UUID        `json:"organization_id"`
	Name                string           `json:"name"`
	Budget              int64            `json:"budget"` // minor units
	ManagerMembershipID *uuid.UUID       `json:"manager_membership_id,omitempty"`
	Status              DepartmentStatus `json:"status"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	DeletedAt           *time.Time       `json:"deleted_at,omitempty"`
}

// DepartmentChange is a partial update; nil fields are left as they are
type DepartmentChange struct {
	Name                *string
	Budget              *int64
	ManagerMembershipID *uuid.UUID
	Status              *DepartmentStatus
}

func NewDepartment(organizationID uuid.UUID, name string, budget int64, managerMembershipID *uuid.UUID) (*Department, error) {
	now := time.Now().UTC()
	d := &Department{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		Status:         DepartmentStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := d.Apply(DepartmentChange{Name: &name, Budget: &budget, ManagerMembershipID: managerMembershipID}); err != nil {
		return nil, err
	}
	return d, nil
}

// Apply validates the whole change before touching d
func (d *Department) Apply(change DepartmentChange) error {
	if d.DeletedAt != nil {
		return ErrDepartmentDeleted
	}
	name := d.Name
	if change.Name != nil {
		name = strings.TrimSpace(*change.Name)
	}
	if name == "" || len(name) > maxNameLength {
		return ErrInvalidDepartment
	}
	if change.Budget != nil && *change.Budget < 0 {
		return ErrInvalidDepartment
	}
	if s := change.Status; s != nil && *s != DepartmentStatusActive && *s != DepartmentStatusInactive {
		return ErrInvalidDepartment
	}

	d.Name = name
	if change.Budget != nil {
		d.Budget = *change.Budget
	}
	if change.ManagerMembershipID != nil {
		id := *change.ManagerMembershipID
		d.ManagerMembershipID = &id
	}
	if change.Status != nil {
		d.Status = *change.Status
	}
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete soft-deletes the department
func (d *Department) Delete() error {
	if d.DeletedAt != nil {
		return ErrDepartmentDeleted
	}
	now := time.Now().UTC()
	d.Status = DepartmentStatusInactive
	d.DeletedAt = &now
	d.UpdatedAt = now
	return nil
}
