package org

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository resolves memberships for authorization
type Repository interface {
	GetMembership(ctx context.Context, id uuid.UUID) (*Membership, error)
	GetMembershipByUser(ctx context.Context, organizationID, userID uuid.UUID) (*Membership, error)
	WithTx(tx pgx.Tx) Repository
}

// DirectoryRepository manages organizations and their member lists
type DirectoryRepository interface {
	CreateOrganization(ctx context.Context, o *Organization) error
	GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error)
	// LockOrganization reads the organization FOR UPDATE, serializing member changes
	LockOrganization(ctx context.Context, id uuid.UUID) (*Organization, error)
	UpdateOrganization(ctx context.Context, o *Organization) error
	CountOrganizations(ctx context.Context) (int64, error)

	CreateMembership(ctx context.Context, m *Membership) error
	// LockMembership reads a member row FOR UPDATE
	LockMembership(ctx context.Context, organizationID, userID uuid.UUID) (*Membership, error)
	UpdateMembership(ctx context.Context, m *Membership) error
	ListMembers(ctx context.Context, organizationID uuid.UUID, includeInactive bool) ([]*Membership, error)

	WithTx(tx pgx.Tx) DirectoryRepository
}

// DepartmentRepository persists departments. Deleted departments are never returned.
type DepartmentRepository interface {
	CreateDepartment(ctx context.Context, d *Department) error
	GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error)
	LockDepartment(ctx context.Context, id uuid.UUID) (*Department, error)
	UpdateDepartment(ctx context.Context, d *Department) error
	ListDepartments(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]*Department, int64, error)
	WithTx(tx pgx.Tx) DepartmentRepository
}

var (
	ErrInvalidOrganization = errors.New("organization name is required and must fit 255 characters, industry 100")
	ErrInvalidMembership   = errors.New("membership needs a user and a known role")
	ErrMembershipInactive  = errors.New("membership is not active")
	ErrLastOwner           = errors.New("an organization must keep at least one active owner")
)

// ErrOrganizationNotFound indicates a missing organization
type ErrOrganizationNotFound struct {
	OrganizationID uuid.UUID
}

func (e ErrOrganizationNotFound) Error() string {
	return "organization not found: " + e.OrganizationID.String()
}

// Is matches any ErrOrganizationNotFound when the target carries no id
func (e ErrOrganizationNotFound) Is(target error) bool {
	t, ok := target.(ErrOrganizationNotFound)
	if !ok {
		return false
	}
	return t.OrganizationID == uuid.Nil || t.OrganizationID == e.OrganizationID
}

// ErrMembershipExists reports a user who already has a membership in the organization
type ErrMembershipExists struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
}

func (e ErrMembershipExists) Error() string {
	return "user " + e.UserID.String() + " is already a member of organization " + e.OrganizationID.String()
}

// Is matches any ErrMembershipExists regardless of ids
func (e ErrMembershipExists) Is(target error) bool {
	_, ok := target.(ErrMembershipExists)
	return ok
}

// ErrMembershipNotFound indicates a missing membership
type ErrMembershipNotFound struct {
	MembershipID uuid.UUID
}

func (e ErrMembershipNotFound) Error() string {
	return "membership not found: " + e.MembershipID.String()
}

// Is matches any ErrMembershipNotFound when the target carries no id
func (e ErrMembershipNotFound) Is(target error) bool {
	t, ok := target.(ErrMembershipNotFound)
	if !ok {
		return false
	}
	return t.MembershipID == uuid.Nil || t.MembershipID == e.MembershipID
}

// ErrDepartmentNotFound indicates a missing or deleted department
type ErrDepartmentNotFound struct {
	DepartmentID uuid.UUID
}

func (e ErrDepartmentNotFound) Error() string {
	return "department not found: " + e.DepartmentID.String()
}

// Is matches any ErrDepartmentNotFound when the target carries no id
func (e ErrDepartmentNotFound) Is(target error) bool {
	t, ok := target.(ErrDepartmentNotFound)
	if !ok {
		return false
	}
	return t.DepartmentID == uuid.Nil || t.DepartmentID == e.DepartmentID
}
