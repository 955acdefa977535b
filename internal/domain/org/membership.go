package org

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MembershipStatus defines whether a membership may act
type MembershipStatus string

const (
	MembershipStatusActive   MembershipStatus = "Active"
	MembershipStatusInactive MembershipStatus = "Inactive"
)

// Membership binds a user to an organization with a role. It is the unit of authorization.
type Membership struct {
	ID             uuid.UUID        `json:"id"`
	OrganizationID uuid.UUID        `json:"organization_id"`
	UserID         uuid.UUID        `json:"user_id"`
	Role           Role             `json:"role"`
	Status         MembershipStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewMembership creates an active membership for userID in organizationID
func NewMembership(organizationID, userID uuid.UUID, role Role) (*Membership, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidMembership
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidMembership, role)
	}
	now := time.Now().UTC()
	return &Membership{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		UserID:         userID,
		Role:           role,
		Status:         MembershipStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ChangeRole moves the membership to role
func (m *Membership) ChangeRole(role Role) error {
	if !role.IsValid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidMembership, role)
	}
	if !m.IsActive() {
		return ErrMembershipInactive
	}
	m.Role = role
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// Deactivate removes the membership from its organization. The row is kept so
// that cards and audit events issued under it still resolve.
func (m *Membership) Deactivate() error {
	if !m.IsActive() {
		return ErrMembershipInactive
	}
	m.Status = MembershipStatusInactive
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// Reactivate brings a removed membership back with role
func (m *Membership) Reactivate(role Role) error {
	if !role.IsValid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidMembership, role)
	}
	if m.IsActive() {
		return ErrMembershipExists{OrganizationID: m.OrganizationID, UserID: m.UserID}
	}
	m.Role = role
	m.Status = MembershipStatusActive
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// IsActive reports whether the membership may act in its organization
func (m *Membership) IsActive() bool {
	return m.Status == MembershipStatusActive
}

// Actor returns the identity the ledger core consumes for this membership
func (m *Membership) Actor() Actor {
	return Actor{
		MembershipID:   m.ID,
		OrganizationID: m.OrganizationID,
		Role:           m.Role,
	}
}

// Actor is an authenticated membership reference: who is acting, for which
// organization and with which role.
type Actor struct {
	MembershipID   uuid.UUID `json:"membership_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Role           Role      `json:"role"`
}

// BelongsTo reports whether the actor acts for the given organization
func (a Actor) BelongsTo(organizationID uuid.UUID) bool {
	return a.OrganizationID != uuid.Nil && a.OrganizationID == organizationID
}

// HasRole reports whether the actor holds at least the required role
func (a Actor) HasRole(required Role) bool {
	return AtLeast(a.Role, required)
}

// CanManageMember reports whether the actor may give a member holding current
// the role assigned. Pass an empty assigned role for a removal. Admins and owners
// manage members, and never above their own rank.
func (a Actor) CanManageMember(current, assigned Role) bool {
	if !a.HasRole(RoleAdmin) || !AtLeast(a.Role, current) {
		return false
	}
	return assigned == "" || AtLeast(a.Role, assigned)
}
