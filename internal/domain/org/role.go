// Package org models organizations, memberships and the role hierarchy
// used to authorize card actions and approval decisions.
package org

import "fmt"

// Role is an organization-level role held by a membership
type Role string

const (
	RoleOwner    Role = "Owner"
	RoleAdmin    Role = "Admin"
	RoleApprover Role = "Approver"
	RoleViewer   Role = "Viewer"
	RoleAuditor  Role = "Auditor"
)

var roleRank = map[Role]int{
	RoleOwner:    5,
	RoleAdmin:    4,
	RoleApprover: 3,
	RoleViewer:   2,
	RoleAuditor:  1,
}

// Rank returns the role's position in the hierarchy; unknown roles rank 0
func (r Role) Rank() int {
	return roleRank[r]
}

// IsValid reports whether r is one of the known roles
func (r Role) IsValid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether actual sits at or above required in the hierarchy.
// An unknown actual role is never sufficient.
func AtLeast(actual, required Role) bool {
	rank := actual.Rank()
	return rank > 0 && rank >= required.Rank()
}

// ParseRole converts a stored or transported role name into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("unknown organization role %q", s)
	}
	return r, nil
}
