package approval

import (
	"errors"
	"time"

	"github.com/virtupay-ledger/internal/domain/org"
)

// ErrUnknownAction rejects an action type outside the known set
var ErrUnknownAction = errors.New("unknown approval action")

// unilateral lists, per action, the roles that may act without an approval.
// Actions absent from the table always require one; nil means never.
var unilateral = map[ActionType][]org.Role{
	ActionDeleteCard:          {},
	ActionFreezeCard:          {org.RoleOwner},
	ActionChangeLimits:        {org.RoleOwner, org.RoleAdmin},
	ActionEnableInternational: {org.RoleOwner, org.RoleAdmin},
	ActionChangeMerchants:     nil,
	ActionCreateCard:          nil,
}

var descriptions = map[ActionType]string{
	ActionDeleteCard:          "Cancel a card permanently. Always needs a second member's approval.",
	ActionFreezeCard:          "Block all spending on a card until it is unfrozen.",
	ActionChangeLimits:        "Replace the card's per-transaction, daily and monthly limits.",
	ActionEnableInternational: "Allow or block spending outside the card's home country.",
	ActionChangeMerchants:     "Replace the card's blocked merchant category codes.",
	ActionCreateCard:          "Issue a new card to a member and fund its balance.",
}

// IsRequired reports whether actorRole must obtain an approval before performing action
func IsRequired(action ActionType, actorRole org.Role) bool {
	roles, ok := unilateral[action]
	if !ok {
		return true
	}
	if roles == nil {
		return false
	}
	for _, r := range roles {
		if r == actorRole {
			return false
		}
	}
	return true
}

// Requirement describes how an action is gated for one requester role
type Requirement struct {
	Action ActionType
	// Required is false when the role may act directly
	Required bool
	// DirectRoles may act without an approval; nil means every role may
	DirectRoles []org.Role
	// DeciderRole is the lowest role that may approve a request from this role
	DeciderRole  org.Role
	Description  string
	ExpiresAfter time.Duration
}

// RequirementFor explains the gating of action for actorRole. ExpiresAfter is left
// for the caller, which owns the approval TTL.
func RequirementFor(action ActionType, actorRole org.Role) (Requirement, error) {
	if !action.IsValid() {
		return Requirement{}, ErrUnknownAction
	}
	decider := org.RoleApprover
	if org.AtLeast(actorRole, decider) {
		decider = actorRole
	}
	return Requirement{
		Action:      action,
		Required:    IsRequired(action, actorRole),
		DirectRoles: unilateral[action],
		DeciderRole: decider,
		Description: descriptions[action],
	}, nil
}
