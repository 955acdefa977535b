// Package approval models time-boxed approval requests that gate sensitive card actions.
package approval

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// DefaultTTL is how long a request stays decidable
const DefaultTTL = 48 * time.Hour

var (
	ErrNotPending      = errors.New("approval is not pending")
	ErrAlreadyResolved = fmt.Errorf("%w: already resolved", ErrNotPending)
	ErrExpired         = fmt.Errorf("%w: expired", ErrNotPending)
	ErrNotApproved     = errors.New("approval has not been approved")
	ErrAlreadyApplied  = errors.New("approval has already been applied")
)

// ActionType names the card action an approval authorizes
type ActionType string

const (
	ActionFreezeCard          ActionType = "FREEZE_CARD"
	ActionDeleteCard          ActionType = "DELETE_CARD"
	ActionChangeLimits        ActionType = "CHANGE_LIMITS"
	ActionChangeMerchants     ActionType = "CHANGE_MERCHANTS"
	ActionEnableInternational ActionType = "ENABLE_INTERNATIONAL"
	ActionCreateCard          ActionType = "CREATE_CARD"
)

// IsValid reports whether a is a known action
func (a ActionType) IsValid() bool {
	switch a {
	case ActionFreezeCard, ActionDeleteCard, ActionChangeLimits,
		ActionChangeMerchants, ActionEnableInternational, ActionCreateCard:
		return true
	}
	return false
}

// TargetsCard reports whether the action applies to an existing card
func (a ActionType) TargetsCard() bool {
	return a != ActionCreateCard
}

// Status is the stored decision state. Expiry is never stored.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	// StatusExpired is only ever derived at read time
	StatusExpired Status = "EXPIRED"
)

// Approval is a request by one membership to perform a card action, decided by another
type Approval struct {
	ID              uuid.UUID       `json:"id"`
	OrganizationID  uuid.UUID       `json:"organization_id"`
	CardID          *uuid.UUID      `json:"card_id,omitempty"`
	ActionType      ActionType      `json:"action_type"`
	RequestedBy     uuid.UUID       `json:"requested_by_membership_id"`
	RequesterRole   org.Role        `json:"requester_role"`
	ApprovedBy      *uuid.UUID      `json:"approved_by_membership_id,omitempty"`
	Status          Status          `json:"status"`
	Reason          string          `json:"reason,omitempty"`
	DecisionComment string          `json:"decision_comment,omitempty"`
	ActionData      json.RawMessage `json:"action_data,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
	ExpiresAt       time.Time       `json:"expires_at"`
	AppliedAt       *time.Time      `json:"applied_at,omitempty"`
	Version         int             `json:"version"`
}

// New opens a pending request. The requester's role is captured so the decision
// is judged against the role held when asking.
func New(requester org.Actor, cardID *uuid.UUID, action ActionType, data json.RawMessage, reason string, now time.Time, ttl time.Duration) (*Approval, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("unknown approval action %q", action)
	}
	if action.TargetsCard() && cardID == nil {
		return nil, fmt.Errorf("approval action %s requires a card", action)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now = now.UTC()
	return &Approval{
		ID:             uuid.New(),
		OrganizationID: requester.OrganizationID,
		CardID:         cardID,
		ActionType:     action,
		RequestedBy:    requester.MembershipID,
		RequesterRole:  requester.Role,
		Status:         StatusPending,
		Reason:         reason,
		ActionData:     data,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		Version:        1,
	}, nil
}

// IsPending reports whether the approval can still be decided at now
func (a *Approval) IsPending(now time.Time) bool {
	return a.Status == StatusPending && a.ExpiresAt.After(now)
}

// EffectiveStatus reports the status as seen at now, surfacing expiry
func (a *Approval) EffectiveStatus(now time.Time) Status {
	if a.Status == StatusPending && !a.ExpiresAt.After(now) {
		return StatusExpired
	}
	return a.Status
}

// CanDecide reports whether approver may decide this request. The approver must
// act for the same organization, be someone other than the requester, hold at
// least the Approver role and rank at or above the requester.
func (a *Approval) CanDecide(approver org.Actor) bool {
	if !approver.BelongsTo(a.OrganizationID) {
		return false
	}
	if approver.MembershipID == a.RequestedBy {
		return false
	}
	return approver.HasRole(org.RoleApprover) && org.AtLeast(approver.Role, a.RequesterRole)
}

// Approve records a positive decision; it does not apply the action
func (a *Approval) Approve(approver org.Actor, comment string, now time.Time) error {
	return a.decide(approver, StatusApproved, comment, now)
}

// Reject records a negative decision
func (a *Approval) Reject(approver org.Actor, reason string, now time.Time) error {
	return a.decide(approver, StatusRejected, reason, now)
}

func (a *Approval) decide(approver org.Actor, to Status, comment string, now time.Time) error {
	switch a.EffectiveStatus(now) {
	case StatusPending:
	case StatusExpired:
		return ErrExpired
	default:
		return ErrAlreadyResolved
	}
	if !a.CanDecide(approver) {
		return shared.ErrUnauthorized
	}
	resolved := now.UTC()
	approverID := approver.MembershipID
	a.Status = to
	a.ApprovedBy = &approverID
	a.DecisionComment = comment
	a.ResolvedAt = &resolved
	a.Version++
	return nil
}

// MarkApplied records that the approved action took effect. An approval decided
// just before expiry can no longer be applied once expiresAt has passed.
func (a *Approval) MarkApplied(now time.Time) error {
	if a.Status != StatusApproved {
		return ErrNotApproved
	}
	if a.AppliedAt != nil {
		return ErrAlreadyApplied
	}
	if !a.ExpiresAt.After(now) {
		return ErrExpired
	}
	applied := now.UTC()
	a.AppliedAt = &applied
	a.Version++
	return nil
}
