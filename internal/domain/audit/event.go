// Package audit models the append-only audit trail of ledger, card and approval changes.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names a recorded change
type Action string

const (
	ActionAccountFunded        Action = "account.funded"
	ActionAccountWithdrawn     Action = "account.withdrawn"
	ActionAccountReversed      Action = "account.transaction_reversed"
	ActionCardCreated          Action = "card.created"
	ActionCardFrozen           Action = "card.frozen"
	ActionCardUnfrozen         Action = "card.unfrozen"
	ActionCardCancelled        Action = "card.cancelled"
	ActionCardLimitsChanged    Action = "card.limits_changed"
	ActionCardMerchantsChanged Action = "card.merchants_changed"
	ActionCardInternational    Action = "card.international_changed"
	ActionCardBalanceCreated   Action = "card_balance.initialized"
	ActionCardBalanceFunded    Action = "card_balance.funded"
	ActionCardBalanceRebuilt   Action = "card_balance.recalculated"
	ActionCardTxnCreated       Action = "card_transaction.created"
	ActionCardTxnTransitioned  Action = "card_transaction.transitioned"
	ActionCardTxnDisputed      Action = "card_transaction.disputed"
	ActionApprovalRequested    Action = "approval.requested"
	ActionApprovalApproved     Action = "approval.approved"
	ActionApprovalRejected     Action = "approval.rejected"
	ActionApprovalApplied      Action = "approval.applied"
	ActionReconciliationAlert  Action = "ledger.reconciliation_required"
	ActionOrganizationCreated  Action = "organization.created"
	ActionOrganizationUpdated  Action = "organization.updated"
	ActionMemberAdded          Action = "membership.added"
	ActionMemberRoleChanged    Action = "membership.role_changed"
	ActionMemberRemoved        Action = "membership.removed"
	ActionDepartmentCreated    Action = "department.created"
	ActionDepartmentUpdated    Action = "department.updated"
	ActionDepartmentDeleted    Action = "department.deleted"
)

// Resource names the kind of entity an event is about
type Resource string

const (
	ResourceAccount            Resource = "account_balance"
	ResourceAccountTransaction Resource = "account_transaction"
	ResourceCard               Resource = "virtual_card"
	ResourceCardBalance        Resource = "card_balance"
	ResourceCardTransaction    Resource = "card_transaction"
	ResourceApproval           Resource = "card_approval"
	ResourceOrganization       Resource = "organization"
	ResourceMembership         Resource = "organization_membership"
	ResourceDepartment         Resource = "department"
)

// Status records whether the audited change took effect
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Event is one audit trail record
type Event struct {
	ID                uuid.UUID      `json:"id" bson:"_id"`
	OrganizationID    uuid.UUID      `json:"organization_id" bson:"organization_id"`
	ActorMembershipID *uuid.UUID     `json:"actor_membership_id,omitempty" bson:"actor_membership_id,omitempty"`
	Action            Action         `json:"action" bson:"action"`
	Resource          Resource       `json:"resource" bson:"resource"`
	ResourceID        uuid.UUID      `json:"resource_id" bson:"resource_id"`
	Changes           map[string]any `json:"changes,omitempty" bson:"changes,omitempty"`
	Status            Status         `json:"status" bson:"status"`
	ErrorMessage      string         `json:"error_message,omitempty" bson:"error_message,omitempty"`
	CorrelationID     string         `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at" bson:"created_at"`
}

// NewEvent records a successful change
func NewEvent(organizationID uuid.UUID, action Action, resource Resource, resourceID uuid.UUID, changes map[string]any) *Event {
	return &Event{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		Action:         action,
		Resource:       resource,
		ResourceID:     resourceID,
		Changes:        changes,
		Status:         StatusSuccess,
		CreatedAt:      time.Now().UTC(),
	}
}

// By attributes the event to a membership; a nil id leaves it unattributed
func (e *Event) By(membershipID uuid.UUID) *Event {
	if membershipID != uuid.Nil {
		id := membershipID
		e.ActorMembershipID = &id
	}
	return e
}

// Correlated tags the event with a request correlation id
func (e *Event) Correlated(correlationID string) *Event {
	e.CorrelationID = correlationID
	return e
}

// Failed marks the event as a failed change
func (e *Event) Failed(err error) *Event {
	e.Status = StatusFailure
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	return e
}
