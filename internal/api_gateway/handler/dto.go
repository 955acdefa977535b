package handler

import (
	"encoding/json"
	"time"
)

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// Offset converts the page number into a row offset
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// TimeRangeParams bounds list endpoints by creation time
type TimeRangeParams struct {
	From *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To   *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// MovementRequest funds or withdraws a master balance
type MovementRequest struct {
	MembershipID string `json:"membership_id,omitempty" binding:"omitempty,uuid"`
	Amount       int64  `json:"amount" binding:"required,gt=0"`
	Currency     string `json:"currency,omitempty" binding:"omitempty,len=3"`
	Reason       string `json:"reason,omitempty" binding:"max=255"`
	ReferenceID  string `json:"reference_id,omitempty" binding:"max=100"`
}

// AccountQuery selects the organization balance or a personal one
type AccountQuery struct {
	MembershipID string `form:"membership_id" binding:"omitempty,uuid"`
}

// AccountTransactionQuery filters the balance log
type AccountTransactionQuery struct {
	AccountQuery
	PaginationParams
	TimeRangeParams
	Type string `form:"type" binding:"omitempty,oneof=FUNDING WITHDRAWAL"`
}

// AccountBalanceResponse represents a master balance in API responses
type AccountBalanceResponse struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	MembershipID   string `json:"membership_id,omitempty"`
	Available      int64  `json:"available_balance"`
	TotalFunded    int64  `json:"total_funded"`
	TotalWithdrawn int64  `json:"total_withdrawn"`
	Currency       string `json:"currency"`
	UpdatedAt      string `json:"updated_at"`
}

// AccountTransactionResponse represents a balance log entry in API responses
type AccountTransactionResponse struct {
	ID                       string `json:"id"`
	Type                     string `json:"type"`
	Amount                   int64  `json:"amount"`
	BalanceBefore            int64  `json:"balance_before"`
	BalanceAfter             int64  `json:"balance_after"`
	Status                   string `json:"status"`
	Reason                   string `json:"reason,omitempty"`
	ReferenceID              string `json:"reference_id,omitempty"`
	RelatedCardID            string `json:"related_card_id,omitempty"`
	RelatedCardTransactionID string `json:"related_card_transaction_id,omitempty"`
	InitiatedBy              string `json:"initiated_by,omitempty"`
	ReversalReason           string `json:"reversal_reason,omitempty"`
	CreatedAt                string `json:"created_at"`
	CompletedAt              string `json:"completed_at,omitempty"`
	ReversedAt               string `json:"reversed_at,omitempty"`
}

// MovementResponse is the outcome of a fund or withdraw call
type MovementResponse struct {
	Balance     AccountBalanceResponse     `json:"balance"`
	Transaction AccountTransactionResponse `json:"transaction"`
}

// AccountSummaryResponse aggregates a master balance
type AccountSummaryResponse struct {
	Available           int64  `json:"available_balance"`
	TotalFunded         int64  `json:"total_funded"`
	TotalWithdrawn      int64  `json:"total_withdrawn"`
	Currency            string `json:"currency"`
	DistinctCardsFunded int    `json:"distinct_cards_funded"`
	ActiveTransactions  int    `json:"active_transactions"`
}

// CreateCardRequest issues a card to a member
type CreateCardRequest struct {
	OwnerMembershipID string `json:"owner_membership_id" binding:"required,uuid"`
	InitialAmount     int64  `json:"initial_amount" binding:"min=0"`
	Currency          string `json:"currency,omitempty" binding:"omitempty,len=3"`
	Reason            string `json:"reason,omitempty" binding:"max=255"`
}

// ReasonRequest carries the free-text reason of a state change
type ReasonRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// RequiredReasonRequest is a state change that must say why
type RequiredReasonRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// FundCardRequest moves money onto a card's available bucket
type FundCardRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Reason      string `json:"reason,omitempty" binding:"max=255"`
	ReferenceID string `json:"reference_id,omitempty" binding:"max=100"`
}

// InternationalRequest toggles cross-border spending
type InternationalRequest struct {
	Enabled *bool  `json:"enabled" binding:"required"`
	Reason  string `json:"reason,omitempty" binding:"max=255"`
}

// MerchantsRequest replaces the blocked merchant category codes
type MerchantsRequest struct {
	BlockedMCCs []string `json:"blocked_mccs" binding:"dive,len=4,numeric"`
	Reason      string   `json:"reason,omitempty" binding:"max=255"`
}

// LimitRequest describes one card limit
type LimitRequest struct {
	Type      string `json:"limit_type" binding:"required,oneof=PER_TRANSACTION DAILY MONTHLY"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Threshold int    `json:"threshold,omitempty" binding:"omitempty,min=1,max=100"`
}

// LimitsRequest replaces a card's limits
type LimitsRequest struct {
	Limits []LimitRequest `json:"limits" binding:"required,min=1,dive"`
	Reason string         `json:"reason,omitempty" binding:"max=255"`
}

// CardResponse represents a card in API responses. The full number is never exposed.
type CardResponse struct {
	ID                 string   `json:"id"`
	OrganizationID     string   `json:"organization_id"`
	OwnerMembershipID  string   `json:"owner_membership_id"`
	MaskedNumber       string   `json:"masked_number"`
	Status             string   `json:"status"`
	AllowInternational bool     `json:"allow_international"`
	BlockedMCCs        []string `json:"blocked_mccs"`
	FreezeReason       string   `json:"freeze_reason,omitempty"`
	FrozenAt           string   `json:"frozen_at,omitempty"`
	CancelledAt        string   `json:"cancelled_at,omitempty"`
	Currency           string   `json:"currency"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

// CardBalanceResponse represents the three card buckets
type CardBalanceResponse struct {
	CardID    string `json:"card_id"`
	Available int64  `json:"available_balance"`
	Reserved  int64  `json:"reserved_balance"`
	Used      int64  `json:"used_balance"`
	Currency  string `json:"currency"`
	UpdatedAt string `json:"updated_at"`
}

// LimitResponse represents a card limit
type LimitResponse struct {
	ID        string `json:"id"`
	Type      string `json:"limit_type"`
	Amount    int64  `json:"amount"`
	Threshold int    `json:"threshold"`
	IsActive  bool   `json:"is_active"`
}

// CreateCardTransactionRequest authorizes a spend on a card
type CreateCardTransactionRequest struct {
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	Merchant      string `json:"merchant" binding:"required,max=255"`
	MCC           string `json:"mcc,omitempty" binding:"omitempty,len=4,numeric"`
	ReferenceID   string `json:"reference_id,omitempty" binding:"max=100"`
	International bool   `json:"international"`
}

// CardTransactionResponse represents a card transaction in API responses
type CardTransactionResponse struct {
	ID             string `json:"id"`
	CardID         string `json:"card_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Merchant       string `json:"merchant"`
	MCC            string `json:"mcc,omitempty"`
	ReferenceID    string `json:"reference_id,omitempty"`
	International  bool   `json:"international"`
	Status         string `json:"status"`
	CanBeDisputed  bool   `json:"can_be_disputed"`
	DisputeReason  string `json:"dispute_reason,omitempty"`
	ReversalReason string `json:"reversal_reason,omitempty"`
	CreatedAt      string `json:"created_at"`
	CompletedAt    string `json:"completed_at,omitempty"`
	ReversedAt     string `json:"reversed_at,omitempty"`
	DisputedAt     string `json:"disputed_at,omitempty"`
}

// CreateApprovalRequest opens an approval explicitly
type CreateApprovalRequest struct {
	CardID     string          `json:"card_id,omitempty" binding:"omitempty,uuid"`
	ActionType string          `json:"action_type" binding:"required,oneof=FREEZE_CARD DELETE_CARD CHANGE_LIMITS CHANGE_MERCHANTS ENABLE_INTERNATIONAL CREATE_CARD"`
	ActionData json.RawMessage `json:"action_data,omitempty"`
	Reason     string          `json:"reason,omitempty" binding:"max=255"`
}

// DecisionRequest carries an approver's comment
type DecisionRequest struct {
	Comment string `json:"comment,omitempty" binding:"max=255"`
}

// ApprovalResponse represents an approval in API responses
type ApprovalResponse struct {
	ID              string          `json:"id"`
	OrganizationID  string          `json:"organization_id"`
	CardID          string          `json:"card_id,omitempty"`
	ActionType      string          `json:"action_type"`
	RequestedBy     string          `json:"requested_by_membership_id"`
	RequesterRole   string          `json:"requester_role"`
	ApprovedBy      string          `json:"approved_by_membership_id,omitempty"`
	Status          string          `json:"status"`
	Reason          string          `json:"reason,omitempty"`
	DecisionComment string          `json:"decision_comment,omitempty"`
	ActionData      json.RawMessage `json:"action_data,omitempty"`
	CreatedAt       string          `json:"created_at"`
	ResolvedAt      string          `json:"resolved_at,omitempty"`
	ExpiresAt       string          `json:"expires_at"`
	AppliedAt       string          `json:"applied_at,omitempty"`
}

// ApprovalRequirementResponse tells a caller how an action is gated for their role
type ApprovalRequirementResponse struct {
	ActionType        string   `json:"action_type"`
	ApprovalRequired  bool     `json:"approval_required"`
	DirectRoles       []string `json:"direct_roles"`
	DeciderRole       string   `json:"decider_role"`
	Description       string   `json:"description"`
	MaxDurationHours  int      `json:"max_duration_hours"`
	AnyRoleActsDirect bool     `json:"any_role_acts_directly"`
}

// AuditQuery filters the audit trail
type AuditQuery struct {
	PaginationParams
	TimeRangeParams
	Resource   string `form:"resource"`
	ResourceID string `form:"resource_id" binding:"omitempty,uuid"`
	Action     string `form:"action"`
}

// AuditExportQuery selects the export format on top of the audit filter
type AuditExportQuery struct {
	TimeRangeParams
	Resource   string `form:"resource"`
	ResourceID string `form:"resource_id" binding:"omitempty,uuid"`
	Action     string `form:"action"`
	Format     string `form:"format,default=csv" binding:"oneof=csv xlsx"`
}

// AuditEventResponse represents one audit record
type AuditEventResponse struct {
	ID                string         `json:"id"`
	ActorMembershipID string         `json:"actor_membership_id,omitempty"`
	Action            string         `json:"action"`
	Resource          string         `json:"resource"`
	ResourceID        string         `json:"resource_id"`
	Changes           map[string]any `json:"changes,omitempty"`
	Status            string         `json:"status"`
	ErrorMessage      string         `json:"error_message,omitempty"`
	CorrelationID     string         `json:"correlation_id,omitempty"`
	CreatedAt         string         `json:"created_at"`
}

// OrganizationRequest creates or renames an organization
type OrganizationRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Industry string `json:"industry,omitempty" binding:"max=100"`
}

// OrganizationResponse represents an organization in API responses
type OrganizationResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Industry  string `json:"industry,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CreatedOrganizationResponse carries the new organization and its owner membership
type CreatedOrganizationResponse struct {
	Organization OrganizationResponse `json:"organization"`
	Owner        MembershipResponse   `json:"owner"`
}

// AddMemberRequest invites a user into the organization
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Role   string `json:"role" binding:"required,oneof=Owner Admin Approver Viewer Auditor"`
}

// ChangeMemberRoleRequest moves a member to another role
type ChangeMemberRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=Owner Admin Approver Viewer Auditor"`
}

// MemberListQuery filters the member list
type MemberListQuery struct {
	IncludeInactive bool `form:"include_inactive"`
}

// MembershipResponse represents a membership in API responses
type MembershipResponse struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	UserID         string `json:"user_id"`
	Role           string `json:"role"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// CreateDepartmentRequest opens a department; budget is in minor units
type CreateDepartmentRequest struct {
	Name                string `json:"name" binding:"required,max=255"`
	Budget              *int64 `json:"budget" binding:"required,min=0"`
	ManagerMembershipID string `json:"manager_membership_id,omitempty" binding:"omitempty,uuid"`
}

// UpdateDepartmentRequest changes only the fields it carries
type UpdateDepartmentRequest struct {
	Name                *string `json:"name,omitempty" binding:"omitempty,max=255"`
	Budget              *int64  `json:"budget,omitempty" binding:"omitempty,min=0"`
	ManagerMembershipID *string `json:"manager_membership_id,omitempty" binding:"omitempty,uuid"`
	Status              *string `json:"status,omitempty" binding:"omitempty,oneof=Active Inactive"`
}

// DepartmentResponse represents a department in API responses
type DepartmentResponse struct {
	ID                  string `json:"id"`
	OrganizationID      string `json:"organization_id"`
	Name                string `json:"name"`
	Budget              int64  `json:"budget"`
	ManagerMembershipID string `json:"manager_membership_id,omitempty"`
	Status              string `json:"status"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}
