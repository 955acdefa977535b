package service

import (
	"context"
	"encoding/json"
	"io"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/account"
	"github.com/virtupay-ledger/internal/domain/approval"
	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/card"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/ledger"
)

// AccountService defines master balance operations available to the HTTP layer
type AccountService interface {
	// Summary aggregates the organization balance, or a member's personal balance
	// when membershipID is set
	Summary(ctx context.Context, actor org.Actor, membershipID *uuid.UUID) (*account.Summary, error)
	// Fund credits the balance; requires Admin
	Fund(ctx context.Context, actor org.Actor, req MovementRequest) (*account.Balance, *account.Transaction, error)
	// Withdraw debits the balance; requires Admin
	// Returns shared.ErrInsufficientFunds when the balance cannot cover the amount
	Withdraw(ctx context.Context, actor org.Actor, req MovementRequest) (*account.Balance, *account.Transaction, error)
	// ListTransactions pages through the balance log, newest first
	ListTransactions(ctx context.Context, actor org.Actor, membershipID *uuid.UUID, filter account.ListFilter) ([]*account.Transaction, int64, error)
}

// CardService defines card management with approval gating. Mutations return a
// CardResult that carries either the changed card or the approval opened in its place.
type CardService interface {
	Create(ctx context.Context, actor org.Actor, req approval.CreateCardAction, reason string) (*CardResult, error)
	Get(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Card, error)
	List(ctx context.Context, actor org.Actor, page, perPage int) ([]*card.Card, int64, error)
	Balance(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Balance, error)
	Limits(ctx context.Context, actor org.Actor, cardID uuid.UUID) ([]*card.Limit, error)
	// Fund tops up the card's available bucket; requires Admin
	Fund(ctx context.Context, actor org.Actor, cardID uuid.UUID, amount int64, reason, referenceID string) (*card.Balance, error)
	// Recalculate rebuilds reserved and used from the transaction log; requires Admin
	Recalculate(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Balance, error)
	Freeze(ctx context.Context, actor org.Actor, cardID uuid.UUID, reason string) (*CardResult, error)
	// Unfreeze is never approval gated; requires Approver
	Unfreeze(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Card, error)
	Cancel(ctx context.Context, actor org.Actor, cardID uuid.UUID, reason string) (*CardResult, error)
	SetInternational(ctx context.Context, actor org.Actor, cardID uuid.UUID, enabled bool, reason string) (*CardResult, error)
	ChangeMerchants(ctx context.Context, actor org.Actor, cardID uuid.UUID, blockedMCCs []string, reason string) (*CardResult, error)
	ChangeLimits(ctx context.Context, actor org.Actor, cardID uuid.UUID, limits []approval.LimitSpec, reason string) (*CardResult, error)
}

// TransactionService defines card spend operations
type TransactionService interface {
	// Create authorizes a spend on the card, withdrawing from the organization balance
	Create(ctx context.Context, actor org.Actor, req ledger.CardTransactionRequest) (*card.Transaction, error)
	Get(ctx context.Context, actor org.Actor, transactionID uuid.UUID) (*card.Transaction, error)
	ListByCard(ctx context.Context, actor org.Actor, cardID uuid.UUID, page, perPage int) ([]*card.Transaction, int64, error)
	// Complete captures a held amount; requires Admin
	Complete(ctx context.Context, actor org.Actor, transactionID uuid.UUID) (*card.Transaction, error)
	// Reverse releases the card hold and credits the organization; requires Admin
	Reverse(ctx context.Context, actor org.Actor, transactionID uuid.UUID, reason string) (*card.Transaction, error)
	Dispute(ctx context.Context, actor org.Actor, transactionID uuid.UUID, reason string) (*card.Transaction, error)
}

// ApprovalService defines the approval workflow exposed over HTTP
type ApprovalService interface {
	Request(ctx context.Context, actor org.Actor, cardID *uuid.UUID, action approval.ActionType, data json.RawMessage, reason string) (*approval.Approval, error)
	// Approve records the decision and applies the approved action
	Approve(ctx context.Context, actor org.Actor, approvalID uuid.UUID, comment string) (*approval.Approval, error)
	Reject(ctx context.Context, actor org.Actor, approvalID uuid.UUID, reason string) (*approval.Approval, error)
	// Apply retries an approved action that has not taken effect yet
	Apply(ctx context.Context, actor org.Actor, approvalID uuid.UUID) (*approval.Approval, error)
	Get(ctx context.Context, actor org.Actor, approvalID uuid.UUID) (*approval.Approval, error)
	Pending(ctx context.Context, actor org.Actor) ([]*approval.Approval, error)
	History(ctx context.Context, actor org.Actor, cardID uuid.UUID) ([]*approval.Approval, error)
	// Requirements tells the actor whether action would be routed to an approval
	Requirements(ctx context.Context, actor org.Actor, action approval.ActionType) (approval.Requirement, error)
}

// AuditService defines read access to the audit trail
type AuditService interface {
	List(ctx context.Context, actor org.Actor, filter audit.Filter) ([]*audit.Event, int64, error)
	// Export writes every matching event to w in the given format
	Export(ctx context.Context, actor org.Actor, filter audit.Filter, format ExportFormat, w io.Writer) error
}

// OrganizationService defines organization and member management. Writes need
// Admin; members are never given or stripped of a role above the actor's own.
type OrganizationService interface {
	// Create opens a new organization owned by the actor's user
	Create(ctx context.Context, actor org.Actor, name, industry string) (*org.Organization, *org.Membership, error)
	Get(ctx context.Context, actor org.Actor, organizationID uuid.UUID) (*org.Organization, error)
	Update(ctx context.Context, actor org.Actor, organizationID uuid.UUID, name, industry string) (*org.Organization, error)
	ListMembers(ctx context.Context, actor org.Actor, organizationID uuid.UUID, includeInactive bool) ([]*org.Membership, error)
	// AddMember reactivates a removed member and returns org.ErrMembershipExists for an active one
	AddMember(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID, role org.Role) (*org.Membership, error)
	ChangeMemberRole(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID, role org.Role) (*org.Membership, error)
	// RemoveMember deactivates the membership
	RemoveMember(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID) (*org.Membership, error)
}

// DepartmentService defines department management. Any member reads; writes need Owner.
type DepartmentService interface {
	Create(ctx context.Context, actor org.Actor, name string, budget int64, managerMembershipID *uuid.UUID) (*org.Department, error)
	Get(ctx context.Context, actor org.Actor, departmentID uuid.UUID) (*org.Department, error)
	List(ctx context.Context, actor org.Actor, page, perPage int) ([]*org.Department, int64, error)
	Update(ctx context.Context, actor org.Actor, departmentID uuid.UUID, change org.DepartmentChange) (*org.Department, error)
	// Delete soft-deletes the department
	Delete(ctx context.Context, actor org.Actor, departmentID uuid.UUID) error
}

// CardResult is the outcome of a gated card mutation: exactly one field is set
type CardResult struct {
	Card     *card.Card
	Approval *approval.Approval
}

// MovementRequest describes a credit or debit of a master balance
type MovementRequest struct {
	MembershipID *uuid.UUID // Personal balance when set
	Amount       int64
	Currency     string
	Reason       string
	ReferenceID  string
}

// Core collaborators. The ledger package provides the implementations.

type AccountLedger interface {
	Fund(ctx context.Context, scope account.Scope, m ledger.Movement) (*account.Balance, *account.Transaction, error)
	Withdraw(ctx context.Context, scope account.Scope, m ledger.Movement) (*account.Balance, *account.Transaction, error)
	Summary(ctx context.Context, scope account.Scope) (*account.Summary, error)
	ListTransactions(ctx context.Context, scope account.Scope, filter account.ListFilter) ([]*account.Transaction, int64, error)
}

type CardManager interface {
	Get(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Card, error)
	List(ctx context.Context, actor org.Actor, limit, offset int) ([]*card.Card, int64, error)
	Limits(ctx context.Context, actor org.Actor, cardID uuid.UUID) ([]*card.Limit, error)
	Create(ctx context.Context, actor org.Actor, req approval.CreateCardAction) (*card.Card, error)
	Freeze(ctx context.Context, actor org.Actor, cardID uuid.UUID, reason string) (*card.Card, error)
	Unfreeze(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Card, error)
	Cancel(ctx context.Context, actor org.Actor, cardID uuid.UUID, reason string) (*card.Card, error)
	SetInternational(ctx context.Context, actor org.Actor, cardID uuid.UUID, enabled bool) (*card.Card, error)
	ChangeMerchants(ctx context.Context, actor org.Actor, cardID uuid.UUID, blockedMCCs []string) (*card.Card, error)
	ChangeLimits(ctx context.Context, actor org.Actor, cardID uuid.UUID, limits []approval.LimitSpec) (*card.Card, error)
	ApplyApproved(actor org.Actor) ledger.ApplyFunc
}

type CardLedger interface {
	GetBalance(ctx context.Context, cardID uuid.UUID) (*card.Balance, error)
	Fund(ctx context.Context, cardID uuid.UUID, amount int64, reason, referenceID string) (*card.Balance, error)
	Recalculate(ctx context.Context, cardID uuid.UUID) (*card.Balance, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*card.Transaction, error)
	ListTransactions(ctx context.Context, cardID uuid.UUID, limit, offset int) ([]*card.Transaction, int64, error)
}

type Coordinator interface {
	CreateCardTransaction(ctx context.Context, req ledger.CardTransactionRequest) (*card.Transaction, error)
	CompleteTransaction(ctx context.Context, transactionID uuid.UUID) (*card.Transaction, error)
	ReverseTransaction(ctx context.Context, transactionID uuid.UUID, reason string, initiatedBy *uuid.UUID) (*card.Transaction, error)
	DisputeTransaction(ctx context.Context, transactionID uuid.UUID, reason string) (*card.Transaction, error)
}

type ApprovalWorkflow interface {
	IsRequired(action approval.ActionType, role org.Role) bool
	Requirements(action approval.ActionType, role org.Role) (approval.Requirement, error)
	Request(ctx context.Context, req ledger.ApprovalRequest) (*approval.Approval, error)
	Approve(ctx context.Context, id uuid.UUID, approver org.Actor, comment string) (*approval.Approval, error)
	Reject(ctx context.Context, id uuid.UUID, approver org.Actor, reason string) (*approval.Approval, error)
	Apply(ctx context.Context, id uuid.UUID, actor org.Actor, fn ledger.ApplyFunc) (*approval.Approval, error)
	Get(ctx context.Context, id uuid.UUID) (*approval.Approval, error)
	History(ctx context.Context, cardID uuid.UUID) ([]*approval.Approval, error)
	Pending(ctx context.Context, organizationID uuid.UUID) ([]*approval.Approval, error)
}

type Directory interface {
	CreateOrganization(ctx context.Context, actor org.Actor, name, industry string) (*org.Organization, *org.Membership, error)
	GetOrganization(ctx context.Context, actor org.Actor, organizationID uuid.UUID) (*org.Organization, error)
	UpdateOrganization(ctx context.Context, actor org.Actor, organizationID uuid.UUID, name, industry string) (*org.Organization, error)
	ListMembers(ctx context.Context, actor org.Actor, organizationID uuid.UUID, includeInactive bool) ([]*org.Membership, error)
	AddMember(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID, role org.Role) (*org.Membership, error)
	ChangeRole(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID, role org.Role) (*org.Membership, error)
	RemoveMember(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID) (*org.Membership, error)
}

type Departments interface {
	Create(ctx context.Context, actor org.Actor, name string, budget int64, managerMembershipID *uuid.UUID) (*org.Department, error)
	Get(ctx context.Context, actor org.Actor, departmentID uuid.UUID) (*org.Department, error)
	List(ctx context.Context, actor org.Actor, limit, offset int) ([]*org.Department, int64, error)
	Update(ctx context.Context, actor org.Actor, departmentID uuid.UUID, change org.DepartmentChange) (*org.Department, error)
	Delete(ctx context.Context, actor org.Actor, departmentID uuid.UUID) error
}
