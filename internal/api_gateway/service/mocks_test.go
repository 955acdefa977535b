package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
	"github.com/virtupay-ledger/internal/domain/account"
	"github.com/virtupay-ledger/internal/domain/approval"
	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/card"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testActor(role org.Role) org.Actor {
	return org.Actor{MembershipID: uuid.New(), OrganizationID: uuid.New(), Role: role}
}

type MockAccountLedger struct {
	mock.Mock
}

func (m *MockAccountLedger) Fund(ctx context.Context, scope account.Scope, mv ledger.Movement) (*account.Balance, *account.Transaction, error) {
	args := m.Called(ctx, scope, mv)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*account.Balance), args.Get(1).(*account.Transaction), args.Error(2)
}

func (m *MockAccountLedger) Withdraw(ctx context.Context, scope account.Scope, mv ledger.Movement) (*account.Balance, *account.Transaction, error) {
	args := m.Called(ctx, scope, mv)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*account.Balance), args.Get(1).(*account.Transaction), args.Error(2)
}

func (m *MockAccountLedger) Summary(ctx context.Context, scope account.Scope) (*account.Summary, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Summary), args.Error(1)
}

func (m *MockAccountLedger) ListTransactions(ctx context.Context, scope account.Scope, filter account.ListFilter) ([]*account.Transaction, int64, error) {
	args := m.Called(ctx, scope, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*account.Transaction), args.Get(1).(int64), args.Error(2)
}

type MockMembershipRepository struct {
	mock.Mock
}

func (m *MockMembershipRepository) GetMembership(ctx context.Context, id uuid.UUID) (*org.Membership, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*org.Membership), args.Error(1)
}

func (m *MockMembershipRepository) GetMembershipByUser(ctx context.Context, organizationID, userID uuid.UUID) (*org.Membership, error) {
	args := m.Called(ctx, organizationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*org.Membership), args.Error(1)
}

func (m *MockMembershipRepository) WithTx(pgx.Tx) org.Repository {
	return m
}

type MockCardManager struct {
	mock.Mock
}

func (m *MockCardManager) cardResult(args mock.Arguments) (*card.Card, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*card.Card), args.Error(1)
}

func (m *MockCardManager) Get(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Card, error) {
	return m.cardResult(m.Called(ctx, actor, cardID))
}

func (m *MockCardManager) List(ctx context.Context, actor org.Actor, limit, offset int) ([]*card.Card, int64, error) {
	args := m.Called(ctx, actor, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*card.Card), args.Get(1).(int64), args.Error(2)
}

func (m *MockCardManager) Limits(ctx context.Context, actor org.Actor, cardID uuid.UUID) ([]*card.Limit, error) {
	args := m.Called(ctx, actor, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*card.Limit), args.Error(1)
}

func (m *MockCardManager) Create(ctx context.Context, actor org.Actor, req approval.CreateCardAction) (*card.Card, error) {
	return m.cardResult(m.Called(ctx, actor, req))
}

func (m *MockCardManager) Freeze(ctx context.Context, actor org.Actor, cardID uuid.UUID, reason string) (*card.Card, error) {
	return m.cardResult(m.Called(ctx, actor, cardID, reason))
}

func (m *MockCardManager) Unfreeze(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Card, error) {
	return m.cardResult(m.Called(ctx, actor, cardID))
}

func (m *MockCardManager) Cancel(ctx context.Context, actor org.Actor, cardID uuid.UUID, reason string) (*card.Card, error) {
	return m.cardResult(m.Called(ctx, actor, cardID, reason))
}

func (m *MockCardManager) SetInternational(ctx context.Context, actor org.Actor, cardID uuid.UUID, enabled bool) (*card.Card, error) {
	return m.cardResult(m.Called(ctx, actor, cardID, enabled))
}

func (m *MockCardManager) ChangeMerchants(ctx context.Context, actor org.Actor, cardID uuid.UUID, blockedMCCs []string) (*card.Card, error) {
	return m.cardResult(m.Called(ctx, actor, cardID, blockedMCCs))
}

func (m *MockCardManager) ChangeLimits(ctx context.Context, actor org.Actor, cardID uuid.UUID, limits []approval.LimitSpec) (*card.Card, error) {
	return m.cardResult(m.Called(ctx, actor, cardID, limits))
}

func (m *MockCardManager) ApplyApproved(actor org.Actor) ledger.ApplyFunc {
	m.Called(actor)
	return func(context.Context, pgx.Tx, *approval.Approval) error { return nil }
}

type MockCardLedger struct {
	mock.Mock
}

func (m *MockCardLedger) GetBalance(ctx context.Context, cardID uuid.UUID) (*card.Balance, error) {
	args := m.Called(ctx, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*card.Balance), args.Error(1)
}

func (m *MockCardLedger) Fund(ctx context.Context, cardID uuid.UUID, amount int64, reason, referenceID string) (*card.Balance, error) {
	args := m.Called(ctx, cardID, amount, reason, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*card.Balance), args.Error(1)
}

func (m *MockCardLedger) Recalculate(ctx context.Context, cardID uuid.UUID) (*card.Balance, error) {
	args := m.Called(ctx, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*card.Balance), args.Error(1)
}

func (m *MockCardLedger) GetTransaction(ctx context.Context, id uuid.UUID) (*card.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*card.Transaction), args.Error(1)
}

func (m *MockCardLedger) ListTransactions(ctx context.Context, cardID uuid.UUID, limit, offset int) ([]*card.Transaction, int64, error) {
	args := m.Called(ctx, cardID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*card.Transaction), args.Get(1).(int64), args.Error(2)
}

type MockCoordinator struct {
	mock.Mock
}

func (m *MockCoordinator) txnResult(args mock.Arguments) (*card.Transaction, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*card.Transaction), args.Error(1)
}

func (m *MockCoordinator) CreateCardTransaction(ctx context.Context, req ledger.CardTransactionRequest) (*card.Transaction, error) {
	return m.txnResult(m.Called(ctx, req))
}

func (m *MockCoordinator) CompleteTransaction(ctx context.Context, transactionID uuid.UUID) (*card.Transaction, error) {
	return m.txnResult(m.Called(ctx, transactionID))
}

func (m *MockCoordinator) ReverseTransaction(ctx context.Context, transactionID uuid.UUID, reason string, initiatedBy *uuid.UUID) (*card.Transaction, error) {
	return m.txnResult(m.Called(ctx, transactionID, reason, initiatedBy))
}

func (m *MockCoordinator) DisputeTransaction(ctx context.Context, transactionID uuid.UUID, reason string) (*card.Transaction, error) {
	return m.txnResult(m.Called(ctx, transactionID, reason))
}

type MockApprovalWorkflow struct {
	mock.Mock
}

func (m *MockApprovalWorkflow) approvalResult(args mock.Arguments) (*approval.Approval, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*approval.Approval), args.Error(1)
}

// IsRequired follows the real policy so gating tests exercise it
func (m *MockApprovalWorkflow) IsRequired(action approval.ActionType, role org.Role) bool {
	return approval.IsRequired(action, role)
}

func (m *MockApprovalWorkflow) Requirements(action approval.ActionType, role org.Role) (approval.Requirement, error) {
	args := m.Called(action, role)
	return args.Get(0).(approval.Requirement), args.Error(1)
}

func (m *MockApprovalWorkflow) Request(ctx context.Context, req ledger.ApprovalRequest) (*approval.Approval, error) {
	return m.approvalResult(m.Called(ctx, req))
}

func (m *MockApprovalWorkflow) Approve(ctx context.Context, id uuid.UUID, approver org.Actor, comment string) (*approval.Approval, error) {
	return m.approvalResult(m.Called(ctx, id, approver, comment))
}

func (m *MockApprovalWorkflow) Reject(ctx context.Context, id uuid.UUID, approver org.Actor, reason string) (*approval.Approval, error) {
	return m.approvalResult(m.Called(ctx, id, approver, reason))
}

// Apply ignores fn; ApplyFunc values cannot be compared
func (m *MockApprovalWorkflow) Apply(ctx context.Context, id uuid.UUID, actor org.Actor, fn ledger.ApplyFunc) (*approval.Approval, error) {
	return m.approvalResult(m.Called(ctx, id, actor))
}

func (m *MockApprovalWorkflow) Get(ctx context.Context, id uuid.UUID) (*approval.Approval, error) {
	return m.approvalResult(m.Called(ctx, id))
}

func (m *MockApprovalWorkflow) History(ctx context.Context, cardID uuid.UUID) ([]*approval.Approval, error) {
	args := m.Called(ctx, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*approval.Approval), args.Error(1)
}

func (m *MockApprovalWorkflow) Pending(ctx context.Context, organizationID uuid.UUID) ([]*approval.Approval, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*approval.Approval), args.Error(1)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Create(ctx context.Context, event *audit.Event) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockAuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*audit.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*audit.Event), args.Error(1)
}

func (m *MockAuditRepository) List(ctx context.Context, filter audit.Filter) ([]*audit.Event, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*audit.Event), args.Get(1).(int64), args.Error(2)
}

type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) membershipResult(args mock.Arguments) (*org.Membership, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*org.Membership), args.Error(1)
}

func (m *MockDirectory) organizationResult(args mock.Arguments) (*org.Organization, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*org.Organization), args.Error(1)
}

func (m *MockDirectory) CreateOrganization(ctx context.Context, actor org.Actor, name, industry string) (*org.Organization, *org.Membership, error) {
	args := m.Called(ctx, actor, name, industry)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*org.Organization), args.Get(1).(*org.Membership), args.Error(2)
}

func (m *MockDirectory) GetOrganization(ctx context.Context, actor org.Actor, organizationID uuid.UUID) (*org.Organization, error) {
	return m.organizationResult(m.Called(ctx, actor, organizationID))
}

func (m *MockDirectory) UpdateOrganization(ctx context.Context, actor org.Actor, organizationID uuid.UUID, name, industry string) (*org.Organization, error) {
	return m.organizationResult(m.Called(ctx, actor, organizationID, name, industry))
}

func (m *MockDirectory) ListMembers(ctx context.Context, actor org.Actor, organizationID uuid.UUID, includeInactive bool) ([]*org.Membership, error) {
	args := m.Called(ctx, actor, organizationID, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*org.Membership), args.Error(1)
}

func (m *MockDirectory) AddMember(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID, role org.Role) (*org.Membership, error) {
	return m.membershipResult(m.Called(ctx, actor, organizationID, userID, role))
}

func (m *MockDirectory) ChangeRole(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID, role org.Role) (*org.Membership, error) {
	return m.membershipResult(m.Called(ctx, actor, organizationID, userID, role))
}

func (m *MockDirectory) RemoveMember(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID) (*org.Membership, error) {
	return m.membershipResult(m.Called(ctx, actor, organizationID, userID))
}

type MockDepartments struct {
	mock.Mock
}

func (m *MockDepartments) department(args mock.Arguments) (*org.Department, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*org.Department), args.Error(1)
}

func (m *MockDepartments) Create(ctx context.Context, actor org.Actor, name string, budget int64, managerMembershipID *uuid.UUID) (*org.Department, error) {
	return m.department(m.Called(ctx, actor, name, budget, managerMembershipID))
}

func (m *MockDepartments) Get(ctx context.Context, actor org.Actor, departmentID uuid.UUID) (*org.Department, error) {
	return m.department(m.Called(ctx, actor, departmentID))
}

func (m *MockDepartments) List(ctx context.Context, actor org.Actor, limit, offset int) ([]*org.Department, int64, error) {
	args := m.Called(ctx, actor, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*org.Department), args.Get(1).(int64), args.Error(2)
}

func (m *MockDepartments) Update(ctx context.Context, actor org.Actor, departmentID uuid.UUID, change org.DepartmentChange) (*org.Department, error) {
	return m.department(m.Called(ctx, actor, departmentID, change))
}

func (m *MockDepartments) Delete(ctx context.Context, actor org.Actor, departmentID uuid.UUID) error {
	return m.Called(ctx, actor, departmentID).Error(0)
}
