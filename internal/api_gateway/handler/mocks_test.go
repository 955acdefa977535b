package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/virtupay-ledger/internal/api_gateway/middleware"
	"github.com/virtupay-ledger/internal/api_gateway/service"
	"github.com/virtupay-ledger/internal/domain/account"
	"github.com/virtupay-ledger/internal/domain/approval"
	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/card"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/ledger"
)

var testLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

func testActor(role org.Role) org.Actor {
	return org.Actor{MembershipID: uuid.New(), OrganizationID: uuid.New(), Role: role}
}

// setupTestRouter returns a router that authenticates every request as actor
func setupTestRouter(actor *org.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID())
	if actor != nil {
		r.Use(func(c *gin.Context) { c.Set(middleware.ActorKey, *actor) })
	}
	return r
}

func performRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewBuffer(raw)
	}
	req, _ := http.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

// decodeData unmarshals the response envelope's data field into out
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, out any) Response {
	t.Helper()
	var envelope struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope), "Failed to unmarshal response")
	if out != nil {
		require.NotEmpty(t, envelope.Data, "'data' field should not be empty")
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return envelope.Response
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeData(t, rr, nil)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Summary(ctx context.Context, actor org.Actor, membershipID *uuid.UUID) (*account.Summary, error) {
	args := m.Called(ctx, actor, membershipID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Summary), args.Error(1)
}

func (m *MockAccountService) Fund(ctx context.Context, actor org.Actor, req service.MovementRequest) (*account.Balance, *account.Transaction, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*account.Balance), args.Get(1).(*account.Transaction), args.Error(2)
}

func (m *MockAccountService) Withdraw(ctx context.Context, actor org.Actor, req service.MovementRequest) (*account.Balance, *account.Transaction, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*account.Balance), args.Get(1).(*account.Transaction), args.Error(2)
}

func (m *MockAccountService) ListTransactions(ctx context.Context, actor org.Actor, membershipID *uuid.UUID, filter account.ListFilter) ([]*account.Transaction, int64, error) {
	args := m.Called(ctx, actor, membershipID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*account.Transaction), args.Get(1).(int64), args.Error(2)
}

type MockCardService struct {
	mock.Mock
}

func (m *MockCardService) result(args mock.Arguments) (*service.CardResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CardResult), args.Error(1)
}

func (m *MockCardService) card(args mock.Arguments) (*card.Card, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*card.Card), args.Error(1)
}

func (m *MockCardService) balance(args mock.Arguments) (*card.Balance, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*card.Balance), args.Error(1)
}

func (m *MockCardService) Create(ctx context.Context, actor org.Actor, req approval.CreateCardAction, reason string) (*service.CardResult, error) {
	return m.result(m.Called(ctx, actor, req, reason))
}

func (m *MockCardService) Get(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Card, error) {
	return m.card(m.Called(ctx, actor, cardID))
}

func (m *MockCardService) List(ctx context.Context, actor org.Actor, page, perPage int) ([]*card.Card, int64, error) {
	args := m.Called(ctx, actor, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*card.Card), args.Get(1).(int64), args.Error(2)
}

func (m *MockCardService) Balance(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Balance, error) {
	return m.balance(m.Called(ctx, actor, cardID))
}

func (m *MockCardService) Limits(ctx context.Context, actor org.Actor, cardID uuid.UUID) ([]*card.Limit, error) {
	args := m.Called(ctx, actor, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*card.Limit), args.Error(1)
}

func (m *MockCardService) Fund(ctx context.Context, actor org.Actor, cardID uuid.UUID, amount int64, reason, referenceID string) (*card.Balance, error) {
	return m.balance(m.Called(ctx, actor, cardID, amount, reason, referenceID))
}

func (m *MockCardService) Recalculate(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Balance, error) {
	return m.balance(m.Called(ctx, actor, cardID))
}

func (m *MockCardService) Freeze(ctx context.Context, actor org.Actor, cardID uuid.UUID, reason string) (*service.CardResult, error) {
	return m.result(m.Called(ctx, actor, cardID, reason))
}

func (m *MockCardService) Unfreeze(ctx context.Context, actor org.Actor, cardID uuid.UUID) (*card.Card, error) {
	return m.card(m.Called(ctx, actor, cardID))
}

func (m *MockCardService) Cancel(ctx context.Context, actor org.Actor, cardID uuid.UUID, reason string) (*service.CardResult, error) {
	return m.result(m.Called(ctx, actor, cardID, reason))
}

func (m *MockCardService) SetInternational(ctx context.Context, actor org.Actor, cardID uuid.UUID, enabled bool, reason string) (*service.CardResult, error) {
	return m.result(m.Called(ctx, actor, cardID, enabled, reason))
}

func (m *MockCardService) ChangeMerchants(ctx context.Context, actor org.Actor, cardID uuid.UUID, blockedMCCs []string, reason string) (*service.CardResult, error) {
	return m.result(m.Called(ctx, actor, cardID, blockedMCCs, reason))
}

func (m *MockCardService) ChangeLimits(ctx context.Context, actor org.Actor, cardID uuid.UUID, limits []approval.LimitSpec, reason string) (*service.CardResult, error) {
	return m.result(m.Called(ctx, actor, cardID, limits, reason))
}

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) txn(args mock.Arguments) (*card.Transaction, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*card.Transaction), args.Error(1)
}

func (m *MockTransactionService) Create(ctx context.Context, actor org.Actor, req ledger.CardTransactionRequest) (*card.Transaction, error) {
	return m.txn(m.Called(ctx, actor, req))
}

func (m *MockTransactionService) Get(ctx context.Context, actor org.Actor, transactionID uuid.UUID) (*card.Transaction, error) {
	return m.txn(m.Called(ctx, actor, transactionID))
}

func (m *MockTransactionService) ListByCard(ctx context.Context, actor org.Actor, cardID uuid.UUID, page, perPage int) ([]*card.Transaction, int64, error) {
	args := m.Called(ctx, actor, cardID, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*card.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionService) Complete(ctx context.Context, actor org.Actor, transactionID uuid.UUID) (*card.Transaction, error) {
	return m.txn(m.Called(ctx, actor, transactionID))
}

func (m *MockTransactionService) Reverse(ctx context.Context, actor org.Actor, transactionID uuid.UUID, reason string) (*card.Transaction, error) {
	return m.txn(m.Called(ctx, actor, transactionID, reason))
}

func (m *MockTransactionService) Dispute(ctx context.Context, actor org.Actor, transactionID uuid.UUID, reason string) (*card.Transaction, error) {
	return m.txn(m.Called(ctx, actor, transactionID, reason))
}

type MockApprovalService struct {
	mock.Mock
}

func (m *MockApprovalService) one(args mock.Arguments) (*approval.Approval, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*approval.Approval), args.Error(1)
}

func (m *MockApprovalService) many(args mock.Arguments) ([]*approval.Approval, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*approval.Approval), args.Error(1)
}

func (m *MockApprovalService) Request(ctx context.Context, actor org.Actor, cardID *uuid.UUID, action approval.ActionType, data json.RawMessage, reason string) (*approval.Approval, error) {
	return m.one(m.Called(ctx, actor, cardID, action, data, reason))
}

func (m *MockApprovalService) Approve(ctx context.Context, actor org.Actor, approvalID uuid.UUID, comment string) (*approval.Approval, error) {
	return m.one(m.Called(ctx, actor, approvalID, comment))
}

func (m *MockApprovalService) Reject(ctx context.Context, actor org.Actor, approvalID uuid.UUID, reason string) (*approval.Approval, error) {
	return m.one(m.Called(ctx, actor, approvalID, reason))
}

func (m *MockApprovalService) Apply(ctx context.Context, actor org.Actor, approvalID uuid.UUID) (*approval.Approval, error) {
	return m.one(m.Called(ctx, actor, approvalID))
}

func (m *MockApprovalService) Get(ctx context.Context, actor org.Actor, approvalID uuid.UUID) (*approval.Approval, error) {
	return m.one(m.Called(ctx, actor, approvalID))
}

func (m *MockApprovalService) Pending(ctx context.Context, actor org.Actor) ([]*approval.Approval, error) {
	return m.many(m.Called(ctx, actor))
}

func (m *MockApprovalService) Requirements(ctx context.Context, actor org.Actor, action approval.ActionType) (approval.Requirement, error) {
	args := m.Called(ctx, actor, action)
	return args.Get(0).(approval.Requirement), args.Error(1)
}

func (m *MockApprovalService) History(ctx context.Context, actor org.Actor, cardID uuid.UUID) ([]*approval.Approval, error) {
	return m.many(m.Called(ctx, actor, cardID))
}

type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) List(ctx context.Context, actor org.Actor, filter audit.Filter) ([]*audit.Event, int64, error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*audit.Event), args.Get(1).(int64), args.Error(2)
}

func (m *MockAuditService) Export(ctx context.Context, actor org.Actor, filter audit.Filter, format service.ExportFormat, w io.Writer) error {
	args := m.Called(ctx, actor, filter, format, w)
	if len(args) > 1 {
		if write, ok := args.Get(1).(func(io.Writer)); ok {
			write(w)
		}
	}
	return args.Error(0)
}

type MockOrganizationService struct {
	mock.Mock
}

func (m *MockOrganizationService) member(args mock.Arguments) (*org.Membership, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*org.Membership), args.Error(1)
}

func (m *MockOrganizationService) organization(args mock.Arguments) (*org.Organization, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*org.Organization), args.Error(1)
}

func (m *MockOrganizationService) Create(ctx context.Context, actor org.Actor, name, industry string) (*org.Organization, *org.Membership, error) {
	args := m.Called(ctx, actor, name, industry)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*org.Organization), args.Get(1).(*org.Membership), args.Error(2)
}

func (m *MockOrganizationService) Get(ctx context.Context, actor org.Actor, organizationID uuid.UUID) (*org.Organization, error) {
	return m.organization(m.Called(ctx, actor, organizationID))
}

func (m *MockOrganizationService) Update(ctx context.Context, actor org.Actor, organizationID uuid.UUID, name, industry string) (*org.Organization, error) {
	return m.organization(m.Called(ctx, actor, organizationID, name, industry))
}

func (m *MockOrganizationService) ListMembers(ctx context.Context, actor org.Actor, organizationID uuid.UUID, includeInactive bool) ([]*org.Membership, error) {
	args := m.Called(ctx, actor, organizationID, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*org.Membership), args.Error(1)
}

func (m *MockOrganizationService) AddMember(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID, role org.Role) (*org.Membership, error) {
	return m.member(m.Called(ctx, actor, organizationID, userID, role))
}

func (m *MockOrganizationService) ChangeMemberRole(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID, role org.Role) (*org.Membership, error) {
	return m.member(m.Called(ctx, actor, organizationID, userID, role))
}

func (m *MockOrganizationService) RemoveMember(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID) (*org.Membership, error) {
	return m.member(m.Called(ctx, actor, organizationID, userID))
}

type MockDepartmentService struct {
	mock.Mock
}

func (m *MockDepartmentService) department(args mock.Arguments) (*org.Department, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*org.Department), args.Error(1)
}

func (m *MockDepartmentService) Create(ctx context.Context, actor org.Actor, name string, budget int64, managerMembershipID *uuid.UUID) (*org.Department, error) {
	return m.department(m.Called(ctx, actor, name, budget, managerMembershipID))
}

func (m *MockDepartmentService) Get(ctx context.Context, actor org.Actor, departmentID uuid.UUID) (*org.Department, error) {
	return m.department(m.Called(ctx, actor, departmentID))
}

func (m *MockDepartmentService) List(ctx context.Context, actor org.Actor, page, perPage int) ([]*org.Department, int64, error) {
	args := m.Called(ctx, actor, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*org.Department), args.Get(1).(int64), args.Error(2)
}

func (m *MockDepartmentService) Update(ctx context.Context, actor org.Actor, departmentID uuid.UUID, change org.DepartmentChange) (*org.Department, error) {
	return m.department(m.Called(ctx, actor, departmentID, change))
}

func (m *MockDepartmentService) Delete(ctx context.Context, actor org.Actor, departmentID uuid.UUID) error {
	return m.Called(ctx, actor, departmentID).Error(0)
}
