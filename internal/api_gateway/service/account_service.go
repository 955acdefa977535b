package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/account"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/shared"
	"github.com/virtupay-ledger/internal/ledger"
)

// AccountServiceImpl implements the AccountService interface
type AccountServiceImpl struct {
	accounts AccountLedger
	members  org.Repository
	logger   *slog.Logger
}

// NewAccountService creates a new account service
func NewAccountService(logger *slog.Logger, accounts AccountLedger, members org.Repository) AccountService {
	return &AccountServiceImpl{
		accounts: accounts,
		members:  members,
		logger:   logger,
	}
}

// Summary aggregates a balance readable by any member of the organization
func (s *AccountServiceImpl) Summary(ctx context.Context, actor org.Actor, membershipID *uuid.UUID) (*account.Summary, error) {
	scope, err := s.scope(ctx, actor, membershipID, org.RoleAuditor)
	if err != nil {
		return nil, err
	}
	return s.accounts.Summary(ctx, scope)
}

// Fund credits the organization or a personal balance
func (s *AccountServiceImpl) Fund(ctx context.Context, actor org.Actor, req MovementRequest) (*account.Balance, *account.Transaction, error) {
	scope, err := s.scope(ctx, actor, req.MembershipID, org.RoleAdmin)
	if err != nil {
		return nil, nil, err
	}
	b, t, err := s.accounts.Fund(ctx, scope, s.movement(actor, req))
	if err != nil {
		s.logger.Warn("Account funding failed", "organization_id", actor.OrganizationID.String(), "amount", req.Amount, "error", err)
		return nil, nil, err
	}
	return b, t, nil
}

// Withdraw debits the organization or a personal balance
func (s *AccountServiceImpl) Withdraw(ctx context.Context, actor org.Actor, req MovementRequest) (*account.Balance, *account.Transaction, error) {
	scope, err := s.scope(ctx, actor, req.MembershipID, org.RoleAdmin)
	if err != nil {
		return nil, nil, err
	}
	b, t, err := s.accounts.Withdraw(ctx, scope, s.movement(actor, req))
	if err != nil {
		s.logger.Warn("Account withdrawal failed", "organization_id", actor.OrganizationID.String(), "amount", req.Amount, "error", err)
		return nil, nil, err
	}
	return b, t, nil
}

// ListTransactions pages through a balance log readable by any member of the organization
func (s *AccountServiceImpl) ListTransactions(ctx context.Context, actor org.Actor, membershipID *uuid.UUID, filter account.ListFilter) ([]*account.Transaction, int64, error) {
	scope, err := s.scope(ctx, actor, membershipID, org.RoleAuditor)
	if err != nil {
		return nil, 0, err
	}
	return s.accounts.ListTransactions(ctx, scope, filter)
}

// scope resolves whose balance is meant; a personal balance must belong to a
// member of the actor's organization
func (s *AccountServiceImpl) scope(ctx context.Context, actor org.Actor, membershipID *uuid.UUID, required org.Role) (account.Scope, error) {
	if !actor.HasRole(required) {
		return account.Scope{}, shared.ErrUnauthorized
	}
	if membershipID == nil {
		return account.OrganizationScope(actor.OrganizationID), nil
	}

	m, err := s.members.GetMembership(ctx, *membershipID)
	if err != nil {
		return account.Scope{}, err
	}
	if !actor.BelongsTo(m.OrganizationID) {
		return account.Scope{}, shared.ErrUnauthorized
	}
	id := m.ID
	return account.Scope{OrganizationID: m.OrganizationID, MembershipID: &id}, nil
}

func (s *AccountServiceImpl) movement(actor org.Actor, req MovementRequest) ledger.Movement {
	initiator := actor.MembershipID
	return ledger.Movement{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Reason:      req.Reason,
		ReferenceID: req.ReferenceID,
		InitiatedBy: &initiator,
	}
}
