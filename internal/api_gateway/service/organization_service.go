package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// OrganizationServiceImpl implements the OrganizationService interface
type OrganizationServiceImpl struct {
	directory Directory
	logger    *slog.Logger
}

// NewOrganizationService creates a new organization service
func NewOrganizationService(logger *slog.Logger, directory Directory) OrganizationService {
	return &OrganizationServiceImpl{
		directory: directory,
		logger:    logger,
	}
}

func (s *OrganizationServiceImpl) Create(ctx context.Context, actor org.Actor, name, industry string) (*org.Organization, *org.Membership, error) {
	if !actor.HasRole(org.RoleAdmin) {
		return nil, nil, shared.ErrUnauthorized
	}
	return s.directory.CreateOrganization(ctx, actor, name, industry)
}

func (s *OrganizationServiceImpl) Get(ctx context.Context, actor org.Actor, organizationID uuid.UUID) (*org.Organization, error) {
	if !actor.HasRole(org.RoleAuditor) {
		return nil, shared.ErrUnauthorized
	}
	return s.directory.GetOrganization(ctx, actor, organizationID)
}

func (s *OrganizationServiceImpl) Update(ctx context.Context, actor org.Actor, organizationID uuid.UUID, name, industry string) (*org.Organization, error) {
	if !actor.HasRole(org.RoleAdmin) {
		return nil, shared.ErrUnauthorized
	}
	return s.directory.UpdateOrganization(ctx, actor, organizationID, name, industry)
}

func (s *OrganizationServiceImpl) ListMembers(ctx context.Context, actor org.Actor, organizationID uuid.UUID, includeInactive bool) ([]*org.Membership, error) {
	if !actor.HasRole(org.RoleAuditor) {
		return nil, shared.ErrUnauthorized
	}
	return s.directory.ListMembers(ctx, actor, organizationID, includeInactive)
}

func (s *OrganizationServiceImpl) AddMember(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID, role org.Role) (*org.Membership, error) {
	if !actor.HasRole(org.RoleAdmin) {
		return nil, shared.ErrUnauthorized
	}
	return s.directory.AddMember(ctx, actor, organizationID, userID, role)
}

func (s *OrganizationServiceImpl) ChangeMemberRole(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID, role org.Role) (*org.Membership, error) {
	if !actor.HasRole(org.RoleAdmin) {
		return nil, shared.ErrUnauthorized
	}
	return s.directory.ChangeRole(ctx, actor, organizationID, userID, role)
}

func (s *OrganizationServiceImpl) RemoveMember(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID) (*org.Membership, error) {
	if !actor.HasRole(org.RoleAdmin) {
		return nil, shared.ErrUnauthorized
	}
	return s.directory.RemoveMember(ctx, actor, organizationID, userID)
}
