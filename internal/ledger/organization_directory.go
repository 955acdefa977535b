package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// Directory manages organizations and their memberships. Member changes lock the
// organization row first, so role checks and the last owner rule see a stable
// member list.
type Directory struct {
	db        TxRunner
	directory org.DirectoryRepository
	members   org.Repository
	events    *EventRecorder
	logger    *slog.Logger
}

func NewDirectory(db TxRunner, directory org.DirectoryRepository, members org.Repository, events *EventRecorder, logger *slog.Logger) *Directory {
	return &Directory{
		db:        db,
		directory: directory,
		members:   members,
		events:    events,
		logger:    logger.With("component", "directory"),
	}
}

// Bootstrap creates the first organization with ownerUserID as its owner. It does
// nothing once any organization exists and reports whether it created one.
func (d *Directory) Bootstrap(ctx context.Context, name, industry string, ownerUserID uuid.UUID) (*org.Membership, bool, error) {
	var owner *org.Membership
	err := d.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		owner = nil
		count, err := d.directory.WithTx(tx).CountOrganizations(ctx)
		if err != nil || count > 0 {
			return err
		}
		_, owner, err = d.createTx(ctx, tx, uuid.Nil, name, industry, ownerUserID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if owner == nil {
		return nil, false, nil
	}
	d.logger.Info("Bootstrapped first organization",
		"organization_id", owner.OrganizationID.String(),
		"owner_membership_id", owner.ID.String(),
	)
	return owner, true, nil
}

// CreateOrganization opens a new organization owned by the actor's user. The
// actor must be an admin of the organization it currently acts for.
func (d *Directory) CreateOrganization(ctx context.Context, actor org.Actor, name, industry string) (*org.Organization, *org.Membership, error) {
	if !actor.HasRole(org.RoleAdmin) {
		return nil, nil, shared.ErrUnauthorized
	}
	creator, err := d.members.GetMembership(ctx, actor.MembershipID)
	if err != nil {
		return nil, nil, err
	}

	var (
		o     *org.Organization
		owner *org.Membership
	)
	err = d.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		o, owner, err = d.createTx(ctx, tx, actor.MembershipID, name, industry, creator.UserID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	d.logger.Info("Organization created", "organization_id", o.ID.String(), "owner_membership_id", owner.ID.String())
	return o, owner, nil
}

func (d *Directory) createTx(ctx context.Context, tx pgx.Tx, by uuid.UUID, name, industry string, ownerUserID uuid.UUID) (*org.Organization, *org.Membership, error) {
	o, err := org.NewOrganization(name, industry)
	if err != nil {
		return nil, nil, err
	}
	owner, err := org.NewMembership(o.ID, ownerUserID, org.RoleOwner)
	if err != nil {
		return nil, nil, err
	}

	repo := d.directory.WithTx(tx)
	if err := repo.CreateOrganization(ctx, o); err != nil {
		return nil, nil, err
	}
	if err := repo.CreateMembership(ctx, owner); err != nil {
		return nil, nil, err
	}

	changes := map[string]any{
		"name":                o.Name,
		"industry":            o.Industry,
		"owner_membership_id": owner.ID.String(),
		"owner_user_id":       ownerUserID.String(),
	}
	if err := d.events.Record(ctx, tx, audit.NewEvent(o.ID, audit.ActionOrganizationCreated, audit.ResourceOrganization, o.ID, changes).By(by)); err != nil {
		return nil, nil, err
	}
	return o, owner, nil
}

// GetOrganization returns the actor's own organization
func (d *Directory) GetOrganization(ctx context.Context, actor org.Actor, organizationID uuid.UUID) (*org.Organization, error) {
	if !actor.BelongsTo(organizationID) {
		return nil, shared.ErrUnauthorized
	}
	return d.directory.GetOrganization(ctx, organizationID)
}

// UpdateOrganization renames the actor's organization
func (d *Directory) UpdateOrganization(ctx context.Context, actor org.Actor, organizationID uuid.UUID, name, industry string) (*org.Organization, error) {
	if !actor.BelongsTo(organizationID) || !actor.HasRole(org.RoleAdmin) {
		return nil, shared.ErrUnauthorized
	}

	var o *org.Organization
	err := d.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := d.directory.WithTx(tx)
		var err error
		if o, err = repo.LockOrganization(ctx, organizationID); err != nil {
			return err
		}
		changes := map[string]any{"name_before": o.Name, "industry_before": o.Industry}
		if err := o.Rename(name, industry); err != nil {
			return err
		}
		if err := repo.UpdateOrganization(ctx, o); err != nil {
			return err
		}
		changes["name"], changes["industry"] = o.Name, o.Industry
		return d.events.Record(ctx, tx, audit.NewEvent(o.ID, audit.ActionOrganizationUpdated, audit.ResourceOrganization, o.ID, changes).By(actor.MembershipID))
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListMembers returns the organization's members, oldest first
func (d *Directory) ListMembers(ctx context.Context, actor org.Actor, organizationID uuid.UUID, includeInactive bool) ([]*org.Membership, error) {
	if !actor.BelongsTo(organizationID) {
		return nil, shared.ErrUnauthorized
	}
	return d.directory.ListMembers(ctx, organizationID, includeInactive)
}

// AddMember gives userID a membership with role. The actor cannot grant a role above its own.
// A removed member is reactivated on its existing row; an active one is ErrMembershipExists.
func (d *Directory) AddMember(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID, role org.Role) (*org.Membership, error) {
	if !actor.BelongsTo(organizationID) || !actor.CanManageMember("", role) {
		return nil, shared.ErrUnauthorized
	}

	var m *org.Membership
	err := d.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := d.directory.WithTx(tx)
		if _, err := repo.LockOrganization(ctx, organizationID); err != nil {
			return err
		}
		changes := map[string]any{"user_id": userID.String(), "role": string(role)}
		existing, err := repo.LockMembership(ctx, organizationID, userID)
		switch {
		case err == nil:
			if err := existing.Reactivate(role); err != nil {
				return err
			}
			if err := repo.UpdateMembership(ctx, existing); err != nil {
				return err
			}
			m, changes["reactivated"] = existing, true
		case errors.Is(err, org.ErrMembershipNotFound{}):
			if m, err = org.NewMembership(organizationID, userID, role); err != nil {
				return err
			}
			if err := repo.CreateMembership(ctx, m); err != nil {
				return err
			}
		default:
			return err
		}
		return d.events.Record(ctx, tx, audit.NewEvent(organizationID, audit.ActionMemberAdded, audit.ResourceMembership, m.ID, changes).By(actor.MembershipID))
	})
	if err != nil {
		return nil, err
	}
	d.logger.Info("Member added", "organization_id", organizationID.String(), "membership_id", m.ID.String(), "role", string(role))
	return m, nil
}

// ChangeRole moves a member to role. The actor must rank at or above both the
// member's current role and the new one.
func (d *Directory) ChangeRole(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID, role org.Role) (*org.Membership, error) {
	return d.changeMember(ctx, actor, organizationID, userID, role)
}

// RemoveMember deactivates a member. Cards and audit history keep pointing at the membership.
func (d *Directory) RemoveMember(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID) (*org.Membership, error) {
	return d.changeMember(ctx, actor, organizationID, userID, "")
}

// changeMember applies a role change, or a removal when role is empty
func (d *Directory) changeMember(ctx context.Context, actor org.Actor, organizationID, userID uuid.UUID, role org.Role) (*org.Membership, error) {
	if !actor.BelongsTo(organizationID) || !actor.HasRole(org.RoleAdmin) {
		return nil, shared.ErrUnauthorized
	}

	var (
		m      *org.Membership
		action audit.Action
	)
	err := d.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		repo := d.directory.WithTx(tx)
		if _, err := repo.LockOrganization(ctx, organizationID); err != nil {
			return err
		}
		var err error
		if m, err = repo.LockMembership(ctx, organizationID, userID); err != nil {
			return err
		}
		if !actor.CanManageMember(m.Role, role) {
			return shared.ErrUnauthorized
		}
		if !m.IsActive() {
			return org.ErrMembershipInactive
		}

		changes := map[string]any{"user_id": userID.String(), "role_before": string(m.Role)}
		if m.Role == org.RoleOwner && role != org.RoleOwner {
			if err := d.keepAnOwner(ctx, repo, organizationID); err != nil {
				return err
			}
		}
		if role == "" {
			action = audit.ActionMemberRemoved
			err = m.Deactivate()
		} else {
			action, changes["role"] = audit.ActionMemberRoleChanged, string(role)
			err = m.ChangeRole(role)
		}
		if err != nil {
			return err
		}

		if err := repo.UpdateMembership(ctx, m); err != nil {
			return err
		}
		changes["status"] = string(m.Status)
		return d.events.Record(ctx, tx, audit.NewEvent(organizationID, action, audit.ResourceMembership, m.ID, changes).By(actor.MembershipID))
	})
	if err != nil {
		return nil, err
	}
	d.logger.Info("Member changed",
		"organization_id", organizationID.String(),
		"membership_id", m.ID.String(),
		"action", string(action),
	)
	return m, nil
}

// keepAnOwner fails unless another active owner remains once one stops being owner
func (d *Directory) keepAnOwner(ctx context.Context, repo org.DirectoryRepository, organizationID uuid.UUID) error {
	members, err := repo.ListMembers(ctx, organizationID, false)
	if err != nil {
		return err
	}
	owners := 0
	for _, m := range members {
		if m.Role == org.RoleOwner {
			owners++
		}
	}
	if owners <= 1 {
		return org.ErrLastOwner
	}
	return nil
}
