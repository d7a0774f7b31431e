// Package service is the organization directory: creating organizations and managing who belongs to them.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"orgsession/internal/audit"
	auditdomain "orgsession/internal/audit/domain"
	memberdomain "orgsession/internal/membership/domain"
	"orgsession/internal/organization/domain"
	"orgsession/internal/platform/apperr"
	"orgsession/internal/policy"
)

// OrgRepo is the minimal organization repository needed by the directory.
type OrgRepo interface {
	GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Org, error)
	CreateWithOwner(ctx context.Context, o *domain.Org, owner *memberdomain.Membership) error
	ListForUser(ctx context.Context, userID string) ([]domain.UserOrganization, error)
	DeleteOrganization(ctx context.Context, id string) error
}

// MembershipRepo is the minimal membership repository needed by the directory.
type MembershipRepo interface {
	GetMembershipByUserAndOrg(ctx context.Context, userID, orgID string) (*memberdomain.Membership, error)
	ListMembershipsByOrg(ctx context.Context, orgID string) ([]*memberdomain.Membership, error)
	CreateMembership(ctx context.Context, m *memberdomain.Membership) error
	RemoveMembership(ctx context.Context, userID, orgID string) (*memberdomain.Membership, error)
}

// Directory owns organizations and memberships.
type Directory struct {
	orgs    OrgRepo
	members MembershipRepo
	policy  policy.Checker
	audit   audit.Recorder
	log     zerolog.Logger
	now     func() time.Time
}

// NewDirectory returns a Directory. rec may be nil.
func NewDirectory(orgs OrgRepo, members MembershipRepo, checker policy.Checker, rec audit.Recorder, logger zerolog.Logger) *Directory {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Directory{
		orgs:    orgs,
		members: members,
		policy:  checker,
		audit:   rec,
		log:     logger.With().Str("component", "directory").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrganization creates an organization owned by ownerUserID. An empty slug is derived
// from the name. The slug is stored lower-case and is unique case-insensitively.
func (d *Directory) CreateOrganization(ctx context.Context, ownerUserID, name, slug, logo string) (*domain.Org, error) {
	if ownerUserID == "" {
		return nil, apperr.Unauthenticated("sign in to create an organization")
	}
	if slug == "" {
		slug = domain.Slugify(name)
	}
	now := d.now()
	org := &domain.Org{ID: uuid.NewString(), Name: name, Slug: slug, Logo: logo, CreatedAt: now}
	if err := org.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	owner := &memberdomain.Membership{
		ID:        uuid.NewString(),
		UserID:    ownerUserID,
		OrgID:     org.ID,
		Role:      memberdomain.RoleOwner,
		CreatedAt: now,
	}
	if err := d.orgs.CreateWithOwner(ctx, org, owner); err != nil {
		if apperr.KindOf(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("create organization: %w", err)
	}
	d.audit.LogEvent(ctx, org.ID, ownerUserID, auditdomain.ActionOrgCreated, "organization", org.Slug)
	d.log.Info().Str("org_id", org.ID).Str("slug", org.Slug).Str("owner_id", ownerUserID).Msg("organization created")
	return org, nil
}

// ListOrganizationsForUser returns the user's organizations in the order they were joined.
func (d *Directory) ListOrganizationsForUser(ctx context.Context, userID string) ([]domain.UserOrganization, error) {
	orgs, err := d.orgs.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return orgs, nil
}

// GetMembership returns the membership or nil when the user does not belong to the organization.
// A malformed organization id has no members.
func (d *Directory) GetMembership(ctx context.Context, userID, orgID string) (*memberdomain.Membership, error) {
	if uuid.Validate(orgID) != nil {
		return nil, nil
	}
	m, err := d.members.GetMembershipByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// GetOrganization returns the organization or nil if it does not exist.
func (d *Directory) GetOrganization(ctx context.Context, orgID string) (*domain.Org, error) {
	if uuid.Validate(orgID) != nil {
		return nil, nil
	}
	o, err := d.orgs.GetOrganizationByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return o, nil
}

// CheckSlug normalizes slug and reports whether an organization could be created with it.
// An empty slug is derived from name.
func (d *Directory) CheckSlug(ctx context.Context, slug, name string) (string, bool, error) {
	if strings.TrimSpace(slug) == "" {
		slug = domain.Slugify(name)
	}
	candidate := domain.Org{Name: "-", Slug: slug}
	if err := candidate.Validate(); err != nil {
		return "", false, apperr.Validation("%s", err.Error())
	}
	existing, err := d.orgs.GetOrganizationBySlug(ctx, candidate.Slug)
	if err != nil {
		return "", false, fmt.Errorf("check slug: %w", err)
	}
	return candidate.Slug, existing == nil, nil
}

// ListMembers returns the organization's memberships. The actor must be a member.
func (d *Directory) ListMembers(ctx context.Context, actorUserID, orgID string) ([]*memberdomain.Membership, error) {
	if _, err := d.requireMember(ctx, actorUserID, orgID); err != nil {
		return nil, err
	}
	list, err := d.members.ListMembershipsByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return list, nil
}

// AddMember adds userID to orgID with role on behalf of actorUserID.
func (d *Directory) AddMember(ctx context.Context, actorUserID, userID, orgID string, role memberdomain.Role) (*memberdomain.Membership, error) {
	if role == "" {
		role = memberdomain.RoleMember
	}
	if !role.Valid() {
		return nil, apperr.Validation("invalid role %q", role)
	}
	actor, err := d.requireMember(ctx, actorUserID, orgID)
	if err != nil {
		return nil, err
	}
	if err := d.authorize(ctx, policy.Request{
		Action: policy.ActionAddMember, OrgID: orgID, ActorID: actorUserID,
		ActorRole: actor.Role, TargetRole: role,
	}); err != nil {
		return nil, err
	}
	m := &memberdomain.Membership{ID: uuid.NewString(), UserID: userID, OrgID: orgID, Role: role, CreatedAt: d.now()}
	if err := d.members.CreateMembership(ctx, m); err != nil {
		if apperr.KindOf(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("add member: %w", err)
	}
	d.audit.LogEvent(ctx, orgID, actorUserID, auditdomain.ActionMemberAdded, "membership", userID+":"+string(role))
	return m, nil
}

// RemoveMembership removes userID from orgID on behalf of actorUserID. Anyone may remove
// themselves; removing someone else is decided by the policy checker. The last owner can
// never be removed.
func (d *Directory) RemoveMembership(ctx context.Context, actorUserID, userID, orgID string) error {
	self := actorUserID == userID
	target, err := d.GetMembership(ctx, userID, orgID)
	if err != nil {
		return err
	}
	if !self {
		actor, err := d.requireMember(ctx, actorUserID, orgID)
		if err != nil {
			return err
		}
		if target == nil {
			return apperr.NotFound("membership not found")
		}
		if err := d.authorize(ctx, policy.Request{
			Action: policy.ActionRemoveMember, OrgID: orgID, ActorID: actorUserID,
			ActorRole: actor.Role, TargetRole: target.Role,
		}); err != nil {
			return err
		}
	}
	removed, err := d.members.RemoveMembership(ctx, userID, orgID)
	if err != nil {
		if apperr.KindOf(err) != "" {
			return err
		}
		return fmt.Errorf("remove membership: %w", err)
	}
	d.audit.LogEvent(ctx, orgID, actorUserID, auditdomain.ActionMemberRemoved, "membership", removed.UserID)
	return nil
}

// DeleteOrganization deletes orgID and its memberships. Only owners may do this.
func (d *Directory) DeleteOrganization(ctx context.Context, actorUserID, orgID string) error {
	actor, err := d.requireMember(ctx, actorUserID, orgID)
	if err != nil {
		return err
	}
	if err := d.authorize(ctx, policy.Request{
		Action: policy.ActionDeleteOrganization, OrgID: orgID, ActorID: actorUserID, ActorRole: actor.Role,
	}); err != nil {
		return err
	}
	if err := d.orgs.DeleteOrganization(ctx, orgID); err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	d.audit.LogEvent(ctx, orgID, actorUserID, auditdomain.ActionOrgDeleted, "organization", orgID)
	d.log.Info().Str("org_id", orgID).Str("actor_id", actorUserID).Msg("organization deleted")
	return nil
}

// Authorize checks a policy request for actorUserID's membership in orgID. Other services
// use it to apply the same privilege rules.
func (d *Directory) Authorize(ctx context.Context, action policy.Action, actorUserID, orgID string) (*memberdomain.Membership, error) {
	actor, err := d.requireMember(ctx, actorUserID, orgID)
	if err != nil {
		return nil, err
	}
	if err := d.authorize(ctx, policy.Request{Action: action, OrgID: orgID, ActorID: actorUserID, ActorRole: actor.Role}); err != nil {
		return nil, err
	}
	return actor, nil
}

func (d *Directory) requireMember(ctx context.Context, userID, orgID string) (*memberdomain.Membership, error) {
	m, err := d.GetMembership(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.Forbidden("not a member of this organization")
	}
	return m, nil
}

func (d *Directory) authorize(ctx context.Context, req policy.Request) error {
	ok, err := d.policy.Allowed(ctx, req)
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if !ok {
		return apperr.Forbidden("%s is not permitted for role %s", req.Action, req.ActorRole)
	}
	return nil
}
