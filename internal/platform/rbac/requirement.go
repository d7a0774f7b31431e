// Package rbac evaluates capability requirements against the caller's resolved membership.
package rbac

import (
	"context"
	"fmt"

	memberdomain "orgsession/internal/membership/domain"
	sessiondomain "orgsession/internal/session/domain"
)

// Permission is a fine-grained capability derived from a member's role.
type Permission string

const (
	PermOrgRead           Permission = "org:read"
	PermMembersManage     Permission = "members:manage"
	PermInvitationsManage Permission = "invitations:manage"
	PermAuditRead         Permission = "audit:read"
	PermOrgDelete         Permission = "org:delete"
)

// Plan is an organization's subscription tier.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

func planRank(p Plan) int {
	switch p {
	case PlanFree:
		return 1
	case PlanPro:
		return 2
	case PlanEnterprise:
		return 3
	}
	return 0
}

// Kind tags the variant held by a Requirement.
type Kind int

const (
	KindNone Kind = iota
	KindOrg
	KindPermission
	KindRole
	KindPlan
)

// Requirement is one capability gate. Build it with None, RequiresOrg,
// RequiresPermission, RequiresRole or RequiresPlan; only the field matching Kind is set.
type Requirement struct {
	Kind       Kind
	Permission Permission
	Role       memberdomain.Role
	Plan       Plan
}

// None is satisfied by any signed-in caller.
func None() Requirement { return Requirement{Kind: KindNone} }

// RequiresOrg needs an active organization the caller belongs to.
func RequiresOrg() Requirement { return Requirement{Kind: KindOrg} }

func RequiresPermission(p Permission) Requirement {
	return Requirement{Kind: KindPermission, Permission: p}
}

func RequiresRole(r memberdomain.Role) Requirement {
	return Requirement{Kind: KindRole, Role: r}
}

func RequiresPlan(p Plan) Requirement {
	return Requirement{Kind: KindPlan, Plan: p}
}

// Subject is what requirements are evaluated against.
type Subject struct {
	Authenticated bool
	OrgID         string
	Role          memberdomain.Role
	Permissions   map[Permission]bool
	Plan          Plan
}

// Evaluate reports whether s satisfies req. Anonymous subjects satisfy nothing,
// and every variant other than None needs an active organization.
func Evaluate(req Requirement, s Subject) bool {
	if !s.Authenticated {
		return false
	}
	if req.Kind == KindNone {
		return true
	}
	if s.OrgID == "" || !s.Role.Valid() {
		return false
	}
	switch req.Kind {
	case KindOrg:
		return true
	case KindPermission:
		return s.Permissions[req.Permission]
	case KindRole:
		return s.Role.AtLeast(req.Role)
	case KindPlan:
		return planRank(s.Plan) >= planRank(req.Plan) && planRank(req.Plan) > 0
	}
	return false
}

// PermissionsFor returns the permission set granted by role.
func PermissionsFor(role memberdomain.Role) map[Permission]bool {
	perms := map[Permission]bool{}
	if !role.Valid() {
		return perms
	}
	perms[PermOrgRead] = true
	if role.AtLeast(memberdomain.RoleAdmin) {
		perms[PermMembersManage] = true
		perms[PermInvitationsManage] = true
		perms[PermAuditRead] = true
	}
	if role == memberdomain.RoleOwner {
		perms[PermOrgDelete] = true
	}
	return perms
}

// OrgMembershipGetter returns a user's membership in an org, or nil if there is none.
type OrgMembershipGetter interface {
	GetMembership(ctx context.Context, userID, orgID string) (*memberdomain.Membership, error)
}

// SubjectFor builds the Subject for sess from its active organization. A stale
// active organization yields an authenticated subject without an org.
func SubjectFor(ctx context.Context, getter OrgMembershipGetter, sess *sessiondomain.Session) (Subject, error) {
	if sess == nil {
		return Subject{}, nil
	}
	s := Subject{Authenticated: true, Permissions: map[Permission]bool{}}
	orgID := sess.ActiveOrgID()
	if orgID == "" {
		return s, nil
	}
	m, err := getter.GetMembership(ctx, sess.UserID, orgID)
	if err != nil {
		return Subject{}, fmt.Errorf("rbac: resolve membership: %w", err)
	}
	if m == nil {
		return s, nil
	}
	s.OrgID = orgID
	s.Role = m.Role
	s.Permissions = PermissionsFor(m.Role)
	s.Plan = PlanFree
	return s, nil
}
