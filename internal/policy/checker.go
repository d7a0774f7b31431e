// Package policy decides whether a member may perform a privileged organization action.
// The services consult a Checker; the concrete rules live in RoleChecker or in a Rego module.
package policy

import (
	"context"

	memberdomain "orgsession/internal/membership/domain"
)

// Action names a privileged operation inside an organization.
type Action string

const (
	ActionInviteMember       Action = "invite_member"
	ActionAddMember          Action = "add_member"
	ActionRemoveMember       Action = "remove_member"
	ActionResendInvitation   Action = "resend_invitation"
	ActionRevokeInvitation   Action = "revoke_invitation"
	ActionListInvitations    Action = "list_invitations"
	ActionDeleteOrganization Action = "delete_organization"
	ActionViewAuditLog       Action = "view_audit_log"
)

// Request describes one authorization question. ActorRole is empty for non-members.
type Request struct {
	Action    Action
	OrgID     string
	ActorID   string
	ActorRole memberdomain.Role
	// TargetRole is the role being granted (invite, add) or held by the member being removed.
	TargetRole memberdomain.Role
	// Self is true when the actor targets their own membership.
	Self bool
}

// Checker answers authorization requests. A non-nil error means the decision could not be made.
type Checker interface {
	Allowed(ctx context.Context, req Request) (bool, error)
}

// RoleChecker is the built-in role ladder: owners and admins manage members and
// invitations, only owners grant or remove the owner role or delete the organization,
// and anyone may leave.
type RoleChecker struct{}

// NewRoleChecker returns the built-in Checker.
func NewRoleChecker() RoleChecker { return RoleChecker{} }

func (RoleChecker) Allowed(_ context.Context, req Request) (bool, error) {
	actor := req.ActorRole
	if !actor.Valid() {
		return false, nil
	}
	switch req.Action {
	case ActionListInvitations:
		return true, nil
	case ActionResendInvitation, ActionRevokeInvitation, ActionViewAuditLog:
		return actor.AtLeast(memberdomain.RoleAdmin), nil
	case ActionInviteMember, ActionAddMember:
		if req.TargetRole == memberdomain.RoleOwner {
			return actor == memberdomain.RoleOwner, nil
		}
		return actor.AtLeast(memberdomain.RoleAdmin), nil
	case ActionRemoveMember:
		if req.Self {
			return true, nil
		}
		if req.TargetRole == memberdomain.RoleOwner {
			return actor == memberdomain.RoleOwner, nil
		}
		return actor.AtLeast(memberdomain.RoleAdmin), nil
	case ActionDeleteOrganization:
		return actor == memberdomain.RoleOwner, nil
	}
	return false, nil
}
