package domain

import "time"

// AuditLog represents an audit event. OrgID and UserID are empty for events with no org or actor.
type AuditLog struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"orgId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Audit actions recorded by the services.
const (
	ActionSignUp             = "sign_up"
	ActionSignIn             = "sign_in"
	ActionSignInFailure      = "sign_in_failure"
	ActionSignOut            = "sign_out"
	ActionOrgCreated         = "organization_created"
	ActionOrgDeleted         = "organization_deleted"
	ActionMemberAdded        = "member_added"
	ActionMemberRemoved      = "member_removed"
	ActionActiveOrgChanged   = "active_organization_changed"
	ActionInvitationCreated  = "invitation_created"
	ActionInvitationAccepted = "invitation_accepted"
	ActionInvitationResent   = "invitation_resent"
	ActionInvitationRevoked  = "invitation_revoked"
)
