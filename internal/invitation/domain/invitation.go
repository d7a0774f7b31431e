package domain

import (
	"time"

	memberdomain "orgsession/internal/membership/domain"
)

// Status is the lifecycle state of an invitation. Transitions only leave Pending.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusExpired  Status = "expired"
	StatusRevoked  Status = "revoked"
)

// Terminal reports whether s can no longer change.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// Invitation offers an email address membership in an organization.
type Invitation struct {
	ID         string            `json:"id"`
	OrgID      string            `json:"organizationId"`
	Email      string            `json:"email"` // lower-cased
	Role       memberdomain.Role `json:"role"`
	InviterID  string            `json:"inviterId"`
	Status     Status            `json:"status"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	ExpiresAt  time.Time         `json:"expiresAt"`
	LastSentAt *time.Time        `json:"lastSentAt,omitempty"`
}

// ExpiredAt reports whether a pending invitation has passed its expiry at now.
func (i *Invitation) ExpiredAt(now time.Time) bool {
	return i.Status == StatusPending && !now.Before(i.ExpiresAt)
}

// Notification is what the invitee is told: who, where to accept, and which organization.
type Notification struct {
	InvitationID     string `json:"invitation_id"`
	InviteeEmail     string `json:"invitee_email"`
	AcceptanceLink   string `json:"acceptance_link"`
	OrganizationName string `json:"organization_name"`
	InviterName      string `json:"inviter_name,omitempty"`
}
