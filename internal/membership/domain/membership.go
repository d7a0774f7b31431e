package domain

import (
	"time"
)

// Membership links a user to an organization with a role.
// At most one membership exists per (user, organization).
type Membership struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	OrgID     string    `json:"organizationId"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"joinedAt"`
}

// Role is a member's privilege level within an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// AtLeast reports whether r grants at least the privileges of min (owner > admin > member).
func (r Role) AtLeast(min Role) bool {
	return rank(r) >= rank(min) && rank(min) > 0
}

func rank(r Role) int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}
