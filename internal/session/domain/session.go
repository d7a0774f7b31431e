package domain

import "time"

// Session is an authenticated browser or API session. Token is the bearer secret
// handed to the client and is only populated on creation; storage keeps TokenHash.
type Session struct {
	Token                string `json:"-"`
	TokenHash            string `json:"-"`
	UserID               string
	ActiveOrganizationID *string // nil when no organization is selected
	CreatedAt            time.Time
	ExpiresAt            time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// ActiveOrgID returns the active organization id or "".
func (s *Session) ActiveOrgID() string {
	if s == nil || s.ActiveOrganizationID == nil {
		return ""
	}
	return *s.ActiveOrganizationID
}
