package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"

	memberdomain "orgsession/internal/membership/domain"
)

var (
	slugPattern   = regexp.MustCompile(`^[a-z0-9-]+$`)
	nonSlugRunes  = regexp.MustCompile(`[^a-z0-9]+`)
	errNameNeeded = errors.New("name is required")
)

// Org is a named tenant that users belong to through memberships.
type Org struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"` // lower-case, unique case-insensitively
	Logo      string    `json:"logo,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate normalizes the slug to lower case and checks name and slug.
// Returns an error describing the first validation failure.
func (o *Org) Validate() error {
	o.Name = strings.TrimSpace(o.Name)
	if o.Name == "" {
		return errNameNeeded
	}
	o.Slug = strings.ToLower(strings.TrimSpace(o.Slug))
	if o.Slug == "" {
		return errors.New("slug is required")
	}
	if !slugPattern.MatchString(o.Slug) {
		return errors.New("slug may only contain lowercase letters, digits and hyphens")
	}
	return nil
}

// Slugify derives a slug from a display name: lower-cased, runs of other
// characters collapsed to "-", leading and trailing hyphens trimmed.
func Slugify(name string) string {
	s := nonSlugRunes.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// UserOrganization is an organization as seen by one of its members.
type UserOrganization struct {
	Org
	Role     memberdomain.Role `json:"role"`
	JoinedAt time.Time         `json:"joinedAt"`
}
