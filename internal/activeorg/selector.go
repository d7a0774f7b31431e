// Package activeorg tracks which organization a session is working in.
//
// The pointer lives on the session row. Writes are conditional on membership at write
// time, and reads verify the pointer is still backed by a membership. A stale pointer is
// cleared and the caller is told to reselect; another organization is never substituted.
package activeorg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"orgsession/internal/audit"
	auditdomain "orgsession/internal/audit/domain"
	memberdomain "orgsession/internal/membership/domain"
	orgdomain "orgsession/internal/organization/domain"
	"orgsession/internal/platform/apperr"
	sessiondomain "orgsession/internal/session/domain"
)

// SessionRepo is the subset of session storage the selector writes to.
type SessionRepo interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*sessiondomain.Session, error)
	SetActiveOrgIfMember(ctx context.Context, tokenHash, orgID string, now time.Time) (bool, error)
	ClearActiveOrgIf(ctx context.Context, tokenHash, orgID string) error
	ClearActiveOrg(ctx context.Context, tokenHash string) error
}

// Directory is the subset of the organization directory the selector reads from.
type Directory interface {
	GetMembership(ctx context.Context, userID, orgID string) (*memberdomain.Membership, error)
	GetOrganization(ctx context.Context, orgID string) (*orgdomain.Org, error)
}

// Selection is the result of GetActive.
type Selection struct {
	Organization *orgdomain.Org    `json:"organization"`
	Role         memberdomain.Role `json:"role,omitempty"`
	// Reselect is true when a previously active organization is no longer available.
	Reselect bool `json:"reselect"`
}

// Selector reads and writes the active-organization pointer of a session.
type Selector struct {
	sessions  SessionRepo
	directory Directory
	audit     audit.Recorder
	log       zerolog.Logger
	now       func() time.Time
}

// NewSelector returns a Selector. rec may be nil.
func NewSelector(sessions SessionRepo, directory Directory, rec audit.Recorder, logger zerolog.Logger) *Selector {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Selector{
		sessions:  sessions,
		directory: directory,
		audit:     rec,
		log:       logger.With().Str("component", "activeorg").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetActive points sess at orgID. It fails with Forbidden unless the session's user is a
// member of orgID when the write happens. Setting the current value again succeeds.
func (s *Selector) SetActive(ctx context.Context, sess *sessiondomain.Session, orgID string) (*sessiondomain.Session, error) {
	if sess == nil {
		return nil, apperr.Unauthenticated("no session")
	}
	if orgID == "" {
		return nil, apperr.Validation("organization id is required")
	}
	if uuid.Validate(orgID) != nil {
		return nil, apperr.Forbidden("not a member of this organization")
	}
	ok, err := s.sessions.SetActiveOrgIfMember(ctx, sess.TokenHash, orgID, s.now())
	if err != nil {
		return nil, fmt.Errorf("set active organization: %w", err)
	}
	if !ok {
		return nil, apperr.Forbidden("not a member of this organization")
	}
	if sess.ActiveOrgID() != orgID {
		s.audit.LogEvent(ctx, orgID, sess.UserID, auditdomain.ActionActiveOrgChanged, "session", "")
	}
	updated := *sess
	updated.ActiveOrganizationID = &orgID
	return &updated, nil
}

// GetActive returns the organization sess currently points at. A session with no pointer
// yields an empty Selection. A pointer to an organization the user has left, or that no
// longer exists, is cleared and reported with Reselect set.
func (s *Selector) GetActive(ctx context.Context, sess *sessiondomain.Session) (Selection, error) {
	if sess == nil {
		return Selection{}, apperr.Unauthenticated("no session")
	}
	stored, err := s.sessions.GetByTokenHash(ctx, sess.TokenHash)
	if err != nil {
		return Selection{}, fmt.Errorf("load session: %w", err)
	}
	orgID := stored.ActiveOrgID()
	if orgID == "" {
		return Selection{}, nil
	}
	m, err := s.directory.GetMembership(ctx, sess.UserID, orgID)
	if err != nil {
		return Selection{}, err
	}
	var org *orgdomain.Org
	if m != nil {
		if org, err = s.directory.GetOrganization(ctx, orgID); err != nil {
			return Selection{}, err
		}
	}
	if m == nil || org == nil {
		if err := s.sessions.ClearActiveOrgIf(ctx, sess.TokenHash, orgID); err != nil {
			return Selection{}, fmt.Errorf("clear stale active organization: %w", err)
		}
		s.log.Debug().Str("user_id", sess.UserID).Str("org_id", orgID).Msg("cleared stale active organization")
		return Selection{Reselect: true}, nil
	}
	return Selection{Organization: org, Role: m.Role}, nil
}

// Clear removes the pointer from sess.
func (s *Selector) Clear(ctx context.Context, sess *sessiondomain.Session) error {
	if sess == nil {
		return apperr.Unauthenticated("no session")
	}
	if err := s.sessions.ClearActiveOrg(ctx, sess.TokenHash); err != nil {
		return fmt.Errorf("clear active organization: %w", err)
	}
	return nil
}

// DisplayOrganization picks what to show in an organization switcher: the active
// organization when there is one, otherwise the first organization the user joined.
// The fallback is for display only and is never persisted.
func DisplayOrganization(sel Selection, orgs []orgdomain.UserOrganization) *orgdomain.UserOrganization {
	if sel.Organization != nil {
		for i := range orgs {
			if orgs[i].ID == sel.Organization.ID {
				return &orgs[i]
			}
		}
		return &orgdomain.UserOrganization{Org: *sel.Organization, Role: sel.Role}
	}
	if len(orgs) == 0 {
		return nil
	}
	return &orgs[0]
}
