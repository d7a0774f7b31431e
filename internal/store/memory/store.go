// Package memory is an in-process backend implementing every repository interface.
// One mutex guards all tables, so multi-record operations are atomic the same way a
// Postgres transaction makes them atomic. Used when DATABASE_URL is unset and in tests.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	auditdomain "orgsession/internal/audit/domain"
	invdomain "orgsession/internal/invitation/domain"
	memberdomain "orgsession/internal/membership/domain"
	orgdomain "orgsession/internal/organization/domain"
	sessiondomain "orgsession/internal/session/domain"
	userdomain "orgsession/internal/user/domain"
)

type membershipRow struct {
	m   memberdomain.Membership
	seq int64
}

// Store holds all tables. Use the accessor methods to get per-domain repositories.
type Store struct {
	mu          sync.Mutex
	users       map[string]userdomain.User
	orgs        map[string]orgdomain.Org
	memberships map[string]membershipRow // key: userID + "|" + orgID
	sessions    map[string]sessiondomain.Session
	invitations map[string]invdomain.Invitation
	auditLogs   []auditdomain.AuditLog
	seq         int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:       make(map[string]userdomain.User),
		orgs:        make(map[string]orgdomain.Org),
		memberships: make(map[string]membershipRow),
		sessions:    make(map[string]sessiondomain.Session),
		invitations: make(map[string]invdomain.Invitation),
	}
}

func (s *Store) Users() *UserRepository             { return &UserRepository{s} }
func (s *Store) Organizations() *OrgRepository      { return &OrgRepository{s} }
func (s *Store) Memberships() *MembershipRepository { return &MembershipRepository{s} }
func (s *Store) Sessions() *SessionRepository       { return &SessionRepository{s} }
func (s *Store) Invitations() *InvitationRepository { return &InvitationRepository{s} }
func (s *Store) AuditLogs() *AuditRepository        { return &AuditRepository{s} }

func memberKey(userID, orgID string) string { return userID + "|" + orgID }

// membershipsWhere returns matching memberships in insertion order. Caller holds mu.
func (s *Store) membershipsWhere(match func(memberdomain.Membership) bool) []membershipRow {
	var out []membershipRow
	for _, row := range s.memberships {
		if match(row.m) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// deleteOrgLocked removes an org and cascades like the Postgres foreign keys. Caller holds mu.
func (s *Store) deleteOrgLocked(orgID string) {
	delete(s.orgs, orgID)
	for k, row := range s.memberships {
		if row.m.OrgID == orgID {
			delete(s.memberships, k)
		}
	}
	for k, sess := range s.sessions {
		if sess.ActiveOrgID() == orgID {
			sess.ActiveOrganizationID = nil
			s.sessions[k] = sess
		}
	}
}

func (s *Store) deleteUserLocked(userID string) {
	delete(s.users, userID)
	for k, row := range s.memberships {
		if row.m.UserID == userID {
			delete(s.memberships, k)
		}
	}
	for k, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, k)
		}
	}
}

func (s *Store) slugTakenLocked(slug string) bool {
	for _, o := range s.orgs {
		if strings.EqualFold(o.Slug, slug) {
			return true
		}
	}
	return false
}

func strPtr(v string) *string { return &v }

func timePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
