package memory

import (
	"context"

	memberdomain "orgsession/internal/membership/domain"
	"orgsession/internal/platform/apperr"
)

// MembershipRepository implements membership/repository.Repository.
type MembershipRepository struct{ s *Store }

func (r *MembershipRepository) GetMembershipByUserAndOrg(_ context.Context, userID, orgID string) (*memberdomain.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.memberships[memberKey(userID, orgID)]
	if !ok {
		return nil, nil
	}
	m := row.m
	return &m, nil
}

func (r *MembershipRepository) ListMembershipsByOrg(_ context.Context, orgID string) ([]*memberdomain.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.s.membershipsWhere(func(m memberdomain.Membership) bool { return m.OrgID == orgID })
	out := make([]*memberdomain.Membership, len(rows))
	for i := range rows {
		m := rows[i].m
		out[i] = &m
	}
	return out, nil
}

func (r *MembershipRepository) CreateMembership(_ context.Context, m *memberdomain.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.insertMembershipLocked(m)
}

func (s *Store) insertMembershipLocked(m *memberdomain.Membership) error {
	if _, ok := s.orgs[m.OrgID]; !ok {
		return apperr.NotFound("user or organization not found")
	}
	if _, ok := s.users[m.UserID]; !ok {
		return apperr.NotFound("user or organization not found")
	}
	key := memberKey(m.UserID, m.OrgID)
	if _, exists := s.memberships[key]; exists {
		return apperr.Conflict("user is already a member of this organization")
	}
	s.seq++
	s.memberships[key] = membershipRow{m: *m, seq: s.seq}
	return nil
}

func (s *Store) countOwnersLocked(orgID string) int64 {
	var n int64
	for _, row := range s.memberships {
		if row.m.OrgID == orgID && row.m.Role == memberdomain.RoleOwner {
			n++
		}
	}
	return n
}

func (r *MembershipRepository) RemoveMembership(_ context.Context, userID, orgID string) (*memberdomain.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := memberKey(userID, orgID)
	row, ok := r.s.memberships[key]
	if !ok {
		return nil, apperr.NotFound("membership not found")
	}
	if row.m.Role == memberdomain.RoleOwner && r.s.countOwnersLocked(orgID) <= 1 {
		return nil, apperr.InvariantViolation("cannot remove the last owner of an organization")
	}
	delete(r.s.memberships, key)
	m := row.m
	return &m, nil
}
