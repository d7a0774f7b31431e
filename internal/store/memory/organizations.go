package memory

import (
	"context"
	"strings"

	memberdomain "orgsession/internal/membership/domain"
	orgdomain "orgsession/internal/organization/domain"
	"orgsession/internal/platform/apperr"
)

// OrgRepository implements organization/repository.Repository.
type OrgRepository struct{ s *Store }

func (r *OrgRepository) GetOrganizationByID(_ context.Context, id string) (*orgdomain.Org, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orgs[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *OrgRepository) GetOrganizationBySlug(_ context.Context, slug string) (*orgdomain.Org, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orgs {
		if strings.EqualFold(o.Slug, slug) {
			return &o, nil
		}
	}
	return nil, nil
}

func (r *OrgRepository) CreateWithOwner(_ context.Context, o *orgdomain.Org, owner *memberdomain.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.slugTakenLocked(o.Slug) {
		return apperr.Conflict("slug %q is already taken", o.Slug)
	}
	if _, ok := r.s.users[owner.UserID]; !ok {
		return apperr.NotFound("user or organization not found")
	}
	r.s.orgs[o.ID] = *o
	r.s.seq++
	r.s.memberships[memberKey(owner.UserID, o.ID)] = membershipRow{m: *owner, seq: r.s.seq}
	return nil
}

func (r *OrgRepository) ListForUser(_ context.Context, userID string) ([]orgdomain.UserOrganization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.s.membershipsWhere(func(m memberdomain.Membership) bool { return m.UserID == userID })
	out := make([]orgdomain.UserOrganization, 0, len(rows))
	for _, row := range rows {
		o, ok := r.s.orgs[row.m.OrgID]
		if !ok {
			continue
		}
		out = append(out, orgdomain.UserOrganization{Org: o, Role: row.m.Role, JoinedAt: row.m.CreatedAt})
	}
	return out, nil
}

func (r *OrgRepository) DeleteOrganization(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deleteOrgLocked(id)
	return nil
}
