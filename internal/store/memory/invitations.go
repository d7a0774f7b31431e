package memory

import (
	"context"
	"sort"
	"time"

	invdomain "orgsession/internal/invitation/domain"
	memberdomain "orgsession/internal/membership/domain"
	"orgsession/internal/platform/apperr"
)

// InvitationRepository implements invitation/repository.Repository.
type InvitationRepository struct{ s *Store }

func copyInvitation(inv invdomain.Invitation) *invdomain.Invitation {
	inv.LastSentAt = timePtr(inv.LastSentAt)
	return &inv
}

func (r *InvitationRepository) Create(_ context.Context, inv *invdomain.Invitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.invitations[inv.ID]; exists {
		return apperr.Conflict("invitation %s already exists", inv.ID)
	}
	r.s.invitations[inv.ID] = *copyInvitation(*inv)
	return nil
}

func (r *InvitationRepository) GetByID(_ context.Context, id string) (*invdomain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invitations[id]
	if !ok {
		return nil, nil
	}
	return copyInvitation(inv), nil
}

func (r *InvitationRepository) ListByOrgAndStatus(_ context.Context, orgID string, status invdomain.Status) ([]*invdomain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*invdomain.Invitation
	for _, inv := range r.s.invitations {
		if inv.OrgID == orgID && inv.Status == status {
			out = append(out, copyInvitation(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *InvitationRepository) TransitionFromPending(_ context.Context, id string, to invdomain.Status, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invitations[id]
	if !ok || inv.Status != invdomain.StatusPending {
		return false, nil
	}
	inv.Status = to
	inv.UpdatedAt = now
	r.s.invitations[id] = inv
	return true, nil
}

func (r *InvitationRepository) AcceptAndJoin(_ context.Context, id string, m *memberdomain.Membership, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invitations[id]
	if !ok || inv.Status != invdomain.StatusPending || !now.Before(inv.ExpiresAt) {
		return apperr.InvalidState("invitation is no longer pending")
	}
	if err := r.s.insertMembershipLocked(m); err != nil {
		return err
	}
	inv.Status = invdomain.StatusAccepted
	inv.UpdatedAt = now
	r.s.invitations[id] = inv
	return nil
}

func (r *InvitationRepository) MarkResent(_ context.Context, id string, now, expiresAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invitations[id]
	if !ok || inv.Status != invdomain.StatusPending || !now.Before(inv.ExpiresAt) {
		return false, nil
	}
	sent := now
	inv.LastSentAt = &sent
	inv.UpdatedAt = now
	inv.ExpiresAt = expiresAt
	r.s.invitations[id] = inv
	return true, nil
}

func (r *InvitationRepository) ExpirePending(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, inv := range r.s.invitations {
		if inv.ExpiredAt(now) {
			inv.Status = invdomain.StatusExpired
			inv.UpdatedAt = now
			r.s.invitations[id] = inv
			n++
		}
	}
	return n, nil
}
