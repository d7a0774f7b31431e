package repository

import (
	"context"
	"time"

	"orgsession/internal/invitation/domain"
	memberdomain "orgsession/internal/membership/domain"
)

// Repository defines persistence for invitations. Invitations are never deleted.
type Repository interface {
	Create(ctx context.Context, inv *domain.Invitation) error
	// GetByID returns the invitation or nil if absent.
	GetByID(ctx context.Context, id string) (*domain.Invitation, error)
	ListByOrgAndStatus(ctx context.Context, orgID string, status domain.Status) ([]*domain.Invitation, error)
	// TransitionFromPending moves a pending invitation to `to`. Returns false if it was no longer pending.
	TransitionFromPending(ctx context.Context, id string, to domain.Status, now time.Time) (bool, error)
	// AcceptAndJoin marks the invitation accepted and inserts the membership in one transaction.
	// Returns apperr InvalidState when the invitation is no longer pending and apperr Conflict
	// when the user is already a member; neither write happens in those cases.
	AcceptAndJoin(ctx context.Context, id string, m *memberdomain.Membership, now time.Time) error
	// MarkResent records a resend and extends expiry. Returns false unless still pending and unexpired at now.
	MarkResent(ctx context.Context, id string, now, expiresAt time.Time) (bool, error)
	// ExpirePending transitions every pending invitation past its expiry at now and returns the count.
	ExpirePending(ctx context.Context, now time.Time) (int64, error)
}
