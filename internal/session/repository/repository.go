package repository

import (
	"context"
	"time"

	"orgsession/internal/session/domain"
)

// Repository defines persistence for sessions, keyed by token hash.
type Repository interface {
	// GetByTokenHash returns the session or nil if absent. Expired sessions are returned as stored.
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Delete is idempotent.
	Delete(ctx context.Context, tokenHash string) error
	// DeleteIfExpired removes the session only if it is expired at now.
	DeleteIfExpired(ctx context.Context, tokenHash string, now time.Time) error
	DeleteByUser(ctx context.Context, userID string) error
	// DeleteExpired removes all sessions expired at now and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// SetActiveOrgIfMember points the session at orgID only if the session's user is a member
	// of orgID at the moment of the write. Returns false when no row qualified.
	SetActiveOrgIfMember(ctx context.Context, tokenHash, orgID string, now time.Time) (bool, error)
	// ClearActiveOrgIf clears the pointer only if it still equals orgID.
	ClearActiveOrgIf(ctx context.Context, tokenHash, orgID string) error
	// ClearActiveOrg clears the pointer unconditionally.
	ClearActiveOrg(ctx context.Context, tokenHash string) error
}
