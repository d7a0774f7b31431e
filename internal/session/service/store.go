// Package service maps opaque bearer credentials to sessions.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"orgsession/internal/metrics"
	"orgsession/internal/security"
	"orgsession/internal/session/domain"
	"orgsession/internal/session/repository"
)

// Store creates, resolves and destroys sessions. Absence is reported as (nil, nil);
// errors are storage failures only.
type Store struct {
	repo    repository.Repository
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewStore returns a Store issuing sessions that live for ttl.
func NewStore(repo repository.Repository, ttl time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Store {
	return &Store{
		repo:    repo,
		ttl:     ttl,
		metrics: m,
		logger:  logger.With().Str("component", "session_store").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Create mints a new session for userID. The returned Session carries the plaintext Token;
// it is the only time the token is available.
func (s *Store) Create(ctx context.Context, userID string) (*domain.Session, error) {
	if userID == "" {
		return nil, errors.New("session: user id is required")
	}
	token, err := security.NewSessionToken()
	if err != nil {
		return nil, fmt.Errorf("session: mint token: %w", err)
	}
	now := s.now()
	sess := &domain.Session{
		Token:     token,
		TokenHash: security.HashToken(token),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}
	s.logger.Debug().Str("user_id", userID).Time("expires_at", sess.ExpiresAt).Msg("session created")
	return sess, nil
}

// Resolve returns the live session for token or nil. Malformed, unknown and expired tokens
// all resolve to nil; an expired session is deleted on the way out so it cannot come back.
func (s *Store) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	if !security.WellFormedSessionToken(token) {
		if token != "" {
			s.metrics.SessionResolved("malformed")
		} else {
			s.metrics.SessionResolved("absent")
		}
		return nil, nil
	}
	hash := security.HashToken(token)
	sess, err := s.repo.GetByTokenHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("session: resolve: %w", err)
	}
	if sess == nil {
		s.metrics.SessionResolved("absent")
		return nil, nil
	}
	now := s.now()
	if sess.Expired(now) {
		s.metrics.SessionResolved("expired")
		if err := s.repo.DeleteIfExpired(ctx, hash, now); err != nil {
			return nil, fmt.Errorf("session: delete expired: %w", err)
		}
		return nil, nil
	}
	sess.Token = token
	s.metrics.SessionResolved("valid")
	return sess, nil
}

// ResolveRequest resolves the credentials carried by r through tr.
func (s *Store) ResolveRequest(ctx context.Context, r *http.Request, tr *Transport) (*domain.Session, error) {
	return s.Resolve(ctx, tr.TokenFromRequest(r))
}

// Destroy deletes the session for token. Destroying an unknown session is not an error.
func (s *Store) Destroy(ctx context.Context, token string) error {
	if !security.WellFormedSessionToken(token) {
		return nil
	}
	if err := s.repo.Delete(ctx, security.HashToken(token)); err != nil {
		return fmt.Errorf("session: destroy: %w", err)
	}
	return nil
}

// DestroyAllForUser signs the user out everywhere.
func (s *Store) DestroyAllForUser(ctx context.Context, userID string) error {
	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("session: destroy all: %w", err)
	}
	return nil
}

// PurgeExpired removes every expired session and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("session: purge: %w", err)
	}
	s.metrics.Swept("sessions_purged", n)
	return n, nil
}
