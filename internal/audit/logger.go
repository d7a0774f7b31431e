// Package audit records security-relevant events (sign-in, membership and invitation changes).
// Recording is best-effort: failures are logged and never surface to the caller.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"orgsession/internal/audit/domain"
	auditrepo "orgsession/internal/audit/repository"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// Recorder writes a single audit event with explicit action/resource.
type Recorder interface {
	LogEvent(ctx context.Context, orgID, userID, action, resource, metadata string)
}

// Nop discards every event.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string, string, string) {}

// Logger implements Recorder using the audit repository, an optional OTel record
// emitter and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	emitter     recordEmitter
	ipExtractor IPExtractor
	log         zerolog.Logger
	now         func() time.Time
}

// NewLogger returns a Logger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, logger zerolog.Logger) *Logger {
	return &Logger{
		repo:        repo,
		ipExtractor: ipExtractor,
		log:         logger.With().Str("component", "audit").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// LogEvent writes one audit log entry.
func (l *Logger) LogEvent(ctx context.Context, orgID, userID, action, resource, metadata string) {
	if l == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.now(),
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, entry); err != nil {
			l.log.Error().Err(err).Str("action", action).Str("resource", resource).Msg("failed to persist audit event")
		}
	}
	if l.emitter != nil {
		l.emitter.Emit(ctx, recordFor(entry))
	}
}

// List returns the newest entries for orgID. limit is clamped to [1, 200].
func (l *Logger) List(ctx context.Context, orgID string, limit, offset int32) ([]*domain.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if l == nil || l.repo == nil {
		return nil, nil
	}
	return l.repo.ListByOrg(ctx, orgID, limit, offset)
}
