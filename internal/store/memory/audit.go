package memory

import (
	"context"

	auditdomain "orgsession/internal/audit/domain"
)

// AuditRepository is an append-only audit log.
type AuditRepository struct{ s *Store }

func (r *AuditRepository) Create(_ context.Context, a *auditdomain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.auditLogs = append(r.s.auditLogs, *a)
	return nil
}

// ListByOrg returns entries for orgID, newest first.
func (r *AuditRepository) ListByOrg(_ context.Context, orgID string, limit, offset int32) ([]*auditdomain.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*auditdomain.AuditLog
	skipped := int32(0)
	for i := len(r.s.auditLogs) - 1; i >= 0 && int32(len(out)) < limit; i-- {
		a := r.s.auditLogs[i]
		if a.OrgID != orgID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, &a)
	}
	return out, nil
}
