package repository

import (
	"context"

	"orgsession/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	// ListByOrg returns entries for orgID, newest first.
	ListByOrg(ctx context.Context, orgID string, limit, offset int32) ([]*domain.AuditLog, error)
}
