package repository

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"orgsession/internal/audit/domain"
	"orgsession/internal/db"
)

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an audit log repository that uses the given pool for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

type auditRow struct {
	ID        string    `db:"id"`
	OrgID     string    `db:"org_id"`
	UserID    string    `db:"user_id"`
	Action    string    `db:"action"`
	Resource  string    `db:"resource"`
	IP        string    `db:"ip"`
	Metadata  string    `db:"metadata"`
	CreatedAt time.Time `db:"created_at"`
}

// Create persists the entry. Empty org and user IDs are stored as NULL.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_logs (id, org_id, user_id, action, resource, ip, metadata, created_at)
		 VALUES ($1, NULLIF($2, '')::uuid, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8)`,
		a.ID, a.OrgID, a.UserID, a.Action, a.Resource, a.IP, a.Metadata, a.CreatedAt)
	return err
}

// ListByOrg returns audit logs for the given org, paginated by limit and offset.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string, limit, offset int32) ([]*domain.AuditLog, error) {
	var rows []auditRow
	err := pgxscan.Select(ctx, r.db, &rows,
		`SELECT id::text AS id, COALESCE(org_id::text, '') AS org_id, COALESCE(user_id::text, '') AS user_id,
		        action, resource, ip, metadata, created_at
		 FROM audit_logs WHERE org_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.AuditLog, len(rows))
	for i, row := range rows {
		out[i] = &domain.AuditLog{
			ID: row.ID, OrgID: row.OrgID, UserID: row.UserID, Action: row.Action,
			Resource: row.Resource, IP: row.IP, Metadata: row.Metadata, CreatedAt: row.CreatedAt.UTC(),
		}
	}
	return out, nil
}
