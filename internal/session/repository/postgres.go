package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"orgsession/internal/db"
	"orgsession/internal/session/domain"
)

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a session repository that uses the given pool for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByTokenHash returns the session for the hash, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRow(ctx,
		`SELECT token_hash, user_id, active_org_id, created_at, expires_at FROM sessions WHERE token_hash = $1`,
		tokenHash).Scan(&s.TokenHash, &s.UserID, &s.ActiveOrganizationID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Create persists the session. TokenHash must be set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (token_hash, user_id, active_org_id, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`,
		s.TokenHash, s.UserID, s.ActiveOrganizationID, s.CreatedAt, s.ExpiresAt)
	return err
}

func (r *PostgresRepository) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	return err
}

func (r *PostgresRepository) DeleteIfExpired(ctx context.Context, tokenHash string, now time.Time) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1 AND expires_at <= $2`, tokenHash, now)
	return err
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetActiveOrgIfMember is a single conditional UPDATE: the membership predicate is
// evaluated by Postgres against committed state at write time.
func (r *PostgresRepository) SetActiveOrgIfMember(ctx context.Context, tokenHash, orgID string, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions s SET active_org_id = $2
		  WHERE s.token_hash = $1
		    AND s.expires_at > $3
		    AND EXISTS (SELECT 1 FROM memberships m WHERE m.user_id = s.user_id AND m.org_id = $2)`,
		tokenHash, orgID, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) ClearActiveOrgIf(ctx context.Context, tokenHash, orgID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE sessions SET active_org_id = NULL WHERE token_hash = $1 AND active_org_id = $2`, tokenHash, orgID)
	return err
}

func (r *PostgresRepository) ClearActiveOrg(ctx context.Context, tokenHash string) error {
	_, err := r.db.Exec(ctx, `UPDATE sessions SET active_org_id = NULL WHERE token_hash = $1`, tokenHash)
	return err
}
