package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"orgsession/internal/db"
	"orgsession/internal/membership/domain"
	"orgsession/internal/platform/apperr"
)

const membershipColumns = `id, user_id, org_id, role, created_at`

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a membership repository that uses the given pool for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetMembershipByUserAndOrg returns the membership for the given user and org, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetMembershipByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 AND org_id = $2`, userID, orgID)
	return scanMembership(row)
}

// ListMembershipsByOrg returns all memberships for the given org. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListMembershipsByOrg(ctx context.Context, orgID string) ([]*domain.Membership, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE org_id = $1 ORDER BY seq`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateMembership persists the membership. The membership must have ID set.
func (r *PostgresRepository) CreateMembership(ctx context.Context, m *domain.Membership) error {
	return insertMembership(ctx, r.db, m)
}

// RemoveMembership locks the organization row so concurrent removals in the same org
// serialize, then checks the owner count and deletes in the same transaction.
func (r *PostgresRepository) RemoveMembership(ctx context.Context, userID, orgID string) (*domain.Membership, error) {
	var removed *domain.Membership
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var lockedID string
		err := tx.QueryRow(ctx, `SELECT id FROM organizations WHERE id = $1 FOR UPDATE`, orgID).Scan(&lockedID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("membership not found")
		}
		if err != nil {
			return err
		}

		m, err := scanMembership(tx.QueryRow(ctx,
			`SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 AND org_id = $2`, userID, orgID))
		if err != nil {
			return err
		}
		if m == nil {
			return apperr.NotFound("membership not found")
		}

		if m.Role == domain.RoleOwner {
			var owners int64
			if err := tx.QueryRow(ctx,
				`SELECT count(*) FROM memberships WHERE org_id = $1 AND role = 'owner'`, orgID).Scan(&owners); err != nil {
				return err
			}
			if owners <= 1 {
				return apperr.InvariantViolation("cannot remove the last owner of an organization")
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM memberships WHERE id = $1`, m.ID); err != nil {
			return err
		}
		removed = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// InsertTx inserts a membership inside a caller-owned transaction. Used by the organization
// and invitation repositories to create memberships atomically with their own writes.
func InsertTx(ctx context.Context, tx pgx.Tx, m *domain.Membership) error {
	return insertMembership(ctx, tx, m)
}

func insertMembership(ctx context.Context, conn db.DBTX, m *domain.Membership) error {
	_, err := conn.Exec(ctx,
		`INSERT INTO memberships (id, user_id, org_id, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.UserID, m.OrgID, string(m.Role), m.CreatedAt)
	switch {
	case db.IsUniqueViolation(err):
		return apperr.Conflict("user is already a member of this organization")
	case db.IsForeignKeyViolation(err):
		return apperr.NotFound("user or organization not found")
	}
	return err
}

func scanMembership(row pgx.Row) (*domain.Membership, error) {
	var m domain.Membership
	var role string
	if err := row.Scan(&m.ID, &m.UserID, &m.OrgID, &role, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	m.Role = domain.Role(role)
	return &m, nil
}
