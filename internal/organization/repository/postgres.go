package repository

import (
	"context"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"orgsession/internal/db"
	memberdomain "orgsession/internal/membership/domain"
	memberrepo "orgsession/internal/membership/repository"
	"orgsession/internal/organization/domain"
	"orgsession/internal/platform/apperr"
)

const orgColumns = `id, name, slug, COALESCE(logo, '') AS logo, created_at`

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an organization repository that uses the given pool for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetOrganizationByID returns the organization for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error) {
	return scanOrg(r.db.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
}

// GetOrganizationBySlug returns the organization with the slug, or nil if not found.
func (r *PostgresRepository) GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Org, error) {
	return scanOrg(r.db.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE lower(slug) = lower($1)`, slug))
}

// CreateWithOwner inserts the organization and its first owner in one transaction.
// The unique index on lower(slug) decides conflicts, so concurrent creates with
// case-variant slugs cannot both succeed.
func (r *PostgresRepository) CreateWithOwner(ctx context.Context, o *domain.Org, owner *memberdomain.Membership) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var logo *string
		if o.Logo != "" {
			logo = &o.Logo
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO organizations (id, name, slug, logo, created_at) VALUES ($1, $2, $3, $4, $5)`,
			o.ID, o.Name, o.Slug, logo, o.CreatedAt)
		if db.IsUniqueViolation(err) {
			return apperr.Conflict("slug %q is already taken", o.Slug)
		}
		if err != nil {
			return err
		}
		return memberrepo.InsertTx(ctx, tx, owner)
	})
}

type userOrgRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Slug      string    `db:"slug"`
	Logo      string    `db:"logo"`
	CreatedAt time.Time `db:"created_at"`
	Role      string    `db:"role"`
	JoinedAt  time.Time `db:"joined_at"`
}

// ListForUser returns the user's organizations with the user's role in each.
func (r *PostgresRepository) ListForUser(ctx context.Context, userID string) ([]domain.UserOrganization, error) {
	var rows []userOrgRow
	err := pgxscan.Select(ctx, r.db, &rows,
		`SELECT o.id, o.name, o.slug, COALESCE(o.logo, '') AS logo, o.created_at,
		        m.role, m.created_at AS joined_at
		   FROM memberships m
		   JOIN organizations o ON o.id = m.org_id
		  WHERE m.user_id = $1
		  ORDER BY m.seq`, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserOrganization, len(rows))
	for i, row := range rows {
		out[i] = domain.UserOrganization{
			Org: domain.Org{
				ID: row.ID, Name: row.Name, Slug: row.Slug, Logo: row.Logo, CreatedAt: row.CreatedAt,
			},
			Role:     memberdomain.Role(row.Role),
			JoinedAt: row.JoinedAt,
		}
	}
	return out, nil
}

// DeleteOrganization removes the organization. Memberships cascade and sessions pointing at
// it have their active organization cleared by the foreign key.
func (r *PostgresRepository) DeleteOrganization(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	return err
}

func scanOrg(row pgx.Row) (*domain.Org, error) {
	var o domain.Org
	if err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Logo, &o.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}
