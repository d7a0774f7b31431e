package repository

import (
	"context"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"orgsession/internal/db"
	"orgsession/internal/invitation/domain"
	memberdomain "orgsession/internal/membership/domain"
	memberrepo "orgsession/internal/membership/repository"
	"orgsession/internal/platform/apperr"
)

const invitationColumns = `id, org_id, email, role, inviter_id, status, created_at, updated_at, expires_at, last_sent_at`

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an invitation repository that uses the given pool for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

type invitationRow struct {
	ID         string     `db:"id"`
	OrgID      string     `db:"org_id"`
	Email      string     `db:"email"`
	Role       string     `db:"role"`
	InviterID  string     `db:"inviter_id"`
	Status     string     `db:"status"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
	ExpiresAt  time.Time  `db:"expires_at"`
	LastSentAt *time.Time `db:"last_sent_at"`
}

func (r invitationRow) toDomain() *domain.Invitation {
	return &domain.Invitation{
		ID:         r.ID,
		OrgID:      r.OrgID,
		Email:      r.Email,
		Role:       memberdomain.Role(r.Role),
		InviterID:  r.InviterID,
		Status:     domain.Status(r.Status),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		ExpiresAt:  r.ExpiresAt,
		LastSentAt: r.LastSentAt,
	}
}

func (r *PostgresRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO invitations (`+invitationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		inv.ID, inv.OrgID, inv.Email, string(inv.Role), inv.InviterID, string(inv.Status),
		inv.CreatedAt, inv.UpdatedAt, inv.ExpiresAt, inv.LastSentAt)
	return err
}

// GetByID returns the invitation for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Invitation, error) {
	var row invitationRow
	err := pgxscan.Get(ctx, r.db, &row, `SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id)
	if err != nil {
		if pgxscan.NotFound(err) || errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *PostgresRepository) ListByOrgAndStatus(ctx context.Context, orgID string, status domain.Status) ([]*domain.Invitation, error) {
	var rows []invitationRow
	err := pgxscan.Select(ctx, r.db, &rows,
		`SELECT `+invitationColumns+` FROM invitations WHERE org_id = $1 AND status = $2 ORDER BY created_at`,
		orgID, string(status))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Invitation, len(rows))
	for i := range rows {
		out[i] = rows[i].toDomain()
	}
	return out, nil
}

// TransitionFromPending is a compare-and-set on status.
func (r *PostgresRepository) TransitionFromPending(ctx context.Context, id string, to domain.Status, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE invitations SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'pending'`,
		id, string(to), now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AcceptAndJoin claims the invitation with a conditional UPDATE and inserts the membership
// in the same transaction; a duplicate membership rolls the claim back.
func (r *PostgresRepository) AcceptAndJoin(ctx context.Context, id string, m *memberdomain.Membership, now time.Time) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE invitations SET status = 'accepted', updated_at = $2
			  WHERE id = $1 AND status = 'pending' AND expires_at > $2`,
			id, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return apperr.InvalidState("invitation is no longer pending")
		}
		return memberrepo.InsertTx(ctx, tx, m)
	})
}

func (r *PostgresRepository) MarkResent(ctx context.Context, id string, now, expiresAt time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE invitations SET last_sent_at = $2, updated_at = $2, expires_at = $3
		  WHERE id = $1 AND status = 'pending' AND expires_at > $2`,
		id, now, expiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRepository) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE invitations SET status = 'expired', updated_at = $1 WHERE status = 'pending' AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
