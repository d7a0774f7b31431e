package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"orgsession/internal/db"
	"orgsession/internal/platform/apperr"
	"orgsession/internal/user/domain"
)

const userColumns = `id, email, name, password_hash, email_verified, created_at, updated_at`

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a user repository that uses the given pool for persistence.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, email, name, password_hash, email_verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.EmailVerified, u.CreatedAt, u.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("email %q is already registered", u.Email)
	}
	return err
}

func (r *PostgresRepository) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET email_verified = $2, updated_at = $3 WHERE id = $1`,
		id, verified, time.Now().UTC())
	return err
}

// Delete removes the user; memberships and sessions cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
