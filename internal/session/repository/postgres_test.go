package repository

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgsession/internal/session/domain"
)

var sessionCols = []string{"token_hash", "user_id", "active_org_id", "created_at", "expires_at"}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresRepository(mock)
}

func TestGetByTokenHash(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now().UTC()
	org := "o1"

	mock.ExpectQuery(`FROM sessions WHERE token_hash = \$1`).
		WithArgs("h1").
		WillReturnRows(pgxmock.NewRows(sessionCols).AddRow("h1", "u1", &org, now, now.Add(time.Hour)))

	s, err := repo.GetByTokenHash(context.Background(), "h1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "o1", s.ActiveOrgID())
}

func TestGetByTokenHash_NoActiveOrg(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM sessions`).
		WithArgs("h1").
		WillReturnRows(pgxmock.NewRows(sessionCols).AddRow("h1", "u1", (*string)(nil), now, now.Add(time.Hour)))

	s, err := repo.GetByTokenHash(context.Background(), "h1")
	require.NoError(t, err)
	assert.Nil(t, s.ActiveOrganizationID)
}

func TestGetByTokenHash_Missing(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`FROM sessions`).WithArgs("nope").WillReturnRows(pgxmock.NewRows(sessionCols))

	s, err := repo.GetByTokenHash(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestCreate(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now().UTC()
	s := &domain.Session{TokenHash: "h1", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	mock.ExpectExec(`INSERT INTO sessions`).
		WithArgs("h1", "u1", s.ActiveOrganizationID, s.CreatedAt, s.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetActiveOrgIfMember(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"member", 1, true},
		{"not a member", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newMockRepo(t)
			now := time.Now().UTC()
			mock.ExpectExec(`UPDATE sessions s SET active_org_id = \$2 .+ AND EXISTS \(SELECT 1 FROM memberships m`).
				WithArgs("h1", "o1", now).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			ok, err := repo.SetActiveOrgIfMember(context.Background(), "h1", "o1", now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestClearActiveOrgIf(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectExec(`UPDATE sessions SET active_org_id = NULL WHERE token_hash = \$1 AND active_org_id = \$2`).
		WithArgs("h1", "o1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.ClearActiveOrgIf(context.Background(), "h1", "o1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpired(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
