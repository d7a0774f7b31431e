//go:build integration

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"os/exec"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"orgsession/internal/db"
	"orgsession/internal/db/migrate"
	"orgsession/internal/store"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if exec.Command("docker", "info").Run() != nil {
		t.Skip("docker is not available")
	}
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("orgsession_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, migrate.Run(dsn, migrate.Up))
	return dsn
}

func TestPostgresInvitationFlow(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()
	pool, err := db.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	a, err := New(ctx, testConfig(), Deps{Repos: store.Postgres(pool), Pinger: pool}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	require.NoError(t, a.Health.Ready(ctx))

	owner := &client{t: t, h: a.Handler}
	owner.signUp("owner@example.com")
	rec := owner.do(http.MethodPost, "/api/organizations?activate=true", map[string]string{"name": "Acme", "slug": "acme"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Organization struct {
			ID string `json:"id"`
		} `json:"organization"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	orgID := created.Organization.ID

	rec = owner.do(http.MethodPost, "/api/organizations", map[string]string{"name": "Other", "slug": "ACME"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = owner.do(http.MethodPost, "/api/organizations/"+orgID+"/invitations", map[string]string{"email": "invitee@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))

	invitee := &client{t: t, h: a.Handler}
	invitee.signUp("invitee@example.com")
	rec = invitee.do(http.MethodPost, "/api/invitations/"+inv.ID+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = invitee.do(http.MethodPost, "/api/invitations/"+inv.ID+"/accept", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = owner.do(http.MethodGet, "/api/organizations/"+orgID+"/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var members struct {
		Members []json.RawMessage `json:"members"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &members))
	assert.Len(t, members.Members, 2)

	assert.Equal(t, http.StatusForbidden, invitee.do(http.MethodPut, "/api/organizations/active", map[string]string{"organizationId": "abc"}).Code)
	assert.Equal(t, http.StatusNotFound, invitee.do(http.MethodPost, "/api/invitations/abc/accept", nil).Code)
	assert.Equal(t, http.StatusForbidden, owner.do(http.MethodGet, "/api/organizations/abc/members", nil).Code)

	n, err := a.Sessions.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
