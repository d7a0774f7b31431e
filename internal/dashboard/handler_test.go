package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgsession/internal/activeorg"
	"orgsession/internal/nav"
	orgservice "orgsession/internal/organization/service"
	"orgsession/internal/policy"
	"orgsession/internal/server/middleware"
	sessiondomain "orgsession/internal/session/domain"
	sessionservice "orgsession/internal/session/service"
	"orgsession/internal/store/memory"
	userdomain "orgsession/internal/user/domain"
)

type fixture struct {
	router   http.Handler
	dir      *orgservice.Directory
	selector *activeorg.Selector
	sessions *sessionservice.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	require.NoError(t, s.Users().Create(context.Background(), &userdomain.User{ID: "alice", Email: "alice@example.com"}))
	dir := orgservice.NewDirectory(s.Organizations(), s.Memberships(), policy.NewRoleChecker(), nil, zerolog.Nop())
	sel := activeorg.NewSelector(s.Sessions(), dir, nil, zerolog.Nop())
	r := chi.NewRouter()
	NewHandler(dir, sel, nav.DefaultItems(), zerolog.Nop()).Register(r)
	return &fixture{router: r, dir: dir, selector: sel, sessions: sessionservice.NewStore(s.Sessions(), time.Hour, nil, zerolog.Nop())}
}

func (f *fixture) get(sess *sessiondomain.Session, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if sess != nil {
		req = req.WithContext(middleware.WithSession(req.Context(), sess))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeContext(t *testing.T, rec *httptest.ResponseRecorder) Context {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var c Context
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	return c
}

func TestContext_NoOrganizations(t *testing.T) {
	f := newFixture(t)
	sess, err := f.sessions.Create(context.Background(), "alice")
	require.NoError(t, err)

	c := decodeContext(t, f.get(sess, "/dashboard/overview"))
	assert.True(t, c.NeedsOrganization)
	assert.Nil(t, c.Display)
	assert.Empty(t, c.Organizations)
	require.NotEmpty(t, c.Nav)
	assert.Equal(t, "Dashboard", c.Nav[0].Title)
}

func TestContext_DisplayFallbackIsNotPersisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.sessions.Create(ctx, "alice")
	require.NoError(t, err)
	first, err := f.dir.CreateOrganization(ctx, "alice", "First", "first", "")
	require.NoError(t, err)
	_, err = f.dir.CreateOrganization(ctx, "alice", "Second", "second", "")
	require.NoError(t, err)

	c := decodeContext(t, f.get(sess, "/dashboard"))
	require.NotNil(t, c.Display)
	assert.Equal(t, first.ID, c.Display.ID)
	assert.Nil(t, c.Active.Organization)

	sel, err := f.selector.GetActive(ctx, sess)
	require.NoError(t, err)
	assert.Nil(t, sel.Organization, "display fallback must not set the active organization")
}

func TestContext_ActiveOrganizationWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.sessions.Create(ctx, "alice")
	require.NoError(t, err)
	_, err = f.dir.CreateOrganization(ctx, "alice", "First", "first", "")
	require.NoError(t, err)
	second, err := f.dir.CreateOrganization(ctx, "alice", "Second", "second", "")
	require.NoError(t, err)
	sess, err = f.selector.SetActive(ctx, sess, second.ID)
	require.NoError(t, err)

	c := decodeContext(t, f.get(sess, "/dashboard"))
	require.NotNil(t, c.Display)
	assert.Equal(t, second.ID, c.Display.ID)
	var titles []string
	for _, it := range c.Nav {
		titles = append(titles, it.Title)
	}
	assert.Contains(t, titles, "Audit log", "owners see the audit log")
}

func TestNav_RequiresSession(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusUnauthorized, f.get(nil, "/api/nav").Code)

	sess, err := f.sessions.Create(context.Background(), "alice")
	require.NoError(t, err)
	rec := f.get(sess, "/api/nav")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Organizations")
	assert.NotContains(t, rec.Body.String(), "Audit log")
}
