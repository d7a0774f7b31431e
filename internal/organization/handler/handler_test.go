package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgsession/internal/activeorg"
	"orgsession/internal/audit"
	"orgsession/internal/organization/service"
	"orgsession/internal/policy"
	"orgsession/internal/server/middleware"
	sessiondomain "orgsession/internal/session/domain"
	sessionservice "orgsession/internal/session/service"
	"orgsession/internal/store/memory"
	userdomain "orgsession/internal/user/domain"
)

type fixture struct {
	router   http.Handler
	sessions *sessionservice.Store
	store    *memory.Store
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()
	s := memory.New()
	for _, id := range users {
		require.NoError(t, s.Users().Create(context.Background(), &userdomain.User{ID: id, Email: id + "@example.com"}))
	}
	rec := audit.NewLogger(s.AuditLogs(), middleware.ClientIP, zerolog.Nop())
	dir := service.NewDirectory(s.Organizations(), s.Memberships(), policy.NewRoleChecker(), rec, zerolog.Nop())
	sel := activeorg.NewSelector(s.Sessions(), dir, rec, zerolog.Nop())
	r := chi.NewRouter()
	NewHandler(dir, sel, rec, zerolog.Nop()).Register(r)
	return &fixture{
		router:   r,
		sessions: sessionservice.NewStore(s.Sessions(), time.Hour, nil, zerolog.Nop()),
		store:    s,
	}
}

func (f *fixture) session(t *testing.T, userID string) *sessiondomain.Session {
	t.Helper()
	sess, err := f.sessions.Create(context.Background(), userID)
	require.NoError(t, err)
	return sess
}

func (f *fixture) do(sess *sessiondomain.Session, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if sess != nil {
		req = req.WithContext(middleware.WithSession(req.Context(), sess))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type createdBody struct {
	Organization struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	} `json:"organization"`
	Active bool `json:"active"`
}

func TestCreateAndList(t *testing.T) {
	f := newFixture(t, "alice")
	sess := f.session(t, "alice")

	rec := f.do(sess, http.MethodPost, "/api/organizations", `{"name":"Acme Rockets"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[createdBody](t, rec)
	assert.Equal(t, "acme-rockets", created.Organization.Slug)
	assert.False(t, created.Active)

	rec = f.do(sess, http.MethodGet, "/api/organizations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"owner"`)

	rec = f.do(sess, http.MethodPost, "/api/organizations", `{"name":"Other","slug":"ACME-ROCKETS"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreate_ActivateSetsActive(t *testing.T) {
	f := newFixture(t, "alice")
	sess := f.session(t, "alice")

	rec := f.do(sess, http.MethodPost, "/api/organizations?activate=true", `{"name":"Acme","slug":"acme"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[createdBody](t, rec)
	assert.True(t, created.Active)

	rec = f.do(sess, http.MethodGet, "/api/organizations/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sel := decode[activeorg.Selection](t, rec)
	require.NotNil(t, sel.Organization)
	assert.Equal(t, created.Organization.ID, sel.Organization.ID)
}

type failingSelector struct {
	Selector
}

func (failingSelector) SetActive(context.Context, *sessiondomain.Session, string) (*sessiondomain.Session, error) {
	return nil, errors.New("session store unavailable")
}

func TestCreate_ActivateFailureStillReportsCreated(t *testing.T) {
	f := newFixture(t, "alice")
	dir := service.NewDirectory(f.store.Organizations(), f.store.Memberships(), policy.NewRoleChecker(), nil, zerolog.Nop())
	r := chi.NewRouter()
	NewHandler(dir, failingSelector{}, nil, zerolog.Nop()).Register(r)
	f.router = r
	sess := f.session(t, "alice")

	rec := f.do(sess, http.MethodPost, "/api/organizations?activate=true", `{"name":"Acme","slug":"acme"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[createdBody](t, rec)
	assert.False(t, created.Active)
	assert.NotEmpty(t, created.Organization.ID)

	orgs, err := dir.ListOrganizationsForUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, orgs, 1)
}

func TestCheckSlug(t *testing.T) {
	f := newFixture(t, "alice")
	sess := f.session(t, "alice")
	require.Equal(t, http.StatusCreated, f.do(sess, http.MethodPost, "/api/organizations", `{"name":"Acme","slug":"acme"}`).Code)

	type slugBody struct {
		Slug      string `json:"slug"`
		Available bool   `json:"available"`
	}
	got := decode[slugBody](t, f.do(sess, http.MethodGet, "/api/organizations/check-slug?slug=ACME", ""))
	assert.Equal(t, slugBody{Slug: "acme", Available: false}, got)

	got = decode[slugBody](t, f.do(sess, http.MethodGet, "/api/organizations/check-slug?name=Acme+Rockets", ""))
	assert.Equal(t, slugBody{Slug: "acme-rockets", Available: true}, got)

	assert.Equal(t, http.StatusBadRequest, f.do(sess, http.MethodGet, "/api/organizations/check-slug?slug=no+spaces", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(nil, http.MethodGet, "/api/organizations/check-slug?slug=x", "").Code)
}

func TestSetActive(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	alice, bob := f.session(t, "alice"), f.session(t, "bob")
	created := decode[createdBody](t, f.do(alice, http.MethodPost, "/api/organizations", `{"name":"Acme","slug":"acme"}`))
	body := `{"organizationId":"` + created.Organization.ID + `"}`

	assert.Equal(t, http.StatusForbidden, f.do(bob, http.MethodPut, "/api/organizations/active", body).Code)
	assert.Equal(t, http.StatusOK, f.do(alice, http.MethodPut, "/api/organizations/active", body).Code)
	assert.Equal(t, http.StatusOK, f.do(alice, http.MethodPut, "/api/organizations/active", body).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(alice, http.MethodPut, "/api/organizations/active", `{"organizationId":""}`).Code)

	assert.Equal(t, http.StatusNoContent, f.do(alice, http.MethodDelete, "/api/organizations/active", "").Code)
	sel := decode[activeorg.Selection](t, f.do(alice, http.MethodGet, "/api/organizations/active", ""))
	assert.Nil(t, sel.Organization)
}

func TestMembers(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	alice, bob := f.session(t, "alice"), f.session(t, "bob")
	created := decode[createdBody](t, f.do(alice, http.MethodPost, "/api/organizations", `{"name":"Acme","slug":"acme"}`))
	base := "/api/organizations/" + created.Organization.ID

	assert.Equal(t, http.StatusForbidden, f.do(bob, http.MethodGet, base+"/members", "").Code)
	require.Equal(t, http.StatusCreated, f.do(alice, http.MethodPost, base+"/members", `{"userId":"bob","role":"member"}`).Code)
	assert.Equal(t, http.StatusConflict, f.do(alice, http.MethodPost, base+"/members", `{"userId":"bob","role":"member"}`).Code)

	rec := f.do(bob, http.MethodGet, base+"/members", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"userId":"bob"`)

	assert.Equal(t, http.StatusForbidden, f.do(bob, http.MethodDelete, base+"/members/alice", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, f.do(alice, http.MethodDelete, base+"/members/alice", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(alice, http.MethodDelete, base+"/members/bob", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(alice, http.MethodDelete, base+"/members/bob", "").Code)
}

func TestDeleteAndAudit(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	alice, bob := f.session(t, "alice"), f.session(t, "bob")
	created := decode[createdBody](t, f.do(alice, http.MethodPost, "/api/organizations", `{"name":"Acme","slug":"acme"}`))
	base := "/api/organizations/" + created.Organization.ID
	require.Equal(t, http.StatusCreated, f.do(alice, http.MethodPost, base+"/members", `{"userId":"bob"}`).Code)

	assert.Equal(t, http.StatusForbidden, f.do(bob, http.MethodGet, base+"/audit", "").Code)
	rec := f.do(alice, http.MethodGet, base+"/audit?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "member_added")

	assert.Equal(t, http.StatusForbidden, f.do(bob, http.MethodDelete, base, "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(alice, http.MethodDelete, base, "").Code)

	rec = f.do(alice, http.MethodGet, "/api/organizations", "")
	assert.JSONEq(t, `{"organizations":[]}`, rec.Body.String())
}

func TestRequiresSession(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusUnauthorized, f.do(nil, http.MethodGet, "/api/organizations", "").Code)
}
