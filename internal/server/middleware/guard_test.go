package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgsession/internal/metrics"
	sessiondomain "orgsession/internal/session/domain"
)

var testGuardConfig = GuardConfig{ProtectedPrefix: "/dashboard", SignInPath: "/auth/sign-in"}

func fixedResolver(sess *sessiondomain.Session, err error, calls *int) ResolveFunc {
	return func(*http.Request) (*sessiondomain.Session, error) {
		*calls++
		return sess, err
	}
}

func echoSession() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := UserIDFrom(r.Context()); ok {
			w.Header().Set("X-User", uid)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestExempt(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/login.css", true},
		{"/img/logo.PNG", true},
		{"/fonts/inter.woff2", true},
		{"/site.webmanifest", true},
		{"/docs/report.xlsx", true},
		{"/_next/chunk", true},
		{"/static/app", true},
		{"/assets/x", true},
		{"/data.json", false},
		{"/dashboard", false},
		{"/dashboard/overview", false},
		{"/api/export.csv", false},
		{"/api", false},
		{"/trpc/org.list.js", false},
		{"/apiary/logo.png", true},
		{"/", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Exempt(tt.path), tt.path)
	}
}

func TestGuard_RedirectsAnonymousDashboard(t *testing.T) {
	calls := 0
	h := Guard(fixedResolver(nil, nil, &calls), testGuardConfig, nil, zerolog.Nop())(echoSession())

	for _, path := range []string{"/dashboard", "/dashboard/overview"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusFound, rec.Code, path)
		assert.Equal(t, "/auth/sign-in", rec.Header().Get("Location"), path)
	}
}

func TestGuard_RedirectsAnythingStartingWithPrefix(t *testing.T) {
	calls := 0
	h := Guard(fixedResolver(nil, nil, &calls), testGuardConfig, nil, zerolog.Nop())(echoSession())

	for _, path := range []string{"/dashboards", "/dashboard-admin", "/dashboardsettings"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusFound, rec.Code, path)
		assert.Equal(t, "/auth/sign-in", rec.Header().Get("Location"), path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dash", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuard_ValidSessionPassesWithIdentity(t *testing.T) {
	calls := 0
	sess := &sessiondomain.Session{UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	h := Guard(fixedResolver(sess, nil, &calls), testGuardConfig, nil, zerolog.Nop())(echoSession())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard/overview", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Header().Get("X-User"))
}

func TestGuard_StaticAssetSkipsResolution(t *testing.T) {
	calls := 0
	h := Guard(fixedResolver(nil, errors.New("must not be called"), &calls), testGuardConfig, nil, zerolog.Nop())(echoSession())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, calls)
}

func TestGuard_StorageErrorIs500(t *testing.T) {
	calls := 0
	h := Guard(fixedResolver(nil, errors.New("db down"), &calls), testGuardConfig, nil, zerolog.Nop())(echoSession())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nav", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestGuard_RecordsDecisions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	calls := 0
	h := Guard(fixedResolver(nil, nil, &calls), testGuardConfig, m, zerolog.Nop())(echoSession())

	for _, path := range []string{"/dashboard", "/app.js", "/api/nav"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues("redirect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues("exempt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues("anonymous")))
}

func TestRequireSession(t *testing.T) {
	h := RequireSession(echoSession())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nav", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/nav", nil)
	req = req.WithContext(WithSession(req.Context(), &sessiondomain.Session{UserID: "u2"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u2", rec.Header().Get("X-User"))
}
