package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"orgsession/internal/metrics"
	"orgsession/internal/server/httpx"
	sessiondomain "orgsession/internal/session/domain"
)

// ResolveFunc resolves the session carried by r. Absence is (nil, nil).
type ResolveFunc func(r *http.Request) (*sessiondomain.Session, error)

// GuardConfig configures the route guard.
type GuardConfig struct {
	// ProtectedPrefix requires a session for the prefix itself and everything below it.
	ProtectedPrefix string
	// SignInPath is where anonymous requests for protected pages are sent.
	SignInPath string
}

var (
	staticExt      = regexp.MustCompile(`(?i)\.(?:html?|css|js|jpe?g|webp|png|gif|svg|ttf|woff2?|ico|csv|docx?|xlsx?|zip|webmanifest)$`)
	assetPrefixes  = []string{"/_next/", "/static/", "/assets/"}
	alwaysResolved = []string{"/api", "/trpc"}
)

// Exempt reports whether path is a static asset that skips session resolution.
// API paths are never exempt, whatever they end in.
func Exempt(path string) bool {
	for _, p := range alwaysResolved {
		if underPrefix(path, p) {
			return false
		}
	}
	for _, p := range assetPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	last := path[strings.LastIndexByte(path, '/')+1:]
	return staticExt.MatchString(last)
}

// underPrefix reports whether path is prefix or a path below it, so /api
// matches /api/x but not /apis.
func underPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// Guard resolves the session for every non-exempt request and attaches it to the
// request context. Anonymous requests under the protected prefix are redirected to sign-in.
func Guard(resolve ResolveFunc, cfg GuardConfig, m *metrics.Metrics, logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("component", "route_guard").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if Exempt(path) {
				m.GuardDecision("exempt")
				next.ServeHTTP(w, r)
				return
			}
			sess, err := resolve(r)
			if err != nil {
				m.GuardDecision("error")
				log.Error().Err(err).Str("path", path).Msg("session resolution failed")
				httpx.RespondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
			if sess == nil {
				if strings.HasPrefix(path, cfg.ProtectedPrefix) {
					m.GuardDecision("redirect")
					http.Redirect(w, r, cfg.SignInPath, http.StatusFound)
					return
				}
				m.GuardDecision("anonymous")
				next.ServeHTTP(w, r)
				return
			}
			m.GuardDecision("allow")
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// RequireSession rejects requests without a session attached by Guard with 401.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFrom(r.Context()); !ok {
			httpx.RespondJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required", "code": "unauthenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
