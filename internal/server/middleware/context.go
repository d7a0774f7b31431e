package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	sessiondomain "orgsession/internal/session/domain"
)

type contextKey struct{ name string }

var (
	sessionKey  = contextKey{"session"}
	clientIPKey = contextKey{"client_ip"}
)

// WithSession returns a context carrying the resolved session.
func WithSession(ctx context.Context, sess *sessiondomain.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFrom returns the session attached by the guard and true, or nil, false.
func SessionFrom(ctx context.Context) (*sessiondomain.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*sessiondomain.Session)
	return s, ok && s != nil
}

// UserIDFrom returns the authenticated user's id and true if a session is attached.
func UserIDFrom(ctx context.Context) (string, bool) {
	s, ok := SessionFrom(ctx)
	if !ok {
		return "", false
	}
	return s.UserID, true
}

// WithClientIP returns a context carrying the client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the client IP stored by the ClientIP middleware, or "unknown".
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// ClientIPFromRequest prefers X-Forwarded-For (first hop), then X-Real-IP, then RemoteAddr.
func ClientIPFromRequest(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// RequestClientIP stores the client IP on the request context for audit records.
func RequestClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ClientIPFromRequest(r))))
	})
}
