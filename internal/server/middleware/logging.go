package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

var sensitiveParams = []string{"token", "key", "secret", "password", "code", "state"}

// RequestLogger logs every request with zerolog once the response is written.
// 5xx log at error, 4xx at warn, the rest at info.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			var event *zerolog.Event
			switch {
			case status >= 500:
				event = log.Error()
			case status >= 400:
				event = log.Warn()
			default:
				event = log.Info()
			}
			event = event.
				Str("request_id", chimw.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Str("client_ip", ClientIP(r.Context()))
			if q := RedactQuery(r.URL.RawQuery); q != "" {
				event = event.Str("query", q)
			}
			if uid, ok := UserIDFrom(r.Context()); ok {
				event = event.Str("user_id", uid)
			}
			event.Msg("request")
		})
	}
}

// RedactQuery replaces the values of credential-like query parameters with [REDACTED].
func RedactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "[unparseable]"
	}
	for key := range values {
		lower := strings.ToLower(key)
		for _, s := range sensitiveParams {
			if strings.Contains(lower, s) {
				values[key] = []string{"[REDACTED]"}
				break
			}
		}
	}
	return values.Encode()
}
