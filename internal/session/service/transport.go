package service

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/sessions"
)

const cookieTokenKey = "token"

// CookieOptions configures the signed cookie that carries the session token for browsers.
type CookieOptions struct {
	Name   string
	Secret []byte
	Secure bool
	// MaxAge bounds how long a signed cookie value is accepted; match the session TTL.
	MaxAge time.Duration
}

// Transport reads and writes session credentials on HTTP requests. API clients send
// "Authorization: Bearer <token>"; browsers carry the token in a signed cookie.
type Transport struct {
	name   string
	store  *sessions.CookieStore
	secure bool
}

// NewTransport returns a Transport using a gorilla/sessions CookieStore keyed by opts.Secret.
func NewTransport(opts CookieOptions) *Transport {
	store := sessions.NewCookieStore(opts.Secret)
	if opts.MaxAge > 0 {
		store.MaxAge(int(opts.MaxAge.Seconds()))
	}
	return &Transport{name: opts.Name, store: store, secure: opts.Secure}
}

// TokenFromRequest returns the bearer token, falling back to the cookie. Returns "" if neither is present or valid.
func (t *Transport) TokenFromRequest(r *http.Request) string {
	if tok := bearerToken(r.Header.Get("Authorization")); tok != "" {
		return tok
	}
	if _, err := r.Cookie(t.name); err != nil {
		return ""
	}
	cs, err := t.store.Get(r, t.name)
	if err != nil {
		return ""
	}
	tok, _ := cs.Values[cookieTokenKey].(string)
	return tok
}

// Write stores token in the signed cookie until expiresAt.
func (t *Transport) Write(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) error {
	cs, _ := t.store.New(r, t.name)
	cs.Values[cookieTokenKey] = token
	cs.Options = t.options(int(time.Until(expiresAt).Seconds()))
	return cs.Save(r, w)
}

// Clear expires the cookie in the browser.
func (t *Transport) Clear(w http.ResponseWriter, r *http.Request) error {
	cs, _ := t.store.New(r, t.name)
	cs.Options = t.options(-1)
	return cs.Save(r, w)
}

func (t *Transport) options(maxAge int) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// bearerToken extracts the token from an Authorization header value. The scheme is case-insensitive.
func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
