// Package handler exposes sign-up, sign-in and sign-out over HTTP.
package handler

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"orgsession/internal/identity/service"
	"orgsession/internal/server/httpx"
	"orgsession/internal/server/middleware"
	userdomain "orgsession/internal/user/domain"
)

//go:embed templates/sign_in.html
var templateFS embed.FS

var signInPage = template.Must(template.ParseFS(templateFS, "templates/sign_in.html"))

// AuthService is the subset of the identity service used by the handler.
type AuthService interface {
	SignUp(ctx context.Context, email, password, name string) (*service.AuthResult, error)
	SignIn(ctx context.Context, email, password string) (*service.AuthResult, error)
	SignOut(ctx context.Context, userID, token string) error
	SignOutEverywhere(ctx context.Context, userID string) error
	CurrentUser(ctx context.Context, userID string) (*userdomain.User, error)
}

// CredentialWriter sets and clears the session cookie.
type CredentialWriter interface {
	Write(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) error
	Clear(w http.ResponseWriter, r *http.Request) error
}

// Handler serves /api/auth and the sign-in page.
type Handler struct {
	auth        AuthService
	credentials CredentialWriter
	// signInLimit wraps the sign-in endpoint; nil means unlimited.
	signInLimit func(http.Handler) http.Handler
	log         zerolog.Logger
}

// NewHandler returns an auth handler. signInLimit may be nil.
func NewHandler(auth AuthService, credentials CredentialWriter, signInLimit func(http.Handler) http.Handler, logger zerolog.Logger) *Handler {
	return &Handler{
		auth:        auth,
		credentials: credentials,
		signInLimit: signInLimit,
		log:         logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register mounts the auth routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/auth/sign-in", h.handleSignInPage)
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/sign-up", h.handleSignUp)
		if h.signInLimit != nil {
			r.With(h.signInLimit).Post("/sign-in", h.handleSignIn)
		} else {
			r.Post("/sign-in", h.handleSignIn)
		}
		r.With(middleware.RequireSession).Post("/sign-out", h.handleSignOut)
		r.With(middleware.RequireSession).Post("/sign-out-all", h.handleSignOutAll)
		r.With(middleware.RequireSession).Get("/session", h.handleSession)
	})
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionView struct {
	ActiveOrganizationID *string   `json:"activeOrganizationId"`
	ExpiresAt            time.Time `json:"expiresAt"`
	CreatedAt            time.Time `json:"createdAt"`
}

type authResponse struct {
	User    *userdomain.User `json:"user"`
	Session sessionView      `json:"session"`
	// Token is returned for API clients; browsers use the cookie.
	Token string `json:"token,omitempty"`
}

func (h *Handler) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = "/dashboard"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := signInPage.Execute(w, struct{ Next string }{next}); err != nil {
		h.log.Error().Err(err).Msg("render sign-in page")
	}
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	res, err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	h.respondAuthenticated(w, r, http.StatusCreated, res)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	res, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	h.respondAuthenticated(w, r, http.StatusOK, res)
}

func (h *Handler) respondAuthenticated(w http.ResponseWriter, r *http.Request, status int, res *service.AuthResult) {
	if err := h.credentials.Write(w, r, res.Session.Token, res.Session.ExpiresAt); err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	httpx.RespondJSON(w, status, authResponse{
		User:    res.User,
		Session: viewOf(res.Session.ActiveOrganizationID, res.Session.ExpiresAt, res.Session.CreatedAt),
		Token:   res.Session.Token,
	})
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	if err := h.auth.SignOut(r.Context(), sess.UserID, sess.Token); err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	if err := h.credentials.Clear(w, r); err != nil {
		h.log.Warn().Err(err).Msg("clear session cookie")
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSignOutAll ends every session of the caller, including this one.
func (h *Handler) handleSignOutAll(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	if err := h.auth.SignOutEverywhere(r.Context(), sess.UserID); err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	if err := h.credentials.Clear(w, r); err != nil {
		h.log.Warn().Err(err).Msg("clear session cookie")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	u, err := h.auth.CurrentUser(r.Context(), sess.UserID)
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	if u == nil {
		httpx.RespondJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required", "code": "unauthenticated"})
		return
	}
	httpx.RespondJSON(w, http.StatusOK, authResponse{
		User:    u,
		Session: viewOf(sess.ActiveOrganizationID, sess.ExpiresAt, sess.CreatedAt),
	})
}

func viewOf(active *string, expiresAt, createdAt time.Time) sessionView {
	return sessionView{ActiveOrganizationID: active, ExpiresAt: expiresAt, CreatedAt: createdAt}
}
