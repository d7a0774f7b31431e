// Package handler exposes the invitation workflow over HTTP.
package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"orgsession/internal/invitation/domain"
	memberdomain "orgsession/internal/membership/domain"
	"orgsession/internal/server/httpx"
	"orgsession/internal/server/middleware"
	sessiondomain "orgsession/internal/session/domain"
)

// Service is the subset of the invitation service used by the handler.
type Service interface {
	CreateInvitation(ctx context.Context, inviterUserID, orgID, email string, role memberdomain.Role) (*domain.Invitation, error)
	ListPendingInvitations(ctx context.Context, actorUserID, orgID string) ([]*domain.Invitation, error)
	AcceptInvitation(ctx context.Context, invitationID, userID string) (*memberdomain.Membership, error)
	AcceptWithLink(ctx context.Context, invitationID, token, userID string) (*memberdomain.Membership, error)
	ResendInvitation(ctx context.Context, actorUserID, invitationID string) (*domain.Invitation, error)
	RevokeInvitation(ctx context.Context, actorUserID, invitationID string) error
}

// ActiveSetter switches the session to the organization just joined.
type ActiveSetter interface {
	SetActive(ctx context.Context, sess *sessiondomain.Session, orgID string) (*sessiondomain.Session, error)
}

// Handler serves the invitation API and the acceptance link page.
type Handler struct {
	svc        Service
	selector   ActiveSetter
	signInPath string
	homePath   string
	log        zerolog.Logger
}

// NewHandler returns an invitation handler. Anonymous visitors of an acceptance link are
// sent to signInPath; after accepting they land on homePath.
func NewHandler(svc Service, selector ActiveSetter, signInPath, homePath string, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:        svc,
		selector:   selector,
		signInPath: signInPath,
		homePath:   homePath,
		log:        logger.With().Str("component", "invitation_handler").Logger(),
	}
}

// Register mounts the invitation routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/accept-invitation/{id}", h.handleAcceptLink)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession)
		r.Get("/api/organizations/{orgID}/invitations", h.handleList)
		r.Post("/api/organizations/{orgID}/invitations", h.handleCreate)
		r.Post("/api/invitations/{id}/accept", h.handleAccept)
		r.Post("/api/invitations/{id}/resend", h.handleResend)
		r.Delete("/api/invitations/{id}", h.handleRevoke)
	})
}

type createRequest struct {
	Email string            `json:"email"`
	Role  memberdomain.Role `json:"role"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	list, err := h.svc.ListPendingInvitations(r.Context(), sess.UserID, chi.URLParam(r, "orgID"))
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []*domain.Invitation{}
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]any{"invitations": list})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	inv, err := h.svc.CreateInvitation(r.Context(), sess.UserID, chi.URLParam(r, "orgID"), req.Email, req.Role)
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, inv)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	m, err := h.svc.AcceptInvitation(r.Context(), chi.URLParam(r, "id"), sess.UserID)
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, m)
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	inv, err := h.svc.ResendInvitation(r.Context(), sess.UserID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, inv)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	if err := h.svc.RevokeInvitation(r.Context(), sess.UserID, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAcceptLink accepts the invitation behind a signed acceptance link, makes the
// joined organization active and redirects home. Anonymous visitors sign in first and
// come back to the same link.
func (h *Handler) handleAcceptLink(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		http.Redirect(w, r, h.signInPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
		return
	}
	m, err := h.svc.AcceptWithLink(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("token"), sess.UserID)
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	if _, err := h.selector.SetActive(r.Context(), sess, m.OrgID); err != nil {
		h.log.Warn().Err(err).Str("org_id", m.OrgID).Msg("activate joined organization")
	}
	http.Redirect(w, r, h.homePath, http.StatusSeeOther)
}
