// Package handler exposes organizations, memberships and the active organization over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"orgsession/internal/activeorg"
	auditdomain "orgsession/internal/audit/domain"
	memberdomain "orgsession/internal/membership/domain"
	"orgsession/internal/organization/domain"
	"orgsession/internal/policy"
	"orgsession/internal/server/httpx"
	"orgsession/internal/server/middleware"
	sessiondomain "orgsession/internal/session/domain"
)

// Directory is the subset of the organization directory used by the handler.
type Directory interface {
	CreateOrganization(ctx context.Context, ownerUserID, name, slug, logo string) (*domain.Org, error)
	CheckSlug(ctx context.Context, slug, name string) (string, bool, error)
	ListOrganizationsForUser(ctx context.Context, userID string) ([]domain.UserOrganization, error)
	DeleteOrganization(ctx context.Context, actorUserID, orgID string) error
	ListMembers(ctx context.Context, actorUserID, orgID string) ([]*memberdomain.Membership, error)
	AddMember(ctx context.Context, actorUserID, userID, orgID string, role memberdomain.Role) (*memberdomain.Membership, error)
	RemoveMembership(ctx context.Context, actorUserID, userID, orgID string) error
	Authorize(ctx context.Context, action policy.Action, actorUserID, orgID string) (*memberdomain.Membership, error)
}

// Selector reads and writes the session's active organization.
type Selector interface {
	SetActive(ctx context.Context, sess *sessiondomain.Session, orgID string) (*sessiondomain.Session, error)
	GetActive(ctx context.Context, sess *sessiondomain.Session) (activeorg.Selection, error)
	Clear(ctx context.Context, sess *sessiondomain.Session) error
}

// AuditLister reads an organization's audit trail.
type AuditLister interface {
	List(ctx context.Context, orgID string, limit, offset int32) ([]*auditdomain.AuditLog, error)
}

// Handler serves /api/organizations.
type Handler struct {
	directory Directory
	selector  Selector
	audit     AuditLister
	log       zerolog.Logger
}

// NewHandler returns an organization handler.
func NewHandler(directory Directory, selector Selector, audit AuditLister, logger zerolog.Logger) *Handler {
	return &Handler{
		directory: directory,
		selector:  selector,
		audit:     audit,
		log:       logger.With().Str("component", "organization_handler").Logger(),
	}
}

// Register mounts the organization routes on r. Every route requires a session.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/organizations", func(r chi.Router) {
		r.Use(middleware.RequireSession)
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/check-slug", h.handleCheckSlug)
		r.Get("/active", h.handleGetActive)
		r.Put("/active", h.handleSetActive)
		r.Delete("/active", h.handleClearActive)
		r.Delete("/{orgID}", h.handleDelete)
		r.Get("/{orgID}/members", h.handleListMembers)
		r.Post("/{orgID}/members", h.handleAddMember)
		r.Delete("/{orgID}/members/{userID}", h.handleRemoveMember)
		r.Get("/{orgID}/audit", h.handleAudit)
	})
}

type createRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
	Logo string `json:"logo"`
}

type setActiveRequest struct {
	OrganizationID string `json:"organizationId"`
}

type addMemberRequest struct {
	UserID string            `json:"userId"`
	Role   memberdomain.Role `json:"role"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	orgs, err := h.directory.ListOrganizationsForUser(r.Context(), sess.UserID)
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	if orgs == nil {
		orgs = []domain.UserOrganization{}
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

// handleCreate creates an organization owned by the caller. With ?activate=true the new
// organization also becomes the session's active organization.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	org, err := h.directory.CreateOrganization(r.Context(), sess.UserID, req.Name, req.Slug, req.Logo)
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	activate, _ := strconv.ParseBool(r.URL.Query().Get("activate"))
	if activate {
		if _, err := h.selector.SetActive(r.Context(), sess, org.ID); err != nil {
			h.log.Warn().Err(err).Str("org_id", org.ID).Str("user_id", sess.UserID).Msg("organization created but not activated")
			activate = false
		}
	}
	httpx.RespondJSON(w, http.StatusCreated, map[string]any{"organization": org, "active": activate})
}

// handleCheckSlug reports whether ?slug= (or the slug derived from ?name=) is free.
func (h *Handler) handleCheckSlug(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	slug, available, err := h.directory.CheckSlug(r.Context(), q.Get("slug"), q.Get("name"))
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]any{"slug": slug, "available": available})
}

func (h *Handler) handleGetActive(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	sel, err := h.selector.GetActive(r.Context(), sess)
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, sel)
}

func (h *Handler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	var req setActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	updated, err := h.selector.SetActive(r.Context(), sess, req.OrganizationID)
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	sel, err := h.selector.GetActive(r.Context(), updated)
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, sel)
}

func (h *Handler) handleClearActive(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	if err := h.selector.Clear(r.Context(), sess); err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	if err := h.directory.DeleteOrganization(r.Context(), sess.UserID, chi.URLParam(r, "orgID")); err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	members, err := h.directory.ListMembers(r.Context(), sess.UserID, chi.URLParam(r, "orgID"))
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	if members == nil {
		members = []*memberdomain.Membership{}
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	var req addMemberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	m, err := h.directory.AddMember(r.Context(), sess.UserID, req.UserID, chi.URLParam(r, "orgID"), req.Role)
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, m)
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	err := h.directory.RemoveMembership(r.Context(), sess.UserID, chi.URLParam(r, "userID"), chi.URLParam(r, "orgID"))
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	orgID := chi.URLParam(r, "orgID")
	if _, err := h.directory.Authorize(r.Context(), policy.ActionViewAuditLog, sess.UserID, orgID); err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 32)
	offset, _ := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 32)
	entries, err := h.audit.List(r.Context(), orgID, int32(limit), int32(offset))
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	if entries == nil {
		entries = []*auditdomain.AuditLog{}
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
