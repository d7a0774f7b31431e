// Package dashboard serves the organization switcher context and the filtered navigation.
package dashboard

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"orgsession/internal/activeorg"
	memberdomain "orgsession/internal/membership/domain"
	"orgsession/internal/nav"
	orgdomain "orgsession/internal/organization/domain"
	"orgsession/internal/platform/rbac"
	"orgsession/internal/server/httpx"
	"orgsession/internal/server/middleware"
	sessiondomain "orgsession/internal/session/domain"
)

// Directory lists a user's organizations and resolves memberships.
type Directory interface {
	ListOrganizationsForUser(ctx context.Context, userID string) ([]orgdomain.UserOrganization, error)
	GetMembership(ctx context.Context, userID, orgID string) (*memberdomain.Membership, error)
}

// ActiveReader reads the session's active organization.
type ActiveReader interface {
	GetActive(ctx context.Context, sess *sessiondomain.Session) (activeorg.Selection, error)
}

// Context is what the dashboard shell renders: the switcher and the navigation.
type Context struct {
	Organizations []orgdomain.UserOrganization `json:"organizations"`
	Active        activeorg.Selection          `json:"active"`
	// Display is the organization shown in the switcher. It falls back to the first
	// organization when none is active and is not persisted.
	Display           *orgdomain.UserOrganization `json:"display"`
	NeedsOrganization bool                        `json:"needsOrganization"`
	Nav               []nav.Item                  `json:"nav"`
}

// Handler serves /dashboard and /api/nav.
type Handler struct {
	directory Directory
	selector  ActiveReader
	items     []nav.Item
	log       zerolog.Logger
}

// NewHandler returns a dashboard handler rendering items.
func NewHandler(directory Directory, selector ActiveReader, items []nav.Item, logger zerolog.Logger) *Handler {
	return &Handler{
		directory: directory,
		selector:  selector,
		items:     items,
		log:       logger.With().Str("component", "dashboard").Logger(),
	}
}

// Register mounts the dashboard routes on r. The route guard already redirects anonymous
// dashboard requests, so only the API route needs RequireSession.
func (h *Handler) Register(r chi.Router) {
	r.Get("/dashboard", h.handleContext)
	r.Get("/dashboard/*", h.handleContext)
	r.With(middleware.RequireSession).Get("/api/nav", h.handleNav)
}

func (h *Handler) handleContext(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		httpx.RespondJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required", "code": "unauthenticated"})
		return
	}
	c, err := h.Build(r.Context(), sess)
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, c)
}

func (h *Handler) handleNav(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFrom(r.Context())
	items, err := h.navFor(r.Context(), sess)
	if err != nil {
		httpx.RespondError(w, r, h.log, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Build assembles the dashboard context for sess. The active organization always comes
// from the selector; nothing here is cached between requests.
func (h *Handler) Build(ctx context.Context, sess *sessiondomain.Session) (*Context, error) {
	orgs, err := h.directory.ListOrganizationsForUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if orgs == nil {
		orgs = []orgdomain.UserOrganization{}
	}
	sel, err := h.selector.GetActive(ctx, sess)
	if err != nil {
		return nil, err
	}
	items, err := h.navFor(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &Context{
		Organizations:     orgs,
		Active:            sel,
		Display:           activeorg.DisplayOrganization(sel, orgs),
		NeedsOrganization: len(orgs) == 0,
		Nav:               items,
	}, nil
}

func (h *Handler) navFor(ctx context.Context, sess *sessiondomain.Session) ([]nav.Item, error) {
	subject, err := rbac.SubjectFor(ctx, h.directory, sess)
	if err != nil {
		return nil, err
	}
	return nav.Filter(h.items, subject), nil
}
