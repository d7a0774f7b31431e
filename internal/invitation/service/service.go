// Package service runs the invitation workflow: invite, resend, revoke and accept.
package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"orgsession/internal/audit"
	auditdomain "orgsession/internal/audit/domain"
	"orgsession/internal/invitation/domain"
	"orgsession/internal/invitation/repository"
	memberdomain "orgsession/internal/membership/domain"
	"orgsession/internal/metrics"
	"orgsession/internal/notify"
	orgdomain "orgsession/internal/organization/domain"
	"orgsession/internal/platform/apperr"
	"orgsession/internal/policy"
	"orgsession/internal/security"
	userdomain "orgsession/internal/user/domain"
)

// MembershipRepo is the minimal membership repository needed by the invitation service.
type MembershipRepo interface {
	GetMembershipByUserAndOrg(ctx context.Context, userID, orgID string) (*memberdomain.Membership, error)
}

// OrgRepo is the minimal organization repository needed by the invitation service.
type OrgRepo interface {
	GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error)
}

// UserRepo is the minimal user repository needed by the invitation service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

// Config holds the workflow settings.
type Config struct {
	// TTL is how long an invitation stays acceptable after it is sent.
	TTL time.Duration
	// BaseURL prefixes acceptance links, e.g. https://app.example.com.
	BaseURL string
}

// Service implements the invitation workflow.
type Service struct {
	invitations repository.Repository
	members     MembershipRepo
	orgs        OrgRepo
	users       UserRepo
	policy      policy.Checker
	links       *security.LinkSigner
	notifier    notify.Enqueuer
	audit       audit.Recorder
	metrics     *metrics.Metrics
	cfg         Config
	log         zerolog.Logger
	now         func() time.Time
}

// NewService returns a Service. rec and m may be nil.
func NewService(
	invitations repository.Repository,
	members MembershipRepo,
	orgs OrgRepo,
	users UserRepo,
	checker policy.Checker,
	links *security.LinkSigner,
	notifier notify.Enqueuer,
	rec audit.Recorder,
	m *metrics.Metrics,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Service{
		invitations: invitations,
		members:     members,
		orgs:        orgs,
		users:       users,
		policy:      checker,
		links:       links,
		notifier:    notifier,
		audit:       rec,
		metrics:     m,
		cfg:         cfg,
		log:         logger.With().Str("component", "invitations").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateInvitation invites email to orgID with role (member when empty) on behalf of inviterUserID.
// The invitee is notified asynchronously; notification problems never fail the call.
func (s *Service) CreateInvitation(ctx context.Context, inviterUserID, orgID, email string, role memberdomain.Role) (*domain.Invitation, error) {
	email = userdomain.NormalizeEmail(email)
	if err := userdomain.ValidateEmail(email); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	if role == "" {
		role = memberdomain.RoleMember
	}
	if !role.Valid() {
		return nil, apperr.Validation("invalid role %q", role)
	}
	if err := s.authorize(ctx, policy.ActionInviteMember, inviterUserID, orgID, role); err != nil {
		return nil, err
	}
	org, err := s.orgs.GetOrganizationByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	if org == nil {
		return nil, apperr.NotFound("organization not found")
	}
	if err := s.rejectExistingMember(ctx, email, orgID); err != nil {
		return nil, err
	}

	now := s.now()
	inv := &domain.Invitation{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		Email:      email,
		Role:       role,
		InviterID:  inviterUserID,
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.TTL),
		LastSentAt: &now,
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	s.metrics.InvitationEvent("created")
	s.audit.LogEvent(ctx, orgID, inviterUserID, auditdomain.ActionInvitationCreated, "invitation", inv.ID)
	s.send(ctx, inv, org)
	return inv, nil
}

// ResendInvitation re-sends a pending, unexpired invitation and extends its expiry.
func (s *Service) ResendInvitation(ctx context.Context, actorUserID, invitationID string) (*domain.Invitation, error) {
	inv, err := s.load(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, policy.ActionResendInvitation, actorUserID, inv.OrgID, ""); err != nil {
		return nil, err
	}
	if inv.Status != domain.StatusPending {
		return nil, apperr.InvalidState("invitation is %s", inv.Status)
	}
	org, err := s.orgs.GetOrganizationByID(ctx, inv.OrgID)
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	if org == nil {
		return nil, apperr.NotFound("organization not found")
	}
	now := s.now()
	expiresAt := now.Add(s.cfg.TTL)
	ok, err := s.invitations.MarkResent(ctx, inv.ID, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("resend invitation: %w", err)
	}
	if !ok {
		return nil, apperr.InvalidState("invitation is no longer pending")
	}
	inv.LastSentAt, inv.UpdatedAt, inv.ExpiresAt = &now, now, expiresAt
	s.metrics.InvitationEvent("resent")
	s.audit.LogEvent(ctx, inv.OrgID, actorUserID, auditdomain.ActionInvitationResent, "invitation", inv.ID)
	s.send(ctx, inv, org)
	return inv, nil
}

// RevokeInvitation moves a pending invitation to revoked.
func (s *Service) RevokeInvitation(ctx context.Context, actorUserID, invitationID string) error {
	inv, err := s.load(ctx, invitationID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, policy.ActionRevokeInvitation, actorUserID, inv.OrgID, ""); err != nil {
		return err
	}
	if inv.Status != domain.StatusPending {
		return apperr.InvalidState("invitation is %s", inv.Status)
	}
	ok, err := s.invitations.TransitionFromPending(ctx, inv.ID, domain.StatusRevoked, s.now())
	if err != nil {
		return fmt.Errorf("revoke invitation: %w", err)
	}
	if !ok {
		return apperr.InvalidState("invitation is no longer pending")
	}
	s.metrics.InvitationEvent("revoked")
	s.audit.LogEvent(ctx, inv.OrgID, actorUserID, auditdomain.ActionInvitationRevoked, "invitation", inv.ID)
	return nil
}

// AcceptInvitation makes userID a member of the invitation's organization. The user's email
// must match the invitee email. A user who is already a member gets Conflict and the
// invitation stays pending.
func (s *Service) AcceptInvitation(ctx context.Context, invitationID, userID string) (*memberdomain.Membership, error) {
	inv, err := s.load(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.StatusPending {
		return nil, apperr.InvalidState("invitation is %s", inv.Status)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperr.Unauthenticated("user not found")
	}
	if userdomain.NormalizeEmail(user.Email) != inv.Email {
		return nil, apperr.Forbidden("this invitation was sent to a different email address")
	}
	existing, err := s.members.GetMembershipByUserAndOrg(ctx, userID, inv.OrgID)
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("already a member of this organization")
	}

	now := s.now()
	m := &memberdomain.Membership{ID: uuid.NewString(), UserID: userID, OrgID: inv.OrgID, Role: inv.Role, CreatedAt: now}
	if err := s.invitations.AcceptAndJoin(ctx, inv.ID, m, now); err != nil {
		if apperr.KindOf(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("accept invitation: %w", err)
	}
	s.metrics.InvitationEvent("accepted")
	s.audit.LogEvent(ctx, inv.OrgID, userID, auditdomain.ActionInvitationAccepted, "invitation", inv.ID)
	s.log.Info().Str("invitation_id", inv.ID).Str("org_id", inv.OrgID).Str("user_id", userID).Msg("invitation accepted")
	return m, nil
}

// AcceptWithLink verifies a signed acceptance link token before accepting.
func (s *Service) AcceptWithLink(ctx context.Context, invitationID, token, userID string) (*memberdomain.Membership, error) {
	if _, err := s.links.Verify(token, invitationID); err != nil {
		return nil, apperr.Forbidden("invitation link is invalid or has expired")
	}
	return s.AcceptInvitation(ctx, invitationID, userID)
}

// ListPendingInvitations returns the organization's pending, unexpired invitations.
func (s *Service) ListPendingInvitations(ctx context.Context, actorUserID, orgID string) ([]*domain.Invitation, error) {
	if err := s.authorize(ctx, policy.ActionListInvitations, actorUserID, orgID, ""); err != nil {
		return nil, err
	}
	list, err := s.invitations.ListByOrgAndStatus(ctx, orgID, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	now := s.now()
	out := list[:0]
	for _, inv := range list {
		if inv.ExpiredAt(now) {
			if _, err := s.expire(ctx, inv, now); err != nil {
				return nil, err
			}
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

// GetInvitation returns the invitation with lazy expiry applied.
func (s *Service) GetInvitation(ctx context.Context, invitationID string) (*domain.Invitation, error) {
	return s.load(ctx, invitationID)
}

// ExpirePending expires every overdue pending invitation and returns how many changed.
func (s *Service) ExpirePending(ctx context.Context) (int64, error) {
	n, err := s.invitations.ExpirePending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expire invitations: %w", err)
	}
	s.metrics.Swept("invitations_expired", n)
	return n, nil
}

// AcceptanceLink builds the link sent to the invitee.
func (s *Service) AcceptanceLink(inv *domain.Invitation) (string, error) {
	token, err := s.links.Issue(inv.ID, inv.Email, inv.ExpiresAt)
	if err != nil {
		return "", err
	}
	return s.cfg.BaseURL + "/accept-invitation/" + url.PathEscape(inv.ID) + "?token=" + url.QueryEscape(token), nil
}

// load fetches an invitation and applies lazy expiry.
func (s *Service) load(ctx context.Context, invitationID string) (*domain.Invitation, error) {
	if uuid.Validate(invitationID) != nil {
		return nil, apperr.NotFound("invitation not found")
	}
	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	if inv == nil {
		return nil, apperr.NotFound("invitation not found")
	}
	now := s.now()
	if inv.ExpiredAt(now) {
		return s.expire(ctx, inv, now)
	}
	return inv, nil
}

func (s *Service) expire(ctx context.Context, inv *domain.Invitation, now time.Time) (*domain.Invitation, error) {
	ok, err := s.invitations.TransitionFromPending(ctx, inv.ID, domain.StatusExpired, now)
	if err != nil {
		return nil, fmt.Errorf("expire invitation: %w", err)
	}
	if !ok {
		// Another writer moved it first; report what is stored now.
		fresh, err := s.invitations.GetByID(ctx, inv.ID)
		if err != nil {
			return nil, fmt.Errorf("get invitation: %w", err)
		}
		if fresh == nil {
			return nil, apperr.NotFound("invitation not found")
		}
		return fresh, nil
	}
	s.metrics.InvitationEvent("expired")
	inv.Status, inv.UpdatedAt = domain.StatusExpired, now
	return inv, nil
}

func (s *Service) authorize(ctx context.Context, action policy.Action, actorUserID, orgID string, target memberdomain.Role) error {
	if uuid.Validate(orgID) != nil {
		return apperr.Forbidden("not a member of this organization")
	}
	actor, err := s.members.GetMembershipByUserAndOrg(ctx, actorUserID, orgID)
	if err != nil {
		return fmt.Errorf("get membership: %w", err)
	}
	if actor == nil {
		return apperr.Forbidden("not a member of this organization")
	}
	ok, err := s.policy.Allowed(ctx, policy.Request{
		Action: action, OrgID: orgID, ActorID: actorUserID, ActorRole: actor.Role, TargetRole: target,
	})
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if !ok {
		return apperr.Forbidden("%s is not permitted for role %s", action, actor.Role)
	}
	return nil
}

func (s *Service) rejectExistingMember(ctx context.Context, email, orgID string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil
	}
	m, err := s.members.GetMembershipByUserAndOrg(ctx, u.ID, orgID)
	if err != nil {
		return fmt.Errorf("get membership: %w", err)
	}
	if m != nil {
		return apperr.Conflict("%s is already a member of this organization", email)
	}
	return nil
}

func (s *Service) send(ctx context.Context, inv *domain.Invitation, org *orgdomain.Org) {
	link, err := s.AcceptanceLink(inv)
	if err != nil {
		s.log.Error().Err(err).Str("invitation_id", inv.ID).Msg("failed to sign acceptance link")
		return
	}
	n := domain.Notification{
		InvitationID:     inv.ID,
		InviteeEmail:     inv.Email,
		AcceptanceLink:   link,
		OrganizationName: org.Name,
	}
	if inviter, err := s.users.GetByID(ctx, inv.InviterID); err == nil && inviter != nil {
		n.InviterName = inviter.Name
	}
	if s.notifier == nil || !s.notifier.Enqueue(n) {
		s.log.Warn().Str("invitation_id", inv.ID).Msg("invitation notification not queued")
	}
}
