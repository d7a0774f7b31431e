// Package service signs users up, in and out with email and password, issuing sessions.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"orgsession/internal/audit"
	auditdomain "orgsession/internal/audit/domain"
	"orgsession/internal/platform/apperr"
	"orgsession/internal/security"
	sessiondomain "orgsession/internal/session/domain"
	userdomain "orgsession/internal/user/domain"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password. Callers must
// not tell the two apart.
var ErrInvalidCredentials = apperr.Unauthenticated("invalid email or password")

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// SessionStore is the subset of the session store the auth service drives.
type SessionStore interface {
	Create(ctx context.Context, userID string) (*sessiondomain.Session, error)
	Destroy(ctx context.Context, token string) error
	DestroyAllForUser(ctx context.Context, userID string) error
}

// AuthResult is a signed-in user and the session issued for them.
type AuthResult struct {
	User    *userdomain.User
	Session *sessiondomain.Session
}

// AuthService implements email and password sign-up, sign-in and sign-out.
type AuthService struct {
	users    UserRepo
	sessions SessionStore
	hasher   *security.Hasher
	audit    audit.Recorder
	log      zerolog.Logger
	now      func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. rec may be nil.
func NewAuthService(users UserRepo, sessions SessionStore, hasher *security.Hasher, rec audit.Recorder, logger zerolog.Logger) *AuthService {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		audit:    rec,
		log:      logger.With().Str("component", "auth").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SignUp creates a user and signs them in.
func (s *AuthService) SignUp(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = userdomain.NormalizeEmail(email)
	if err := userdomain.ValidateEmail(email); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	if err := validatePassword(password); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = email[:strings.IndexByte(email, '@')]
	}
	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	u := &userdomain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	sess, err := s.sessions.Create(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, "", u.ID, auditdomain.ActionSignUp, "user", "")
	return &AuthResult{User: u, Session: sess}, nil
}

// SignIn verifies the password and issues a new session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil || u.PasswordHash == "" {
		s.hasher.CompareDummy([]byte(password))
		s.audit.LogEvent(ctx, "", "", auditdomain.ActionSignInFailure, "session", email)
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(u.PasswordHash, []byte(password)); err != nil {
		s.audit.LogEvent(ctx, "", u.ID, auditdomain.ActionSignInFailure, "session", email)
		return nil, ErrInvalidCredentials
	}
	sess, err := s.sessions.Create(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, "", u.ID, auditdomain.ActionSignIn, "session", "")
	s.log.Debug().Str("user_id", u.ID).Msg("signed in")
	return &AuthResult{User: u, Session: sess}, nil
}

// SignOut destroys the session for token. Signing out twice is not an error.
func (s *AuthService) SignOut(ctx context.Context, userID, token string) error {
	if err := s.sessions.Destroy(ctx, token); err != nil {
		return err
	}
	if userID != "" {
		s.audit.LogEvent(ctx, "", userID, auditdomain.ActionSignOut, "session", "")
	}
	return nil
}

// SignOutEverywhere destroys every session held by userID.
func (s *AuthService) SignOutEverywhere(ctx context.Context, userID string) error {
	if userID == "" {
		return apperr.Unauthenticated("not signed in")
	}
	if err := s.sessions.DestroyAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("sign out everywhere: %w", err)
	}
	s.audit.LogEvent(ctx, "", userID, auditdomain.ActionSignOut, "session", "all")
	return nil
}

// CurrentUser returns the user for id or nil.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*userdomain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func validatePassword(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}
	if len(password) > 72 {
		return errors.New("password must be at most 72 bytes")
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		default:
			hasSymbol = true
		}
	}
	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return errors.New("password must contain at least one number")
	}
	if !hasSymbol {
		return errors.New("password must contain at least one symbol")
	}
	return nil
}
