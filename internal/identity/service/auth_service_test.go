package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgsession/internal/platform/apperr"
	"orgsession/internal/security"
	sessionservice "orgsession/internal/session/service"
	"orgsession/internal/store/memory"
)

const goodPassword = "Correct-Horse-9"

func newTestAuthService(t *testing.T) (*AuthService, *sessionservice.Store) {
	t.Helper()
	s := memory.New()
	sessions := sessionservice.NewStore(s.Sessions(), time.Hour, nil, zerolog.Nop())
	return NewAuthService(s.Users(), sessions, security.NewHasher(4), nil, zerolog.Nop()), sessions
}

func TestSignUp_ThenSignIn(t *testing.T) {
	svc, sessions := newTestAuthService(t)
	ctx := context.Background()

	res, err := svc.SignUp(ctx, " Alice@Example.com ", goodPassword, "")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, "alice", res.User.Name)
	assert.NotEqual(t, goodPassword, res.User.PasswordHash)
	require.NotNil(t, res.Session)

	in, err := svc.SignIn(ctx, "ALICE@example.com", goodPassword)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, in.User.ID)
	assert.NotEqual(t, res.Session.Token, in.Session.Token)

	resolved, err := sessions.Resolve(ctx, in.Session.Token)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, res.User.ID, resolved.UserID)
}

func TestSignUp_Errors(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "nope", goodPassword, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.SignUp(ctx, "bob@example.com", "short", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.SignUp(ctx, "bob@example.com", goodPassword, "Bob")
	require.NoError(t, err)
	_, err = svc.SignUp(ctx, "BOB@example.com", goodPassword, "Bob")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()
	_, err := svc.SignUp(ctx, "alice@example.com", goodPassword, "Alice")
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "alice@example.com", "Wrong-Password-1")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = svc.SignIn(ctx, "nobody@example.com", goodPassword)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.Equal(t, apperr.MessageOf(ErrInvalidCredentials), apperr.MessageOf(err))

	_, err = svc.SignIn(ctx, "", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSignOut(t *testing.T) {
	svc, sessions := newTestAuthService(t)
	ctx := context.Background()
	res, err := svc.SignUp(ctx, "alice@example.com", goodPassword, "Alice")
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, res.User.ID, res.Session.Token))
	require.NoError(t, svc.SignOut(ctx, res.User.ID, res.Session.Token))

	got, err := sessions.Resolve(ctx, res.Session.Token)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSignOutEverywhere(t *testing.T) {
	svc, sessions := newTestAuthService(t)
	ctx := context.Background()
	up, err := svc.SignUp(ctx, "alice@example.com", goodPassword, "Alice")
	require.NoError(t, err)
	in, err := svc.SignIn(ctx, "alice@example.com", goodPassword)
	require.NoError(t, err)
	bob, err := svc.SignUp(ctx, "bob@example.com", goodPassword, "Bob")
	require.NoError(t, err)

	require.NoError(t, svc.SignOutEverywhere(ctx, up.User.ID))

	for _, token := range []string{up.Session.Token, in.Session.Token} {
		got, err := sessions.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	got, err := sessions.Resolve(ctx, bob.Session.Token)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.ErrorIs(t, svc.SignOutEverywhere(ctx, ""), apperr.ErrUnauthenticated)
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{goodPassword, false},
		{"short1!A", true},
		{"alllowercase1!", true},
		{"ALLUPPERCASE1!", true},
		{"NoNumbersHere!", true},
		{"NoSymbols12345", true},
	}
	for _, tt := range tests {
		if err := validatePassword(tt.password); (err != nil) != tt.wantErr {
			t.Errorf("validatePassword(%q) err = %v, wantErr %v", tt.password, err, tt.wantErr)
		}
	}
}
