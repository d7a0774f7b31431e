package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSessionPurger mocks SessionPurger for testing
type MockSessionPurger struct {
	mock.Mock
}

func (m *MockSessionPurger) PurgeExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockInvitationExpirer mocks InvitationExpirer for testing
type MockInvitationExpirer struct {
	mock.Mock
}

func (m *MockInvitationExpirer) ExpirePending(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestRunOnce(t *testing.T) {
	sessions := new(MockSessionPurger)
	invitations := new(MockInvitationExpirer)
	sessions.On("PurgeExpired", mock.Anything).Return(int64(3), nil).Once()
	invitations.On("ExpirePending", mock.Anything).Return(int64(1), nil).Once()

	s := &Sweeper{sessions: sessions, invitations: invitations, log: zerolog.Nop()}

	require.NoError(t, s.RunOnce(context.Background()))
	sessions.AssertExpectations(t)
	invitations.AssertExpectations(t)
}

func TestRunOnce_ContinuesAfterFailure(t *testing.T) {
	sessions := new(MockSessionPurger)
	invitations := new(MockInvitationExpirer)
	sessions.On("PurgeExpired", mock.Anything).Return(int64(0), errors.New("db down")).Once()
	invitations.On("ExpirePending", mock.Anything).Return(int64(2), nil).Once()

	s := &Sweeper{sessions: sessions, invitations: invitations, log: zerolog.Nop()}

	assert.EqualError(t, s.RunOnce(context.Background()), "db down")
	invitations.AssertExpectations(t)
}

func TestStart_RunsImmediately(t *testing.T) {
	sessions := new(MockSessionPurger)
	done := make(chan struct{})
	sessions.On("PurgeExpired", mock.Anything).Return(int64(0), nil).Run(func(mock.Arguments) {
		select {
		case <-done:
		default:
			close(done)
		}
	})

	s, err := NewSweeper(sessions, nil, time.Hour, zerolog.Nop())
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not run after Start")
	}
}
