// Package jobs runs the periodic maintenance sweeps on a gocron scheduler.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// SessionPurger deletes expired sessions.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// InvitationExpirer moves overdue pending invitations to expired.
type InvitationExpirer interface {
	ExpirePending(ctx context.Context) (int64, error)
}

const sweepTimeout = time.Minute

// Sweeper purges expired sessions and expires overdue invitations on an interval.
type Sweeper struct {
	scheduler   gocron.Scheduler
	sessions    SessionPurger
	invitations InvitationExpirer
	interval    time.Duration
	log         zerolog.Logger
}

// NewSweeper creates a sweeper that runs every interval once started.
func NewSweeper(sessions SessionPurger, invitations InvitationExpirer, interval time.Duration, logger zerolog.Logger) (*Sweeper, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s := &Sweeper{
		scheduler:   scheduler,
		sessions:    sessions,
		invitations: invitations,
		interval:    interval,
		log:         logger.With().Str("component", "sweeper").Logger(),
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.runScheduled),
		gocron.WithName("expiry-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("register sweep job: %w", err)
	}
	return s, nil
}

// Start begins running sweeps in the background.
func (s *Sweeper) Start() {
	s.log.Info().Dur("interval", s.interval).Msg("sweeper started")
	s.scheduler.Start()
}

// Stop waits for a running sweep to finish and stops the scheduler.
func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Sweeper) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	_ = s.RunOnce(ctx)
}

// RunOnce performs one sweep. Both steps run even if the first fails; the first error is returned.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	var firstErr error
	if s.sessions != nil {
		n, err := s.sessions.PurgeExpired(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("purge expired sessions")
			firstErr = err
		} else if n > 0 {
			s.log.Info().Int64("count", n).Msg("purged expired sessions")
		}
	}
	if s.invitations != nil {
		n, err := s.invitations.ExpirePending(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("expire pending invitations")
			if firstErr == nil {
				firstErr = err
			}
		} else if n > 0 {
			s.log.Info().Int64("count", n).Msg("expired pending invitations")
		}
	}
	return firstErr
}
