// Seed inserts development sample data through the application services.
// Idempotent: it does nothing when dev@example.com already exists.
package main

import (
	"context"
	"os"

	"orgsession/internal/app"
	"orgsession/internal/config"
	"orgsession/internal/db"
	"orgsession/internal/logging"
	memberdomain "orgsession/internal/membership/domain"
	"orgsession/internal/store"
)

const (
	devUserEmail = "dev@example.com"
	memberEmail  = "member@example.com"
	inviteeEmail = "invitee@example.com"
	devPassword  = "Dev-Password-123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New(os.Stderr, "development", "info", "seed")
		fallback.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(os.Stdout, cfg.Env, cfg.LogLevel, "seed")
	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database")
	}
	defer pool.Close()

	repos := store.Postgres(pool)
	existing, err := repos.Users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed check")
	}
	if existing != nil {
		logger.Info().Str("email", devUserEmail).Msg("seed already applied; skipping")
		return
	}

	cfg.Notifier = "log"
	a, err := app.New(ctx, cfg, app.Deps{Repos: repos, Pinger: pool}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("app")
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			logger.Error().Err(err).Msg("close")
		}
	}()

	owner, err := a.Auth.SignUp(ctx, devUserEmail, devPassword, "Dev User")
	if err != nil {
		logger.Fatal().Err(err).Msg("create dev user")
	}
	member, err := a.Auth.SignUp(ctx, memberEmail, devPassword, "Member User")
	if err != nil {
		logger.Fatal().Err(err).Msg("create member user")
	}

	org, err := a.Directory.CreateOrganization(ctx, owner.User.ID, "Acme Dev", "acme-dev", "")
	if err != nil {
		logger.Fatal().Err(err).Msg("create organization")
	}
	if _, err := a.Directory.AddMember(ctx, owner.User.ID, member.User.ID, org.ID, memberdomain.RoleMember); err != nil {
		logger.Fatal().Err(err).Msg("add member")
	}
	inv, err := a.Invitations.CreateInvitation(ctx, owner.User.ID, org.ID, inviteeEmail, memberdomain.RoleMember)
	if err != nil {
		logger.Fatal().Err(err).Msg("create invitation")
	}
	link, err := a.Invitations.AcceptanceLink(inv)
	if err != nil {
		logger.Fatal().Err(err).Msg("acceptance link")
	}

	logger.Info().
		Str("owner", devUserEmail).
		Str("member", memberEmail).
		Str("password", devPassword).
		Str("organization", org.Slug).
		Str("invitation_link", link).
		Msg("seed completed")
}
