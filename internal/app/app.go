// Package app wires configuration, storage and services into the running server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"orgsession/internal/activeorg"
	"orgsession/internal/audit"
	"orgsession/internal/config"
	"orgsession/internal/dashboard"
	"orgsession/internal/health"
	identityhandler "orgsession/internal/identity/handler"
	identityservice "orgsession/internal/identity/service"
	invitationhandler "orgsession/internal/invitation/handler"
	invitationservice "orgsession/internal/invitation/service"
	"orgsession/internal/jobs"
	"orgsession/internal/metrics"
	"orgsession/internal/nav"
	"orgsession/internal/notify"
	orghandler "orgsession/internal/organization/handler"
	orgservice "orgsession/internal/organization/service"
	"orgsession/internal/policy"
	"orgsession/internal/security"
	"orgsession/internal/server"
	"orgsession/internal/server/middleware"
	sessiondomain "orgsession/internal/session/domain"
	sessionservice "orgsession/internal/session/service"
	"orgsession/internal/store"
)

// Deps are the externally owned resources the application runs on.
type Deps struct {
	Repos store.Repositories
	// Pinger checks the database for readiness; nil when running in memory.
	Pinger   health.Pinger
	Registry *prometheus.Registry
	// LoggerProvider receives audit records as OTel logs; may be nil.
	LoggerProvider *sdklog.LoggerProvider
}

// App is the assembled server.
type App struct {
	Handler     http.Handler
	Health      *health.Checker
	Sweeper     *jobs.Sweeper
	Auth        *identityservice.AuthService
	Sessions    *sessionservice.Store
	Directory   *orgservice.Directory
	Invitations *invitationservice.Service
	dispatcher  *notify.Dispatcher
	closers     []func() error
}

// New builds the application from cfg. Close releases what it opened.
func New(ctx context.Context, cfg *config.Config, deps Deps, logger zerolog.Logger) (*App, error) {
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	m, err := metrics.New(deps.Registry)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	a := &App{}

	checker, policyHealth, err := newPolicyChecker(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	recorder := audit.NewLogger(deps.Repos.Audit, middleware.ClientIP, logger)
	if deps.LoggerProvider != nil {
		recorder = recorder.WithLoggerProvider(deps.LoggerProvider)
	}

	a.Sessions = sessionservice.NewStore(deps.Repos.Sessions, cfg.SessionTTL(), m, logger)
	transport := sessionservice.NewTransport(sessionservice.CookieOptions{
		Name:   cfg.SessionCookieName,
		Secret: []byte(cfg.SessionSecret),
		Secure: cfg.CookieSecure,
		MaxAge: cfg.SessionTTL(),
	})
	a.Auth = identityservice.NewAuthService(deps.Repos.Users, a.Sessions, security.NewHasher(cfg.BcryptCost), recorder, logger)

	a.Directory = orgservice.NewDirectory(deps.Repos.Orgs, deps.Repos.Memberships, checker, recorder, logger)
	selector := activeorg.NewSelector(deps.Repos.Sessions, a.Directory, recorder, logger)

	links, err := security.NewLinkSigner(cfg.InvitationLinkSecret)
	if err != nil {
		return nil, fmt.Errorf("invitation links: %w", err)
	}
	notifier, closeNotifier, err := newNotifier(cfg, logger)
	if err != nil {
		return nil, err
	}
	if closeNotifier != nil {
		a.closers = append(a.closers, closeNotifier)
	}
	a.dispatcher = notify.NewDispatcher(notifier, cfg.NotifyQueueSize, cfg.NotifyWorkers, m, logger)
	a.Invitations = invitationservice.NewService(
		deps.Repos.Invitations, deps.Repos.Memberships, deps.Repos.Orgs, deps.Repos.Users,
		checker, links, a.dispatcher, recorder, m,
		invitationservice.Config{TTL: cfg.InvitationTTL(), BaseURL: cfg.BaseURL}, logger,
	)

	signInLimit, err := a.newSignInLimit(cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Health = health.NewChecker(deps.Pinger, policyHealth, logger)
	a.Handler = server.NewRouter(
		server.RouterConfig{
			Guard:          middleware.GuardConfig{ProtectedPrefix: cfg.ProtectedPrefix, SignInPath: cfg.SignInPath},
			AllowedOrigins: cfg.AllowedOrigins(),
		},
		func(r *http.Request) (*sessiondomain.Session, error) {
			return a.Sessions.ResolveRequest(r.Context(), r, transport)
		},
		a.Health, deps.Registry, m, logger,
		identityhandler.NewHandler(a.Auth, transport, signInLimit, logger),
		orghandler.NewHandler(a.Directory, selector, recorder, logger),
		invitationhandler.NewHandler(a.Invitations, selector, cfg.SignInPath, cfg.ProtectedPrefix, logger),
		dashboard.NewHandler(a.Directory, selector, nav.DefaultItems(), logger),
	)

	a.Sweeper, err = jobs.NewSweeper(a.Sessions, a.Invitations, cfg.SweepInterval(), logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close drains pending notifications and releases notifier and limiter connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Sweeper != nil {
		if err := a.Sweeper.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("sweeper: %w", err))
		}
	}
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("notify: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newPolicyChecker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (policy.Checker, health.PolicyChecker, error) {
	if cfg.PolicyEngine != "opa" {
		return policy.NewRoleChecker(), nil, nil
	}
	opa, err := policy.NewOPACheckerFromFile(ctx, cfg.PolicyFile, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("policy: %w", err)
	}
	return opa, opa, nil
}

func newNotifier(cfg *config.Config, logger zerolog.Logger) (notify.Notifier, func() error, error) {
	switch cfg.Notifier {
	case "smtp":
		n, err := notify.NewSMTPNotifier(SMTPConfig(cfg), logger)
		if err != nil {
			return nil, nil, err
		}
		return n, nil, nil
	case "kafka":
		n, err := notify.NewKafkaNotifier(cfg.KafkaBrokersList(), cfg.InvitationKafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return n, n.Close, nil
	}
	return notify.NewLogNotifier(logger), nil, nil
}

// SMTPConfig maps the SMTP settings of cfg.
func SMTPConfig(cfg *config.Config) notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
}

func (a *App) newSignInLimit(cfg *config.Config, logger zerolog.Logger) (func(http.Handler) http.Handler, error) {
	if cfg.SignInRateLimit == "" {
		return nil, nil
	}
	var client redis.UniversalClient
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		rc := redis.NewClient(opts)
		a.closers = append(a.closers, rc.Close)
		client = rc
	}
	l, err := middleware.NewSignInLimiter(cfg.SignInRateLimit, client)
	if err != nil {
		return nil, err
	}
	return middleware.RateLimit(l, logger), nil
}
