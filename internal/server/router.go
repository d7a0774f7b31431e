// Package server assembles the HTTP router and the gRPC health server.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"orgsession/internal/health"
	"orgsession/internal/metrics"
	"orgsession/internal/server/middleware"
)

// Registrar mounts a handler's routes.
type Registrar interface {
	Register(r chi.Router)
}

// RouterConfig configures the HTTP router.
type RouterConfig struct {
	Guard          middleware.GuardConfig
	AllowedOrigins []string
	// RequestTimeout bounds each request; zero means 60s.
	RequestTimeout time.Duration
	// RequestsPerMinute is a coarse per-IP limit for all routes; zero disables it.
	RequestsPerMinute int
}

// NewRouter returns the application handler. Ops endpoints bypass the route guard;
// everything else passes through it so handlers can read the session from the context.
func NewRouter(
	cfg RouterConfig,
	resolve middleware.ResolveFunc,
	checker *health.Checker,
	gatherer prometheus.Gatherer,
	m *metrics.Metrics,
	logger zerolog.Logger,
	handlers ...Registrar,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestClientIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if cfg.RequestsPerMinute > 0 {
		r.Use(httprate.LimitByIP(cfg.RequestsPerMinute, time.Minute))
	}

	r.Get("/healthz", checker.Liveness)
	r.Get("/readyz", checker.Readiness)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(resolve, cfg.Guard, m, logger))
		for _, h := range handlers {
			h.Register(r)
		}
	})

	return otelhttp.NewHandler(r, "orgsession-http")
}

// NewHTTPServer wraps handler in an http.Server with conservative timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      65 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
