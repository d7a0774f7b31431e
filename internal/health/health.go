// Package health reports liveness and readiness over HTTP and the standard gRPC health protocol.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"orgsession/internal/server/httpx"
)

const checkTimeout = 3 * time.Second

// Pinger checks storage connectivity. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker checks that the privilege policy engine can evaluate requests.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Checker runs the readiness checks. Nil dependencies are skipped, so the in-memory
// store with the built-in role checker is always ready.
type Checker struct {
	pinger Pinger
	policy PolicyChecker
	log    zerolog.Logger
}

// NewChecker returns a Checker. pinger and policy may be nil.
func NewChecker(pinger Pinger, policy PolicyChecker, logger zerolog.Logger) *Checker {
	return &Checker{pinger: pinger, policy: policy, log: logger.With().Str("component", "health").Logger()}
}

// Ready returns nil when every configured dependency answers.
func (c *Checker) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	var errs []error
	if c.pinger != nil {
		if err := c.pinger.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if c.policy != nil {
		if err := c.policy.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("policy: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Liveness answers 200 while the process is serving.
func (c *Checker) Liveness(w http.ResponseWriter, _ *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness answers 200 when Ready passes and 503 otherwise. Failure details are logged only.
func (c *Checker) Readiness(w http.ResponseWriter, r *http.Request) {
	if err := c.Ready(r.Context()); err != nil {
		c.log.Warn().Err(err).Msg("readiness check failed")
		httpx.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Server implements grpc.health.v1.Health on top of a Checker. Only the overall
// service ("") is known.
type Server struct {
	healthpb.UnimplementedHealthServer
	checker *Checker
}

// NewServer returns a gRPC health server.
func NewServer(checker *Checker) *Server {
	return &Server{checker: checker}
}

// Check reports SERVING when the checker is ready. A failing dependency is reported as
// NOT_SERVING, not as an RPC error.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if req.GetService() != "" {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	if err := s.checker.Ready(ctx); err != nil {
		s.checker.log.Warn().Err(err).Msg("grpc health check failed")
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
