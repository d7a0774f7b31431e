// Server runs the orgsession HTTP API, dashboard guard and optional gRPC health endpoint.
// With DATABASE_URL unset it runs on the in-memory store, which is only suitable for development.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"orgsession/internal/app"
	"orgsession/internal/config"
	"orgsession/internal/db"
	"orgsession/internal/db/migrate"
	"orgsession/internal/health"
	"orgsession/internal/logging"
	"orgsession/internal/server"
	"orgsession/internal/store"
	"orgsession/internal/store/memory"
	"orgsession/internal/telemetry"
)

const serviceName = "orgsession"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(os.Stdout, cfg.Env, cfg.LogLevel, serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.NewProviders(ctx, cfg.OTelEndpoint, serviceName, cfg.OTelInsecure, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telemetry")
	}
	providers.SetGlobal()

	deps := app.Deps{
		Registry:       prometheus.NewRegistry(),
		LoggerProvider: providers.LoggerProvider,
	}
	deps.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.DatabaseURL != "" {
		if err := migrate.Run(cfg.DatabaseURL, migrate.Up); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal().Err(err).Msg("migrate")
		}
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("database")
		}
		defer pool.Close()
		deps.Repos = store.Postgres(pool)
		deps.Pinger = pool
	} else {
		logger.Warn().Msg("DATABASE_URL not set; using in-memory store")
		deps.Repos = store.Memory(memory.New())
	}

	a, err := app.New(ctx, cfg, deps, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("app")
	}

	srv := server.NewHTTPServer(cfg.HTTPAddr, a.Handler)
	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var grpcStop func()
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal().Err(err).Msg("grpc listen")
		}
		gs := server.NewGRPCServer(health.NewServer(a.Health))
		grpcStop = gs.GracefulStop
		go func() {
			logger.Info().Str("addr", cfg.GRPCAddr).Msg("grpc health listening")
			if err := gs.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	a.Sweeper.Start()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if grpcStop != nil {
		grpcStop()
	}
	if err := a.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("app close")
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("telemetry shutdown")
	}
	logger.Info().Msg("stopped")
}
