// Migrate applies the embedded SQL migrations to DATABASE_URL.
package main

import (
	"flag"
	"os"

	"orgsession/internal/config"
	"orgsession/internal/db/migrate"
	"orgsession/internal/logging"
)

func main() {
	direction := flag.String("direction", migrate.Up, "Migration direction: up or down")
	showVersion := flag.Bool("version", false, "Print the current schema version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New(os.Stderr, "development", "info", "migrate")
		fallback.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(os.Stdout, cfg.Env, cfg.LogLevel, "migrate")
	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	if *showVersion {
		version, dirty, err := migrate.Version(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("read schema version")
		}
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
		return
	}

	logger.Info().Str("direction", *direction).Msg("running migrations")
	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	logger.Info().Msg("migrations complete")
}
