// Worker consumes invitation notifications from Kafka and delivers them by email.
// Set KAFKA_BROKERS, INVITATION_KAFKA_TOPIC and KAFKA_GROUP_ID. Without SMTP_HOST the
// notifications are only logged.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"orgsession/internal/app"
	"orgsession/internal/config"
	"orgsession/internal/logging"
	"orgsession/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New(os.Stderr, "development", "info", "worker")
		fallback.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(os.Stdout, cfg.Env, cfg.LogLevel, "orgsession-worker")

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		logger.Fatal().Msg("KAFKA_BROKERS is required")
	}

	var n notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.SMTPHost != "" {
		smtpNotifier, err := notify.NewSMTPNotifier(app.SMTPConfig(cfg), logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("smtp")
		}
		n = smtpNotifier
	}

	reader := notify.NewReader(brokers, cfg.InvitationKafkaTopic, cfg.KafkaGroupID)
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("topic", cfg.InvitationKafkaTopic).
		Str("group", cfg.KafkaGroupID).
		Bool("smtp", cfg.SMTPHost != "").
		Msg("consuming invitation notifications")
	if err := notify.Consume(ctx, reader, n, logger); err != nil {
		logger.Error().Err(err).Msg("consumer stopped")
	}
	logger.Info().Msg("stopped")
}
