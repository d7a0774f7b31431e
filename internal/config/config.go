// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the optional address for the gRPC health endpoint; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN; empty selects the in-memory store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is the optional Redis URL backing the sign-in rate limiter (e.g. redis://localhost:6379/0).
	RedisURL string `mapstructure:"REDIS_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// BaseURL is the public URL of the dashboard; used to build invitation links.
	BaseURL string `mapstructure:"BASE_URL"`

	// SessionTTLRaw is the session lifetime (e.g. "168h").
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// SessionCookieName is the name of the signed cookie carrying the session token.
	SessionCookieName string `mapstructure:"SESSION_COOKIE_NAME"`
	// SessionSecret signs the session cookie. Must be at least 32 bytes in production.
	SessionSecret string `mapstructure:"SESSION_SECRET"`
	// CookieSecure sets the Secure flag on the session cookie.
	CookieSecure bool `mapstructure:"COOKIE_SECURE"`
	// SignInPath is where unauthenticated requests to protected pages are redirected.
	SignInPath string `mapstructure:"SIGN_IN_PATH"`
	// ProtectedPrefix is the path prefix that requires a session (default /dashboard).
	ProtectedPrefix string `mapstructure:"PROTECTED_PREFIX"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// SignInRateLimit is a ulule/limiter formatted rate for sign-in attempts per IP (e.g. "10-M").
	SignInRateLimit string `mapstructure:"SIGN_IN_RATE_LIMIT"`
	// CORSAllowedOrigins is a comma-separated list of allowed origins for the API.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// InvitationTTLRaw is how long a pending invitation stays acceptable (e.g. "168h").
	InvitationTTLRaw string `mapstructure:"INVITATION_TTL"`
	// InvitationLinkSecret signs acceptance link tokens (HS256).
	InvitationLinkSecret string `mapstructure:"INVITATION_LINK_SECRET"`
	// PolicyEngine selects the privilege checker: "role" or "opa".
	PolicyEngine string `mapstructure:"POLICY_ENGINE"`
	// PolicyFile is an optional Rego module path used when PolicyEngine is "opa".
	PolicyFile string `mapstructure:"POLICY_FILE"`

	// Notifier selects invitation delivery: "log", "smtp" or "kafka".
	Notifier string `mapstructure:"NOTIFIER"`
	// NotifyQueueSize bounds the in-process invitation dispatch queue.
	NotifyQueueSize int `mapstructure:"NOTIFY_QUEUE_SIZE"`
	// NotifyWorkers is the number of dispatch goroutines.
	NotifyWorkers int    `mapstructure:"NOTIFY_WORKERS"`
	SMTPHost      string `mapstructure:"SMTP_HOST"`
	SMTPPort      int    `mapstructure:"SMTP_PORT"`
	SMTPUsername  string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword  string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom      string `mapstructure:"SMTP_FROM"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// InvitationKafkaTopic is the topic invitation notifications are published to.
	InvitationKafkaTopic string `mapstructure:"INVITATION_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the invitation mail worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTelEndpoint is the OTLP gRPC collector endpoint; empty disables telemetry export.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTelInsecure disables TLS to the collector.
	OTelInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// SweepIntervalRaw is how often the worker purges expired sessions and expires invitations.
	SweepIntervalRaw string `mapstructure:"SWEEP_INTERVAL"`
}

const devSessionSecret = "development-only-session-secret-change-me"

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("SESSION_TTL", "168h")
	v.SetDefault("SESSION_COOKIE_NAME", "orgsession")
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("SIGN_IN_PATH", "/auth/sign-in")
	v.SetDefault("PROTECTED_PREFIX", "/dashboard")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SIGN_IN_RATE_LIMIT", "10-M")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("INVITATION_TTL", "168h")
	v.SetDefault("INVITATION_LINK_SECRET", "")
	v.SetDefault("POLICY_ENGINE", "role")
	v.SetDefault("POLICY_FILE", "")
	v.SetDefault("NOTIFIER", "log")
	v.SetDefault("NOTIFY_QUEUE_SIZE", 256)
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("INVITATION_KAFKA_TOPIC", "orgsession-invitations")
	v.SetDefault("KAFKA_GROUP_ID", "orgsession-invitation-mailer")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("SWEEP_INTERVAL", "15m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if !strings.HasPrefix(cfg.ProtectedPrefix, "/") {
		return nil, errors.New("config: PROTECTED_PREFIX must start with /")
	}
	if !strings.HasPrefix(cfg.SignInPath, "/") {
		return nil, errors.New("config: SIGN_IN_PATH must start with /")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.IsProduction() {
		if len(cfg.SessionSecret) < 32 {
			return nil, errors.New("config: SESSION_SECRET must be at least 32 bytes when APP_ENV=production")
		}
		if len(cfg.InvitationLinkSecret) < 32 {
			return nil, errors.New("config: INVITATION_LINK_SECRET must be at least 32 bytes when APP_ENV=production")
		}
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = devSessionSecret
	}
	if cfg.InvitationLinkSecret == "" {
		cfg.InvitationLinkSecret = cfg.SessionSecret
	}

	switch cfg.PolicyEngine {
	case "role", "opa":
	default:
		return nil, errors.New("config: POLICY_ENGINE must be role or opa")
	}

	switch cfg.Notifier {
	case "log":
	case "smtp":
		if cfg.SMTPHost == "" || cfg.SMTPFrom == "" {
			return nil, errors.New("config: SMTP_HOST and SMTP_FROM must be set when NOTIFIER=smtp")
		}
	case "kafka":
		if len(cfg.KafkaBrokersList()) == 0 {
			return nil, errors.New("config: KAFKA_BROKERS must be set when NOTIFIER=kafka")
		}
	default:
		return nil, errors.New("config: NOTIFIER must be log, smtp or kafka")
	}

	if cfg.NotifyQueueSize <= 0 {
		cfg.NotifyQueueSize = 256
	}
	if cfg.NotifyWorkers <= 0 {
		cfg.NotifyWorkers = 2
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c != nil && strings.EqualFold(c.Env, "production")
}

// SessionTTL parses SessionTTLRaw as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	return parseDuration(c.SessionTTLRaw, 168*time.Hour)
}

// InvitationTTL parses InvitationTTLRaw. Returns 168h if unset or invalid.
func (c *Config) InvitationTTL() time.Duration {
	return parseDuration(c.InvitationTTLRaw, 168*time.Hour)
}

// SweepInterval parses SweepIntervalRaw. Returns 15m if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	return parseDuration(c.SweepIntervalRaw, 15*time.Minute)
}

func parseDuration(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// AllowedOrigins returns the CORS origins from the comma-separated config.
func (c *Config) AllowedOrigins() []string {
	if c == nil {
		return nil
	}
	return splitList(c.CORSAllowedOrigins)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
