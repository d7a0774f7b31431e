// Package logging builds the root zerolog logger for the binaries.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing JSON to w, or a console writer on stderr outside production.
// Unknown levels fall back to info.
func New(w io.Writer, env, level, service string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(w).Level(lvl).With().Timestamp().Str("service", service).Logger()
	if !strings.EqualFold(env, "production") {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger
}
