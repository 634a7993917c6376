// Package logger constructs the root zerolog logger for the application.
// Every service derives its own child logger from the one built here, so
// this is the only place that knows about output format and global level.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls logger construction.
type Config struct {
	Level  string // trace, debug, info, warn, error (default info)
	Pretty bool   // human-readable console output instead of JSON
}

// New builds the root logger. Unknown level strings fall back to info so a
// typo in LOG_LEVEL never silences the application.
func New(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)

	var logger zerolog.Logger
	if cfg.Pretty {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		logger = zerolog.New(output)
	} else {
		logger = zerolog.New(os.Stdout)
	}

	return logger.Level(level).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
