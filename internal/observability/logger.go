package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Local and development environments
// get a console writer; everything else logs JSON with caller information.
func NewLogger(serviceName, appEnv, level string) zerolog.Logger {
	return newLogger(os.Stdout, serviceName, appEnv, level)
}

func newLogger(out io.Writer, serviceName, appEnv, level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	switch strings.ToLower(strings.TrimSpace(appEnv)) {
	case "local", "development", "dev":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Str("service", serviceName).
			Logger()
	default:
		logger = zerolog.New(out).
			With().
			Timestamp().
			Caller().
			Str("service", serviceName).
			Logger()
	}
	return logger.Level(parsed)
}
