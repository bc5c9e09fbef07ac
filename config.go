package impwhen

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/toejough/impwhen/internal/core"
)

// DebugEnv names the environment variable that turns on debug logging for registries
// created by Default and ForTest. "1" or "true" logs at debug level; a zerolog level
// name such as "trace" logs at that level.
const DebugEnv = "IMPWHEN_DEBUG"

// WithLogger sets the logger for binding and dispatch events.
func WithLogger(logger zerolog.Logger) Option {
	return core.WithLogger(logger)
}

func loggerFromEnv() zerolog.Logger {
	return loggerFor(os.Getenv(DebugEnv))
}

func loggerFor(setting string) zerolog.Logger {
	if setting == "" {
		return zerolog.Nop()
	}

	level := zerolog.DebugLevel

	if enabled, err := strconv.ParseBool(setting); err == nil {
		if !enabled {
			return zerolog.Nop()
		}
	} else if parsed, err := zerolog.ParseLevel(setting); err == nil {
		level = parsed
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}

	return zerolog.New(consoleWriter).Level(level).With().Timestamp().Str("component", "impwhen").Logger()
}
