// Package logging configures structured logging for the webstatus
// client using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Page request flow (filter, continuation tokens)
//   - Retry scheduling (attempt number, backoff delay)
//   - Holdoff state reads
//
// Info: Normal operation events
//   - Completed traversals (pages, records, duration)
//   - Requests that recovered after retry
//   - Proxy startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Non-2xx responses from the search endpoint
//   - Retry exhaustion
//   - Rate limit pauses
//   - Traversals stopped by a repeated continuation token
//
// Error: Error conditions requiring attention
//   - Rate limit blocks (holdoff too long to wait out)
//   - Redis failures during holdoff checks
//   - Configuration errors
//
// Context Fields:
//   - filter: the canonical filter string of the traversal
//   - status: HTTP status code
//   - error_class: error classification (client, server, rate_limit, network)
//   - attempt: attempt number within one logical request
//   - backoff: delay before the next attempt
//   - page_token: continuation token (only on defensive-stop warnings)
//   - pages, records, duration: traversal totals
