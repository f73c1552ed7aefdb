// Package logging provides structured logging configuration using zerolog.
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

// Component names used with NewLogger.
const (
	ComponentClient     = "mycase-client"
	ComponentRateLimit  = "ratelimit"
	ComponentPagination = "pagination"
	ComponentAuth       = "auth"
	ComponentService    = "mycase-service"
	ComponentServer     = "server"
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

// Setup installs the process-wide logger and level. Components pick it up
// through NewLogger, so call Setup before constructing clients or drivers.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// parseLevel maps a LogLevel (case-insensitive) to zerolog; unknown values mean info.
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

// NewLogger derives a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Disable discards all log output. Used by the CLI's --quiet flag.
func Disable() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Each physical attempt of a request
//   - Rate limit bucket waits
//   - Token loads from the store
//
// Info: Normal operation events
//   - Pagination progress (first three pages, then every fifth)
//   - Pagination completion with stop reason
//   - Token refresh and authorization code exchange
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts and throttle waits
//   - Rejected access token before refresh
//   - Pagination stopped by a safety bound (empty streak, page limit, missing cursor)
//     or by a page body that is neither an array nor an object
//
// Error: Error conditions requiring attention
//   - Failed requests (after retries)
//   - Failed token refresh
//   - Aborted pagination walks
//   - Configuration errors
//
// Context Fields:
//   - component: one of the Component constants
//   - request_id: X-Request-ID of the logical request
//   - method, endpoint: HTTP method and API path
//   - status: HTTP status code
//   - error_class: client, server, rate_limit, auth, network
//   - attempt: 1-based physical attempt number
//   - backoff, retry_after: wait durations
//   - page, items, total: pagination progress
