// Package logging provides structured logging configuration using zerolog.
// Every component logs through a child of the global logger tagged with its
// component name; per-batch work adds the batch root.
package logging

import (
	"fmt"
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
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
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

// ParseLevel validates a level name from configuration.
func ParseLevel(s string) (LogLevel, error) {
	switch l := LogLevel(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l, nil
	case "warning":
		return LevelWarn, nil
	case "":
		return LevelInfo, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithBatch returns a child of logger tagged with a batch root.
func WithBatch(logger zerolog.Logger, root string) zerolog.Logger {
	return logger.With().Str("batch", root).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Each flush (rows flushed, written so far, remaining)
//   - Dropped IDs per lookup chunk
//   - Status writes to Redis
//
// Info: Normal operation events
//   - Batch started (fresh or resumed) and batch complete
//   - Batch already complete, skipped
//   - Lookup succeeded after retry
//   - Run start and summary
//
// Warn: Warning conditions that don't prevent operation
//   - Lookup retry attempts
//   - Status recording failures (Redis unavailable)
//   - Buffered rows lost after a resolver error
//
// Error: Error conditions requiring attention
//   - Batch failed (resolver error, missing input, artifact error)
//   - Retry attempts exhausted
//   - Configuration errors
//
// Context Fields:
//   - component: hydrate, lookup, status, cli
//   - batch: Batch root name
//   - phase: not_started, in_progress, complete, failed
//   - start: fresh, resumed, already_complete
//   - written: Rows flushed in this run
//   - remaining: IDs requested in this run
//   - flushed: Rows in one flush
//   - path: Artifact path
//   - error_class: Lookup error class (client, server, rate_limit, network, decode)
//   - attempt: Retry attempt number
//   - duration: Batch duration
