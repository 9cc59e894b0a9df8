package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fatal, panic).
	Level string

	// Format is the output format (json, console, pretty).
	Format string

	// Output is the output destination (stdout, stderr, or a file path).
	// File output is also written to stdout.
	Output string

	// AddSource adds source file and line number to log entries.
	AddSource bool

	// TimeFormat is the time format for timestamps.
	TimeFormat string
}

// DefaultLoggingConfig returns a LoggingConfig with sensible defaults.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// NewLogger creates a new zerolog logger based on configuration.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	output, openErr := openOutput(cfg.Output)

	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	if strings.ToLower(cfg.Format) == "console" || strings.ToLower(cfg.Format) == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: zerolog.TimeFieldFormat,
		}
	}

	logger := zerolog.New(output).With().Timestamp()

	if cfg.AddSource {
		logger = logger.Caller()
	}

	log := logger.Logger()

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	log = log.Level(level)

	if openErr != nil {
		log.Warn().Err(openErr).Str("output", cfg.Output).Msg("falling back to stdout logging")
	}

	return log
}

// openOutput resolves the configured destination. A file path is opened in
// append mode and teed with stdout.
func openOutput(dest string) (io.Writer, error) {
	switch strings.ToLower(dest) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stdout, fmt.Errorf("open log file: %w", err)
	}
	return io.MultiWriter(os.Stdout, f), nil
}

// parseLevel converts a string log level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithCycleContext adds the cycle identifier to a logger.
func WithCycleContext(logger zerolog.Logger, cycleID string) zerolog.Logger {
	return logger.With().
		Str("cycle_id", cycleID).
		Logger()
}

// WithTargetContext adds target paper fields to a logger.
func WithTargetContext(logger zerolog.Logger, targetID, alias string) zerolog.Logger {
	return logger.With().
		Str("target_id", targetID).
		Str("target_alias", alias).
		Logger()
}

// WithPaperContext adds citing paper fields to a logger.
func WithPaperContext(logger zerolog.Logger, paperID, title string) zerolog.Logger {
	return logger.With().
		Str("paper_id", paperID).
		Str("title", title).
		Logger()
}

// WithSourceContext adds external source fields to a logger.
func WithSourceContext(logger zerolog.Logger, source, operation string) zerolog.Logger {
	return logger.With().
		Str("source", source).
		Str("operation", operation).
		Logger()
}

// ContextLogger enriches logger with the cycle, target, and request ids
// carried by ctx. Absent ids are omitted.
func ContextLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	lc := logger.With()
	if id := CycleIDFromContext(ctx); id != "" {
		lc = lc.Str("cycle_id", id)
	}
	if alias := TargetAliasFromContext(ctx); alias != "" {
		lc = lc.Str("target_alias", alias)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	return lc.Logger()
}
