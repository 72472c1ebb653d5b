// Package obslog provides the structured logger used across agentic-core.
// Field-key constants keep attribute names consistent between the loop,
// sandbox, planner and store.
package obslog

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler used by New.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Standard field keys shared across packages.
const (
	RunIDKey      = "run_id"
	IterationKey  = "iteration"
	ActionKey     = "action"
	ProviderKey   = "provider"
	DurationKey   = "duration_ms"
	StopReasonKey = "stop_reason"
)

// Config controls logger construction.
type Config struct {
	Level     string
	Format    Format
	Output    io.Writer
	AddSource bool
}

func DefaultConfig() *Config {
	return &Config{Level: "info", Format: FormatJSON, Output: os.Stderr}
}

// FromEnv builds a Config from AGENTCORE_LOG_LEVEL / AGENTCORE_LOG_FORMAT.
func FromEnv() *Config {
	cfg := DefaultConfig()
	if level := os.Getenv("AGENTCORE_LOG_LEVEL"); level != "" {
		cfg.Level = strings.ToLower(level)
	}
	if format := os.Getenv("AGENTCORE_LOG_FORMAT"); format != "" {
		cfg.Format = Format(strings.ToLower(format))
	}
	if os.Getenv("AGENTCORE_LOG_SOURCE") == "1" {
		cfg.AddSource = true
	}
	return cfg
}

// New builds a slog.Logger from cfg (nil uses defaults).
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	switch cfg.Format {
	case FormatText:
		handler = slog.NewTextHandler(cfg.Output, opts)
	default:
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRun returns a logger annotated with the run's identifier.
func WithRun(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With(slog.String(RunIDKey, runID))
}

// WithIteration returns a logger annotated with run and iteration.
func WithIteration(logger *slog.Logger, runID string, iteration int) *slog.Logger {
	return logger.With(slog.String(RunIDKey, runID), slog.Int(IterationKey, iteration))
}
