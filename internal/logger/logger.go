// Package logger provides structured logging functionality
package logger

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps slog.Logger for application-wide logging
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // text, json
	File       string // optional path; output is mirrored there with rotation
	MaxSizeMB  int
	MaxBackups int
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a new structured logger
func New(cfg Config) *Logger {
	return newWithWriter(cfg, os.Stdout)
}

func newWithWriter(cfg Config, stdout io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	out := stdout
	var closer io.Closer
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 50),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			Compress:   true,
		}
		out = io.MultiWriter(stdout, rotator)
		closer = rotator
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
		closer: closer,
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Close flushes and closes the rotating file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// WithComponent returns a logger with a component attribute
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With("component", component),
		closer: l.closer,
	}
}

// WithStep returns a logger with pipeline step and run attributes
func (l *Logger) WithStep(step, runID string) *Logger {
	return &Logger{
		Logger: l.With("step", step, "run_id", runID),
		closer: l.closer,
	}
}

// WithTrack returns a logger with track context attributes
func (l *Logger) WithTrack(trackID, isrc string) *Logger {
	return &Logger{
		Logger: l.With("track_id", trackID, "isrc", isrc),
		closer: l.closer,
	}
}

// Default returns a default logger for quick usage
func Default() *Logger {
	return New(Config{
		Level:  "info",
		Format: "text",
	})
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
