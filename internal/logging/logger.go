// Package logging provides the structured logger shared by the evaluation steps.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with evaluation context helpers.
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to w with the given level and format.
// A nil writer logs to stderr so stdout stays free for reports.
func New(level, format string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Default returns a warn-level text logger on stderr.
func Default() *Logger {
	return New("warn", "text", nil)
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithAdvocate returns a logger tagged with an advocate name.
func (l *Logger) WithAdvocate(name string) *Logger {
	return &Logger{Logger: l.With("advocate", name)}
}

// WithClaim returns a logger tagged with the claim under evaluation.
func (l *Logger) WithClaim(claim string) *Logger {
	return &Logger{Logger: l.With("claim", truncate(claim, 120))}
}

// WithError returns a logger with error context.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.With("error", err.Error())}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
