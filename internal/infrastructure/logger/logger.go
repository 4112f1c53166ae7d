package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// SlogLogger implements application.Logger on top of log/slog
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger writing to stderr. format is "text" or
// "json"; debug enables Debug level output.
func NewSlogLogger(debug bool, format string) *SlogLogger {
	return NewSlogLoggerTo(os.Stderr, debug, format)
}

// NewSlogLoggerTo creates a logger writing to w
func NewSlogLoggerTo(w io.Writer, debug bool, format string) *SlogLogger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &SlogLogger{log: slog.New(handler)}
}

// Slog exposes the underlying logger, e.g. for slog.SetDefault
func (l *SlogLogger) Slog() *slog.Logger {
	return l.log
}

// With returns a logger that adds args to every record
func (l *SlogLogger) With(args ...interface{}) *SlogLogger {
	return &SlogLogger{log: l.log.With(args...)}
}

// Info logs an informational message
func (l *SlogLogger) Info(msg string, args ...interface{}) {
	l.log.Info(msg, args...)
}

// Warn logs a recoverable problem
func (l *SlogLogger) Warn(msg string, args ...interface{}) {
	l.log.Warn(msg, args...)
}

// Error logs an error
func (l *SlogLogger) Error(msg string, args ...interface{}) {
	l.log.Error(msg, args...)
}

// Debug logs a debug message
func (l *SlogLogger) Debug(msg string, args ...interface{}) {
	l.log.Debug(msg, args...)
}

// Nop returns a logger that discards everything
func Nop() *SlogLogger {
	return NewSlogLoggerTo(io.Discard, false, "text")
}
