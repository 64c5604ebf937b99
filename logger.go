package imap

import (
	"log/slog"
	"os"
	"sync/atomic"
)

const componentName = "imap/session"

// Logger defines the minimal logging interface used by Sessions and the wire
// engine.
//
// Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	WithAttrs(args ...any) Logger
}

var globalLogger atomic.Value // stores Logger

func init() {
	globalLogger.Store(defaultLogger())
}

// verboseLevel makes the default handler follow Verbose at log time.
type verboseLevel struct{}

func (verboseLevel) Level() slog.Level {
	if Verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// defaultLogger returns the library's default slog-based logger.
func defaultLogger() Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: verboseLevel{}})
	return SlogLogger(slog.New(handler)).WithAttrs("component", componentName)
}

// SetLogger replaces the package logger. Sessions created afterwards without
// WithLogger use it, as does the wire engine. Passing nil restores the
// built-in slog logger.
func SetLogger(logger Logger) {
	if logger == nil {
		globalLogger.Store(defaultLogger())
		return
	}
	globalLogger.Store(logger.WithAttrs("component", componentName))
}

// SetSlogLogger is a convenience helper for using a *slog.Logger directly.
func SetSlogLogger(logger *slog.Logger) {
	SetLogger(SlogLogger(logger))
}

// SlogLogger adapts a *slog.Logger to the Logger interface.
func SlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		return nil
	}
	return slogAdapter{logger: logger}
}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return slogAdapter{logger: slog.New(slog.DiscardHandler)}
}

type slogAdapter struct {
	logger *slog.Logger
}

func (s slogAdapter) Debug(msg string, args ...any) { s.logger.Debug(msg, args...) }

func (s slogAdapter) Info(msg string, args ...any) { s.logger.Info(msg, args...) }

func (s slogAdapter) Warn(msg string, args ...any) { s.logger.Warn(msg, args...) }

func (s slogAdapter) Error(msg string, args ...any) { s.logger.Error(msg, args...) }

func (s slogAdapter) WithAttrs(args ...any) Logger {
	return slogAdapter{logger: s.logger.With(args...)}
}

func getLogger() Logger {
	if l, ok := globalLogger.Load().(Logger); ok {
		return l
	}
	return defaultLogger()
}

// sessionLogger tags base, or the package logger when base is nil, with the
// session number.
func sessionLogger(base Logger, num int) Logger {
	if base == nil {
		base = getLogger()
	}
	return base.WithAttrs("session", num)
}

// connectionLogger tags the package logger with a wire connection and the
// mailbox selected on it.
func connectionLogger(connNum int, mailbox string) Logger {
	args := []any{"conn", connNum}
	if mailbox != "" {
		args = append(args, "mailbox", mailbox)
	}
	return getLogger().WithAttrs(args...)
}

// debugLog emits a debug log entry when verbose logging is enabled.
func debugLog(connNum int, mailbox string, msg string, args ...any) {
	if !Verbose {
		return
	}
	connectionLogger(connNum, mailbox).Debug(msg, args...)
}

func warnLog(connNum int, mailbox string, msg string, args ...any) {
	connectionLogger(connNum, mailbox).Warn(msg, args...)
}

func errorLog(connNum int, mailbox string, msg string, args ...any) {
	connectionLogger(connNum, mailbox).Error(msg, args...)
}
