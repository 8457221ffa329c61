// Package logging builds the structured logger shared by every core
// component. The logger is constructed once and threaded through
// constructors rather than kept as a package-level global.
package logging

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger returned by New.
type Options struct {
	// Module is attached to every record as "module".
	Module string
	// Level is one of "debug", "info", "warn", "error"; defaults to "info".
	Level string
	// LogFile is the rotated log file path. Empty disables the file sink.
	LogFile string
	// Console, when non-nil, receives the human-readable text handler
	// instead of os.Stdout (used to keep log lines off the status panel).
	Console io.Writer
}

func levelFromString(level string) slog.Level {
	switch level {
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

// New builds a fan-out slog.Logger: a text handler for the console sink
// and, when LogFile is set, a second text handler writing to a
// size-rotated file via lumberjack.
func New(opts Options) *slog.Logger {
	level := levelFromString(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: level}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(console, handlerOpts)}

	if opts.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    5, // MiB
			MaxBackups: 3,
			Compress:   false,
		}
		handlers = append(handlers, slog.NewTextHandler(rotator, handlerOpts))
	}

	logger := slog.New(slogmulti.Fanout(handlers...))
	if opts.Module != "" {
		logger = logger.With("module", opts.Module)
	}
	return logger
}

// Discard returns a logger that drops everything, for tests that do not
// want to assert on log output but still need a non-nil *slog.Logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
