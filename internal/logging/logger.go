// Package logging provides the structured logging sink used throughout
// the gateway. Every component logs through here rather than calling
// slog directly so that log records are also captured in the
// in-process ring buffer exposed by Subscribe/List.
package logging

import (
	"fmt"
	"log/slog"
	"runtime"
)

func getCaller() string {
	if _, file, line, ok := runtime.Caller(2); ok {
		return fmt.Sprintf("%s:%d", file, line)
	}
	return "unknown"
}

func Info(msg string, args ...any) {
	slog.Info(msg, append([]any{"source", getCaller()}, args...)...)
}

func Debug(msg string, args ...any) {
	slog.Debug(msg, append([]any{"source", getCaller()}, args...)...)
}

func Warn(msg string, args ...any) {
	slog.Warn(msg, append([]any{"source", getCaller()}, args...)...)
}

func Error(msg string, args ...any) {
	slog.Error(msg, append([]any{"source", getCaller()}, args...)...)
}

// Setup installs the package's slog default logger: a text (logfmt)
// handler writing through Writer, so every log record is both printed
// to stdout and captured in the in-process ring buffer. Called once at
// process startup with the level resolved from LOG_LEVEL.
func Setup(level slog.Level) {
	handler := slog.NewTextHandler(NewWriter(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
