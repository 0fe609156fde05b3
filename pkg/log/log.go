// Package log is the arm controller's slog setup: one global logger, text on
// the console, JSON under GO_ENV=production, errors logged by message only.
package log

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	lock   sync.Mutex
	logger *slog.Logger
)

// Init (re)initializes the global logger with the specified level.
// Valid levels: "debug", "info", "warn", "error".
func Init(level string) {
	InitWriter(os.Stdout, level)
}

func InitWriter(w io.Writer, level string) {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: errorMessage,
	}

	var l *slog.Logger
	// JSON when shipping logs off the robot, text on the console.
	if os.Getenv("GO_ENV") == "production" {
		l = slog.New(slog.NewJSONHandler(w, opts))
	} else {
		l = slog.New(slog.NewTextHandler(w, opts))
	}

	lock.Lock()
	logger = l
	lock.Unlock()
	slog.SetDefault(l)
}

// errorMessage logs errors as their message. The text handler would
// otherwise format them with %+v, which prints pkg/errors stack traces.
func errorMessage(groups []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	if err, ok := a.Value.Any().(error); ok {
		a.Value = slog.StringValue(err.Error())
	}
	return a
}

func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// L returns the global logger instance.
func L() *slog.Logger {
	lock.Lock()
	l := logger
	lock.Unlock()
	if l == nil {
		Init("info")
		return L()
	}
	return l
}

func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	L().Error(msg, args...)
}
