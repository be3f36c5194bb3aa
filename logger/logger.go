// Package logger provides the process-wide logger for telegram-mcp.
//
// It is a thin front over log/slog: a singleton configured once at startup
// and safe for concurrent use. Packages that want injection can call Get
// for the underlying *slog.Logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
)

var singleton atomic.Pointer[slog.Logger]

func init() {
	// Default logger so callers that skip Initialize() don't panic.
	singleton.Store(newLogger(os.Stderr, slog.LevelInfo, true))
}

func get() *slog.Logger {
	return singleton.Load()
}

// Get returns the underlying *slog.Logger for injection into structs.
func Get() *slog.Logger {
	return get()
}

// Set replaces the singleton logger. Intended for tests that capture output.
func Set(l *slog.Logger) {
	singleton.Store(l)
}

// Initialize configures the singleton. Output goes to stderr so that stdout
// stays clean for the stdio transport. Text format is the default; setting
// UNSTRUCTURED_LOGS=false switches to JSON.
func Initialize(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	singleton.Store(newLogger(os.Stderr, level, unstructuredLogs()))
}

func newLogger(w io.Writer, level slog.Level, text bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if text {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func unstructuredLogs() bool {
	v, err := strconv.ParseBool(os.Getenv("UNSTRUCTURED_LOGS"))
	if err != nil {
		// Unset or unparseable means the default: unstructured.
		return true
	}
	return v
}

// Debug logs a message at debug level.
func Debug(msg string) { get().Debug(msg) }

// Debugf logs a formatted message at debug level.
func Debugf(msg string, args ...any) { get().Debug(fmt.Sprintf(msg, args...)) }

// Debugw logs a message at debug level with key-value pairs.
func Debugw(msg string, keysAndValues ...any) { get().Debug(msg, keysAndValues...) }

// Info logs a message at info level.
func Info(msg string) { get().Info(msg) }

// Infof logs a formatted message at info level.
func Infof(msg string, args ...any) { get().Info(fmt.Sprintf(msg, args...)) }

// Infow logs a message at info level with key-value pairs.
func Infow(msg string, keysAndValues ...any) { get().Info(msg, keysAndValues...) }

// Warn logs a message at warning level.
func Warn(msg string) { get().Warn(msg) }

// Warnf logs a formatted message at warning level.
func Warnf(msg string, args ...any) { get().Warn(fmt.Sprintf(msg, args...)) }

// Warnw logs a message at warning level with key-value pairs.
func Warnw(msg string, keysAndValues ...any) { get().Warn(msg, keysAndValues...) }

// Error logs a message at error level.
func Error(msg string) { get().Error(msg) }

// Errorf logs a formatted message at error level.
func Errorf(msg string, args ...any) { get().Error(fmt.Sprintf(msg, args...)) }

// Errorw logs a message at error level with key-value pairs.
func Errorw(msg string, keysAndValues ...any) { get().Error(msg, keysAndValues...) }
