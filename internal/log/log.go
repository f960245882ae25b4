// Package log provides category-scoped structured logging for keysound.
//
// Until Init is called all output is discarded, which keeps tests and
// library consumers quiet by default.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
)

// Category tags a log line with the subsystem that produced it.
type Category string

const (
	CatConfig  Category = "config"
	CatProfile Category = "profile"
	CatLibrary Category = "library"
	CatCapture Category = "capture"
	CatAudio   Category = "audio"
	CatOrch    Category = "orch"
	CatDB      Category = "db"
	CatWatch   Category = "watch"
)

// Level is the minimum severity that is written.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return "unknown"
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a level name ("debug", "info", "warn", "error") to a Level.
// Unknown names fall back to LevelInfo and report false.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "d":
		return LevelDebug, true
	case "info", "i", "":
		return LevelInfo, true
	case "warn", "warning", "w":
		return LevelWarn, true
	case "error", "e":
		return LevelError, true
	}
	return LevelInfo, false
}

var (
	mu       sync.Mutex
	logger   = slog.New(slog.NewTextHandler(io.Discard, nil))
	levelVar slog.LevelVar
	file     *os.File
	panics   atomic.Int64
)

// Init directs log output to the file at path (appending) and returns a
// cleanup function that closes it. An empty path logs to stderr.
func Init(path string) (func(), error) {
	mu.Lock()
	defer mu.Unlock()

	var w io.Writer = os.Stderr
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600) //nolint:gosec // G304: path comes from user config
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		if file != nil {
			_ = file.Close()
		}
		file = f
		w = f
	}

	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar}))

	return func() {
		mu.Lock()
		defer mu.Unlock()
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		if file != nil {
			_ = file.Close()
			file = nil
		}
	}, nil
}

// SetOutput replaces the destination writer. Mainly useful in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar}))
}

// SetLevel sets the minimum level written.
func SetLevel(l Level) {
	levelVar.Set(l.slog())
}

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

func write(level Level, cat Category, msg string, kv []any) {
	l := current()
	if !l.Enabled(context.Background(), level.slog()) {
		return
	}
	attrs := make([]any, 0, len(kv)+2)
	attrs = append(attrs, "cat", string(cat))
	attrs = append(attrs, kv...)
	l.Log(context.Background(), level.slog(), msg, attrs...)
}

// Debug logs at debug level.
func Debug(cat Category, msg string, kv ...any) { write(LevelDebug, cat, msg, kv) }

// Info logs at info level.
func Info(cat Category, msg string, kv ...any) { write(LevelInfo, cat, msg, kv) }

// Warn logs at warn level.
func Warn(cat Category, msg string, kv ...any) { write(LevelWarn, cat, msg, kv) }

// Error logs at error level.
func Error(cat Category, msg string, kv ...any) { write(LevelError, cat, msg, kv) }

// ErrorErr logs err at error level under the "error" key.
func ErrorErr(cat Category, msg string, err error, kv ...any) {
	attrs := make([]any, 0, len(kv)+2)
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	attrs = append(attrs, kv...)
	write(LevelError, cat, msg, attrs)
}

// SafeGo runs fn in a new goroutine and recovers any panic, logging it with
// the goroutine name and stack.
func SafeGo(name string, fn func()) {
	go func() {
		defer Recover(name)
		fn()
	}()
}

// Recover logs a recovered panic. It must be called directly by a deferred
// statement.
func Recover(name string) {
	if r := recover(); r != nil {
		panics.Add(1)
		Error(CatOrch, "Recovered panic", "goroutine", name, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
	}
}

// PanicCount reports how many panics SafeGo and Recover have absorbed.
func PanicCount() int64 {
	return panics.Load()
}
