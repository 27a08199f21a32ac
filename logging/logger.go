// Package logging provides structured JSON logging over daily log files.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger is the logging interface the rest of the daemon depends on. Args
// are slog-style alternating key/value pairs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// LogLevel selects the minimum severity that gets written.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// slogLevel maps a LogLevel to its slog equivalent. Unknown values fall
// back to info.
func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// dailyFileWriter appends to <prefix>-<YYYY-MM-DD>.log, switching files when
// the local date changes. The file is opened lazily on first write.
type dailyFileWriter struct {
	mu     sync.Mutex
	dir    string
	prefix string
	date   string
	file   *os.File
}

var _ io.WriteCloser = (*dailyFileWriter)(nil)

func (w *dailyFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if w.file == nil || w.date != today {
		if err := w.openFor(today); err != nil {
			return 0, err
		}
	}

	return w.file.Write(p)
}

func (w *dailyFileWriter) openFor(date string) error {
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}

	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.log", w.prefix, date))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	w.file = file
	w.date = date
	return nil
}

func (w *dailyFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// CreateLogger builds a JSON logger writing to daily files under logDir.
// If the directory cannot be created, logs go to stdout instead so the
// daemon never runs blind.
func CreateLogger(level LogLevel, logDir, filePrefix string) Logger {
	opts := &slog.HandlerOptions{Level: level.slogLevel()}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	writer := &dailyFileWriter{dir: logDir, prefix: filePrefix}
	return slog.New(slog.NewJSONHandler(writer, opts))
}

type nopLogger struct{}

// NopLogger discards everything. Constructors fall back to it when given a
// nil logger.
var NopLogger Logger = nopLogger{}

func (nopLogger) Info(msg string, args ...any)  {}
func (nopLogger) Warn(msg string, args ...any)  {}
func (nopLogger) Error(msg string, args ...any) {}
func (nopLogger) Debug(msg string, args ...any) {}
