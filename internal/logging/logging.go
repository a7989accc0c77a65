// Package logging provides file logging for the dovetail CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Level represents the logging level.
type Level int

const (
	// LevelInfo is the default logging level.
	LevelInfo Level = iota
	// LevelDebug enables verbose debug logging.
	LevelDebug
)

// Logger wraps an hclog logger with level filtering, printf-style helpers and
// file output. A nil *Logger is valid and discards everything.
type Logger struct {
	level    Level
	hc       hclog.Logger
	file     *os.File
	filePath string
}

// Setup creates a new logger that writes to a timestamped log file.
// Returns nil if logging is disabled (noLog=true).
func Setup(logDir string, verbose, noLog bool) (*Logger, error) {
	if noLog {
		return nil, nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("dovetail_run_%s.log", timestamp)
	filePath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", filePath, err)
	}

	l := New(file, verbose)
	l.file = file
	l.filePath = filePath

	l.Info("dovetail starting")
	if verbose {
		l.Info("Debug level logging enabled")
	}
	l.Info("Log file: %s", filePath)

	return l, nil
}

// New creates a logger writing to w. It does not own w.
func New(w io.Writer, verbose bool) *Logger {
	level := LevelInfo
	hcLevel := hclog.Info
	if verbose {
		level = LevelDebug
		hcLevel = hclog.Debug
	}

	return &Logger{
		level: level,
		hc: hclog.New(&hclog.LoggerOptions{
			Name:       "dovetail",
			Level:      hcLevel,
			Output:     w,
			TimeFormat: "2006/01/02 15:04:05",
		}),
	}
}

// Discard returns a logger that drops all output. Useful in tests.
func Discard() *Logger {
	return &Logger{level: LevelInfo, hc: hclog.NewNullLogger()}
}

// Named returns a sub-logger whose lines are tagged with name.
// The returned logger shares the parent's file.
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		level:    l.level,
		hc:       l.hc.Named(name),
		filePath: l.filePath,
	}
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// FilePath returns the path to the log file.
func (l *Logger) FilePath() string {
	if l == nil {
		return ""
	}
	return l.filePath
}

// Verbose reports whether debug logging is enabled.
func (l *Logger) Verbose() bool {
	return l != nil && l.level >= LevelDebug
}

// Info logs an info-level message.
func (l *Logger) Info(format string, args ...any) {
	if l == nil {
		return
	}
	l.hc.Info(fmt.Sprintf(format, args...))
}

// Debug logs a debug-level message (only if verbose mode is enabled).
func (l *Logger) Debug(format string, args ...any) {
	if l == nil || l.level < LevelDebug {
		return
	}
	l.hc.Debug(fmt.Sprintf(format, args...))
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) {
	if l == nil {
		return
	}
	l.hc.Warn(fmt.Sprintf(format, args...))
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) {
	if l == nil {
		return
	}
	l.hc.Error(fmt.Sprintf(format, args...))
}

// Writer returns an io.Writer that writes to the log file.
func (l *Logger) Writer() io.Writer {
	if l == nil || l.file == nil {
		return io.Discard
	}
	return l.file
}
