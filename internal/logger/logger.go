// Package logger provides verbose logging for the Archeo CLI.
// When verbose mode is enabled via the --verbose flag, debug messages
// are printed to stderr so users can follow ingestion file by file.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for verbose logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func logf(level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "["+level+"] "+format+"\n", args...)
	}
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf("DEBUG", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	logf("INFO", format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	logf("WARN", format, args...)
}

// Logger prefixes every message with a component name.
type Logger struct {
	component string
	progress  *rate.Sometimes
}

// Component returns a logger for a named part of the pipeline.
// Progress messages are throttled to one per interval.
func Component(name string, interval time.Duration) *Logger {
	return &Logger{
		component: name,
		progress:  &rate.Sometimes{First: 1, Interval: interval},
	}
}

// Debug prints a component message if verbose mode is enabled.
func (l *Logger) Debug(format string, args ...any) {
	logf("DEBUG", l.component+": "+format, args...)
}

// Info prints a component message if verbose mode is enabled.
func (l *Logger) Info(format string, args ...any) {
	logf("INFO", l.component+": "+format, args...)
}

// Warn prints a component warning if verbose mode is enabled.
func (l *Logger) Warn(format string, args ...any) {
	logf("WARN", l.component+": "+format, args...)
}

// Progress prints at most one message per interval.
func (l *Logger) Progress(format string, args ...any) {
	if !IsVerbose() {
		return
	}
	l.progress.Do(func() {
		logf("INFO", l.component+": "+format, args...)
	})
}
