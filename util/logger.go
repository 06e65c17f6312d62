// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// sink is the destination shared by a logger and its named children.
type sink struct {
	mu         sync.Mutex
	w          io.Writer
	timestamps bool
}

// Logger writes levelled messages to stderr with optional timestamps.
// Named returns a child that prefixes every message, e.g. with a
// session id, and writes through the same sink.
type Logger struct {
	level  LogLevel
	name   string
	output *sink
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	return &Logger{
		level: LogLevel(verbosity),
		output: &sink{
			w:          os.Stderr,
			timestamps: verbosity >= int(LogDebug),
		},
	}
}

// Named returns a logger that prefixes messages with name.
func (l *Logger) Named(name string) *Logger {
	child := *l
	if l.name != "" {
		name = l.name + " " + name
	}
	child.name = name
	return &child
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.output.mu.Lock()
	l.output.timestamps = on
	l.output.mu.Unlock()
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.output.mu.Lock()
	l.output.w = w
	l.output.mu.Unlock()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Enabled reports whether messages at level would be printed.
func (l *Logger) Enabled(level LogLevel) bool { return l.level >= level }

// Info prints when verbosity ≥ 1.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.write("INF", format, args...)
	}
}

// Warn prints when verbosity ≥ 1.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.write("WRN", format, args...)
	}
}

// Verbose prints when verbosity ≥ 2.
func (l *Logger) Verbose(format string, args ...interface{}) {
	if l.level >= LogVerbose {
		l.write("VRB", format, args...)
	}
}

// Debug prints when verbosity ≥ 3.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogDebug {
		l.write("DBG", format, args...)
	}
}

// Error always prints regardless of verbosity.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("ERR", format, args...)
}

func (l *Logger) write(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.name != "" {
		msg = l.name + ": " + msg
	}

	l.output.mu.Lock()
	defer l.output.mu.Unlock()
	if l.output.timestamps {
		fmt.Fprintf(l.output.w, "%s [%s] %s\n", time.Now().Format("15:04:05.000"), level, msg)
	} else {
		fmt.Fprintf(l.output.w, "[%s] %s\n", level, msg)
	}
}
