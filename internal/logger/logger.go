// Package logger provides the leveled logger used across Kotonoha.
// It keeps a small printf-style surface (Debug/Info/Warn/Error) on top of
// charmbracelet/log so call sites never deal with key-value pairs.
// Three levels: off, normal (info and up) and verbose (debug and up).
// The logger is safe for concurrent use.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Level controls the verbosity of the logger.
type Level int

const (
	// LevelOff disables all log output.
	LevelOff Level = iota
	// LevelNormal enables info, warn, and error output.
	LevelNormal
	// LevelVerbose enables all output including debug.
	LevelVerbose
)

// Logger is a leveled logger. Child loggers created with With share the
// parent's level.
type Logger struct {
	state *levelState
	base  *log.Logger
}

type levelState struct {
	mu    sync.RWMutex
	level Level
}

// New creates a logger with the given level, writing to the given output.
// If out is nil, os.Stderr is used.
func New(level Level, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}

	base := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           log.DebugLevel,
	})

	return &Logger{
		state: &levelState{level: level},
		base:  base,
	}
}

// With returns a child logger that tags every line with the given
// component prefix, e.g. "mouth" or "scanner".
func (l *Logger) With(prefix string) *Logger {
	return &Logger{
		state: l.state,
		base:  l.base.WithPrefix(prefix),
	}
}

// SetLevel changes the log level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	l.state.level = level
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() Level {
	l.state.mu.RLock()
	defer l.state.mu.RUnlock()
	return l.state.level
}

// Debug logs a message at debug level (only visible in verbose mode).
func (l *Logger) Debug(format string, args ...any) {
	if l.GetLevel() >= LevelVerbose {
		l.base.Debug(fmt.Sprintf(format, args...))
	}
}

// Info logs a message at info level.
func (l *Logger) Info(format string, args ...any) {
	if l.GetLevel() >= LevelNormal {
		l.base.Info(fmt.Sprintf(format, args...))
	}
}

// Warn logs a message at warn level.
func (l *Logger) Warn(format string, args ...any) {
	if l.GetLevel() >= LevelNormal {
		l.base.Warn(fmt.Sprintf(format, args...))
	}
}

// Error logs a message at error level.
func (l *Logger) Error(format string, args ...any) {
	if l.GetLevel() >= LevelNormal {
		l.base.Error(fmt.Sprintf(format, args...))
	}
}
