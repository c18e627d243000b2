// Package ports defines interfaces for the capture, encode and mux collaborators.
package ports

import "strings"

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LevelDebug covers per-frame pipeline detail (drops, drains, slot misses).
	LevelDebug LogLevel = iota
	// LevelInfo covers session lifecycle: start, stop, output paths.
	LevelInfo
	// LevelWarn covers dropped frames and ignored protocol violations.
	LevelWarn
	// LevelError covers failures that end a session or prevent one from starting.
	LevelError
	// LevelQuiet suppresses all log output.
	LevelQuiet
)

var levelNames = map[LogLevel]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
	LevelQuiet: "quiet",
}

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseLogLevel parses a level name, case-insensitively. Unknown names map to LevelInfo.
func ParseLogLevel(s string) LogLevel {
	s = strings.ToLower(strings.TrimSpace(s))
	for level, name := range levelNames {
		if name == s {
			return level
		}
	}
	return LevelInfo
}

// Logger abstracts logging with translatable printf-style message keys.
type Logger interface {
	// Debug logs per-frame detail.
	Debug(msg string, args ...interface{})

	// Info logs session-level progress.
	Info(msg string, args ...interface{})

	// Warn logs recoverable problems.
	Warn(msg string, args ...interface{})

	// Error logs failures.
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger that prefixes messages with the component name.
	WithComponent(component string) Logger
}
