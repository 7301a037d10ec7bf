// Package logger provides the small leveled logging facility used across
// the driver: the link layer, the orchestrator, and the optional
// MQTT/monitor bridges all log through a Logger rather than touching
// stdlib log directly.
package logger

import (
	"fmt"
	"log"
	"os"
)

// Level represents a logging level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of a Level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the interface every package in this module logs through.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	SetLevel(level Level)
	// WithComponent returns a Logger that prefixes every line with name,
	// so pkg/tpuart, pkg/device, and pkg/mqttbridge can share one sink
	// while remaining distinguishable in the output.
	WithComponent(name string) Logger
}

// DefaultLogger writes to a stdlib log.Logger.
type DefaultLogger struct {
	level     Level
	logger    *log.Logger
	component string
}

// NewDefaultLogger creates a logger at the given level writing to stdout.
func NewDefaultLogger(level Level) *DefaultLogger {
	return &DefaultLogger{
		level:  level,
		logger: log.New(os.Stdout, "", log.LstdFlags),
	}
}

func (l *DefaultLogger) prefix(level Level) string {
	if l.component != "" {
		return fmt.Sprintf("[%s] [%s] ", level, l.component)
	}
	return fmt.Sprintf("[%s] ", level)
}

// Debug logs a debug message.
func (l *DefaultLogger) Debug(format string, args ...interface{}) {
	if l.level <= LevelDebug {
		l.logger.Printf(l.prefix(LevelDebug)+format, args...)
	}
}

// Info logs an info message.
func (l *DefaultLogger) Info(format string, args ...interface{}) {
	if l.level <= LevelInfo {
		l.logger.Printf(l.prefix(LevelInfo)+format, args...)
	}
}

// Warn logs a warning message.
func (l *DefaultLogger) Warn(format string, args ...interface{}) {
	if l.level <= LevelWarn {
		l.logger.Printf(l.prefix(LevelWarn)+format, args...)
	}
}

// Error logs an error message.
func (l *DefaultLogger) Error(format string, args ...interface{}) {
	if l.level <= LevelError {
		l.logger.Printf(l.prefix(LevelError)+format, args...)
	}
}

// SetLevel changes the minimum level logged.
func (l *DefaultLogger) SetLevel(level Level) {
	l.level = level
}

// WithComponent returns a copy of l that tags every line with name.
func (l *DefaultLogger) WithComponent(name string) Logger {
	return &DefaultLogger{level: l.level, logger: l.logger, component: name}
}

// NoOpLogger discards everything; used when the host doesn't want logs.
type NoOpLogger struct{}

// NewNoOpLogger returns a logger that discards all output.
func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (l *NoOpLogger) Debug(format string, args ...interface{}) {}
func (l *NoOpLogger) Info(format string, args ...interface{})  {}
func (l *NoOpLogger) Warn(format string, args ...interface{})  {}
func (l *NoOpLogger) Error(format string, args ...interface{}) {}
func (l *NoOpLogger) SetLevel(level Level)                     {}
func (l *NoOpLogger) WithComponent(name string) Logger         { return l }

var defaultLogger Logger = NewDefaultLogger(LevelInfo)

// SetDefault replaces the package-level default logger.
func SetDefault(l Logger) { defaultLogger = l }

// GetDefault returns the package-level default logger.
func GetDefault() Logger { return defaultLogger }
