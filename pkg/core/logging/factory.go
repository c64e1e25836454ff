// ============================================================================
// appstore - Terminal App Store for Python applications
// ============================================================================
//
// Package:     logging
// Description: Factory functions for zerolog-backed component loggers
// Author:      Mike Stoffels
// Created:     2026-10-12
// License:     MIT
// ============================================================================

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// base is the root logger every component logger derives from
	base   = NewLogger(DefaultLoggerConfig("appstore"))
	baseMu sync.RWMutex
)

// LoggerConfig holds configuration for creating loggers
type LoggerConfig struct {
	// Service name
	ServiceName string

	// Log level (trace, debug, info, warn, error)
	Level string

	// Output format
	Format string // "json" or "console" (default: json)

	// Primary output, defaults to stderr
	Output io.Writer

	// Additional outputs
	AdditionalOutputs []io.Writer
}

// DefaultLoggerConfig returns a default configuration
func DefaultLoggerConfig(serviceName string) LoggerConfig {
	return LoggerConfig{
		ServiceName: serviceName,
		Level:       "info",
		Format:      "json",
	}
}

// NewLogger creates a new zerolog logger from the configuration
func NewLogger(cfg LoggerConfig) zerolog.Logger {
	var output io.Writer = os.Stderr
	if cfg.Output != nil {
		output = cfg.Output
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.TimeOnly, NoColor: true}
	}

	if len(cfg.AdditionalOutputs) > 0 {
		writers := append([]io.Writer{output}, cfg.AdditionalOutputs...)
		output = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Logger()
}

// NewSimpleLogger creates a logger with the default configuration
func NewSimpleLogger(serviceName string) zerolog.Logger {
	return NewLogger(DefaultLoggerConfig(serviceName))
}

// Configure replaces the root logger used by New
func Configure(cfg LoggerConfig) {
	logger := NewLogger(cfg)

	baseMu.Lock()
	base = logger
	baseMu.Unlock()
}

// OpenLogFile opens (and creates) a log file for appending
func OpenLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// parseLevel converts a string level to a zerolog level
func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger is a named component logger with a key/value API
type Logger struct {
	zl   zerolog.Logger
	name string
}

// New creates a component logger derived from the configured root logger
func New(name string) *Logger {
	baseMu.RLock()
	zl := base.With().Str("component", name).Logger()
	baseMu.RUnlock()

	return &Logger{zl: zl, name: name}
}

// WithLevel returns a new logger with the specified minimum level
func (l *Logger) WithLevel(level Level) *Logger {
	return &Logger{
		zl:   l.zl.Level(level.zerologLevel()),
		name: l.name,
	}
}

// With returns a logger that adds the key/value pairs to every entry
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		zl:   l.zl.With().Fields(toFields(keysAndValues...)).Logger(),
		name: l.name,
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.zl.Debug().Fields(toFields(keysAndValues...)).Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.zl.Info().Fields(toFields(keysAndValues...)).Msg(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.zl.Warn().Fields(toFields(keysAndValues...)).Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.zl.Error().Fields(toFields(keysAndValues...)).Msg(msg)
}

// toFields converts key-value pairs to a field map
func toFields(keysAndValues ...interface{}) map[string]interface{} {
	if len(keysAndValues) == 0 {
		return nil
	}

	fields := make(map[string]interface{})
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
