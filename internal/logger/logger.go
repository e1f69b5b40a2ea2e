// Package logger provides structured logging for timetree
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with timetree-specific functionality
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// NewLogger creates a new structured logger
func NewLogger(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Pretty printing for development
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "timetree").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// GetZerolog returns the underlying zerolog logger
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Info logs an info message
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string) *zerolog.Event {
	return l.zlog.Fatal().Str("msg", msg)
}

// HTTPLogger returns a logger for HTTP handler operations
func (l *Logger) HTTPLogger(route string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "http").
			Str("route", route).
			Logger(),
	}
}

// TimelineLogger returns a logger scoped to one timeline
func (l *Logger) TimelineLogger(timelineID string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "timeline").
			Str("timeline_id", timelineID).
			Logger(),
	}
}

// StoreLogger returns a logger for persistence operations
func (l *Logger) StoreLogger(operation string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "store").
			Str("operation", operation).
			Logger(),
	}
}

// LogHTTPRequest logs a completed HTTP request with structured fields
func (l *Logger) LogHTTPRequest(method, path string, status int, duration time.Duration) {
	event := l.zlog.Info()
	if status >= 500 {
		event = l.zlog.Error()
	}
	event.
		Str("component", "http").
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Dur("duration_ms", duration).
		Msg("HTTP request completed")
}

// LogTimelineOp logs a timeline mutation with structured fields
func (l *Logger) LogTimelineOp(op, timelineID, stateID string, duration time.Duration, err error) {
	event := l.zlog.Debug().
		Str("component", "timeline").
		Str("op", op).
		Str("timeline_id", timelineID).
		Str("state_id", stateID).
		Dur("duration_ms", duration)

	if err != nil {
		event = l.zlog.Error().
			Str("component", "timeline").
			Str("op", op).
			Str("timeline_id", timelineID).
			Str("state_id", stateID).
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("Timeline operation completed")
}

// LogServerStart logs server startup
func (l *Logger) LogServerStart(port string, dbPath string) {
	l.zlog.Info().
		Str("event", "server_start").
		Str("port", port).
		Str("database", dbPath).
		Msg("timetree server starting")
}

// LogServerReady logs when server is ready
func (l *Logger) LogServerReady(port string) {
	l.zlog.Info().
		Str("event", "server_ready").
		Str("port", port).
		Msg("timetree server ready to accept connections")
}

// LogServerShutdown logs server shutdown
func (l *Logger) LogServerShutdown() {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Msg("timetree server shutting down")
}

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = *globalLogger.GetZerolog()
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		// Initialize with defaults if not set
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}
