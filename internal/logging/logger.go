package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

var (
	// Logger is the global structured logger instance
	Logger *slog.Logger
)

// Init initializes the global structured logger on stdout
func Init(level slog.Level) {
	InitWriter(os.Stdout, level)
}

// InitWriter initializes the global structured logger on w
func InitWriter(w io.Writer, level slog.Level) {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Format time as ISO8601
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	handler := slog.NewJSONHandler(w, opts)
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel converts a string log level to slog.Level
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "info", "INFO":
		return slog.LevelInfo
	case "warn", "WARN":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper functions for common logging patterns

// LogDBOperation logs database operations
func LogDBOperation(operation string, id any, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error("database operation failed",
			"event", "db_operation_error",
			"operation", operation,
			"id", id,
			"error", err)
	} else {
		Logger.Info("database operation",
			"event", "db_operation",
			"operation", operation,
			"id", id)
	}
}

// LogDBCreate logs database record creation
func LogDBCreate(table string, id any, fields map[string]any) {
	if Logger == nil {
		return
	}
	attrs := []any{
		"event", "db_create",
		"table", table,
		"id", id,
	}
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	Logger.Info("database record created", attrs...)
}

// LogSchema logs schema creation and teardown
func LogSchema(operation string, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error("schema operation failed",
			"event", "db_schema_error",
			"operation", operation,
			"error", err)
		return
	}
	Logger.Debug("schema operation",
		"event", "db_schema",
		"operation", operation)
}

// LogRender logs a page render
func LogRender(page string, duration time.Duration, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error("render failed",
			"event", "render_error",
			"page", page,
			"error", err)
		return
	}
	Logger.Debug("page rendered",
		"event", "render",
		"page", page,
		"duration_ms", duration.Milliseconds())
}

// LogHTTPRequest logs HTTP request handling
func LogHTTPRequest(method, path, remoteAddr string, duration time.Duration, status int, responseBytes int) {
	if Logger == nil {
		return
	}
	Logger.Info("http request",
		"event", "http_request",
		"method", method,
		"path", path,
		"remote_addr", remoteAddr,
		"duration_ms", duration.Milliseconds(),
		"status", status,
		"response_bytes", responseBytes)
}

// LogServerStart logs server startup
func LogServerStart(addr string, config map[string]any) {
	if Logger == nil {
		return
	}
	attrs := []any{
		"event", "server_start",
		"addr", addr,
	}
	for k, v := range config {
		attrs = append(attrs, k, v)
	}
	Logger.Info("server started", attrs...)
}

// LogServerShutdown logs server shutdown events
func LogServerShutdown(msg string, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error(msg,
			"event", "server_shutdown_error",
			"error", err)
	} else {
		Logger.Info(msg,
			"event", "server_shutdown")
	}
}

// LogPanic logs a recovered handler panic
func LogPanic(path string, v any) {
	if Logger == nil {
		return
	}
	Logger.Error("panic recovered",
		"event", "panic",
		"path", path,
		"panic", v)
}

// With returns a logger with additional context
func With(ctx context.Context, attrs ...any) *slog.Logger {
	if Logger == nil {
		return slog.Default()
	}
	return Logger.With(attrs...)
}
