// Package logger configures the application slog loggers.
//
// In dev/test environments logs are rendered with tint for readability; in
// staging/prod the JSON handler is used so logs can be shipped to an
// aggregator.
//
// Handlers get a per-request logger via ContextRequestLogger - it carries the
// request id and any attributes accumulated with ContextWithLogAttrs.
package logger

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/lmittmann/tint"
)

// ParseLogLevel converts a LOG_LEVEL string to a slog.Level (defaults to info).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger creates the application logger and installs it as the slog default.
func InitLogger(level slog.Level, environment string) *slog.Logger {
	var handler slog.Handler

	switch environment {
	case "dev", "test":
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	default:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

type contextKey int

const (
	requestLoggerKey contextKey = iota
	logAttrsKey
)

// logAttrs collects extra attributes for the final request log line.
// Middleware and handlers append to it via ContextWithLogAttrs.
type logAttrs struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

// ContextRequestLogger returns the request-scoped logger, or the default
// logger when the context was not set up by the RequestLogging middleware.
func ContextRequestLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(requestLoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// ContextWithLogAttrs records additional attributes to be included in the
// request completion log line.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	if holder, ok := ctx.Value(logAttrsKey).(*logAttrs); ok {
		holder.mu.Lock()
		holder.attrs = append(holder.attrs, attrs...)
		holder.mu.Unlock()
	}
}

// RequestLogging injects a request-scoped logger (tagged with the chi request
// id) into the context and emits a completion log line for every request.
func RequestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := middleware.GetReqID(r.Context())
			reqLogger := logger.With(slog.String("request_id", requestID))

			holder := &logAttrs{}
			ctx := context.WithValue(r.Context(), requestLoggerKey, reqLogger)
			ctx = context.WithValue(ctx, logAttrsKey, holder)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
			}

			holder.mu.Lock()
			attrs = append(attrs, holder.attrs...)
			holder.mu.Unlock()

			reqLogger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
		})
	}
}
