package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"codeclash/internal/platform/logger"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request through the zap logger. Mount it after
// chiMiddleware.RequestID so the line carries the request id.
func RequestLogger() func(http.Handler) http.Handler {
	return chiMiddleware.RequestLogger(zapLogFormatter{})
}

type zapLogFormatter struct{}

func (zapLogFormatter) NewLogEntry(r *http.Request) chiMiddleware.LogEntry {
	return &zapLogEntry{
		ctx:    r.Context(),
		method: r.Method,
		path:   r.URL.Path,
		remote: r.RemoteAddr,
	}
}

type zapLogEntry struct {
	ctx    context.Context
	method string
	path   string
	remote string
	userID string // filled in by Authenticator
}

func (e *zapLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	ctx := e.ctx
	if e.userID != "" {
		ctx = logger.WithUserID(ctx, e.userID)
	}
	fields := []zap.Field{
		zap.String("method", e.method),
		zap.String("path", e.path),
		zap.String("remote", e.remote),
		zap.Int("status", status),
		zap.Int("bytes", bytes),
		zap.Duration("elapsed", elapsed),
	}
	switch {
	case status >= 500:
		logger.Error(ctx, "http request", fields...)
	case status >= 400:
		logger.Warn(ctx, "http request", fields...)
	default:
		logger.Info(ctx, "http request", fields...)
	}
}

func (e *zapLogEntry) Panic(v interface{}, stack []byte) {
	logger.Error(e.ctx, "http handler panic",
		zap.String("method", e.method), zap.String("path", e.path),
		zap.String("panic", fmt.Sprint(v)), zap.ByteString("stack", stack))
}

func setRequestLogUser(r *http.Request, userID string) {
	if e, ok := chiMiddleware.GetLogEntry(r).(*zapLogEntry); ok {
		e.userID = userID
	}
}
