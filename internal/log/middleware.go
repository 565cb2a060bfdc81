package log

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"
)

type contextKey string

// LoggerContextKey is the context key under which the request logger is stored
const LoggerContextKey contextKey = "logger"

// FromContext extracts the logger from the context, falling back to a default
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return New(DefaultConfig())
}

// WithLogger returns a context carrying the given logger
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestMiddleware attaches a request-scoped logger with a generated
// request id and logs start and completion of every request.
func RequestMiddleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := generateRequestID()
			reqLogger := logger.With(FieldRequestID, requestID)

			ctx := WithLogger(r.Context(), reqLogger)
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			start := time.Now()
			reqLogger.DebugContext(ctx, "request started",
				FieldHTTPMethod, r.Method,
				FieldHTTPPath, r.URL.Path,
				FieldRemoteAddr, r.RemoteAddr,
			)

			next.ServeHTTP(rec, r.WithContext(ctx))

			reqLogger.InfoContext(ctx, "request completed",
				FieldHTTPMethod, r.Method,
				FieldHTTPPath, r.URL.Path,
				FieldHTTPStatus, rec.status,
				FieldDuration, time.Since(start).Milliseconds(),
			)
		})
	}
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}
