// Package middleware provides HTTP middleware components.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/goclaw/taskflow/pkg/logger"
)

// accessWriter records what the handler sent back.
type accessWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
	hijacked   bool
}

func (aw *accessWriter) WriteHeader(code int) {
	aw.statusCode = code
	aw.ResponseWriter.WriteHeader(code)
}

func (aw *accessWriter) Write(b []byte) (int, error) {
	n, err := aw.ResponseWriter.Write(b)
	aw.bytes += n
	return n, err
}

// probePaths are health probes. They log at debug and are never rate limited.
var probePaths = map[string]bool{
	"/health": true,
	"/ready":  true,
}

// Logger returns a middleware that writes one access log line per request.
// Server errors log at error, client errors at warn.
func Logger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			aw := &accessWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(aw, r)

			args := []any{
				"request_id", GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", aw.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", aw.bytes,
				"remote_addr", r.RemoteAddr,
			}
			if route := routePattern(r); route != "" {
				args = append(args, "route", route)
			}
			if aw.hijacked {
				args = append(args, "upgraded", true)
			}
			logAt(r.Context(), log, aw.statusCode, r.URL.Path)("request completed", args...)
		})
	}
}

func logAt(ctx context.Context, log logger.Logger, status int, path string) func(string, ...any) {
	switch {
	case status >= http.StatusInternalServerError:
		return func(msg string, args ...any) { log.ErrorContext(ctx, msg, args...) }
	case status >= http.StatusBadRequest:
		return func(msg string, args ...any) { log.WarnContext(ctx, msg, args...) }
	case probePaths[path]:
		return func(msg string, args ...any) { log.DebugContext(ctx, msg, args...) }
	default:
		return func(msg string, args ...any) { log.InfoContext(ctx, msg, args...) }
	}
}

// routePattern returns the matched chi route, or "" outside a chi router.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}
