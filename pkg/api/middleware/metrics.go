package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// unmatchedRoute labels requests no route matched, keeping raw paths out of
// metric labels.
const unmatchedRoute = "unmatched"

// MetricsRecorder receives one observation per request.
type MetricsRecorder interface {
	RecordHTTPRequest(method, path, status string, duration time.Duration)
	IncActiveConnections()
	DecActiveConnections()
}

// contextMetricsRecorder is implemented by recorders that attach exemplars
// from the request's span.
type contextMetricsRecorder interface {
	RecordHTTPRequestContext(ctx context.Context, method, path, status string, duration time.Duration)
}

// Metrics returns a middleware that reports request counts, latency and
// in-flight requests, labelled by route pattern. A panicking handler is
// recorded as a 500 before the panic continues.
func Metrics(recorder MetricsRecorder) func(http.Handler) http.Handler {
	observe := func(r *http.Request, status int, took time.Duration) {
		route := routePattern(r)
		if route == "" {
			route = unmatchedRoute
		}
		code := strconv.Itoa(status)
		if cr, ok := recorder.(contextMetricsRecorder); ok {
			cr.RecordHTTPRequestContext(r.Context(), r.Method, route, code, took)
			return
		}
		recorder.RecordHTTPRequest(r.Method, route, code, took)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/metrics") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			recorder.IncActiveConnections()
			defer recorder.DecActiveConnections()

			mw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			defer func() {
				if p := recover(); p != nil {
					observe(r, http.StatusInternalServerError, time.Since(start))
					panic(p)
				}
			}()

			next.ServeHTTP(mw, r)
			observe(r, mw.statusCode, time.Since(start))
		})
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (mw *metricsResponseWriter) WriteHeader(code int) {
	if !mw.wroteHeader {
		mw.statusCode = code
		mw.wroteHeader = true
	}
	mw.ResponseWriter.WriteHeader(code)
}

func (mw *metricsResponseWriter) Write(b []byte) (int, error) {
	mw.wroteHeader = true
	return mw.ResponseWriter.Write(b)
}
