package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/goclaw/taskflow/pkg/api/response"
	"github.com/goclaw/taskflow/pkg/logger"
)

// Recovery turns a handler panic into a 500 response. The panic value is
// logged with its stack but never sent to the client. http.ErrAbortHandler
// is re-raised so the server can abort the connection.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if err, ok := p.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(p)
				}

				requestID := GetRequestID(r.Context())
				log.ErrorContext(r.Context(), "handler panicked",
					"request_id", requestID,
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprint(p),
					"stack", string(debug.Stack()),
				)
				response.Error(w, http.StatusInternalServerError,
					response.ErrCodeInternalServer, "internal server error", requestID)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
