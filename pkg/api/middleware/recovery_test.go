package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/taskflow/pkg/api/response"
	"github.com/goclaw/taskflow/pkg/logger"
)

func TestRecovery_PassesThrough(t *testing.T) {
	log, entries := captureLog(t)
	handler := Recovery(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, entries())
}

func TestRecovery_MasksPanic(t *testing.T) {
	for name, value := range map[string]any{
		"string": "condition evaluator exploded: secret=hunter2",
		"error":  errors.New("secret=hunter2"),
		"struct": struct{ Secret string }{"hunter2"},
	} {
		t.Run(name, func(t *testing.T) {
			log, entries := captureLog(t)
			handler := RequestID()(Recovery(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic(value)
			})))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", nil)
			req.Header.Set(RequestIDHeader, "req-panic")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, rec.Body.String(), "hunter2")

			var body response.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, response.ErrCodeInternalServer, body.Error.Code)
			assert.Equal(t, "internal server error", body.Error.Message)
			assert.Equal(t, "req-panic", body.Error.RequestID)

			got := entries()
			require.Len(t, got, 1)
			assert.Equal(t, "ERROR", got[0]["level"])
			assert.Equal(t, "req-panic", got[0]["request_id"])
			assert.Contains(t, got[0]["panic"], "hunter2")
			assert.NotEmpty(t, got[0]["stack"])
		})
	}
}

func TestRecovery_ReraisesAbort(t *testing.T) {
	handler := Recovery(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
