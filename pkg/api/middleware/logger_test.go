package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
	}{
		{"success", "/api/v1/workflows", http.StatusOK, "INFO"},
		{"created", "/api/v1/rules", http.StatusCreated, "INFO"},
		{"client error", "/api/v1/workflows/missing", http.StatusNotFound, "WARN"},
		{"locked", "/api/v1/workflows/default", http.StatusLocked, "WARN"},
		{"server error", "/api/v1/validate", http.StatusInternalServerError, "ERROR"},
		{"probe", "/health", http.StatusOK, "DEBUG"},
		{"failing probe", "/ready", http.StatusServiceUnavailable, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, entries := captureLog(t)
			handler := Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"ok":true}`))
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			got := entries()
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantLevel, got[0]["level"])
			assert.Equal(t, "request completed", got[0]["message"])
			assert.Equal(t, tt.path, got[0]["path"])
			assert.EqualValues(t, tt.status, got[0]["status"])
			assert.EqualValues(t, len(`{"ok":true}`), got[0]["bytes"])
		})
	}
}

func TestLogger_ImplicitOK(t *testing.T) {
	log, entries := captureLog(t)
	handler := Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("done"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/validate", nil))

	got := entries()
	require.Len(t, got, 1)
	assert.EqualValues(t, http.StatusOK, got[0]["status"])
	assert.Equal(t, http.MethodPost, got[0]["method"])
}

func TestLogger_RequestIDAndRoute(t *testing.T) {
	log, entries := captureLog(t)

	r := chi.NewRouter()
	r.Use(RequestID(), Logger(log))
	r.Get("/api/v1/workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/wf-42", nil)
	req.Header.Set(RequestIDHeader, "trace-me-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	got := entries()
	require.Len(t, got, 1)
	assert.Equal(t, "trace-me-1", got[0]["request_id"])
	assert.Equal(t, "/api/v1/workflows/{id}", got[0]["route"])
	assert.Equal(t, "/api/v1/workflows/wf-42", got[0]["path"])
}
