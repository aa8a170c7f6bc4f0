package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/taskflow/config"
	"github.com/goclaw/taskflow/pkg/action"
	"github.com/goclaw/taskflow/pkg/api/handlers"
	"github.com/goclaw/taskflow/pkg/api/response"
	"github.com/goclaw/taskflow/pkg/logger"
	"github.com/goclaw/taskflow/pkg/storage/memory"
	"github.com/goclaw/taskflow/pkg/validation"
	"github.com/goclaw/taskflow/pkg/workflow"
)

type testStack struct {
	workflows  *workflow.Engine
	validation *validation.Engine
	handlers   *Handlers
}

func newTestStack(t testing.TB, opts ...workflow.Option) *testStack {
	t.Helper()
	store := memory.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })

	wfEngine := workflow.New(store, opts...)
	valEngine := validation.New(store)

	ctx := context.Background()
	_, err := wfEngine.ImportWorkflow(ctx, workflow.DefaultWorkflow())
	require.NoError(t, err)
	for _, rule := range validation.DefaultRules() {
		_, err := valEngine.ImportRule(ctx, rule)
		require.NoError(t, err)
	}

	health := handlers.NewHealthHandler(map[string]handlers.Probe{
		"storage": func(context.Context) error { return nil },
	}, nil)
	health.SetReady(true)

	ws := handlers.NewWebSocketHandler(logger.Nop(), handlers.WebSocketConfig{})
	t.Cleanup(ws.Close)

	return &testStack{
		workflows:  wfEngine,
		validation: valEngine,
		handlers: &Handlers{
			Workflow:   handlers.NewWorkflowHandler(wfEngine, action.NewDispatcher(), logger.Nop()),
			Rules:      handlers.NewRuleHandler(valEngine, logger.Nop()),
			Validation: handlers.NewValidationHandler(valEngine, logger.Nop()),
			Health:     health,
			Events:     ws,
		},
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	return cfg
}

func serve(router http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNewRouter(t *testing.T) {
	router := NewRouter(testConfig(), logger.Nop(), &Handlers{})
	require.NotNil(t, router)

	w := serve(router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusNotFound, w.Code, "health routes need a handler")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRegisterRoutes_HealthEndpoints(t *testing.T) {
	stack := newTestStack(t)
	router := NewRouter(testConfig(), logger.Nop(), stack.handlers)

	for _, path := range []string{"/health", "/ready", "/status"} {
		t.Run(path, func(t *testing.T) {
			w := serve(router, http.MethodGet, path)
			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		})
	}
}

func TestRegisterRoutes_APIEndpoints(t *testing.T) {
	stack := newTestStack(t)
	router := NewRouter(testConfig(), logger.Nop(), stack.handlers)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/v1/workflows", http.StatusOK},
		{http.MethodGet, "/api/v1/workflows/" + workflow.DefaultWorkflowID, http.StatusOK},
		{http.MethodGet, "/api/v1/workflows/" + workflow.DefaultWorkflowID + "/statuses/todo/transitions", http.StatusOK},
		{http.MethodGet, "/api/v1/workflows/missing", http.StatusNotFound},
		{http.MethodGet, "/api/v1/rules", http.StatusOK},
		{http.MethodGet, "/api/v1/events/ws", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(router, tt.method, tt.path)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRegisterRoutes_JSONFallbacks(t *testing.T) {
	stack := newTestStack(t)
	router := NewRouter(testConfig(), logger.Nop(), stack.handlers)

	w := serve(router, http.MethodGet, "/api/v1/nowhere")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	w = serve(router, http.MethodPut, "/api/v1/validate")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), response.ErrCodeMethodNotAllowed)
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	router := NewRouter(testConfig(), logger.Nop(), &Handlers{})

	w := serve(router, http.MethodGet, "/swagger/doc.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/workflows")
}

func TestRegisterRoutes_RequestTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Server.HTTP.RequestTimeout = 500 * time.Millisecond

	stack := newTestStack(t)
	router := NewRouter(cfg, logger.Nop(), stack.handlers)

	// The REST group runs under the timeout and still answers quickly.
	w := serve(router, http.MethodGet, "/api/v1/rules")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewRouter_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerSecond = 1
	cfg.Server.RateLimit.Burst = 2

	stack := newTestStack(t)
	router := NewRouter(cfg, logger.Nop(), stack.handlers)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/rules").Code)
	}
	w := serve(router, http.MethodGet, "/api/v1/rules")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Probes are never throttled.
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health").Code)
}
