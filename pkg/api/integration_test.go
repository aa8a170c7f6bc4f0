package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/taskflow/pkg/api/events"
	"github.com/goclaw/taskflow/pkg/api/handlers"
	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/eventbus"
	"github.com/goclaw/taskflow/pkg/logger"
	"github.com/goclaw/taskflow/pkg/workflow"
)

// setupIntegrationTest serves the full router, with workflow events flowing
// from the memory bus through the broadcaster to websocket clients.
func setupIntegrationTest(t *testing.T) string {
	t.Helper()

	bus := eventbus.NewMemoryBus()
	router := eventbus.NewDefaultSchemaRouter()
	publisher, err := eventbus.NewPublisher("test-node", bus, eventbus.WithSchemaRouter(router))
	require.NoError(t, err)

	sub, err := bus.Subscribe(eventbus.AllSubjects(), 64)
	require.NoError(t, err)

	emitter := eventbus.NewAsyncEmitter(publisher)
	stack := newTestStack(t, workflow.WithEvents(emitter))

	ctx, cancel := context.WithCancel(context.Background())
	broadcaster := events.NewBroadcaster()
	go broadcaster.Bridge(ctx, sub, eventbus.NewEnvelopeConsumer(router), logger.Nop())
	go broadcaster.Forward(ctx, stack.handlers.Events.Forward)

	server := httptest.NewServer(NewRouter(testConfig(), logger.Nop(), stack.handlers))
	t.Cleanup(func() {
		server.Close()
		_ = emitter.Close()
		cancel()
		_ = sub.Close()
		broadcaster.Close()
	})
	return server.URL
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestIntegration_WorkflowLifecycle(t *testing.T) {
	base := setupIntegrationTest(t)

	resp := postJSON(t, base+"/api/v1/workflows", map[string]any{
		"name":         "Bugs",
		"taskCategory": "bug",
		"statuses": []map[string]any{
			{"id": "open", "name": "Open", "color": "#000000", "category": "todo", "order": 0},
			{"id": "fixed", "name": "Fixed", "color": "#00ff00", "category": "done", "order": 1},
		},
		"transitions": []map[string]any{
			{"id": "fix", "fromStatus": "open", "toStatus": "fixed", "name": "Fix"},
		},
		"defaultStatusId": "open",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := readJSON[definition.Workflow](t, resp)
	require.NotEmpty(t, created.ID)
	assert.True(t, created.IsDefault, "first workflow of a category becomes its default")

	resp = postJSON(t, base+"/api/v1/workflows/"+created.ID+"/transitions/fix/attempt", map[string]any{
		"entity": map[string]any{"id": "bug-1", "status": "open"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := readJSON[map[string]any](t, resp)
	assert.Equal(t, "fixed", result["newStatus"])

	req, err := http.NewRequest(http.MethodDelete, base+"/api/v1/workflows/"+created.ID, nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusLocked, del.StatusCode, "default workflows cannot be deleted")
}

func TestIntegration_Validation(t *testing.T) {
	base := setupIntegrationTest(t)

	resp := postJSON(t, base+"/api/v1/validate", map[string]any{
		"entity": map[string]any{"id": "task-1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := readJSON[map[string]any](t, resp)
	assert.Equal(t, false, report["passed"])

	resp = postJSON(t, base+"/api/v1/validate/autofix", map[string]any{
		"entity": map[string]any{"id": "task-1"},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "auto-fix is disabled by default")
}

func TestIntegration_ErrorHandling(t *testing.T) {
	base := setupIntegrationTest(t)

	resp, err := http.Post(base+"/api/v1/workflows", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	get, err := http.Get(base + "/api/v1/rules/does-not-exist")
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusNotFound, get.StatusCode)

	attempt := postJSON(t, base+"/api/v1/workflows/"+workflow.DefaultWorkflowID+"/transitions/approve/attempt", map[string]any{
		"entity": map[string]any{"id": "task-1", "status": "review"},
	})
	assert.Equal(t, http.StatusForbidden, attempt.StatusCode)
	assert.NotEmpty(t, attempt.Header.Get("X-Request-ID"))

	raw, err := json.Marshal(map[string]any{"entity": map[string]any{"id": "task-1", "status": "review"}})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, base+"/api/v1/workflows/"+workflow.DefaultWorkflowID+"/transitions/approve/attempt", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handlers.PermissionsHeader, "reviewer")
	approved, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	approved.Body.Close()
	assert.Equal(t, http.StatusOK, approved.StatusCode)
}

func TestIntegration_TransitionEventsReachWebsocket(t *testing.T) {
	base := setupIntegrationTest(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+"/api/v1/events/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":     "subscribe",
		"entityId": "task-9",
	}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ack map[string]any
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, "ack", ack["type"])

	resp := postJSON(t, base+"/api/v1/workflows/"+workflow.DefaultWorkflowID+"/transitions/start-work/attempt", map[string]any{
		"entity": map[string]any{"id": "task-9", "status": "todo", "assigneeId": "u-1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got events.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, eventbus.TransitionCompleted.String(), got.Type)
	assert.Equal(t, workflow.DefaultWorkflowID, got.WorkflowID)
	assert.Equal(t, "task-9", got.EntityID)
}

func TestIntegration_ConcurrentAttempts(t *testing.T) {
	base := setupIntegrationTest(t)
	url := base + "/api/v1/workflows/" + workflow.DefaultWorkflowID + "/transitions/start-work/attempt"

	const n = 20
	var wg sync.WaitGroup
	codes := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, _ := json.Marshal(map[string]any{
				"entity": map[string]any{"status": "todo", "assigneeId": "u-1"},
			})
			resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
			if err != nil {
				codes <- 0
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
}
