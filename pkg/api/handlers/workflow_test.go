package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/taskflow/pkg/api/models"
	"github.com/goclaw/taskflow/pkg/api/response"
	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/workflow"
)

const defaultPath = "/api/v1/workflows/" + workflow.DefaultWorkflowID

func bugWorkflow() models.WorkflowRequest {
	return models.WorkflowRequest{
		Name:         "Bug triage",
		TaskCategory: "bug",
		Statuses: []definition.Status{
			{ID: "new", Name: "New", Category: definition.CategoryTodo},
			{ID: "fixed", Name: "Fixed", Category: definition.CategoryDone},
		},
		Transitions: []definition.Transition{
			{ID: "fix", FromStatus: "new", ToStatus: "fixed", Name: "Fix"},
		},
		DefaultStatusID: "new",
	}
}

func TestWorkflowHandler_ListAndGet(t *testing.T) {
	api := newTestAPI(t, false)

	w := api.do(t, http.MethodGet, "/api/v1/workflows?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[models.WorkflowListResponse](t, w)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 10, list.Limit)
	require.Len(t, list.Workflows, 1)
	assert.Equal(t, workflow.DefaultWorkflowID, list.Workflows[0].ID)

	w = api.do(t, http.MethodGet, "/api/v1/workflows?task_category=bug", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decodeBody[models.WorkflowListResponse](t, w).Total)

	w = api.do(t, http.MethodGet, defaultPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	wf := decodeBody[definition.Workflow](t, w)
	assert.Len(t, wf.Statuses, 5)

	w = api.do(t, http.MethodGet, "/api/v1/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrCodeNotFound, errorCodeOf(t, w))
}

func TestWorkflowHandler_Create(t *testing.T) {
	api := newTestAPI(t, false)

	w := api.do(t, http.MethodPost, "/api/v1/workflows", bugWorkflow())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[definition.Workflow](t, w)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "bug", created.TaskCategory)
	assert.True(t, created.IsDefault, "first workflow of a category becomes its default")
	assert.False(t, created.CreatedAt.IsZero())

	t.Run("malformed body", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/workflows", "{not json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, response.ErrCodeBadRequest, errorCodeOf(t, w))
	})

	t.Run("missing required fields", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/api/v1/workflows", map[string]any{"name": "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, response.ErrCodeValidationFailed, errorCodeOf(t, w))
	})

	t.Run("structurally invalid", func(t *testing.T) {
		req := bugWorkflow()
		req.DefaultStatusID = "nowhere"
		w := api.do(t, http.MethodPost, "/api/v1/workflows", req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody[response.ErrorResponse](t, w)
		assert.Equal(t, response.ErrCodeValidationFailed, body.Error.Code)
		assert.Contains(t, body.Error.Details, "problems")
	})
}

func TestWorkflowHandler_UpdateAndDelete(t *testing.T) {
	api := newTestAPI(t, false)

	// Same category as the seeded default, so this one is not a default.
	req := bugWorkflow()
	req.TaskCategory = ""
	w := api.do(t, http.MethodPost, "/api/v1/workflows", req)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody[definition.Workflow](t, w)
	require.False(t, created.IsDefault)
	id := created.ID
	path := "/api/v1/workflows/" + id

	w = api.do(t, http.MethodPatch, path, map[string]any{"name": "Bugs", "isLocked": true})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decodeBody[definition.Workflow](t, w)
	assert.Equal(t, "Bugs", updated.Name)
	assert.True(t, updated.IsLocked)

	w = api.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, response.ErrCodeLocked, errorCodeOf(t, w))

	w = api.do(t, http.MethodPatch, path, map[string]any{"isLocked": false})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWorkflowHandler_DeleteDefaultIsLocked(t *testing.T) {
	api := newTestAPI(t, false)

	w := api.do(t, http.MethodDelete, defaultPath, nil)
	assert.Equal(t, http.StatusLocked, w.Code)
}

func TestWorkflowHandler_SetDefault(t *testing.T) {
	api := newTestAPI(t, false)

	req := bugWorkflow()
	req.TaskCategory = ""
	w := api.do(t, http.MethodPost, "/api/v1/workflows", req)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeBody[definition.Workflow](t, w).ID

	w = api.do(t, http.MethodPost, "/api/v1/workflows/"+id+"/default", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[definition.Workflow](t, w).IsDefault)

	w = api.do(t, http.MethodGet, "/api/v1/workflows?default_only=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[models.WorkflowListResponse](t, w)
	require.Len(t, list.Workflows, 1)
	assert.Equal(t, id, list.Workflows[0].ID)
}

func TestWorkflowHandler_StatusOperations(t *testing.T) {
	api := newTestAPI(t, false)

	w := api.do(t, http.MethodPost, defaultPath+"/statuses", models.StatusRequest{
		ID: "qa", Name: "QA", Category: definition.CategoryReview,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	wf := decodeBody[definition.Workflow](t, w)
	qa, ok := wf.Status("qa")
	require.True(t, ok)
	assert.Equal(t, 5, qa.Order)

	w = api.do(t, http.MethodPost, defaultPath+"/statuses", map[string]any{
		"id": "bad", "name": "Bad", "category": "archived",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPatch, defaultPath+"/statuses/qa", map[string]any{"color": "#000000"})
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPatch, defaultPath+"/statuses/done", map[string]any{"name": "Finished"})
	assert.Equal(t, http.StatusLocked, w.Code)

	w = api.do(t, http.MethodPut, defaultPath+"/statuses/order", models.ReorderStatusesRequest{
		StatusIDs: []string{"qa", "todo", "in-progress", "review", "done", "blocked"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	wf = decodeBody[definition.Workflow](t, w)
	assert.Equal(t, "qa", wf.Statuses[0].ID)

	w = api.do(t, http.MethodPut, defaultPath+"/statuses/order", models.ReorderStatusesRequest{
		StatusIDs: []string{"qa"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPatch, defaultPath+"/statuses/done", map[string]any{"isLocked": false})
	assert.Equal(t, http.StatusLocked, w.Code)

	w = api.do(t, http.MethodDelete, defaultPath+"/statuses/done", nil)
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, response.ErrCodeLocked, errorCodeOf(t, w))

	w = api.do(t, http.MethodDelete, defaultPath+"/statuses/todo", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "the default status is a validation failure, not a lock")
	assert.Equal(t, response.ErrCodeValidationFailed, errorCodeOf(t, w))

	w = api.do(t, http.MethodDelete, defaultPath+"/statuses/qa", nil)
	require.Equal(t, http.StatusOK, w.Code)
	wf = decodeBody[definition.Workflow](t, w)
	_, ok = wf.Status("qa")
	assert.False(t, ok)
}

func TestWorkflowHandler_TransitionOperations(t *testing.T) {
	api := newTestAPI(t, false)

	w := api.do(t, http.MethodPost, defaultPath+"/transitions", models.TransitionRequest{
		FromStatus: "blocked", ToStatus: "todo", Name: "Reset",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	wf := decodeBody[definition.Workflow](t, w)
	added := wf.TransitionsFrom("blocked")
	require.Len(t, added, 2)

	var resetID string
	for _, tr := range added {
		if tr.Name == "Reset" {
			resetID = tr.ID
		}
	}
	require.NotEmpty(t, resetID)

	w = api.do(t, http.MethodPost, defaultPath+"/transitions", models.TransitionRequest{
		FromStatus: "blocked", ToStatus: "nowhere", Name: "Broken",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, defaultPath+"/statuses/review/transitions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[models.TransitionListResponse](t, w)
	ids := make([]string, 0, len(list.Transitions))
	for _, tr := range list.Transitions {
		ids = append(ids, tr.ID)
	}
	assert.ElementsMatch(t, []string{"approve", "request-changes"}, ids)

	w = api.do(t, http.MethodGet, defaultPath+"/statuses/archived/transitions", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodDelete, defaultPath+"/transitions/"+resetID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodDelete, defaultPath+"/transitions/"+resetID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWorkflowHandler_AttemptTransition(t *testing.T) {
	api := newTestAPI(t, false)
	attempt := defaultPath + "/transitions/start-work/attempt"

	t.Run("success with actions", func(t *testing.T) {
		w := api.do(t, http.MethodPost, attempt, models.AttemptTransitionRequest{
			Entity:         map[string]any{"id": "task-1", "status": "todo", "assigneeId": "u-1"},
			ExecuteActions: true,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeBody[map[string]any](t, w)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "in-progress", body["newStatus"])

		dispatch, ok := body["dispatch"].(map[string]any)
		require.True(t, ok, "dispatch missing: %v", body)
		entity := dispatch["entity"].(map[string]any)
		assert.Equal(t, "in-progress", entity["status"])
		outcomes := dispatch["outcomes"].([]any)
		require.Len(t, outcomes, 1)
		assert.Equal(t, "handled", outcomes[0].(map[string]any)["outcome"])
	})

	t.Run("failed guard is not an error", func(t *testing.T) {
		w := api.do(t, http.MethodPost, attempt, models.AttemptTransitionRequest{
			Entity:         map[string]any{"status": "todo"},
			ExecuteActions: true,
		})
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody[map[string]any](t, w)
		assert.Equal(t, false, body["success"])
		assert.Len(t, body["failedConditions"], 1)
		assert.NotContains(t, body, "dispatch")
	})

	t.Run("wrong source status", func(t *testing.T) {
		w := api.do(t, http.MethodPost, attempt, models.AttemptTransitionRequest{
			Entity: map[string]any{"status": "done", "assigneeId": "u-1"},
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		body := decodeBody[response.ErrorResponse](t, w)
		assert.Equal(t, "todo", body.Error.Details["expectedStatus"])
	})

	t.Run("unknown transition", func(t *testing.T) {
		w := api.do(t, http.MethodPost, defaultPath+"/transitions/teleport/attempt", models.AttemptTransitionRequest{
			Entity: map[string]any{"status": "todo"},
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestWorkflowHandler_AttemptTransitionPermissions(t *testing.T) {
	api := newTestAPI(t, false)
	attempt := defaultPath + "/transitions/approve/attempt"
	req := models.AttemptTransitionRequest{
		Entity:         map[string]any{"status": "review"},
		ExecuteActions: true,
	}

	w := api.do(t, http.MethodPost, attempt, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, response.ErrCodeForbidden, errorCodeOf(t, w))

	w = api.do(t, http.MethodPost, attempt, req, PermissionsHeader, "viewer, reviewer")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody[map[string]any](t, w)
	assert.Equal(t, "done", body["newStatus"])
	entity := body["dispatch"].(map[string]any)["entity"].(map[string]any)
	assert.Equal(t, "done", entity["resolution"])
}

func TestWorkflowHandler_AutoTransitions(t *testing.T) {
	api := newTestAPI(t, false)

	w := api.do(t, http.MethodPost, defaultPath+"/automations", models.EntityRequest{
		Entity: map[string]any{"status": "in-progress", "blockedBy": []any{"task-9"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decodeBody[models.TransitionListResponse](t, w)
	require.Len(t, list.Transitions, 1)
	assert.Equal(t, "block", list.Transitions[0].ID)

	w = api.do(t, http.MethodPost, defaultPath+"/automations", models.EntityRequest{
		Entity: map[string]any{"status": "in-progress"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody[models.TransitionListResponse](t, w).Transitions)

	w = api.do(t, http.MethodPost, defaultPath+"/automations", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
