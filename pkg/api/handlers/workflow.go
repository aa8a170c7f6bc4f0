package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/goclaw/taskflow/pkg/action"
	"github.com/goclaw/taskflow/pkg/api/models"
	"github.com/goclaw/taskflow/pkg/api/response"
	"github.com/goclaw/taskflow/pkg/condition"
	"github.com/goclaw/taskflow/pkg/logger"
	"github.com/goclaw/taskflow/pkg/storage"
	"github.com/goclaw/taskflow/pkg/workflow"
)

// WorkflowHandler handles workflow definition and transition endpoints.
type WorkflowHandler struct {
	engine     *workflow.Engine
	dispatcher *action.Dispatcher
	logger     logger.Logger
}

// NewWorkflowHandler creates a new workflow handler. dispatcher may be nil,
// in which case attempts never execute actions.
func NewWorkflowHandler(eng *workflow.Engine, dispatcher *action.Dispatcher, log logger.Logger) *WorkflowHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WorkflowHandler{
		engine:     eng,
		dispatcher: dispatcher,
		logger:     log,
	}
}

// ListWorkflows handles GET /api/v1/workflows
// @Summary List workflows
// @Description List workflow definitions with optional filtering and pagination
// @Tags workflows
// @Produce json
// @Param task_category query string false "Filter by task category"
// @Param default_only query bool false "Only default workflows"
// @Param limit query int false "Maximum number of results" default(50)
// @Param offset query int false "Offset for pagination" default(0)
// @Success 200 {object} models.WorkflowListResponse
// @Failure 503 {object} response.ErrorResponse "Storage unavailable"
// @Router /api/v1/workflows [get]
func (h *WorkflowHandler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filter := &storage.WorkflowFilter{
		DefaultOnly: r.URL.Query().Get("default_only") == "true",
		Limit:       limit,
		Offset:      offset,
	}
	if q := r.URL.Query(); q.Has("task_category") {
		category := q.Get("task_category")
		filter.TaskCategory = &category
	}

	workflows, total, err := h.engine.ListWorkflows(r.Context(), filter)
	if err != nil {
		fail(w, r, h.logger, "list workflows", err)
		return
	}
	response.JSON(w, http.StatusOK, models.WorkflowListResponse{
		Workflows: workflows,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

// CreateWorkflow handles POST /api/v1/workflows
// @Summary Create a workflow
// @Description Create a workflow definition. Ids are generated by the server.
// @Tags workflows
// @Accept json
// @Produce json
// @Param workflow body models.WorkflowRequest true "Workflow definition"
// @Success 201 {object} definition.Workflow
// @Failure 400 {object} response.ErrorResponse "Invalid request body or definition"
// @Router /api/v1/workflows [post]
func (h *WorkflowHandler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req models.WorkflowRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	wf, err := h.engine.CreateWorkflow(r.Context(), req.Definition())
	if err != nil {
		fail(w, r, h.logger, "create workflow", err)
		return
	}
	response.JSON(w, http.StatusCreated, wf)
}

// GetWorkflow handles GET /api/v1/workflows/{id}
// @Summary Get a workflow
// @Tags workflows
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} definition.Workflow
// @Failure 404 {object} response.ErrorResponse "Workflow not found"
// @Router /api/v1/workflows/{id} [get]
func (h *WorkflowHandler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.engine.GetWorkflow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.logger, "get workflow", err)
		return
	}
	response.JSON(w, http.StatusOK, wf)
}

// UpdateWorkflow handles PATCH /api/v1/workflows/{id}
// @Summary Update workflow metadata
// @Tags workflows
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Param update body models.WorkflowUpdateRequest true "Fields to change"
// @Success 200 {object} definition.Workflow
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/workflows/{id} [patch]
func (h *WorkflowHandler) UpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req models.WorkflowUpdateRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	wf, err := h.engine.UpdateWorkflow(r.Context(), chi.URLParam(r, "id"), req.Update())
	if err != nil {
		fail(w, r, h.logger, "update workflow", err)
		return
	}
	response.JSON(w, http.StatusOK, wf)
}

// DeleteWorkflow handles DELETE /api/v1/workflows/{id}
// @Summary Delete a workflow
// @Description Default and locked workflows cannot be deleted.
// @Tags workflows
// @Param id path string true "Workflow ID"
// @Success 204
// @Failure 404 {object} response.ErrorResponse
// @Failure 423 {object} response.ErrorResponse "Workflow is default or locked"
// @Router /api/v1/workflows/{id} [delete]
func (h *WorkflowHandler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteWorkflow(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, h.logger, "delete workflow", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetDefault handles POST /api/v1/workflows/{id}/default
// @Summary Make a workflow the default of its task category
// @Tags workflows
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} definition.Workflow
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/workflows/{id}/default [post]
func (h *WorkflowHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	wf, err := h.engine.SetDefault(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.logger, "set default workflow", err)
		return
	}
	response.JSON(w, http.StatusOK, wf)
}

// AddStatus handles POST /api/v1/workflows/{id}/statuses
// @Summary Add a status
// @Tags statuses
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Param status body models.StatusRequest true "Status"
// @Success 201 {object} definition.Workflow
// @Failure 400 {object} response.ErrorResponse
// @Failure 423 {object} response.ErrorResponse "Workflow is locked"
// @Router /api/v1/workflows/{id}/statuses [post]
func (h *WorkflowHandler) AddStatus(w http.ResponseWriter, r *http.Request) {
	var req models.StatusRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	wf, err := h.engine.AddStatus(r.Context(), chi.URLParam(r, "id"), req.Status())
	if err != nil {
		fail(w, r, h.logger, "add status", err)
		return
	}
	response.JSON(w, http.StatusCreated, wf)
}

// UpdateStatus handles PATCH /api/v1/workflows/{id}/statuses/{sid}
// @Summary Update a status
// @Description Renaming a status id rewrites the transitions that reference it. A locked status cannot be renamed or unlocked.
// @Tags statuses
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Param sid path string true "Status ID"
// @Param update body models.StatusUpdateRequest true "Fields to change"
// @Success 200 {object} definition.Workflow
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 423 {object} response.ErrorResponse
// @Router /api/v1/workflows/{id}/statuses/{sid} [patch]
func (h *WorkflowHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req models.StatusUpdateRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	wf, err := h.engine.UpdateStatus(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sid"), req.Update())
	if err != nil {
		fail(w, r, h.logger, "update status", err)
		return
	}
	response.JSON(w, http.StatusOK, wf)
}

// DeleteStatus handles DELETE /api/v1/workflows/{id}/statuses/{sid}
// @Summary Delete a status
// @Description Transitions touching the status are removed with it.
// @Tags statuses
// @Produce json
// @Param id path string true "Workflow ID"
// @Param sid path string true "Status ID"
// @Success 200 {object} definition.Workflow
// @Failure 400 {object} response.ErrorResponse "Status is the last or the default one"
// @Failure 404 {object} response.ErrorResponse
// @Failure 423 {object} response.ErrorResponse "Status or workflow is locked"
// @Router /api/v1/workflows/{id}/statuses/{sid} [delete]
func (h *WorkflowHandler) DeleteStatus(w http.ResponseWriter, r *http.Request) {
	wf, err := h.engine.DeleteStatus(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sid"))
	if err != nil {
		fail(w, r, h.logger, "delete status", err)
		return
	}
	response.JSON(w, http.StatusOK, wf)
}

// ReorderStatuses handles PUT /api/v1/workflows/{id}/statuses/order
// @Summary Reorder statuses
// @Tags statuses
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Param order body models.ReorderStatusesRequest true "Every status id in the new order"
// @Success 200 {object} definition.Workflow
// @Failure 400 {object} response.ErrorResponse
// @Router /api/v1/workflows/{id}/statuses/order [put]
func (h *WorkflowHandler) ReorderStatuses(w http.ResponseWriter, r *http.Request) {
	var req models.ReorderStatusesRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	wf, err := h.engine.ReorderStatuses(r.Context(), chi.URLParam(r, "id"), req.StatusIDs)
	if err != nil {
		fail(w, r, h.logger, "reorder statuses", err)
		return
	}
	response.JSON(w, http.StatusOK, wf)
}

// AddTransition handles POST /api/v1/workflows/{id}/transitions
// @Summary Add a transition
// @Tags transitions
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Param transition body models.TransitionRequest true "Transition"
// @Success 201 {object} definition.Workflow
// @Failure 400 {object} response.ErrorResponse
// @Failure 423 {object} response.ErrorResponse
// @Router /api/v1/workflows/{id}/transitions [post]
func (h *WorkflowHandler) AddTransition(w http.ResponseWriter, r *http.Request) {
	var req models.TransitionRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	wf, err := h.engine.AddTransition(r.Context(), chi.URLParam(r, "id"), req.Transition())
	if err != nil {
		fail(w, r, h.logger, "add transition", err)
		return
	}
	response.JSON(w, http.StatusCreated, wf)
}

// DeleteTransition handles DELETE /api/v1/workflows/{id}/transitions/{tid}
// @Summary Delete a transition
// @Tags transitions
// @Produce json
// @Param id path string true "Workflow ID"
// @Param tid path string true "Transition ID"
// @Success 200 {object} definition.Workflow
// @Failure 404 {object} response.ErrorResponse
// @Failure 423 {object} response.ErrorResponse
// @Router /api/v1/workflows/{id}/transitions/{tid} [delete]
func (h *WorkflowHandler) DeleteTransition(w http.ResponseWriter, r *http.Request) {
	wf, err := h.engine.DeleteTransition(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "tid"))
	if err != nil {
		fail(w, r, h.logger, "delete transition", err)
		return
	}
	response.JSON(w, http.StatusOK, wf)
}

// AvailableTransitions handles GET /api/v1/workflows/{id}/statuses/{sid}/transitions
// @Summary Transitions leaving a status
// @Tags transitions
// @Produce json
// @Param id path string true "Workflow ID"
// @Param sid path string true "Status ID"
// @Success 200 {object} models.TransitionListResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/workflows/{id}/statuses/{sid}/transitions [get]
func (h *WorkflowHandler) AvailableTransitions(w http.ResponseWriter, r *http.Request) {
	transitions, err := h.engine.AvailableTransitions(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sid"))
	if err != nil {
		fail(w, r, h.logger, "available transitions", err)
		return
	}
	response.JSON(w, http.StatusOK, models.TransitionListResponse{Transitions: transitions})
}

// AttemptTransition handles POST /api/v1/workflows/{id}/transitions/{tid}/attempt
// @Summary Attempt a transition
// @Description Checks the entity's status, the actor's permissions and the guard conditions.
// @Description Failed guards return 200 with success false.
// @Tags transitions
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Param tid path string true "Transition ID"
// @Param X-Actor-Permissions header string false "Comma separated permission tags"
// @Param attempt body models.AttemptTransitionRequest true "Entity"
// @Success 200 {object} models.AttemptTransitionResponse
// @Failure 403 {object} response.ErrorResponse "Permission denied"
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Entity is not in the source status"
// @Router /api/v1/workflows/{id}/transitions/{tid}/attempt [post]
func (h *WorkflowHandler) AttemptTransition(w http.ResponseWriter, r *http.Request) {
	var req models.AttemptTransitionRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	ctx := r.Context()
	workflowID := chi.URLParam(r, "id")

	result, err := h.engine.AttemptTransition(ctx, workflowID, chi.URLParam(r, "tid"), req.Entity, actorPermissions(r))
	if err != nil {
		fail(w, r, h.logger, "attempt transition", err)
		return
	}

	resp := models.AttemptTransitionResponse{TransitionResult: result}
	if req.ExecuteActions && result.Success && h.dispatcher != nil {
		moved, err := condition.SetPath(condition.Clone(req.Entity), h.engine.StatusField(), result.NewStatus)
		if err != nil {
			fail(w, r, h.logger, "apply new status", err)
			return
		}
		resp.Dispatch = h.dispatcher.Dispatch(ctx, action.Target{
			WorkflowID:   workflowID,
			TransitionID: result.TransitionID,
			Entity:       moved,
		}, result.ActionsToExecute)
	}
	response.JSON(w, http.StatusOK, resp)
}

// AutoTransitions handles POST /api/v1/workflows/{id}/automations
// @Summary Auto-executing transitions the entity qualifies for
// @Tags transitions
// @Accept json
// @Produce json
// @Param id path string true "Workflow ID"
// @Param X-Actor-Permissions header string false "Comma separated permission tags"
// @Param entity body models.EntityRequest true "Entity"
// @Success 200 {object} models.TransitionListResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/workflows/{id}/automations [post]
func (h *WorkflowHandler) AutoTransitions(w http.ResponseWriter, r *http.Request) {
	var req models.EntityRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	transitions, err := h.engine.AutoTransitions(r.Context(), chi.URLParam(r, "id"), req.Entity, actorPermissions(r))
	if err != nil {
		fail(w, r, h.logger, "auto transitions", err)
		return
	}
	response.JSON(w, http.StatusOK, models.TransitionListResponse{Transitions: transitions})
}
