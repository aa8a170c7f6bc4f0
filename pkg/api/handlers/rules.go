package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/goclaw/taskflow/pkg/api/models"
	"github.com/goclaw/taskflow/pkg/api/response"
	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/logger"
	"github.com/goclaw/taskflow/pkg/storage"
	"github.com/goclaw/taskflow/pkg/validation"
)

// RuleHandler administers validation rules.
type RuleHandler struct {
	engine *validation.Engine
	logger logger.Logger
}

// NewRuleHandler creates a new rule handler.
func NewRuleHandler(eng *validation.Engine, log logger.Logger) *RuleHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RuleHandler{engine: eng, logger: log}
}

// ListRules handles GET /api/v1/rules
// @Summary List validation rules
// @Tags rules
// @Produce json
// @Param active_only query bool false "Only active rules"
// @Param category query string false "Filter by category"
// @Param limit query int false "Maximum number of results" default(50)
// @Param offset query int false "Offset for pagination" default(0)
// @Success 200 {object} models.RuleListResponse
// @Router /api/v1/rules [get]
func (h *RuleHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filter := &storage.RuleFilter{
		ActiveOnly: r.URL.Query().Get("active_only") == "true",
		Category:   definition.RuleCategory(r.URL.Query().Get("category")),
		Limit:      limit,
		Offset:     offset,
	}
	rules, total, err := h.engine.ListRules(r.Context(), filter)
	if err != nil {
		fail(w, r, h.logger, "list rules", err)
		return
	}
	response.JSON(w, http.StatusOK, models.RuleListResponse{
		Rules:  rules,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// CreateRule handles POST /api/v1/rules
// @Summary Create a custom validation rule
// @Tags rules
// @Accept json
// @Produce json
// @Param rule body models.RuleRequest true "Rule"
// @Success 201 {object} definition.ValidationRule
// @Failure 400 {object} response.ErrorResponse
// @Router /api/v1/rules [post]
func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req models.RuleRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	rule, err := h.engine.CreateRule(r.Context(), req.Definition())
	if err != nil {
		fail(w, r, h.logger, "create rule", err)
		return
	}
	response.JSON(w, http.StatusCreated, rule)
}

// GetRule handles GET /api/v1/rules/{id}
// @Summary Get a validation rule
// @Tags rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} definition.ValidationRule
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/rules/{id} [get]
func (h *RuleHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.engine.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, h.logger, "get rule", err)
		return
	}
	response.JSON(w, http.StatusOK, rule)
}

// UpdateRule handles PUT /api/v1/rules/{id}
// @Summary Replace a custom validation rule
// @Description Built-in rules are locked; only their active flag can change.
// @Tags rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param rule body models.RuleRequest true "Rule"
// @Success 200 {object} definition.ValidationRule
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 423 {object} response.ErrorResponse "Built-in rule"
// @Router /api/v1/rules/{id} [put]
func (h *RuleHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req models.RuleRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	rule, err := h.engine.UpdateRule(r.Context(), chi.URLParam(r, "id"), req.Definition())
	if err != nil {
		fail(w, r, h.logger, "update rule", err)
		return
	}
	response.JSON(w, http.StatusOK, rule)
}

// DeleteRule handles DELETE /api/v1/rules/{id}
// @Summary Delete a custom validation rule
// @Tags rules
// @Param id path string true "Rule ID"
// @Success 204
// @Failure 404 {object} response.ErrorResponse
// @Failure 423 {object} response.ErrorResponse "Built-in rule"
// @Router /api/v1/rules/{id} [delete]
func (h *RuleHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, h.logger, "delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleRule handles POST /api/v1/rules/{id}/toggle
// @Summary Activate or deactivate a rule
// @Tags rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param toggle body models.ToggleRuleRequest true "Active flag"
// @Success 200 {object} definition.ValidationRule
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/rules/{id}/toggle [post]
func (h *RuleHandler) ToggleRule(w http.ResponseWriter, r *http.Request) {
	var req models.ToggleRuleRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	rule, err := h.engine.SetActive(r.Context(), chi.URLParam(r, "id"), *req.IsActive)
	if err != nil {
		fail(w, r, h.logger, "toggle rule", err)
		return
	}
	response.JSON(w, http.StatusOK, rule)
}
