package handlers

import (
	"net/http"

	"github.com/goclaw/taskflow/pkg/api/models"
	"github.com/goclaw/taskflow/pkg/api/response"
	"github.com/goclaw/taskflow/pkg/logger"
	"github.com/goclaw/taskflow/pkg/validation"
)

// ValidationHandler runs entities through the validation engine.
type ValidationHandler struct {
	engine *validation.Engine
	logger logger.Logger
}

// NewValidationHandler creates a new validation handler.
func NewValidationHandler(eng *validation.Engine, log logger.Logger) *ValidationHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ValidationHandler{engine: eng, logger: log}
}

// Validate handles POST /api/v1/validate
// @Summary Validate an entity
// @Description Evaluates every active rule and returns the results with the quality scorecard.
// @Tags validation
// @Accept json
// @Produce json
// @Param entity body models.EntityRequest true "Entity"
// @Success 200 {object} validation.Report
// @Failure 400 {object} response.ErrorResponse
// @Router /api/v1/validate [post]
func (h *ValidationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req models.EntityRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	report, err := h.engine.Validate(r.Context(), req.Entity)
	if err != nil {
		fail(w, r, h.logger, "validate", err)
		return
	}
	response.JSON(w, http.StatusOK, report)
}

// AutoFix handles POST /api/v1/validate/autofix
// @Summary Apply available auto-fixes
// @Description Applies the fix of every failed rule that has one, then validates again.
// @Tags validation
// @Accept json
// @Produce json
// @Param entity body models.EntityRequest true "Entity"
// @Success 200 {object} models.AutoFixResponse
// @Failure 409 {object} response.ErrorResponse "Auto-fix is disabled"
// @Router /api/v1/validate/autofix [post]
func (h *ValidationHandler) AutoFix(w http.ResponseWriter, r *http.Request) {
	var req models.EntityRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	fixed, applied, report, err := h.engine.AutoFix(r.Context(), req.Entity)
	if err != nil {
		fail(w, r, h.logger, "auto-fix", err)
		return
	}
	response.JSON(w, http.StatusOK, models.AutoFixResponse{
		Entity:  fixed,
		Applied: applied,
		Report:  report,
	})
}
