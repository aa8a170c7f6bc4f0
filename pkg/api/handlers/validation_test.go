package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/taskflow/pkg/api/models"
	"github.com/goclaw/taskflow/pkg/api/response"
	"github.com/goclaw/taskflow/pkg/validation"
)

func wellFormedTask() map[string]any {
	return map[string]any{
		"title":              "Implement password reset flow",
		"description":        "Users can reset their password by email.",
		"acceptanceCriteria": []any{"email is sent", "link expires after 1h"},
		"storyPoints":        3,
		"priority":           "high",
		"assigneeId":         "u-1",
		"dueDate":            "2026-11-01",
	}
}

func TestValidationHandler_Validate(t *testing.T) {
	api := newTestAPI(t, false)

	w := api.do(t, http.MethodPost, "/api/v1/validate", models.EntityRequest{Entity: wellFormedTask()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decodeBody[validation.Report](t, w)
	assert.True(t, report.Passed)
	assert.Len(t, report.Results, len(validation.DefaultRules()))
	assert.Equal(t, 100, report.Metrics.OverallScore)

	w = api.do(t, http.MethodPost, "/api/v1/validate", models.EntityRequest{Entity: map[string]any{}})
	require.Equal(t, http.StatusOK, w.Code)
	report = decodeBody[validation.Report](t, w)
	assert.False(t, report.Passed)
	assert.Less(t, report.Metrics.OverallScore, 100)
	assert.Positive(t, report.Metrics.Issues.Critical)
}

func TestValidationHandler_AutoFixDisabled(t *testing.T) {
	api := newTestAPI(t, false)

	w := api.do(t, http.MethodPost, "/api/v1/validate/autofix", models.EntityRequest{Entity: wellFormedTask()})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, response.ErrCodeAutoFixDisabled, errorCodeOf(t, w))
}

func TestValidationHandler_AutoFix(t *testing.T) {
	api := newTestAPI(t, true)

	task := wellFormedTask()
	task["priority"] = "urgent"

	w := api.do(t, http.MethodPost, "/api/v1/validate/autofix", models.EntityRequest{Entity: task})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[models.AutoFixResponse](t, w)
	assert.Equal(t, []string{validation.RulePriorityValue}, resp.Applied)
	assert.Equal(t, "medium", resp.Entity["priority"])
	assert.True(t, resp.Report.Passed)
}
