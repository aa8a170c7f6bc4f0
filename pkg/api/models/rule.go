package models

import (
	"github.com/goclaw/taskflow/pkg/condition"
	"github.com/goclaw/taskflow/pkg/definition"
)

// RuleRequest creates or replaces a validation rule.
type RuleRequest struct {
	Name        string                  `json:"name" validate:"required,max=100" example:"Repro steps"`
	Description string                  `json:"description,omitempty" validate:"max=500"`
	Type        definition.RuleType     `json:"type" validate:"required,oneof=required warning info error" example:"warning"`
	Category    definition.RuleCategory `json:"category" validate:"required,oneof=content structure quality compliance custom" example:"content"`
	Severity    definition.Severity     `json:"severity" validate:"required,oneof=low medium high critical" example:"medium"`
	IsActive    *bool                   `json:"isActive,omitempty"`
	Condition   condition.Condition     `json:"condition"`
	Action      *definition.Action      `json:"action,omitempty"`
	CreatedBy   string                  `json:"createdBy,omitempty"`
}

// Definition converts the request into a rule draft. Rules are active
// unless the request says otherwise.
func (r *RuleRequest) Definition() *definition.ValidationRule {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &definition.ValidationRule{
		Name:        r.Name,
		Description: r.Description,
		Type:        r.Type,
		Category:    r.Category,
		Severity:    r.Severity,
		IsActive:    active,
		Condition:   r.Condition,
		Action:      r.Action,
		CreatedBy:   r.CreatedBy,
	}
}

// ToggleRuleRequest activates or deactivates a rule.
type ToggleRuleRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// RuleListResponse represents a paginated list of rules.
type RuleListResponse struct {
	Rules  []*definition.ValidationRule `json:"rules"`
	Total  int                          `json:"total"`
	Limit  int                          `json:"limit"`
	Offset int                          `json:"offset"`
}
