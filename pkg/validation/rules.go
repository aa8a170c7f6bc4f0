package validation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/goclaw/taskflow/pkg/condition"
	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/storage"
)

// ListRules lists stored rules.
func (e *Engine) ListRules(ctx context.Context, filter *storage.RuleFilter) ([]*definition.ValidationRule, int, error) {
	return e.repo.ListRules(ctx, filter)
}

// GetRule returns a rule or a *definition.NotFoundError.
func (e *Engine) GetRule(ctx context.Context, id string) (*definition.ValidationRule, error) {
	return e.repo.GetRule(ctx, id)
}

// CreateRule stores a custom rule under a fresh id.
func (e *Engine) CreateRule(ctx context.Context, draft *definition.ValidationRule) (*definition.ValidationRule, error) {
	if draft == nil {
		return nil, definition.Invalid("rule", "", "", "rule is required")
	}
	rule := draft.Clone()
	rule.ID = uuid.New().String()
	rule.IsCustom = true
	rule.CreatedAt = e.now()
	return e.save(ctx, rule, "create")
}

// ImportRule stores rule keeping its id and origin. Built-in and file
// defined rules go through here.
func (e *Engine) ImportRule(ctx context.Context, rule *definition.ValidationRule) (*definition.ValidationRule, error) {
	if rule == nil {
		return nil, definition.Invalid("rule", "", "", "rule is required")
	}
	rule = rule.Clone()
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if existing, err := e.repo.GetRule(ctx, rule.ID); err == nil {
		rule.CreatedAt = existing.CreatedAt
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = e.now()
	}
	return e.save(ctx, rule, "import")
}

// UpdateRule replaces a custom rule's definition. Id, origin and creation
// metadata are kept. Built-in rules can only be toggled with SetActive.
func (e *Engine) UpdateRule(ctx context.Context, id string, update *definition.ValidationRule) (*definition.ValidationRule, error) {
	if update == nil {
		return nil, definition.Invalid("rule", id, "", "rule is required")
	}
	current, err := e.repo.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsCustom {
		return nil, &definition.LockedEntityError{EntityType: "rule", ID: id, Reason: "built-in rules can only be activated or deactivated"}
	}
	rule := update.Clone()
	rule.ID = current.ID
	rule.IsCustom = current.IsCustom
	rule.CreatedAt = current.CreatedAt
	rule.CreatedBy = current.CreatedBy
	return e.save(ctx, rule, "update")
}

// SetActive activates or deactivates a rule.
func (e *Engine) SetActive(ctx context.Context, id string, active bool) (*definition.ValidationRule, error) {
	rule, err := e.repo.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	rule.IsActive = active
	op := "deactivate"
	if active {
		op = "activate"
	}
	return e.save(ctx, rule, op)
}

// DeleteRule removes a custom rule. Built-in rules fail with
// *definition.LockedEntityError.
func (e *Engine) DeleteRule(ctx context.Context, id string) error {
	rule, err := e.repo.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if !rule.IsCustom {
		return &definition.LockedEntityError{EntityType: "rule", ID: id, Reason: "built-in rules cannot be deleted"}
	}
	if err := e.repo.DeleteRule(ctx, id); err != nil {
		return err
	}
	e.metrics.RecordDefinitionChange("rule", "delete")
	e.logger.InfoContext(ctx, "rule deleted", "id", id)
	return nil
}

func (e *Engine) save(ctx context.Context, rule *definition.ValidationRule, op string) (*definition.ValidationRule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := e.repo.SaveRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("save rule %s: %w", rule.ID, err)
	}
	e.metrics.RecordDefinitionChange("rule", op)
	e.logger.DebugContext(ctx, "rule stored", "id", rule.ID, "operation", op, "active", rule.IsActive)
	return rule.Clone(), nil
}

// Built-in rule ids.
const (
	RuleTitleRequired      = "title-required"
	RuleTitleLength        = "title-length"
	RuleDescriptionPresent = "description-present"
	RuleAcceptanceCriteria = "acceptance-criteria"
	RuleStoryPoints        = "story-points"
	RulePriorityValue      = "priority-value"
	RuleAssignee           = "assignee-set"
	RuleDueDate            = "due-date-set"
)

// DefaultRules returns the built-in task quality rules.
func DefaultRules() []*definition.ValidationRule {
	builtin := func(id, name, desc string, typ definition.RuleType, cat definition.RuleCategory,
		sev definition.Severity, cond condition.Condition) *definition.ValidationRule {
		cond.ID = id
		return &definition.ValidationRule{
			ID:          id,
			Name:        name,
			Description: desc,
			Type:        typ,
			Category:    cat,
			Severity:    sev,
			IsActive:    true,
			Condition:   cond,
			CreatedBy:   "system",
		}
	}

	priority := builtin(RulePriorityValue, "Valid priority", "Priority must be low, medium, high or critical",
		definition.RuleRequired, definition.RuleCompliance, definition.SeverityHigh,
		condition.Condition{Field: "priority", Operator: condition.OpIn, Value: []any{"low", "medium", "high", "critical"}})
	priority.Action = &definition.Action{
		ID:          "set-default-priority",
		Type:        definition.ActionAutoFix,
		Field:       "priority",
		Value:       "medium",
		Description: "Set priority to medium",
	}

	return []*definition.ValidationRule{
		builtin(RuleTitleRequired, "Title required", "Task must have a title",
			definition.RuleRequired, definition.RuleContent, definition.SeverityCritical,
			condition.Condition{Field: "title", Operator: condition.OpExists}),
		builtin(RuleTitleLength, "Descriptive title", "Title should be between 10 and 200 characters",
			definition.RuleWarning, definition.RuleQuality, definition.SeverityMedium,
			condition.Condition{Field: "title", Operator: condition.OpRegex, Value: `^(?s).{10,200}$`}),
		builtin(RuleDescriptionPresent, "Description present", "Task should have a description",
			definition.RuleWarning, definition.RuleContent, definition.SeverityMedium,
			condition.Condition{Field: "description", Operator: condition.OpIsNotEmpty}),
		builtin(RuleAcceptanceCriteria, "Acceptance criteria", "Task should define acceptance criteria",
			definition.RuleWarning, definition.RuleStructure, definition.SeverityHigh,
			condition.Condition{Field: "acceptanceCriteria", Operator: condition.OpIsNotEmpty}),
		builtin(RuleStoryPoints, "Estimated", "Task should be estimated in story points",
			definition.RuleInfo, definition.RuleQuality, definition.SeverityLow,
			condition.Condition{Field: "storyPoints", Operator: condition.OpGreaterThan, Value: 0}),
		priority,
		builtin(RuleAssignee, "Assignee set", "Task should have an assignee",
			definition.RuleInfo, definition.RuleStructure, definition.SeverityLow,
			condition.Condition{Field: "assigneeId", Operator: condition.OpExists}),
		builtin(RuleDueDate, "Due date set", "Task should have a due date",
			definition.RuleInfo, definition.RuleCompliance, definition.SeverityLow,
			condition.Condition{Field: "dueDate", Operator: condition.OpExists}),
	}
}
