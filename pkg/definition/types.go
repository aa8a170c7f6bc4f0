// Package definition holds the administrator-authored data the engines
// interpret: workflows with their statuses and transitions, and validation
// rules. Definitions are plain data; entities are never stored here.
package definition

import (
	"time"

	"github.com/goclaw/taskflow/pkg/condition"
)

// StatusCategory groups statuses for boards and reports.
type StatusCategory string

const (
	CategoryTodo       StatusCategory = "todo"
	CategoryInProgress StatusCategory = "in_progress"
	CategoryReview     StatusCategory = "review"
	CategoryDone       StatusCategory = "done"
	CategoryBlocked    StatusCategory = "blocked"
)

// Valid reports whether c is a known category.
func (c StatusCategory) Valid() bool {
	switch c {
	case CategoryTodo, CategoryInProgress, CategoryReview, CategoryDone, CategoryBlocked:
		return true
	}
	return false
}

// ActionType names the effect an Action describes.
type ActionType string

const (
	ActionUpdateField      ActionType = "update_field"
	ActionSendNotification ActionType = "send_notification"
	ActionAssignUser       ActionType = "assign_user"
	ActionCreateTask       ActionType = "create_task"
	ActionCustom           ActionType = "custom"
	ActionPreventSave      ActionType = "prevent_save"
	ActionShowWarning      ActionType = "show_warning"
	ActionAutoFix          ActionType = "auto_fix"
	ActionNotifyUser       ActionType = "notify_user"
	ActionRequireApproval  ActionType = "require_approval"
)

// Known reports whether t is one of the built-in action types. Unknown types
// are still accepted in definitions; dispatchers treat them as no-ops.
func (t ActionType) Known() bool {
	switch t {
	case ActionUpdateField, ActionSendNotification, ActionAssignUser, ActionCreateTask,
		ActionCustom, ActionPreventSave, ActionShowWarning, ActionAutoFix, ActionNotifyUser,
		ActionRequireApproval:
		return true
	}
	return false
}

// Action is a declarative effect handed back to the caller. For auto_fix
// actions Value is the fix value written to the rule's field.
type Action struct {
	ID          string     `json:"id" yaml:"id" validate:"required"`
	Type        ActionType `json:"type" yaml:"type" validate:"required"`
	Field       string     `json:"field,omitempty" yaml:"field,omitempty"`
	Value       any        `json:"value,omitempty" yaml:"value,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// Status is a node of a workflow.
type Status struct {
	ID          string         `json:"id" yaml:"id" validate:"required,max=100"`
	Name        string         `json:"name" yaml:"name" validate:"required,max=100"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Color       string         `json:"color" yaml:"color"`
	Category    StatusCategory `json:"category" yaml:"category" validate:"required"`
	IsLocked    bool           `json:"isLocked,omitempty" yaml:"isLocked,omitempty"`
	Order       int            `json:"order" yaml:"order"`
}

// Transition is a directed edge between two statuses of the same workflow.
// Permissions are opaque role tags checked by set intersection only.
type Transition struct {
	ID          string                `json:"id" yaml:"id" validate:"required,max=100"`
	FromStatus  string                `json:"fromStatus" yaml:"fromStatus" validate:"required"`
	ToStatus    string                `json:"toStatus" yaml:"toStatus" validate:"required"`
	Name        string                `json:"name" yaml:"name" validate:"required"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Conditions  []condition.Condition `json:"conditions,omitempty" yaml:"conditions,omitempty" validate:"dive"`
	Actions     []Action              `json:"actions,omitempty" yaml:"actions,omitempty" validate:"dive"`
	Permissions []string              `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	IsRequired  bool                  `json:"isRequired,omitempty" yaml:"isRequired,omitempty"`
	AutoExecute bool                  `json:"autoExecute,omitempty" yaml:"autoExecute,omitempty"`
}

// Workflow is a named status graph. Transitions are kept in definition order.
type Workflow struct {
	ID              string       `json:"id" yaml:"id"`
	Name            string       `json:"name" yaml:"name" validate:"required,max=100"`
	Description     string       `json:"description,omitempty" yaml:"description,omitempty"`
	TaskCategory    string       `json:"taskCategory,omitempty" yaml:"taskCategory,omitempty"`
	Statuses        []Status     `json:"statuses" yaml:"statuses" validate:"required,min=1,dive"`
	Transitions     []Transition `json:"transitions,omitempty" yaml:"transitions,omitempty" validate:"dive"`
	DefaultStatusID string       `json:"defaultStatusId" yaml:"defaultStatusId" validate:"required"`
	IsDefault       bool         `json:"isDefault" yaml:"isDefault"`
	IsLocked        bool         `json:"isLocked" yaml:"isLocked"`
	CreatedAt       time.Time    `json:"createdAt" yaml:"createdAt,omitempty"`
	UpdatedAt       time.Time    `json:"updatedAt" yaml:"updatedAt,omitempty"`
}

// Status returns the status with the given id.
func (w *Workflow) Status(id string) (Status, bool) {
	for _, s := range w.Statuses {
		if s.ID == id {
			return s, true
		}
	}
	return Status{}, false
}

// StatusIndex returns the index of a status, or -1.
func (w *Workflow) StatusIndex(id string) int {
	for i, s := range w.Statuses {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Transition returns the transition with the given id.
func (w *Workflow) Transition(id string) (Transition, bool) {
	for _, t := range w.Transitions {
		if t.ID == id {
			return t, true
		}
	}
	return Transition{}, false
}

// TransitionsFrom returns the transitions leaving statusID in definition order.
func (w *Workflow) TransitionsFrom(statusID string) []Transition {
	out := make([]Transition, 0)
	for _, t := range w.Transitions {
		if t.FromStatus == statusID {
			out = append(out, t)
		}
	}
	return out
}

// Clone returns a deep copy so callers can mutate a workflow without
// affecting stored or shared instances.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := *w
	out.Statuses = append([]Status(nil), w.Statuses...)
	out.Transitions = make([]Transition, len(w.Transitions))
	for i, t := range w.Transitions {
		t.Conditions = append([]condition.Condition(nil), t.Conditions...)
		t.Actions = append([]Action(nil), t.Actions...)
		t.Permissions = append([]string(nil), t.Permissions...)
		out.Transitions[i] = t
	}
	if w.Transitions == nil {
		out.Transitions = nil
	}
	return &out
}

// RuleType is how a failing rule is reported.
type RuleType string

const (
	RuleRequired RuleType = "required"
	RuleWarning  RuleType = "warning"
	RuleInfo     RuleType = "info"
	RuleError    RuleType = "error"
)

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	switch t {
	case RuleRequired, RuleWarning, RuleInfo, RuleError:
		return true
	}
	return false
}

// RuleCategory groups rules in reports.
type RuleCategory string

const (
	RuleContent    RuleCategory = "content"
	RuleStructure  RuleCategory = "structure"
	RuleQuality    RuleCategory = "quality"
	RuleCompliance RuleCategory = "compliance"
	RuleCustom     RuleCategory = "custom"
)

// Valid reports whether c is a known rule category.
func (c RuleCategory) Valid() bool {
	switch c {
	case RuleContent, RuleStructure, RuleQuality, RuleCompliance, RuleCustom:
		return true
	}
	return false
}

// Severity ranks rule failures.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ValidationRule is a standalone predicate scored against an entity.
type ValidationRule struct {
	ID          string              `json:"id" yaml:"id"`
	Name        string              `json:"name" yaml:"name" validate:"required,max=100"`
	Description string              `json:"description" yaml:"description"`
	Type        RuleType            `json:"type" yaml:"type" validate:"required"`
	Category    RuleCategory        `json:"category" yaml:"category" validate:"required"`
	IsActive    bool                `json:"isActive" yaml:"isActive"`
	IsCustom    bool                `json:"isCustom" yaml:"isCustom"`
	Severity    Severity            `json:"severity" yaml:"severity" validate:"required"`
	Condition   condition.Condition `json:"condition" yaml:"condition"`
	Action      *Action             `json:"action,omitempty" yaml:"action,omitempty"`
	CreatedAt   time.Time           `json:"createdAt" yaml:"createdAt,omitempty"`
	CreatedBy   string              `json:"createdBy" yaml:"createdBy"`
}

// Clone returns a copy that does not share the action pointer.
func (r *ValidationRule) Clone() *ValidationRule {
	if r == nil {
		return nil
	}
	out := *r
	if r.Action != nil {
		action := *r.Action
		out.Action = &action
	}
	return &out
}

// AutoFixable reports whether the rule declares an auto_fix action.
func (r *ValidationRule) AutoFixable() bool {
	return r.Action != nil && r.Action.Type == ActionAutoFix
}
