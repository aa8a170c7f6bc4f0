// Package models defines API request/response data structures.
package models

import (
	"github.com/goclaw/taskflow/pkg/action"
	"github.com/goclaw/taskflow/pkg/condition"
	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/workflow"
)

// WorkflowRequest represents a workflow creation request.
type WorkflowRequest struct {
	// Name is the workflow name.
	Name string `json:"name" validate:"required,min=1,max=100" example:"Bug triage"`

	// Description is an optional workflow description.
	Description string `json:"description,omitempty" validate:"max=500" example:"Lifecycle of reported bugs"`

	// TaskCategory is the task category this workflow can be the default of.
	TaskCategory string `json:"taskCategory,omitempty" example:"bug"`

	// Statuses are the nodes of the workflow.
	Statuses []definition.Status `json:"statuses" validate:"required,min=1"`

	// Transitions are the edges between statuses.
	Transitions []definition.Transition `json:"transitions,omitempty"`

	// DefaultStatusID is the status new entities start in.
	DefaultStatusID string `json:"defaultStatusId" validate:"required" example:"new"`

	IsDefault bool `json:"isDefault,omitempty"`
	IsLocked  bool `json:"isLocked,omitempty"`
}

// Definition converts the request into a workflow draft.
func (r *WorkflowRequest) Definition() *definition.Workflow {
	return &definition.Workflow{
		Name:            r.Name,
		Description:     r.Description,
		TaskCategory:    r.TaskCategory,
		Statuses:        r.Statuses,
		Transitions:     r.Transitions,
		DefaultStatusID: r.DefaultStatusID,
		IsDefault:       r.IsDefault,
		IsLocked:        r.IsLocked,
	}
}

// WorkflowUpdateRequest patches workflow metadata. Absent fields are unchanged.
type WorkflowUpdateRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	IsLocked    *bool   `json:"isLocked,omitempty"`
}

// Update converts the request into an engine patch.
func (r *WorkflowUpdateRequest) Update() workflow.WorkflowUpdate {
	return workflow.WorkflowUpdate{Name: r.Name, Description: r.Description, IsLocked: r.IsLocked}
}

// WorkflowListResponse represents a paginated list of workflows.
type WorkflowListResponse struct {
	Workflows []*definition.Workflow `json:"workflows"`
	Total     int                    `json:"total"`
	Limit     int                    `json:"limit"`
	Offset    int                    `json:"offset"`
}

// StatusRequest adds a status to a workflow. Order is assigned by the engine.
type StatusRequest struct {
	ID          string                    `json:"id" validate:"required,max=100" example:"in-review"`
	Name        string                    `json:"name" validate:"required,max=100" example:"In review"`
	Description string                    `json:"description,omitempty"`
	Color       string                    `json:"color,omitempty" example:"#8b5cf6"`
	Category    definition.StatusCategory `json:"category" validate:"required,oneof=todo in_progress review done blocked" example:"review"`
	IsLocked    bool                      `json:"isLocked,omitempty"`
}

// Status converts the request into a status definition.
func (r *StatusRequest) Status() definition.Status {
	return definition.Status{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Color:       r.Color,
		Category:    r.Category,
		IsLocked:    r.IsLocked,
	}
}

// StatusUpdateRequest patches a status. Absent fields are unchanged.
type StatusUpdateRequest struct {
	ID          *string                    `json:"id,omitempty" validate:"omitempty,min=1,max=100"`
	Name        *string                    `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string                    `json:"description,omitempty"`
	Color       *string                    `json:"color,omitempty"`
	Category    *definition.StatusCategory `json:"category,omitempty" validate:"omitempty,oneof=todo in_progress review done blocked"`
	IsLocked    *bool                      `json:"isLocked,omitempty"`
}

// Update converts the request into an engine patch.
func (r *StatusUpdateRequest) Update() workflow.StatusUpdate {
	return workflow.StatusUpdate{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Color:       r.Color,
		Category:    r.Category,
		IsLocked:    r.IsLocked,
	}
}

// ReorderStatusesRequest lists every status id of a workflow in the new order.
type ReorderStatusesRequest struct {
	StatusIDs []string `json:"statusIds" validate:"required,min=1,dive,required"`
}

// TransitionRequest adds a transition. An empty id is generated by the engine.
type TransitionRequest struct {
	ID          string                `json:"id,omitempty" validate:"max=100" example:"start"`
	FromStatus  string                `json:"fromStatus" validate:"required" example:"todo"`
	ToStatus    string                `json:"toStatus" validate:"required" example:"in-progress"`
	Name        string                `json:"name" validate:"required,max=100" example:"Start work"`
	Description string                `json:"description,omitempty"`
	Conditions  []condition.Condition `json:"conditions,omitempty" validate:"dive"`
	Actions     []definition.Action   `json:"actions,omitempty" validate:"dive"`
	Permissions []string              `json:"permissions,omitempty"`
	IsRequired  bool                  `json:"isRequired,omitempty"`
	AutoExecute bool                  `json:"autoExecute,omitempty"`
}

// Transition converts the request into a transition definition.
func (r *TransitionRequest) Transition() definition.Transition {
	return definition.Transition{
		ID:          r.ID,
		FromStatus:  r.FromStatus,
		ToStatus:    r.ToStatus,
		Name:        r.Name,
		Description: r.Description,
		Conditions:  r.Conditions,
		Actions:     r.Actions,
		Permissions: r.Permissions,
		IsRequired:  r.IsRequired,
		AutoExecute: r.AutoExecute,
	}
}

// TransitionListResponse lists transitions.
type TransitionListResponse struct {
	Transitions []definition.Transition `json:"transitions"`
}

// EntityRequest carries the task entity a workflow or validation operation
// is evaluated against.
type EntityRequest struct {
	Entity map[string]any `json:"entity" validate:"required"`
}

// AttemptTransitionRequest asks the engine to move an entity along a transition.
type AttemptTransitionRequest struct {
	Entity map[string]any `json:"entity" validate:"required"`

	// ExecuteActions dispatches the transition's actions after a successful
	// attempt and returns the updated entity.
	ExecuteActions bool `json:"executeActions,omitempty"`
}

// AttemptTransitionResponse is the engine result plus the optional dispatch
// result.
type AttemptTransitionResponse struct {
	*workflow.TransitionResult
	Dispatch *action.Result `json:"dispatch,omitempty"`
}
