package workflow

import (
	"github.com/goclaw/taskflow/pkg/condition"
	"github.com/goclaw/taskflow/pkg/definition"
)

// DefaultWorkflowID is the id of the built-in kanban workflow.
const DefaultWorkflowID = "default-kanban"

// DefaultWorkflow returns the built-in kanban workflow seeded into empty
// storage.
func DefaultWorkflow() *definition.Workflow {
	return &definition.Workflow{
		ID:          DefaultWorkflowID,
		Name:        "Kanban",
		Description: "Default task workflow",
		Statuses: []definition.Status{
			{ID: "todo", Name: "To Do", Color: "#6b7280", Category: definition.CategoryTodo, Order: 0},
			{ID: "in-progress", Name: "In Progress", Color: "#3b82f6", Category: definition.CategoryInProgress, Order: 1},
			{ID: "review", Name: "In Review", Color: "#f59e0b", Category: definition.CategoryReview, Order: 2},
			{ID: "done", Name: "Done", Color: "#10b981", Category: definition.CategoryDone, Order: 3, IsLocked: true},
			{ID: "blocked", Name: "Blocked", Color: "#ef4444", Category: definition.CategoryBlocked, Order: 4},
		},
		Transitions: []definition.Transition{
			{
				ID: "start-work", FromStatus: "todo", ToStatus: "in-progress", Name: "Start work",
				Conditions: []condition.Condition{
					{ID: "has-assignee", Field: "assigneeId", Operator: condition.OpExists, Description: "Task must be assigned"},
				},
				Actions: []definition.Action{
					{ID: "notify-start", Type: definition.ActionNotifyUser, Field: "assigneeId", Description: "Work started"},
				},
			},
			{
				ID: "submit-review", FromStatus: "in-progress", ToStatus: "review", Name: "Submit for review",
				Conditions: []condition.Condition{
					{ID: "has-description", Field: "description", Operator: condition.OpIsNotEmpty},
				},
				Actions: []definition.Action{
					{ID: "request-review", Type: definition.ActionRequireApproval, Description: "Review requested"},
				},
			},
			{
				ID: "approve", FromStatus: "review", ToStatus: "done", Name: "Approve",
				Permissions: []string{"reviewer", "admin"},
				Actions: []definition.Action{
					{ID: "mark-resolved", Type: definition.ActionUpdateField, Field: "resolution", Value: "done"},
				},
			},
			{ID: "request-changes", FromStatus: "review", ToStatus: "in-progress", Name: "Request changes"},
			{
				ID: "block", FromStatus: "in-progress", ToStatus: "blocked", Name: "Block",
				Conditions: []condition.Condition{
					{ID: "has-blocker", Field: "blockedBy", Operator: condition.OpIsNotEmpty},
				},
				AutoExecute: true,
			},
			{ID: "unblock", FromStatus: "blocked", ToStatus: "in-progress", Name: "Unblock"},
			{ID: "reopen", FromStatus: "done", ToStatus: "todo", Name: "Reopen", Permissions: []string{"admin"}},
		},
		DefaultStatusID: "todo",
		IsDefault:       true,
	}
}
