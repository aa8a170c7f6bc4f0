// Package workflow implements the workflow engine: a repository-backed service
// that owns workflow definitions, edits their status graphs and decides
// whether a task may move along a transition.
//
// The engine never touches the task itself. AttemptTransition reports the
// new status and the actions to run; persisting the status and dispatching
// the actions is the caller's job.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/goclaw/taskflow/pkg/condition"
	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/eventbus"
	"github.com/goclaw/taskflow/pkg/logger"
	"github.com/goclaw/taskflow/pkg/storage"
)

// DefaultStatusField is the entity path read for the current status.
const DefaultStatusField = "status"

// Transition attempt outcomes reported to metrics.
const (
	OutcomeSuccess           = "success"
	OutcomeConditionsFailed  = "conditions_failed"
	OutcomeInvalidTransition = "invalid_transition"
	OutcomePermissionDenied  = "permission_denied"
)

// Repository is the persistence the engine needs. storage.Storage satisfies it.
type Repository interface {
	SaveWorkflow(ctx context.Context, wf *definition.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*definition.Workflow, error)
	ListWorkflows(ctx context.Context, filter *storage.WorkflowFilter) ([]*definition.Workflow, int, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// MetricsRecorder receives engine measurements.
type MetricsRecorder interface {
	RecordTransitionAttempt(workflowID, outcome string, duration time.Duration)
	RecordDefinitionChange(kind, operation string)
}

type nopMetrics struct{}

func (nopMetrics) RecordTransitionAttempt(string, string, time.Duration) {}
func (nopMetrics) RecordDefinitionChange(string, string)                 {}

// Engine owns workflow definitions. Mutations are serialized and follow
// read, modify, validate, save: a failed mutation leaves the stored
// definition untouched.
type Engine struct {
	repo        Repository
	evaluator   *condition.Evaluator
	logger      logger.Logger
	metrics     MetricsRecorder
	events      eventbus.Emitter
	statusField string
	now         func() time.Time

	mu      sync.Mutex
	pending []eventbus.Event // change events waiting for mu to be released
}

// New creates a workflow engine over repo.
func New(repo Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:        repo,
		logger:      logger.Nop(),
		metrics:     nopMetrics{},
		events:      eventbus.NopEmitter{},
		statusField: DefaultStatusField,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.evaluator == nil {
		// Custom guards nobody registered an evaluator for do not block a transition.
		e.evaluator = condition.NewEvaluator(
			condition.WithLogger(e.logger),
			condition.WithUnregisteredCustom(true),
		)
	}
	return e
}

// Evaluator returns the condition evaluator used for transition guards.
func (e *Engine) Evaluator() *condition.Evaluator {
	return e.evaluator
}

// StatusField is the entity path holding the current status id.
func (e *Engine) StatusField() string {
	return e.statusField
}

// ListWorkflows lists workflow definitions.
func (e *Engine) ListWorkflows(ctx context.Context, filter *storage.WorkflowFilter) ([]*definition.Workflow, int, error) {
	return e.repo.ListWorkflows(ctx, filter)
}

// GetWorkflow returns a workflow or a *definition.NotFoundError.
func (e *Engine) GetWorkflow(ctx context.Context, id string) (*definition.Workflow, error) {
	return e.repo.GetWorkflow(ctx, id)
}

// CreateWorkflow stores draft under a freshly generated id. Transitions
// without an id get one. The first workflow of a task category becomes its
// default.
func (e *Engine) CreateWorkflow(ctx context.Context, draft *definition.Workflow) (*definition.Workflow, error) {
	if draft == nil {
		return nil, definition.Invalid("workflow", "", "", "workflow is required")
	}
	wf := draft.Clone()
	wf.ID = uuid.New().String()
	return e.store(ctx, wf, "create")
}

// ImportWorkflow stores wf keeping its id, replacing any workflow with the
// same id. Definitions loaded from files go through here.
func (e *Engine) ImportWorkflow(ctx context.Context, wf *definition.Workflow) (*definition.Workflow, error) {
	if wf == nil {
		return nil, definition.Invalid("workflow", "", "", "workflow is required")
	}
	wf = wf.Clone()
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}
	return e.store(ctx, wf, "import")
}

func (e *Engine) store(ctx context.Context, wf *definition.Workflow, op string) (*definition.Workflow, error) {
	ctx, span := tracer().Start(ctx, spanMutate, trace.WithAttributes(
		attribute.String("workflow.id", wf.ID),
		attribute.String("operation", op),
	))
	defer span.End()

	for i := range wf.Transitions {
		if wf.Transitions[i].ID == "" {
			wf.Transitions[i].ID = uuid.New().String()
		}
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.unlock(ctx)

	now := e.now()
	wf.CreatedAt, wf.UpdatedAt = now, now
	if existing, err := e.repo.GetWorkflow(ctx, wf.ID); err == nil {
		wf.CreatedAt = existing.CreatedAt
	}
	if err := e.claimDefault(ctx, wf); err != nil {
		return nil, err
	}
	if err := e.repo.SaveWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("save workflow %s: %w", wf.ID, err)
	}

	e.metrics.RecordDefinitionChange("workflow", op)
	e.logger.InfoContext(ctx, "workflow stored", "id", wf.ID, "name", wf.Name, "operation", op,
		"statuses", len(wf.Statuses), "transitions", len(wf.Transitions))
	e.queueChange(wf.ID, op, "")
	return wf.Clone(), nil
}

// claimDefault keeps exactly one default per task category. A workflow that
// asks to be default demotes the others; otherwise it becomes default only
// when its category has none. Callers hold e.mu.
func (e *Engine) claimDefault(ctx context.Context, wf *definition.Workflow) error {
	category := wf.TaskCategory
	defaults, _, err := e.repo.ListWorkflows(ctx, &storage.WorkflowFilter{TaskCategory: &category, DefaultOnly: true})
	if err != nil {
		return fmt.Errorf("list default workflows: %w", err)
	}
	others := make([]*definition.Workflow, 0, len(defaults))
	for _, d := range defaults {
		if d.ID != wf.ID {
			others = append(others, d)
		}
	}
	if !wf.IsDefault {
		wf.IsDefault = len(others) == 0
		return nil
	}
	for _, other := range others {
		other.IsDefault = false
		other.UpdatedAt = e.now()
		if err := e.repo.SaveWorkflow(ctx, other); err != nil {
			return fmt.Errorf("clear default on workflow %s: %w", other.ID, err)
		}
		e.queueChange(other.ID, "unset_default", "")
	}
	return nil
}

// WorkflowUpdate patches workflow metadata. Nil fields are left alone.
type WorkflowUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsLocked    *bool   `json:"isLocked,omitempty"`
}

// UpdateWorkflow applies a metadata patch. Locking only blocks structural
// edits, so a locked workflow can still be renamed or unlocked.
func (e *Engine) UpdateWorkflow(ctx context.Context, id string, update WorkflowUpdate) (*definition.Workflow, error) {
	return e.mutate(ctx, id, "update", func(wf *definition.Workflow) (string, error) {
		if update.Name != nil {
			wf.Name = *update.Name
		}
		if update.Description != nil {
			wf.Description = *update.Description
		}
		if update.IsLocked != nil {
			wf.IsLocked = *update.IsLocked
		}
		return "", nil
	})
}

// DeleteWorkflow removes a workflow. Default and locked workflows are
// protected with a *definition.LockedEntityError.
func (e *Engine) DeleteWorkflow(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.unlock(ctx)

	wf, err := e.repo.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case wf.IsDefault:
		return &definition.LockedEntityError{EntityType: "workflow", ID: id, Reason: "default workflow cannot be deleted"}
	case wf.IsLocked:
		return &definition.LockedEntityError{EntityType: "workflow", ID: id}
	}
	if err := e.repo.DeleteWorkflow(ctx, id); err != nil {
		return err
	}

	e.metrics.RecordDefinitionChange("workflow", "delete")
	e.logger.InfoContext(ctx, "workflow deleted", "id", id)
	e.queueChange(id, "delete", "")
	return nil
}

// SetDefault marks a workflow as its task category's default and clears the
// flag on the previous default.
func (e *Engine) SetDefault(ctx context.Context, id string) (*definition.Workflow, error) {
	e.mu.Lock()
	defer e.unlock(ctx)

	wf, err := e.repo.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if wf.IsDefault {
		return wf, nil
	}
	wf.IsDefault = true
	if err := e.claimDefault(ctx, wf); err != nil {
		return nil, err
	}
	wf.UpdatedAt = e.now()
	if err := e.repo.SaveWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("save workflow %s: %w", id, err)
	}

	e.metrics.RecordDefinitionChange("workflow", "set_default")
	e.queueChange(id, "set_default", "")
	return wf.Clone(), nil
}

// mutate runs fn on a copy of the stored workflow, validates the result and
// saves it. fn returns the id of the element it touched, for events.
func (e *Engine) mutate(ctx context.Context, id, op string, fn func(wf *definition.Workflow) (string, error)) (*definition.Workflow, error) {
	ctx, span := tracer().Start(ctx, spanMutate, trace.WithAttributes(
		attribute.String("workflow.id", id),
		attribute.String("operation", op),
	))
	defer span.End()

	e.mu.Lock()
	defer e.unlock(ctx)

	stored, err := e.repo.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	wf := stored.Clone()
	target, err := fn(wf)
	if err != nil {
		return nil, err
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	wf.UpdatedAt = e.now()
	if err := e.repo.SaveWorkflow(ctx, wf); err != nil {
		return nil, fmt.Errorf("save workflow %s: %w", id, err)
	}

	e.metrics.RecordDefinitionChange("workflow", op)
	e.logger.DebugContext(ctx, "workflow updated", "id", id, "operation", op, "target", target)
	e.queueChange(id, op, target)
	return wf.Clone(), nil
}

func checkUnlocked(wf *definition.Workflow) error {
	if wf.IsLocked {
		return &definition.LockedEntityError{EntityType: "workflow", ID: wf.ID, Reason: "structure cannot be edited"}
	}
	return nil
}

func (e *Engine) emitChange(ctx context.Context, workflowID, op, target string) {
	e.emit(ctx, eventbus.Event{
		Kind:       eventbus.WorkflowChanged,
		WorkflowID: workflowID,
		Payload: eventbus.WorkflowChangePayload{
			WorkflowID: workflowID,
			Operation:  op,
			Target:     target,
		},
	})
}

// queueChange records a change event to emit once e.mu is released. Callers hold e.mu.
func (e *Engine) queueChange(workflowID, op, target string) {
	e.pending = append(e.pending, eventbus.Event{
		Kind:       eventbus.WorkflowChanged,
		WorkflowID: workflowID,
		Payload: eventbus.WorkflowChangePayload{
			WorkflowID: workflowID,
			Operation:  op,
			Target:     target,
		},
	})
}

// unlock releases e.mu, then emits the change events queued under it.
func (e *Engine) unlock(ctx context.Context) {
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()
	for _, event := range pending {
		e.emit(ctx, event)
	}
}

// emit publishes best effort; a broken bus never fails an engine call.
func (e *Engine) emit(ctx context.Context, event eventbus.Event) {
	if _, err := e.events.Emit(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "failed to emit event", "type", event.Kind.String(), "workflow_id", event.WorkflowID, "error", err)
	}
}
