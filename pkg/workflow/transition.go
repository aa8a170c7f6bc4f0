package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goclaw/taskflow/pkg/condition"
	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/eventbus"
)

// TransitionResult is the outcome of a transition attempt. On failure no
// action is returned and the status is unchanged.
type TransitionResult struct {
	Success          bool                `json:"success"`
	TransitionID     string              `json:"transitionId"`
	FromStatus       string              `json:"fromStatus"`
	NewStatus        string              `json:"newStatus,omitempty"`
	ActionsToExecute []definition.Action `json:"actionsToExecute,omitempty"`
	FailedConditions []condition.Failure `json:"failedConditions,omitempty"`
}

// AddTransition appends a transition. An empty id is generated.
func (e *Engine) AddTransition(ctx context.Context, workflowID string, t definition.Transition) (*definition.Workflow, error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return e.mutate(ctx, workflowID, "add_transition", func(wf *definition.Workflow) (string, error) {
		if err := checkUnlocked(wf); err != nil {
			return "", err
		}
		wf.Transitions = append(wf.Transitions, t)
		return t.ID, nil
	})
}

// DeleteTransition removes a transition.
func (e *Engine) DeleteTransition(ctx context.Context, workflowID, transitionID string) (*definition.Workflow, error) {
	return e.mutate(ctx, workflowID, "delete_transition", func(wf *definition.Workflow) (string, error) {
		if err := checkUnlocked(wf); err != nil {
			return "", err
		}
		for i, t := range wf.Transitions {
			if t.ID == transitionID {
				wf.Transitions = append(wf.Transitions[:i], wf.Transitions[i+1:]...)
				return transitionID, nil
			}
		}
		return "", &definition.NotFoundError{EntityType: "transition", ID: transitionID}
	})
}

// AvailableTransitions returns the transitions leaving statusID in
// definition order.
func (e *Engine) AvailableTransitions(ctx context.Context, workflowID, statusID string) ([]definition.Transition, error) {
	ctx, span := tracer().Start(ctx, spanAvailable, trace.WithAttributes(
		attribute.String("workflow.id", workflowID),
		attribute.String("status.id", statusID),
	))
	defer span.End()

	wf, err := e.repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if _, ok := wf.Status(statusID); !ok {
		return nil, &definition.NotFoundError{EntityType: "status", ID: statusID}
	}
	return wf.TransitionsFrom(statusID), nil
}

// AttemptTransition checks whether entity may take the transition and, if
// so, reports the new status and the actions to run. The checks run in
// order: the entity must be in the source status (*InvalidTransitionError),
// the actor must hold one of the required permissions
// (*PermissionDeniedError), and every guard condition must hold. Failed
// guards are not an error: the result has Success false and lists them.
func (e *Engine) AttemptTransition(ctx context.Context, workflowID, transitionID string, entity condition.Entity, actorPermissions []string) (*TransitionResult, error) {
	ctx, span := tracer().Start(ctx, spanAttempt, trace.WithAttributes(
		attribute.String("workflow.id", workflowID),
		attribute.String("transition.id", transitionID),
	))
	defer span.End()
	start := time.Now()

	wf, err := e.repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	t, ok := wf.Transition(transitionID)
	if !ok {
		err := &definition.NotFoundError{EntityType: "transition", ID: transitionID}
		span.RecordError(err)
		return nil, err
	}

	current := e.currentStatus(entity)
	if current != t.FromStatus {
		err := &InvalidTransitionError{WorkflowID: workflowID, TransitionID: t.ID, Expected: t.FromStatus, Actual: current}
		e.reject(ctx, span, wf.ID, t, entity, OutcomeInvalidTransition, nil, start)
		return nil, err
	}
	if !permitted(t.Permissions, actorPermissions) {
		err := &PermissionDeniedError{TransitionID: t.ID, Required: append([]string(nil), t.Permissions...)}
		e.reject(ctx, span, wf.ID, t, entity, OutcomePermissionDenied, nil, start)
		return nil, err
	}

	result := &TransitionResult{TransitionID: t.ID, FromStatus: t.FromStatus}
	if failed := e.evaluator.EvaluateAll(t.Conditions, entity); len(failed) > 0 {
		result.FailedConditions = failed
		e.reject(ctx, span, wf.ID, t, entity, OutcomeConditionsFailed, failed, start)
		return result, nil
	}

	result.Success = true
	result.NewStatus = t.ToStatus
	result.ActionsToExecute = append([]definition.Action(nil), t.Actions...)

	e.metrics.RecordTransitionAttempt(wf.ID, OutcomeSuccess, time.Since(start))
	span.SetAttributes(attribute.String("transition.outcome", OutcomeSuccess))
	e.logger.DebugContext(ctx, "transition allowed", "workflow_id", wf.ID, "transition_id", t.ID,
		"from", t.FromStatus, "to", t.ToStatus, "actions", len(t.Actions))
	e.emit(ctx, eventbus.Event{
		Kind:       eventbus.TransitionCompleted,
		WorkflowID: wf.ID,
		EntityID:   entityID(entity),
		Payload:    transitionPayload(wf.ID, t, entity, true, nil),
	})
	return result, nil
}

// AutoTransitions returns the auto-executing transitions leaving the
// entity's current status that the actor may take and whose guards hold, in
// definition order.
func (e *Engine) AutoTransitions(ctx context.Context, workflowID string, entity condition.Entity, actorPermissions []string) ([]definition.Transition, error) {
	ctx, span := tracer().Start(ctx, spanAuto, trace.WithAttributes(attribute.String("workflow.id", workflowID)))
	defer span.End()

	wf, err := e.repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	current := e.currentStatus(entity)
	if _, ok := wf.Status(current); !ok {
		return nil, &definition.NotFoundError{EntityType: "status", ID: current}
	}

	eligible := make([]definition.Transition, 0)
	for _, t := range wf.TransitionsFrom(current) {
		if !t.AutoExecute || !permitted(t.Permissions, actorPermissions) {
			continue
		}
		if len(e.evaluator.EvaluateAll(t.Conditions, entity)) == 0 {
			eligible = append(eligible, t)
		}
	}
	span.SetAttributes(attribute.Int("transitions.eligible", len(eligible)))
	return eligible, nil
}

func (e *Engine) reject(ctx context.Context, span trace.Span, workflowID string, t definition.Transition,
	entity condition.Entity, outcome string, failed []condition.Failure, start time.Time) {
	e.metrics.RecordTransitionAttempt(workflowID, outcome, time.Since(start))
	span.SetAttributes(attribute.String("transition.outcome", outcome))
	if outcome != OutcomeConditionsFailed {
		span.SetStatus(codes.Error, outcome)
	}
	e.logger.DebugContext(ctx, "transition rejected", "workflow_id", workflowID, "transition_id", t.ID,
		"outcome", outcome, "failed_conditions", len(failed))
	e.emit(ctx, eventbus.Event{
		Kind:       eventbus.TransitionRejected,
		WorkflowID: workflowID,
		EntityID:   entityID(entity),
		Payload:    transitionPayload(workflowID, t, entity, false, failed),
	})
}

// currentStatus reads the status field. A missing or non-string value is
// reported as its printed form so it never matches a status id by accident.
func (e *Engine) currentStatus(entity condition.Entity) string {
	v, ok := condition.Resolve(entity, e.statusField)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// permitted is the set-intersection check. An empty requirement admits anyone.
func permitted(required, held []string) bool {
	if len(required) == 0 {
		return true
	}
	for _, r := range required {
		for _, h := range held {
			if r == h {
				return true
			}
		}
	}
	return false
}

func entityID(entity condition.Entity) string {
	if id, ok := entity["id"].(string); ok {
		return id
	}
	return ""
}

func transitionPayload(workflowID string, t definition.Transition, entity condition.Entity, success bool, failed []condition.Failure) eventbus.TransitionPayload {
	p := eventbus.TransitionPayload{
		WorkflowID:   workflowID,
		TransitionID: t.ID,
		FromStatus:   t.FromStatus,
		ToStatus:     t.ToStatus,
		EntityID:     entityID(entity),
		Success:      success,
	}
	for _, f := range failed {
		p.FailedConditions = append(p.FailedConditions, f.ConditionID)
	}
	if success {
		for _, a := range t.Actions {
			p.Actions = append(p.Actions, string(a.Type))
		}
	}
	return p
}
