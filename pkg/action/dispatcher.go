// Package action dispatches the declarative actions returned by a successful
// transition. Field updates are applied to a copy of the entity; every other
// built-in type is published on the event bus for the service that owns it.
package action

import (
	"context"
	"fmt"
	"sync"

	"github.com/goclaw/taskflow/pkg/condition"
	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/eventbus"
	"github.com/goclaw/taskflow/pkg/logger"
)

// Request is what a handler receives. Handlers that change the entity
// replace Entity; it is already a private copy.
type Request struct {
	Action       definition.Action
	WorkflowID   string
	TransitionID string
	EntityID     string
	Entity       condition.Entity
}

// Handler executes one action type.
type Handler interface {
	Handle(ctx context.Context, req *Request) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) error {
	return f(ctx, req)
}

// MetricsRecorder receives dispatch outcomes.
type MetricsRecorder interface {
	RecordActionDispatch(actionType, outcome string)
}

type nopMetrics struct{}

func (nopMetrics) RecordActionDispatch(string, string) {}

// Dispatch outcomes.
const (
	OutcomeHandled = "handled"
	OutcomeIgnored = "ignored"
	OutcomeFailed  = "failed"
)

// Outcome reports what happened to one action.
type Outcome struct {
	ActionID string                `json:"actionId"`
	Type     definition.ActionType `json:"type"`
	Outcome  string                `json:"outcome"`
	Error    string                `json:"error,omitempty"`
}

// Result is the entity after field updates plus one outcome per action.
type Result struct {
	Entity   condition.Entity `json:"entity"`
	Outcomes []Outcome        `json:"outcomes"`
}

// Target identifies where the actions came from.
type Target struct {
	WorkflowID   string
	TransitionID string
	Entity       condition.Entity
}

// Dispatcher routes actions to handlers by type. Unknown types are no-ops.
type Dispatcher struct {
	logger  logger.Logger
	metrics MetricsRecorder
	events  eventbus.Emitter

	mu       sync.RWMutex
	handlers map[definition.ActionType]Handler
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(log logger.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.logger = log
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithEvents sets the emitter the notification handlers publish on.
func WithEvents(emitter eventbus.Emitter) Option {
	return func(d *Dispatcher) {
		if emitter != nil {
			d.events = emitter
		}
	}
}

// NewDispatcher creates a dispatcher with the built-in handlers registered.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger:   logger.Nop(),
		metrics:  nopMetrics{},
		events:   eventbus.NopEmitter{},
		handlers: make(map[definition.ActionType]Handler),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.handlers[definition.ActionUpdateField] = HandlerFunc(updateField)
	publish := HandlerFunc(d.publish)
	for _, t := range []definition.ActionType{
		definition.ActionSendNotification,
		definition.ActionNotifyUser,
		definition.ActionShowWarning,
		definition.ActionRequireApproval,
		definition.ActionAssignUser,
		definition.ActionCreateTask,
	} {
		d.handlers[t] = publish
	}
	return d
}

// Register installs h for actionType, replacing any existing handler.
func (d *Dispatcher) Register(actionType definition.ActionType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[actionType] = h
}

func (d *Dispatcher) handler(actionType definition.ActionType) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[actionType]
	return h, ok
}

// Dispatch runs actions in order against a copy of target.Entity. A failing
// action is reported in its outcome and does not stop the rest.
func (d *Dispatcher) Dispatch(ctx context.Context, target Target, actions []definition.Action) *Result {
	entityID, _ := target.Entity["id"].(string)
	req := &Request{
		WorkflowID:   target.WorkflowID,
		TransitionID: target.TransitionID,
		EntityID:     entityID,
		Entity:       condition.Clone(target.Entity),
	}
	if req.Entity == nil {
		req.Entity = condition.Entity{}
	}

	result := &Result{Outcomes: make([]Outcome, 0, len(actions))}
	for _, a := range actions {
		out := Outcome{ActionID: a.ID, Type: a.Type}
		h, ok := d.handler(a.Type)
		if !ok {
			d.logger.DebugContext(ctx, "no handler for action type", "action_id", a.ID, "type", string(a.Type))
			out.Outcome = OutcomeIgnored
		} else {
			req.Action = a
			if err := h.Handle(ctx, req); err != nil {
				d.logger.WarnContext(ctx, "action failed", "action_id", a.ID, "type", string(a.Type), "error", err)
				out.Outcome = OutcomeFailed
				out.Error = err.Error()
			} else {
				out.Outcome = OutcomeHandled
			}
		}
		d.metrics.RecordActionDispatch(string(a.Type), out.Outcome)
		result.Outcomes = append(result.Outcomes, out)
	}
	result.Entity = req.Entity
	return result
}

func updateField(_ context.Context, req *Request) error {
	if req.Action.Field == "" {
		return fmt.Errorf("update_field action %s has no field", req.Action.ID)
	}
	updated, err := condition.SetPath(req.Entity, req.Action.Field, req.Action.Value)
	if err != nil {
		return err
	}
	req.Entity = updated
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, req *Request) error {
	_, err := d.events.Emit(ctx, eventbus.Event{
		Kind:       eventbus.ActionDispatched,
		WorkflowID: req.WorkflowID,
		EntityID:   req.EntityID,
		Payload: eventbus.ActionPayload{
			ActionID:     req.Action.ID,
			ActionType:   string(req.Action.Type),
			WorkflowID:   req.WorkflowID,
			TransitionID: req.TransitionID,
			EntityID:     req.EntityID,
			Field:        req.Action.Field,
			Value:        req.Action.Value,
			Description:  req.Action.Description,
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s action: %w", req.Action.Type, err)
	}
	return nil
}
