// Package validation scores task entities against configurable rules.
//
// Every active rule is evaluated on every run, independently of the others;
// a rule whose field or operator does not fit the entity simply fails. The
// results feed a quality scorecard. Auto-fix actions are only ever applied
// when the engine was built with WithAutoFix(true).
package validation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/goclaw/taskflow/pkg/condition"
	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/eventbus"
	"github.com/goclaw/taskflow/pkg/logger"
	"github.com/goclaw/taskflow/pkg/storage"
)

// ErrAutoFixDisabled is returned by ApplyAutoFix when auto-fix is off.
var ErrAutoFixDisabled = errors.New("auto-fix is disabled")

// Repository is the rule persistence the engine needs.
type Repository interface {
	SaveRule(ctx context.Context, rule *definition.ValidationRule) error
	GetRule(ctx context.Context, id string) (*definition.ValidationRule, error)
	ListRules(ctx context.Context, filter *storage.RuleFilter) ([]*definition.ValidationRule, int, error)
	DeleteRule(ctx context.Context, id string) error
}

// MetricsRecorder receives engine measurements.
type MetricsRecorder interface {
	RecordValidationRun(duration time.Duration)
	RecordValidationResult(status, severity string)
	RecordQualityScore(score int)
	RecordAutoFix(outcome string)
	RecordDefinitionChange(kind, operation string)
}

type nopMetrics struct{}

func (nopMetrics) RecordValidationRun(time.Duration)     {}
func (nopMetrics) RecordValidationResult(string, string) {}
func (nopMetrics) RecordQualityScore(int)                {}
func (nopMetrics) RecordAutoFix(string)                  {}
func (nopMetrics) RecordDefinitionChange(string, string) {}

// Engine evaluates rules and administers the rule set.
type Engine struct {
	repo      Repository
	evaluator *condition.Evaluator
	logger    logger.Logger
	metrics   MetricsRecorder
	events    eventbus.Emitter
	now       func() time.Time
	autoFix   atomic.Bool
}

// New creates a validation engine over repo.
func New(repo Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:    repo,
		logger:  logger.Nop(),
		metrics: nopMetrics{},
		events:  eventbus.NopEmitter{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.evaluator == nil {
		e.evaluator = condition.NewEvaluator(
			condition.WithLogger(e.logger),
			condition.WithUnregisteredCustom(false),
		)
	}
	return e
}

// Evaluator returns the condition evaluator, for registering custom rules.
func (e *Engine) Evaluator() *condition.Evaluator {
	return e.evaluator
}

// AutoFixEnabled reports whether auto-fix may be applied.
func (e *Engine) AutoFixEnabled() bool {
	return e.autoFix.Load()
}

// SetAutoFix toggles auto-fix at runtime.
func (e *Engine) SetAutoFix(enabled bool) {
	if e.autoFix.Swap(enabled) != enabled {
		e.logger.Info("auto-fix toggled", "enabled", enabled)
	}
}

// RunValidation evaluates every active rule against entity, in rule order.
func (e *Engine) RunValidation(ctx context.Context, entity condition.Entity, rules []*definition.ValidationRule) []Result {
	_, span := tracer().Start(ctx, spanRun, trace.WithAttributes(attribute.Int("rules", len(rules))))
	defer span.End()
	start := time.Now()

	results := make([]Result, 0, len(rules))
	for _, rule := range rules {
		if rule == nil || !rule.IsActive {
			continue
		}
		res := e.evaluate(rule, entity)
		e.metrics.RecordValidationResult(string(res.Status), string(res.Severity))
		results = append(results, res)
	}

	e.metrics.RecordValidationRun(time.Since(start))
	span.SetAttributes(attribute.Int("results", len(results)))
	return results
}

func (e *Engine) evaluate(rule *definition.ValidationRule, entity condition.Entity) Result {
	outcome := e.evaluator.Evaluate(rule.Condition, entity)
	res := Result{
		RuleID:        rule.ID,
		RuleName:      rule.Name,
		Field:         rule.Condition.Field,
		FieldValue:    outcome.FieldValue,
		ExpectedValue: rule.Condition.Value,
		Severity:      rule.Severity,
		Category:      rule.Category,
	}
	if outcome.Satisfied {
		res.Status = StatusPass
		res.Message = fmt.Sprintf("%s passed", rule.Name)
		return res
	}

	res.Status = statusFor(rule.Type)
	res.Message = failureMessage(rule)
	res.CanAutoFix = rule.AutoFixable() && e.AutoFixEnabled()
	return res
}

// statusFor maps an unsatisfied rule's type to a result status. Error rules
// block like required ones.
func statusFor(t definition.RuleType) ResultStatus {
	switch t {
	case definition.RuleWarning:
		return StatusWarning
	case definition.RuleInfo:
		return StatusInfo
	default:
		return StatusFail
	}
}

func failureMessage(rule *definition.ValidationRule) string {
	switch {
	case rule.Description != "":
		return rule.Description
	case rule.Condition.Description != "":
		return rule.Condition.Description
	case rule.Condition.IsCustom():
		return fmt.Sprintf("%s failed", rule.Name)
	default:
		return fmt.Sprintf("%s: %s %s not satisfied", rule.Name, rule.Condition.Field, rule.Condition.Operator)
	}
}

// CanAutoFix reports whether result may be fixed right now: its rule
// declares an auto_fix action and auto-fix is enabled.
func (e *Engine) CanAutoFix(result Result) bool {
	return result.CanAutoFix && e.AutoFixEnabled()
}

// ApplyAutoFix returns a copy of entity with the rule's field set to its fix
// value. The entity is not re-validated; a fix that does not satisfy its own
// rule shows up as a failure on the caller's next run.
func (e *Engine) ApplyAutoFix(ctx context.Context, rule *definition.ValidationRule, entity condition.Entity) (condition.Entity, error) {
	_, span := tracer().Start(ctx, spanAutoFix, trace.WithAttributes(attribute.String("rule.id", rule.ID)))
	defer span.End()

	if !e.AutoFixEnabled() {
		e.metrics.RecordAutoFix("disabled")
		return nil, ErrAutoFixDisabled
	}
	if !rule.AutoFixable() {
		e.metrics.RecordAutoFix("not_fixable")
		return nil, definition.Invalid("rule", rule.ID, "action", "rule has no auto_fix action")
	}

	fixed, err := condition.SetPath(entity, rule.Condition.Field, rule.Action.Value)
	if err != nil {
		e.metrics.RecordAutoFix("failed")
		span.RecordError(err)
		return nil, fmt.Errorf("auto-fix rule %s: %w", rule.ID, err)
	}
	e.metrics.RecordAutoFix("applied")
	e.logger.DebugContext(ctx, "auto-fix applied", "rule_id", rule.ID, "field", rule.Condition.Field)
	return fixed, nil
}

// Validate runs the active stored rules against entity and scores the
// result.
func (e *Engine) Validate(ctx context.Context, entity condition.Entity) (*Report, error) {
	rules, _, err := e.repo.ListRules(ctx, &storage.RuleFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	results := e.RunValidation(ctx, entity, rules)
	report := buildReport(results, len(results))

	e.metrics.RecordQualityScore(report.Metrics.OverallScore)
	e.emitCompleted(ctx, entity, report)
	return report, nil
}

// AutoFix validates entity, applies every available fix once and validates
// the fixed entity again. It returns the fixed entity, the ids of the rules
// whose fixes were applied and the report for the fixed entity.
func (e *Engine) AutoFix(ctx context.Context, entity condition.Entity) (condition.Entity, []string, *Report, error) {
	if !e.AutoFixEnabled() {
		return nil, nil, nil, ErrAutoFixDisabled
	}
	rules, _, err := e.repo.ListRules(ctx, &storage.RuleFilter{ActiveOnly: true})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list rules: %w", err)
	}
	byID := make(map[string]*definition.ValidationRule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}

	fixed := condition.Clone(entity)
	applied := make([]string, 0)
	for _, res := range e.RunValidation(ctx, fixed, rules) {
		if !e.CanAutoFix(res) {
			continue
		}
		next, err := e.ApplyAutoFix(ctx, byID[res.RuleID], fixed)
		if err != nil {
			e.logger.WarnContext(ctx, "auto-fix skipped", "rule_id", res.RuleID, "error", err)
			continue
		}
		fixed = next
		applied = append(applied, res.RuleID)
	}

	results := e.RunValidation(ctx, fixed, rules)
	report := buildReport(results, len(results))
	e.metrics.RecordQualityScore(report.Metrics.OverallScore)
	e.emitCompleted(ctx, fixed, report)
	return fixed, applied, report, nil
}

func buildReport(results []Result, total int) *Report {
	report := &Report{
		Results: results,
		Metrics: ComputeQualityMetrics(results, total),
		Passed:  true,
	}
	for _, r := range results {
		if r.Status == StatusFail {
			report.Passed = false
			break
		}
	}
	return report
}

func (e *Engine) emitCompleted(ctx context.Context, entity condition.Entity, report *Report) {
	passed := 0
	for _, r := range report.Results {
		if r.Passed() {
			passed++
		}
	}
	entityID, _ := entity["id"].(string)
	_, err := e.events.Emit(ctx, eventbus.Event{
		Kind:     eventbus.ValidationCompleted,
		EntityID: entityID,
		Payload: eventbus.ValidationPayload{
			EntityID:     entityID,
			Results:      len(report.Results),
			Passed:       passed,
			OverallScore: report.Metrics.OverallScore,
			Issues:       report.Metrics.Issues.Map(),
		},
	})
	if err != nil {
		e.logger.WarnContext(ctx, "failed to emit validation event", "error", err)
	}
}
