// Package condition evaluates single-field predicates against task entities.
//
// Evaluation never fails: malformed paths, incompatible types and bad
// patterns make a condition unsatisfied and are logged for diagnostics, so a
// user-authored definition cannot abort a batch of evaluations.
package condition

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/goclaw/taskflow/pkg/logger"
)

// TypeField is the condition type for plain field predicates.
const TypeField = "field"

// Condition is a single-field predicate. A condition without Field is custom:
// it is evaluated by the CustomEvaluator registered for its Type.
type Condition struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Type        string   `json:"type,omitempty" yaml:"type,omitempty"`
	Field       string   `json:"field,omitempty" yaml:"field,omitempty"`
	Operator    Operator `json:"operator" yaml:"operator"`
	Value       any      `json:"value,omitempty" yaml:"value,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// IsCustom reports whether the condition has no interpretable field.
func (c Condition) IsCustom() bool {
	return c.Field == ""
}

// Result is the outcome of one evaluation.
type Result struct {
	Satisfied  bool `json:"satisfied"`
	FieldValue any  `json:"fieldValue"`
}

// CustomEvaluator decides conditions the engine cannot interpret itself.
type CustomEvaluator interface {
	Evaluate(cond Condition, entity Entity) Result
}

// CustomFunc adapts a function to CustomEvaluator.
type CustomFunc func(cond Condition, entity Entity) Result

// Evaluate calls f.
func (f CustomFunc) Evaluate(cond Condition, entity Entity) Result {
	return f(cond, entity)
}

// Evaluator applies conditions to entities. It is safe for concurrent use;
// the only mutable state is the custom evaluator registry and regex cache.
type Evaluator struct {
	logger logger.Logger

	// passUnregistered is the verdict for custom conditions with no evaluator.
	passUnregistered bool

	mu      sync.RWMutex
	customs map[string]CustomEvaluator

	patterns sync.Map // pattern string -> *regexp.Regexp
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for evaluation anomalies.
func WithLogger(log logger.Logger) Option {
	return func(e *Evaluator) {
		if log != nil {
			e.logger = log
		}
	}
}

// WithUnregisteredCustom sets the verdict for custom conditions that have no
// registered evaluator. The default is false (fail).
func WithUnregisteredCustom(pass bool) Option {
	return func(e *Evaluator) {
		e.passUnregistered = pass
	}
}

// WithCustom registers a custom evaluator for a condition type.
func WithCustom(conditionType string, ce CustomEvaluator) Option {
	return func(e *Evaluator) {
		e.customs[conditionType] = ce
	}
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		logger:  logger.Nop(),
		customs: make(map[string]CustomEvaluator),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds or replaces the custom evaluator for a condition type.
func (e *Evaluator) Register(conditionType string, ce CustomEvaluator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.customs[conditionType] = ce
}

func (e *Evaluator) custom(conditionType string) (CustomEvaluator, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ce, ok := e.customs[conditionType]
	return ce, ok
}

// Evaluate applies cond to entity.
func (e *Evaluator) Evaluate(cond Condition, entity Entity) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("condition evaluation panicked",
				"condition_id", cond.ID,
				"type", cond.Type,
				"panic", fmt.Sprint(r),
			)
			res = Result{Satisfied: false, FieldValue: res.FieldValue}
		}
	}()

	if cond.IsCustom() {
		return e.evaluateCustom(cond, entity)
	}

	value, _ := Resolve(entity, cond.Field)
	return Result{
		Satisfied:  e.apply(cond, value),
		FieldValue: value,
	}
}

// EvaluateAll evaluates every condition and returns the ones that failed, in
// order. It never short-circuits.
func (e *Evaluator) EvaluateAll(conds []Condition, entity Entity) []Failure {
	var failed []Failure
	for _, cond := range conds {
		res := e.Evaluate(cond, entity)
		if !res.Satisfied {
			failed = append(failed, Failure{
				ConditionID: cond.ID,
				Field:       cond.Field,
				Operator:    cond.Operator,
				Description: cond.Description,
				FieldValue:  res.FieldValue,
			})
		}
	}
	return failed
}

// Failure describes an unsatisfied condition.
type Failure struct {
	ConditionID string   `json:"conditionId"`
	Field       string   `json:"field,omitempty"`
	Operator    Operator `json:"operator,omitempty"`
	Description string   `json:"description,omitempty"`
	FieldValue  any      `json:"fieldValue"`
}

func (e *Evaluator) evaluateCustom(cond Condition, entity Entity) Result {
	if ce, ok := e.custom(cond.Type); ok {
		return ce.Evaluate(cond, entity)
	}
	e.logger.Debug("no evaluator registered for custom condition",
		"condition_id", cond.ID,
		"type", cond.Type,
		"verdict", e.passUnregistered,
	)
	return Result{Satisfied: e.passUnregistered}
}

func (e *Evaluator) apply(cond Condition, value any) bool {
	switch cond.Operator {
	case OpExists, OpIsNotEmpty:
		return present(value)

	case OpNotExists, OpIsEmpty:
		return !present(value)

	case OpEquals:
		return equal(value, cond.Value)

	case OpNotEquals:
		return !equal(value, cond.Value)

	case OpContains:
		ok, valid := e.contains(cond, value)
		return valid && ok

	case OpNotContains:
		ok, valid := e.contains(cond, value)
		return valid && !ok

	case OpGreaterThan, OpLessThan:
		left, lok := toNumber(value)
		right, rok := toNumber(cond.Value)
		if !lok || !rok {
			e.anomaly(cond, "non-numeric comparison", value)
			return false
		}
		if cond.Operator == OpGreaterThan {
			return left > right
		}
		return left < right

	case OpRegex:
		return e.matches(cond, value)

	case OpIn, OpNotIn:
		items, ok := sequence(cond.Value)
		if !ok {
			e.anomaly(cond, "membership value is not a list", cond.Value)
			return false
		}
		if cond.Operator == OpIn {
			return member(items, value)
		}
		return !member(items, value)

	default:
		e.anomaly(cond, "unknown operator", cond.Operator)
		return false
	}
}

// contains returns (result, valid). Strings match case-insensitively; lists
// test membership. Other kinds are invalid.
func (e *Evaluator) contains(cond Condition, value any) (bool, bool) {
	if s, ok := value.(string); ok {
		if cond.Value == nil {
			e.anomaly(cond, "contains without a value", nil)
			return false, false
		}
		needle, ok := cond.Value.(string)
		if !ok {
			needle = fmt.Sprint(cond.Value)
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(needle)), true
	}
	if items, ok := sequence(value); ok {
		return member(items, cond.Value), true
	}
	if value != nil {
		e.anomaly(cond, "contains on non-string, non-list value", value)
	}
	return false, false
}

func (e *Evaluator) matches(cond Condition, value any) bool {
	s, ok := value.(string)
	if !ok {
		if value != nil {
			e.anomaly(cond, "regex on non-string value", value)
		}
		return false
	}
	pattern, ok := cond.Value.(string)
	if !ok {
		e.anomaly(cond, "regex pattern is not a string", cond.Value)
		return false
	}
	re, err := e.compile(pattern)
	if err != nil {
		e.anomaly(cond, "invalid regex pattern", err.Error())
		return false
	}
	return re.MatchString(s)
}

func (e *Evaluator) compile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := e.patterns.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	e.patterns.Store(pattern, re)
	return re, nil
}

func (e *Evaluator) anomaly(cond Condition, reason string, value any) {
	e.logger.Warn("condition degraded to unsatisfied",
		"condition_id", cond.ID,
		"field", cond.Field,
		"operator", string(cond.Operator),
		"reason", reason,
		"value", fmt.Sprintf("%v", value),
	)
}
