package condition

import (
	"encoding/json"
	"fmt"
)

// Operator is the comparison applied by a Condition. The set is closed:
// ParseOperator rejects anything not listed here.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIsEmpty     Operator = "is_empty"
	OpIsNotEmpty  Operator = "is_not_empty"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "not_exists"
	OpRegex       Operator = "regex"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
)

// Operators lists every supported operator.
var Operators = []Operator{
	OpEquals, OpNotEquals,
	OpContains, OpNotContains,
	OpGreaterThan, OpLessThan,
	OpIsEmpty, OpIsNotEmpty,
	OpExists, OpNotExists,
	OpRegex,
	OpIn, OpNotIn,
}

// Scope names the kind of definition a condition belongs to.
type Scope int

const (
	// ScopeTransition covers workflow transition guards and automations.
	ScopeTransition Scope = iota
	// ScopeRule covers validation rule predicates.
	ScopeRule
)

func (s Scope) String() string {
	switch s {
	case ScopeTransition:
		return "transition"
	case ScopeRule:
		return "rule"
	default:
		return "unknown"
	}
}

// ParseOperator converts a string into an Operator.
func ParseOperator(s string) (Operator, error) {
	op := Operator(s)
	if !op.Valid() {
		return "", fmt.Errorf("unknown condition operator %q", s)
	}
	return op, nil
}

// Valid reports whether op is one of the known operators.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpGreaterThan, OpLessThan,
		OpIsEmpty, OpIsNotEmpty, OpExists, OpNotExists, OpRegex, OpIn, OpNotIn:
		return true
	default:
		return false
	}
}

// AllowedIn reports whether op may be used by definitions of the given scope.
// Regex matching is reserved for validation rules.
func (op Operator) AllowedIn(scope Scope) bool {
	if !op.Valid() {
		return false
	}
	if op == OpRegex {
		return scope == ScopeRule
	}
	return true
}

// NeedsValue reports whether the operator compares against Condition.Value.
func (op Operator) NeedsValue() bool {
	switch op {
	case OpIsEmpty, OpIsNotEmpty, OpExists, OpNotExists:
		return false
	default:
		return true
	}
}

// UnmarshalJSON rejects unknown operators at decode time.
func (op *Operator) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOperator(s)
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// UnmarshalYAML rejects unknown operators in definition files.
func (op *Operator) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseOperator(s)
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}
