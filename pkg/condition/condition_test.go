package condition

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func field(op Operator, path string, value any) Condition {
	return Condition{ID: "c-" + string(op), Type: TypeField, Field: path, Operator: op, Value: value}
}

func TestEvaluate_Exists(t *testing.T) {
	e := NewEvaluator()
	cond := field(OpExists, "title", nil)

	tests := []struct {
		name   string
		entity Entity
		want   bool
	}{
		{"non-empty title", Entity{"title": "Fix bug"}, true},
		{"empty title", Entity{"title": ""}, false},
		{"missing title", Entity{}, false},
		{"null title", Entity{"title": nil}, false},
		{"zero is present", Entity{"title": 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Evaluate(cond, tt.entity).Satisfied)
			assert.Equal(t, !tt.want, e.Evaluate(field(OpNotExists, "title", nil), tt.entity).Satisfied)
			assert.Equal(t, tt.want, e.Evaluate(field(OpIsNotEmpty, "title", nil), tt.entity).Satisfied)
			assert.Equal(t, !tt.want, e.Evaluate(field(OpIsEmpty, "title", nil), tt.entity).Satisfied)
		})
	}
}

func TestEvaluate_Operators(t *testing.T) {
	e := NewEvaluator()
	entity := Entity{
		"title":    "Implement Login page",
		"priority": "high",
		"labels":   []any{"frontend", "auth"},
		"metadata": map[string]any{"points": float64(5), "estimate": "8"},
		"assignee": nil,
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"equals string", field(OpEquals, "priority", "high"), true},
		{"equals is strict across types", field(OpEquals, "metadata.estimate", 8), false},
		{"equals int vs json float", field(OpEquals, "metadata.points", 5), true},
		{"not equals", field(OpNotEquals, "priority", "low"), true},
		{"equals nil to missing", field(OpEquals, "missing", nil), true},
		{"contains substring case-insensitive", field(OpContains, "title", "LOGIN"), true},
		{"contains list member", field(OpContains, "labels", "auth"), true},
		{"contains list non-member", field(OpContains, "labels", "backend"), false},
		{"not contains list", field(OpNotContains, "labels", "backend"), true},
		{"not contains on number is invalid", field(OpNotContains, "metadata.points", "x"), false},
		{"greater than number", field(OpGreaterThan, "metadata.points", 3), true},
		{"greater than coerces numeric string", field(OpGreaterThan, "metadata.estimate", "7.5"), true},
		{"less than", field(OpLessThan, "metadata.points", 5), false},
		{"greater than non-numeric is false", field(OpGreaterThan, "title", 1), false},
		{"less than non-numeric is false", field(OpLessThan, "title", 1), false},
		{"greater than missing is false", field(OpGreaterThan, "missing", 1), false},
		{"regex match", field(OpRegex, "title", `^Implement\s`), true},
		{"regex no match", field(OpRegex, "title", `^Fix`), false},
		{"regex invalid pattern", field(OpRegex, "title", `([`), false},
		{"regex non-string value", field(OpRegex, "metadata.points", `5`), false},
		{"in", field(OpIn, "priority", []any{"high", "critical"}), true},
		{"in typed slice", field(OpIn, "priority", []string{"low"}), false},
		{"not in", field(OpNotIn, "priority", []any{"low", "medium"}), true},
		{"in with scalar value is malformed", field(OpIn, "priority", "high"), false},
		{"not in with scalar value is malformed", field(OpNotIn, "priority", "low"), false},
		{"unknown operator", field(Operator("between"), "priority", "high"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Evaluate(tt.cond, entity).Satisfied)
		})
	}
}

func TestEvaluate_ReportsFieldValue(t *testing.T) {
	e := NewEvaluator()
	res := e.Evaluate(field(OpGreaterThan, "metadata.points", 10), Entity{
		"metadata": map[string]any{"points": 3},
	})

	assert.False(t, res.Satisfied)
	assert.Equal(t, 3, res.FieldValue)
}

func TestEvaluate_CustomConditions(t *testing.T) {
	cond := Condition{ID: "sprint-capacity", Type: "sprint_capacity"}

	assert.False(t, NewEvaluator().Evaluate(cond, Entity{}).Satisfied,
		"unregistered custom conditions fail by default")
	assert.True(t, NewEvaluator(WithUnregisteredCustom(true)).Evaluate(cond, Entity{}).Satisfied)

	e := NewEvaluator()
	e.Register("sprint_capacity", CustomFunc(func(_ Condition, entity Entity) Result {
		points, _ := Resolve(entity, "points")
		n, _ := toNumber(points)
		return Result{Satisfied: n <= 13, FieldValue: points}
	}))

	assert.True(t, e.Evaluate(cond, Entity{"points": 8}).Satisfied)
	assert.False(t, e.Evaluate(cond, Entity{"points": 21}).Satisfied)
}

func TestEvaluate_PanickingCustomDegrades(t *testing.T) {
	e := NewEvaluator(WithCustom("boom", CustomFunc(func(Condition, Entity) Result {
		panic("broken plugin")
	})))

	res := e.Evaluate(Condition{ID: "c", Type: "boom"}, Entity{})
	assert.False(t, res.Satisfied)
}

func TestEvaluateAll_NeverShortCircuits(t *testing.T) {
	e := NewEvaluator()
	conds := []Condition{
		field(OpExists, "title", nil),
		field(OpExists, "assignee", nil),
		field(OpGreaterThan, "points", 0),
	}

	failed := e.EvaluateAll(conds, Entity{"title": "x"})
	require.Len(t, failed, 2)
	assert.Equal(t, "assignee", failed[0].Field)
	assert.Equal(t, "points", failed[1].Field)
}

func TestOperator_Parse(t *testing.T) {
	for _, op := range Operators {
		parsed, err := ParseOperator(string(op))
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}

	_, err := ParseOperator("matches")
	assert.Error(t, err)

	var cond Condition
	err = json.Unmarshal([]byte(`{"id":"c","field":"title","operator":"bogus"}`), &cond)
	assert.Error(t, err)
}

func TestOperator_AllowedIn(t *testing.T) {
	assert.True(t, OpRegex.AllowedIn(ScopeRule))
	assert.False(t, OpRegex.AllowedIn(ScopeTransition))
	assert.True(t, OpNotIn.AllowedIn(ScopeTransition))
	assert.True(t, OpExists.AllowedIn(ScopeTransition))
	assert.False(t, Operator("nope").AllowedIn(ScopeRule))
}
