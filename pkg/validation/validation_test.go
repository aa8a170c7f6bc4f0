package validation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/taskflow/pkg/condition"
	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/eventbus"
	"github.com/goclaw/taskflow/pkg/storage"
	"github.com/goclaw/taskflow/pkg/storage/memory"
)

type recordingMetrics struct {
	mu      sync.Mutex
	runs    int
	results map[string]int
	scores  []int
	fixes   []string
	changes []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{results: make(map[string]int)}
}

func (m *recordingMetrics) RecordValidationRun(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
}

func (m *recordingMetrics) RecordValidationResult(status, severity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[status]++
}

func (m *recordingMetrics) RecordQualityScore(score int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = append(m.scores, score)
}

func (m *recordingMetrics) RecordAutoFix(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixes = append(m.fixes, outcome)
}

func (m *recordingMetrics) RecordDefinitionChange(kind, op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, kind+"."+op)
}

type recordingEmitter struct {
	events []eventbus.Event
}

func (r *recordingEmitter) Emit(_ context.Context, ev eventbus.Event) (eventbus.Envelope, error) {
	r.events = append(r.events, ev)
	return eventbus.Envelope{}, nil
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, storage.Storage) {
	t.Helper()
	store := memory.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })
	return New(store, opts...), store
}

func rule(id string, typ definition.RuleType, sev definition.Severity, cond condition.Condition) *definition.ValidationRule {
	cond.ID = id + "-cond"
	return &definition.ValidationRule{
		ID:        id,
		Name:      id,
		Type:      typ,
		Category:  definition.RuleContent,
		Severity:  sev,
		IsActive:  true,
		IsCustom:  true,
		Condition: cond,
	}
}

func titleRequired() *definition.ValidationRule {
	return rule("title-required", definition.RuleRequired, definition.SeverityCritical,
		condition.Condition{Field: "title", Operator: condition.OpExists})
}

func TestRunValidation_TitleRequired(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	rules := []*definition.ValidationRule{titleRequired()}

	tests := []struct {
		name   string
		entity condition.Entity
		want   ResultStatus
	}{
		{"empty title", condition.Entity{"title": ""}, StatusFail},
		{"missing title", condition.Entity{}, StatusFail},
		{"title present", condition.Entity{"title": "Implement login"}, StatusPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := e.RunValidation(ctx, tt.entity, rules)
			require.Len(t, results, 1)
			assert.Equal(t, tt.want, results[0].Status)
			assert.Equal(t, "title-required", results[0].RuleID)
			assert.Equal(t, definition.SeverityCritical, results[0].Severity)
		})
	}
}

func TestRunValidation_StatusMapping(t *testing.T) {
	e, _ := newTestEngine(t)
	missing := condition.Condition{Field: "nope", Operator: condition.OpExists}

	rules := []*definition.ValidationRule{
		rule("req", definition.RuleRequired, definition.SeverityHigh, missing),
		rule("warn", definition.RuleWarning, definition.SeverityMedium, missing),
		rule("info", definition.RuleInfo, definition.SeverityLow, missing),
		rule("err", definition.RuleError, definition.SeverityHigh, missing),
	}
	results := e.RunValidation(context.Background(), condition.Entity{}, rules)
	require.Len(t, results, 4)
	assert.Equal(t, StatusFail, results[0].Status)
	assert.Equal(t, StatusWarning, results[1].Status)
	assert.Equal(t, StatusInfo, results[2].Status)
	assert.Equal(t, StatusFail, results[3].Status)
}

func TestRunValidation_EveryActiveRuleOnce(t *testing.T) {
	metrics := newRecordingMetrics()
	e, _ := newTestEngine(t, WithMetrics(metrics))

	inactive := rule("inactive", definition.RuleRequired, definition.SeverityLow,
		condition.Condition{Field: "title", Operator: condition.OpExists})
	inactive.IsActive = false

	rules := []*definition.ValidationRule{
		titleRequired(),
		rule("bad-regex", definition.RuleWarning, definition.SeverityLow,
			condition.Condition{Field: "title", Operator: condition.OpRegex, Value: "(["}),
		rule("bad-number", definition.RuleWarning, definition.SeverityLow,
			condition.Condition{Field: "title", Operator: condition.OpGreaterThan, Value: 3}),
		inactive,
		rule("custom", definition.RuleRequired, definition.SeverityHigh,
			condition.Condition{Type: "has_linked_pr"}),
		rule("points", definition.RuleInfo, definition.SeverityLow,
			condition.Condition{Field: "metadata.points", Operator: condition.OpGreaterThan, Value: 2}),
	}

	results := e.RunValidation(context.Background(), condition.Entity{"title": "", "metadata": map[string]any{"points": 5}}, rules)
	require.Len(t, results, 5)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.RuleID
	}
	assert.Equal(t, []string{"title-required", "bad-regex", "bad-number", "custom", "points"}, ids)
	assert.Equal(t, StatusFail, results[3].Status, "custom rules without an evaluator fail")
	assert.Equal(t, StatusPass, results[4].Status)
	assert.Equal(t, 5, results[4].FieldValue)
	assert.Equal(t, 1, metrics.runs)
	assert.Equal(t, 5, metrics.results["pass"]+metrics.results["fail"]+metrics.results["warning"]+metrics.results["info"])
}

func TestRunValidation_CustomEvaluator(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Evaluator().Register("has_linked_pr", condition.CustomFunc(func(_ condition.Condition, entity condition.Entity) condition.Result {
		pr, ok := entity["pullRequest"]
		return condition.Result{Satisfied: ok && pr != nil, FieldValue: pr}
	}))

	rules := []*definition.ValidationRule{
		rule("custom", definition.RuleRequired, definition.SeverityHigh, condition.Condition{Type: "has_linked_pr"}),
	}
	results := e.RunValidation(context.Background(), condition.Entity{"pullRequest": "#12"}, rules)
	require.Len(t, results, 1)
	assert.Equal(t, StatusPass, results[0].Status)
}

func TestComputeQualityMetrics(t *testing.T) {
	pass := func(sev definition.Severity) Result { return Result{Status: StatusPass, Severity: sev} }
	fail := func(status ResultStatus, sev definition.Severity) Result { return Result{Status: status, Severity: sev} }

	tests := []struct {
		name    string
		results []Result
		total   int
		want    QualityMetrics
	}{
		{
			name:  "no rules",
			total: 0,
			want:  QualityMetrics{Completeness: 100, Clarity: 100, Feasibility: 100, PriorityAlignment: 100, OverallScore: 100},
		},
		{
			name:    "all passing",
			results: []Result{pass(definition.SeverityHigh), pass(definition.SeverityLow)},
			total:   2,
			want:    QualityMetrics{Completeness: 100, Clarity: 100, Feasibility: 100, PriorityAlignment: 100, OverallScore: 100},
		},
		{
			name:    "one critical failure",
			results: []Result{fail(StatusFail, definition.SeverityCritical)},
			total:   1,
			want: QualityMetrics{Completeness: 0, Clarity: 100, Feasibility: 75, PriorityAlignment: 100, OverallScore: 69,
				Issues: IssueCounts{Critical: 1}},
		},
		{
			name: "mixed",
			results: []Result{
				pass(definition.SeverityLow),
				fail(StatusWarning, definition.SeverityMedium),
				fail(StatusWarning, definition.SeverityHigh),
				fail(StatusInfo, definition.SeverityLow),
			},
			total: 3,
			// completeness 33.33, clarity 80, feasibility 85, alignment 95 -> 73.33
			want: QualityMetrics{Completeness: 33, Clarity: 80, Feasibility: 85, PriorityAlignment: 95, OverallScore: 73,
				Issues: IssueCounts{High: 1, Medium: 1, Low: 1}},
		},
		{
			name: "clamped",
			results: []Result{
				fail(StatusFail, definition.SeverityCritical), fail(StatusFail, definition.SeverityCritical),
				fail(StatusFail, definition.SeverityCritical), fail(StatusFail, definition.SeverityCritical),
				fail(StatusFail, definition.SeverityCritical),
			},
			total: 5,
			want: QualityMetrics{Completeness: 0, Clarity: 100, Feasibility: 0, PriorityAlignment: 100, OverallScore: 50,
				Issues: IssueCounts{Critical: 5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeQualityMetrics(tt.results, tt.total))
		})
	}
}

func TestComputeQualityMetrics_RoundsOverallOnce(t *testing.T) {
	// 5 of 8 passing with one medium issue: completeness 62.5, alignment 95.
	// The unrounded average is 89.375; averaging the rounded components
	// would give 89.5 and round up to 90.
	var results []Result
	for i := 0; i < 5; i++ {
		results = append(results, Result{Status: StatusPass})
	}
	results = append(results,
		Result{Status: StatusInfo, Severity: definition.SeverityMedium},
		Result{Status: StatusInfo, Severity: definition.SeverityLow},
		Result{Status: StatusInfo, Severity: definition.SeverityLow},
	)

	m := ComputeQualityMetrics(results, 8)
	assert.Equal(t, 63, m.Completeness)
	assert.Equal(t, 95, m.PriorityAlignment)
	assert.Equal(t, 89, m.OverallScore)
	assert.Equal(t, IssueCounts{Medium: 1, Low: 2}, m.Issues)
}

func TestAutoFix_DisabledByDefault(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	rules := DefaultRules()

	results := e.RunValidation(ctx, condition.Entity{"title": "A task title here"}, rules)
	for _, r := range results {
		assert.False(t, r.CanAutoFix, r.RuleID)
		assert.False(t, e.CanAutoFix(r))
	}

	priority := findRule(t, rules, RulePriorityValue)
	_, err := e.ApplyAutoFix(ctx, priority, condition.Entity{})
	require.ErrorIs(t, err, ErrAutoFixDisabled)
}

func TestApplyAutoFix(t *testing.T) {
	metrics := newRecordingMetrics()
	e, _ := newTestEngine(t, WithAutoFix(true), WithMetrics(metrics))
	ctx := context.Background()
	rules := DefaultRules()
	priority := findRule(t, rules, RulePriorityValue)

	entity := condition.Entity{"title": "Implement login page", "priority": "urgent"}
	results := e.RunValidation(ctx, entity, []*definition.ValidationRule{priority})
	require.Len(t, results, 1)
	assert.Equal(t, StatusFail, results[0].Status)
	assert.True(t, e.CanAutoFix(results[0]))

	fixed, err := e.ApplyAutoFix(ctx, priority, entity)
	require.NoError(t, err)
	assert.Equal(t, "medium", fixed["priority"])
	assert.Equal(t, "urgent", entity["priority"], "input entity is not modified")

	results = e.RunValidation(ctx, fixed, []*definition.ValidationRule{priority})
	assert.Equal(t, StatusPass, results[0].Status)

	title := findRule(t, rules, RuleTitleRequired)
	_, err = e.ApplyAutoFix(ctx, title, entity)
	var verr *definition.ValidationError
	require.ErrorAs(t, err, &verr)

	assert.Equal(t, []string{"applied", "not_fixable"}, metrics.fixes)

	e.SetAutoFix(false)
	assert.False(t, e.CanAutoFix(Result{CanAutoFix: true}))
}

func TestValidateReport(t *testing.T) {
	events := &recordingEmitter{}
	metrics := newRecordingMetrics()
	e, _ := newTestEngine(t, WithEvents(events), WithMetrics(metrics))
	ctx := context.Background()
	for _, r := range DefaultRules() {
		_, err := e.ImportRule(ctx, r)
		require.NoError(t, err)
	}
	_, err := e.SetActive(ctx, RuleDueDate, false)
	require.NoError(t, err)

	report, err := e.Validate(ctx, condition.Entity{
		"id":                 "task-9",
		"title":              "Implement OAuth login",
		"description":        "Support Google sign-in",
		"acceptanceCriteria": []any{"user can log in"},
		"storyPoints":        3,
		"priority":           "high",
		"assigneeId":         "u1",
	})
	require.NoError(t, err)

	assert.Len(t, report.Results, len(DefaultRules())-1)
	assert.True(t, report.Passed)
	assert.Equal(t, 100, report.Metrics.OverallScore)
	assert.Equal(t, []int{100}, metrics.scores)

	require.Len(t, events.events, 1)
	assert.Equal(t, eventbus.ValidationCompleted, events.events[0].Kind)
	payload := events.events[0].Payload.(eventbus.ValidationPayload)
	assert.Equal(t, "task-9", payload.EntityID)
	assert.Equal(t, len(report.Results), payload.Passed)
}

func TestValidateReport_Failing(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	for _, r := range DefaultRules() {
		_, err := e.ImportRule(ctx, r)
		require.NoError(t, err)
	}

	report, err := e.Validate(ctx, condition.Entity{"title": ""})
	require.NoError(t, err)
	assert.False(t, report.Passed)
	assert.Less(t, report.Metrics.OverallScore, 100)
	assert.Equal(t, 1, report.Metrics.Issues.Critical)
}

func TestAutoFixConvenience(t *testing.T) {
	e, _ := newTestEngine(t, WithAutoFix(true))
	ctx := context.Background()
	for _, r := range DefaultRules() {
		_, err := e.ImportRule(ctx, r)
		require.NoError(t, err)
	}

	fixed, applied, report, err := e.AutoFix(ctx, condition.Entity{"title": "Implement OAuth login"})
	require.NoError(t, err)
	assert.Equal(t, []string{RulePriorityValue}, applied)
	assert.Equal(t, "medium", fixed["priority"])
	for _, r := range report.Results {
		if r.RuleID == RulePriorityValue {
			assert.Equal(t, StatusPass, r.Status)
		}
	}

	e.SetAutoFix(false)
	_, _, _, err = e.AutoFix(ctx, condition.Entity{})
	assert.True(t, errors.Is(err, ErrAutoFixDisabled))
}

func TestRuleAdministration(t *testing.T) {
	metrics := newRecordingMetrics()
	e, store := newTestEngine(t, WithMetrics(metrics))
	ctx := context.Background()

	created, err := e.CreateRule(ctx, &definition.ValidationRule{
		ID:        "ignored",
		Name:      "Has labels",
		Type:      definition.RuleWarning,
		Category:  definition.RuleQuality,
		Severity:  definition.SeverityLow,
		IsActive:  true,
		Condition: condition.Condition{ID: "labels", Field: "labels", Operator: condition.OpIsNotEmpty},
		CreatedBy: "alice",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", created.ID)
	assert.True(t, created.IsCustom)
	assert.False(t, created.CreatedAt.IsZero())

	update := created.Clone()
	update.Name = "Labelled"
	update.IsCustom = false
	update.CreatedBy = "mallory"
	updated, err := e.UpdateRule(ctx, created.ID, update)
	require.NoError(t, err)
	assert.Equal(t, "Labelled", updated.Name)
	assert.True(t, updated.IsCustom)
	assert.Equal(t, "alice", updated.CreatedBy)

	off, err := e.SetActive(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	active, total, err := e.ListRules(ctx, &storage.RuleFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, active)

	require.NoError(t, e.DeleteRule(ctx, created.ID))
	_, err = store.GetRule(ctx, created.ID)
	var nf *definition.NotFoundError
	require.ErrorAs(t, err, &nf)

	assert.Equal(t, []string{"rule.create", "rule.update", "rule.deactivate", "rule.delete"}, metrics.changes)
}

func TestRuleAdministration_Invalid(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	var verr *definition.ValidationError
	_, err := e.CreateRule(ctx, &definition.ValidationRule{
		Name:      "Bad",
		Type:      "fatal",
		Category:  definition.RuleQuality,
		Severity:  definition.SeverityLow,
		Condition: condition.Condition{ID: "c", Field: "title", Operator: condition.OpExists},
	})
	require.ErrorAs(t, err, &verr)

	var nf *definition.NotFoundError
	_, err = e.GetRule(ctx, "ghost")
	require.ErrorAs(t, err, &nf)
	_, err = e.SetActive(ctx, "ghost", true)
	require.ErrorAs(t, err, &nf)
}

func TestBuiltinRulesProtected(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	for _, r := range DefaultRules() {
		_, err := e.ImportRule(ctx, r)
		require.NoError(t, err)
	}

	var locked *definition.LockedEntityError
	require.ErrorAs(t, e.DeleteRule(ctx, RuleTitleRequired), &locked)

	_, err := e.UpdateRule(ctx, RuleTitleRequired, titleRequired())
	require.ErrorAs(t, err, &locked)

	off, err := e.SetActive(ctx, RuleTitleRequired, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)
}

func TestDefaultRulesValid(t *testing.T) {
	seen := make(map[string]bool)
	for _, r := range DefaultRules() {
		require.NoError(t, r.Validate(), r.ID)
		assert.False(t, r.IsCustom)
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
}

func findRule(t *testing.T, rules []*definition.ValidationRule, id string) *definition.ValidationRule {
	t.Helper()
	for _, r := range rules {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("rule %s not found", id)
	return nil
}
