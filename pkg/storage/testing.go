package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goclaw/taskflow/pkg/condition"
	"github.com/goclaw/taskflow/pkg/definition"
)

// StorageTestSuite defines a test suite that can be run against any Storage implementation.
type StorageTestSuite struct {
	NewStorage func(t *testing.T) Storage
}

// RunAllTests runs all storage tests against the provided storage implementation.
func (s *StorageTestSuite) RunAllTests(t *testing.T) {
	t.Run("WorkflowCRUD", s.TestWorkflowCRUD)
	t.Run("WorkflowRoundTrip", s.TestWorkflowRoundTrip)
	t.Run("ListWorkflowsWithFilter", s.TestListWorkflowsWithFilter)
	t.Run("ListWorkflowsWithPagination", s.TestListWorkflowsWithPagination)
	t.Run("RuleCRUD", s.TestRuleCRUD)
	t.Run("ListRulesWithFilter", s.TestListRulesWithFilter)
	t.Run("ConcurrentAccess", s.TestConcurrentAccess)
	t.Run("ErrorHandling", s.TestErrorHandling)
}

// SampleWorkflow returns a small valid workflow used by the suite.
func SampleWorkflow(id string, created time.Time) *definition.Workflow {
	return &definition.Workflow{
		ID:   id,
		Name: "Workflow " + id,
		Statuses: []definition.Status{
			{ID: "todo", Name: "To Do", Category: definition.CategoryTodo, Order: 0},
			{ID: "done", Name: "Done", Category: definition.CategoryDone, Order: 1, IsLocked: true},
		},
		Transitions: []definition.Transition{
			{
				ID: "finish", FromStatus: "todo", ToStatus: "done", Name: "Finish",
				Conditions: []condition.Condition{
					{ID: "has-title", Field: "title", Operator: condition.OpExists},
				},
				Actions:     []definition.Action{{ID: "notify", Type: definition.ActionSendNotification}},
				Permissions: []string{"developer"},
			},
		},
		DefaultStatusID: "todo",
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

// SampleRule returns a small valid rule used by the suite.
func SampleRule(id string, created time.Time) *definition.ValidationRule {
	return &definition.ValidationRule{
		ID:        id,
		Name:      "Rule " + id,
		Type:      definition.RuleRequired,
		Category:  definition.RuleContent,
		Severity:  definition.SeverityHigh,
		IsActive:  true,
		IsCustom:  true,
		Condition: condition.Condition{ID: id + "-cond", Field: "title", Operator: condition.OpExists},
		CreatedAt: created,
		CreatedBy: "tester",
	}
}

// TestWorkflowCRUD tests basic workflow CRUD operations.
func (s *StorageTestSuite) TestWorkflowCRUD(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	wf := SampleWorkflow("wf-1", time.Now().UTC())

	if err := store.SaveWorkflow(ctx, wf); err != nil {
		t.Fatalf("SaveWorkflow failed: %v", err)
	}

	retrieved, err := store.GetWorkflow(ctx, "wf-1")
	if err != nil {
		t.Fatalf("GetWorkflow failed: %v", err)
	}
	if retrieved.Name != wf.Name {
		t.Errorf("expected Name %s, got %s", wf.Name, retrieved.Name)
	}

	// Mutating the returned copy must not leak into storage.
	retrieved.Statuses[0].Name = "Backlog"
	again, err := store.GetWorkflow(ctx, "wf-1")
	if err != nil {
		t.Fatalf("GetWorkflow failed: %v", err)
	}
	if again.Statuses[0].Name != "To Do" {
		t.Errorf("stored workflow changed through a returned copy: %s", again.Statuses[0].Name)
	}

	retrieved.Name = "Renamed"
	if err := store.SaveWorkflow(ctx, retrieved); err != nil {
		t.Fatalf("SaveWorkflow (update) failed: %v", err)
	}
	updated, err := store.GetWorkflow(ctx, "wf-1")
	if err != nil {
		t.Fatalf("GetWorkflow (after update) failed: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Errorf("expected Name Renamed, got %s", updated.Name)
	}

	if err := store.DeleteWorkflow(ctx, "wf-1"); err != nil {
		t.Fatalf("DeleteWorkflow failed: %v", err)
	}
	if _, err := store.GetWorkflow(ctx, "wf-1"); err == nil {
		t.Error("expected error when getting deleted workflow")
	}
}

// TestWorkflowRoundTrip checks that nested transition data survives storage.
func (s *StorageTestSuite) TestWorkflowRoundTrip(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.SaveWorkflow(ctx, SampleWorkflow("wf-rt", time.Now().UTC())); err != nil {
		t.Fatalf("SaveWorkflow failed: %v", err)
	}

	wf, err := store.GetWorkflow(ctx, "wf-rt")
	if err != nil {
		t.Fatalf("GetWorkflow failed: %v", err)
	}
	if len(wf.Transitions) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(wf.Transitions))
	}
	tr := wf.Transitions[0]
	if tr.FromStatus != "todo" || tr.ToStatus != "done" {
		t.Errorf("unexpected transition endpoints %s -> %s", tr.FromStatus, tr.ToStatus)
	}
	if len(tr.Conditions) != 1 || tr.Conditions[0].Operator != condition.OpExists {
		t.Errorf("conditions not preserved: %+v", tr.Conditions)
	}
	if len(tr.Permissions) != 1 || tr.Permissions[0] != "developer" {
		t.Errorf("permissions not preserved: %v", tr.Permissions)
	}
	if !wf.Statuses[1].IsLocked {
		t.Error("expected locked flag to be preserved")
	}
}

// TestListWorkflowsWithFilter tests workflow listing with category filters.
func (s *StorageTestSuite) TestListWorkflowsWithFilter(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Now().UTC()
	categories := []string{"bug", "story", "bug", "epic"}
	for i, category := range categories {
		wf := SampleWorkflow(fmt.Sprintf("wf-%d", i), base.Add(time.Duration(i)*time.Second))
		wf.TaskCategory = category
		wf.IsDefault = i == 0
		if err := store.SaveWorkflow(ctx, wf); err != nil {
			t.Fatalf("SaveWorkflow failed: %v", err)
		}
	}

	bug := "bug"
	workflows, total, err := store.ListWorkflows(ctx, &WorkflowFilter{TaskCategory: &bug})
	if err != nil {
		t.Fatalf("ListWorkflows failed: %v", err)
	}
	if total != 2 || len(workflows) != 2 {
		t.Fatalf("expected 2 bug workflows, got total=%d len=%d", total, len(workflows))
	}
	if workflows[0].ID != "wf-0" || workflows[1].ID != "wf-2" {
		t.Errorf("expected creation order, got %s, %s", workflows[0].ID, workflows[1].ID)
	}

	defaults, _, err := store.ListWorkflows(ctx, &WorkflowFilter{DefaultOnly: true})
	if err != nil {
		t.Fatalf("ListWorkflows failed: %v", err)
	}
	if len(defaults) != 1 || defaults[0].ID != "wf-0" {
		t.Errorf("expected only wf-0 as default, got %d workflows", len(defaults))
	}
}

// TestListWorkflowsWithPagination tests workflow listing with pagination.
func (s *StorageTestSuite) TestListWorkflowsWithPagination(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 10; i++ {
		wf := SampleWorkflow(fmt.Sprintf("wf-%02d", i), base.Add(time.Duration(i)*time.Millisecond))
		if err := store.SaveWorkflow(ctx, wf); err != nil {
			t.Fatalf("SaveWorkflow failed: %v", err)
		}
	}

	filter := &WorkflowFilter{Limit: 3, Offset: 0}
	workflows, total, err := store.ListWorkflows(ctx, filter)
	if err != nil {
		t.Fatalf("ListWorkflows failed: %v", err)
	}
	if total != 10 {
		t.Errorf("expected total 10, got %d", total)
	}
	if len(workflows) != 3 {
		t.Errorf("expected 3 workflows, got %d", len(workflows))
	}

	filter.Offset = 9
	workflows, _, err = store.ListWorkflows(ctx, filter)
	if err != nil {
		t.Fatalf("ListWorkflows (last page) failed: %v", err)
	}
	if len(workflows) != 1 || workflows[0].ID != "wf-09" {
		t.Errorf("expected only wf-09 on the last page, got %d workflows", len(workflows))
	}

	filter.Offset = 20
	workflows, _, err = store.ListWorkflows(ctx, filter)
	if err != nil {
		t.Fatalf("ListWorkflows (past end) failed: %v", err)
	}
	if len(workflows) != 0 {
		t.Errorf("expected empty page past the end, got %d", len(workflows))
	}
}

// TestRuleCRUD tests basic rule CRUD operations.
func (s *StorageTestSuite) TestRuleCRUD(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	rule := SampleRule("title-required", time.Now().UTC())
	rule.Action = &definition.Action{ID: "fix", Type: definition.ActionAutoFix, Value: "Untitled"}

	if err := store.SaveRule(ctx, rule); err != nil {
		t.Fatalf("SaveRule failed: %v", err)
	}

	retrieved, err := store.GetRule(ctx, "title-required")
	if err != nil {
		t.Fatalf("GetRule failed: %v", err)
	}
	if retrieved.Action == nil || retrieved.Action.Value != "Untitled" {
		t.Errorf("expected auto-fix action to be preserved, got %+v", retrieved.Action)
	}

	retrieved.IsActive = false
	if err := store.SaveRule(ctx, retrieved); err != nil {
		t.Fatalf("SaveRule (update) failed: %v", err)
	}
	updated, err := store.GetRule(ctx, "title-required")
	if err != nil {
		t.Fatalf("GetRule (after update) failed: %v", err)
	}
	if updated.IsActive {
		t.Error("expected rule to be inactive after update")
	}

	if err := store.DeleteRule(ctx, "title-required"); err != nil {
		t.Fatalf("DeleteRule failed: %v", err)
	}
	if _, err := store.GetRule(ctx, "title-required"); err == nil {
		t.Error("expected error when getting deleted rule")
	}
}

// TestListRulesWithFilter tests rule listing filters.
func (s *StorageTestSuite) TestListRulesWithFilter(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		rule := SampleRule(fmt.Sprintf("rule-%d", i), base.Add(time.Duration(i)*time.Second))
		rule.IsActive = i%2 == 0
		if i == 3 {
			rule.Category = definition.RuleQuality
		}
		if err := store.SaveRule(ctx, rule); err != nil {
			t.Fatalf("SaveRule failed: %v", err)
		}
	}

	active, total, err := store.ListRules(ctx, &RuleFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}
	if total != 2 || active[0].ID != "rule-0" || active[1].ID != "rule-2" {
		t.Errorf("expected active rules rule-0 and rule-2, got total=%d", total)
	}

	quality, _, err := store.ListRules(ctx, &RuleFilter{Category: definition.RuleQuality})
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}
	if len(quality) != 1 || quality[0].ID != "rule-3" {
		t.Errorf("expected only rule-3 in quality category, got %d rules", len(quality))
	}

	all, total, err := store.ListRules(ctx, nil)
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}
	if total != 4 || len(all) != 4 {
		t.Errorf("expected 4 rules, got total=%d len=%d", total, len(all))
	}
}

// TestConcurrentAccess tests concurrent read/write operations.
func (s *StorageTestSuite) TestConcurrentAccess(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.SaveWorkflow(ctx, SampleWorkflow("wf-concurrent", time.Now().UTC())); err != nil {
		t.Fatalf("SaveWorkflow failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			retrieved, err := store.GetWorkflow(ctx, "wf-concurrent")
			if err != nil {
				errs <- err
				return
			}

			retrieved.Description = fmt.Sprintf("iteration %d", idx)
			if err := store.SaveWorkflow(ctx, retrieved); err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent operation failed: %v", err)
	}

	if _, err := store.GetWorkflow(ctx, "wf-concurrent"); err != nil {
		t.Errorf("GetWorkflow after concurrent updates failed: %v", err)
	}
}

// TestErrorHandling tests error conditions.
func (s *StorageTestSuite) TestErrorHandling(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	var nf *NotFoundError
	_, err := store.GetWorkflow(ctx, "non-existent")
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError for missing workflow, got %v", err)
	}

	if err := store.DeleteWorkflow(ctx, "non-existent"); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError when deleting missing workflow, got %v", err)
	}

	_, err = store.GetRule(ctx, "non-existent")
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError for missing rule, got %v", err)
	}
	if nf != nil && nf.EntityType != "rule" {
		t.Errorf("expected entity type rule, got %s", nf.EntityType)
	}

	if err := store.DeleteRule(ctx, "non-existent"); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError when deleting missing rule, got %v", err)
	}
}
