// Package memory provides an in-memory implementation of the storage interface.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/storage"
)

// MemoryStorage implements the Storage interface using in-memory maps.
type MemoryStorage struct {
	mu        sync.RWMutex
	workflows map[string]*definition.Workflow
	rules     map[string]*definition.ValidationRule
}

// NewMemoryStorage creates a new in-memory storage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		workflows: make(map[string]*definition.Workflow),
		rules:     make(map[string]*definition.ValidationRule),
	}
}

// SaveWorkflow stores a copy of wf, replacing any workflow with the same id.
func (m *MemoryStorage) SaveWorkflow(ctx context.Context, wf *definition.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := wf.Clone()
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	m.workflows[wf.ID] = copied
	return nil
}

// GetWorkflow retrieves a workflow by ID.
func (m *MemoryStorage) GetWorkflow(ctx context.Context, id string) (*definition.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wf, exists := m.workflows[id]
	if !exists {
		return nil, &storage.NotFoundError{EntityType: "workflow", ID: id}
	}
	return wf.Clone(), nil
}

// ListWorkflows lists workflows with optional filtering and pagination.
func (m *MemoryStorage) ListWorkflows(ctx context.Context, filter *storage.WorkflowFilter) ([]*definition.Workflow, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filtered := make([]*definition.Workflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		if filter.Match(wf) {
			filtered = append(filtered, wf.Clone())
		}
	}
	storage.SortWorkflows(filtered)

	total := len(filtered)
	if filter != nil {
		filtered = storage.Page(filtered, filter.Limit, filter.Offset)
	}
	return filtered, total, nil
}

// DeleteWorkflow deletes a workflow.
func (m *MemoryStorage) DeleteWorkflow(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.workflows[id]; !exists {
		return &storage.NotFoundError{EntityType: "workflow", ID: id}
	}
	delete(m.workflows, id)
	return nil
}

// SaveRule stores a copy of rule.
func (m *MemoryStorage) SaveRule(ctx context.Context, rule *definition.ValidationRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := rule.Clone()
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	m.rules[rule.ID] = copied
	return nil
}

// GetRule retrieves a rule by ID.
func (m *MemoryStorage) GetRule(ctx context.Context, id string) (*definition.ValidationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rule, exists := m.rules[id]
	if !exists {
		return nil, &storage.NotFoundError{EntityType: "rule", ID: id}
	}
	return rule.Clone(), nil
}

// ListRules lists rules with optional filtering and pagination.
func (m *MemoryStorage) ListRules(ctx context.Context, filter *storage.RuleFilter) ([]*definition.ValidationRule, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filtered := make([]*definition.ValidationRule, 0, len(m.rules))
	for _, rule := range m.rules {
		if filter.Match(rule) {
			filtered = append(filtered, rule.Clone())
		}
	}
	storage.SortRules(filtered)

	total := len(filtered)
	if filter != nil {
		filtered = storage.Page(filtered, filter.Limit, filter.Offset)
	}
	return filtered, total, nil
}

// DeleteRule deletes a rule.
func (m *MemoryStorage) DeleteRule(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[id]; !exists {
		return &storage.NotFoundError{EntityType: "rule", ID: id}
	}
	delete(m.rules, id)
	return nil
}

// Close closes the storage (no-op for memory storage).
func (m *MemoryStorage) Close() error {
	return nil
}
