// Package storage provides the persistence abstraction for workflow and
// validation rule definitions.
package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/goclaw/taskflow/pkg/definition"
)

// Storage defines the interface for persistent definition storage.
type Storage interface {
	// Workflow operations
	SaveWorkflow(ctx context.Context, wf *definition.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*definition.Workflow, error)
	ListWorkflows(ctx context.Context, filter *WorkflowFilter) ([]*definition.Workflow, int, error)
	DeleteWorkflow(ctx context.Context, id string) error

	// Rule operations
	SaveRule(ctx context.Context, rule *definition.ValidationRule) error
	GetRule(ctx context.Context, id string) (*definition.ValidationRule, error)
	ListRules(ctx context.Context, filter *RuleFilter) ([]*definition.ValidationRule, int, error)
	DeleteRule(ctx context.Context, id string) error

	// Lifecycle
	Close() error
}

// WorkflowFilter defines filtering options for listing workflows.
type WorkflowFilter struct {
	TaskCategory *string `json:"task_category,omitempty"`
	DefaultOnly  bool    `json:"default_only,omitempty"`
	Limit        int     `json:"limit"`
	Offset       int     `json:"offset"`
}

// Match reports whether wf passes the filter. A nil filter matches everything.
func (f *WorkflowFilter) Match(wf *definition.Workflow) bool {
	if f == nil {
		return true
	}
	if f.TaskCategory != nil && wf.TaskCategory != *f.TaskCategory {
		return false
	}
	if f.DefaultOnly && !wf.IsDefault {
		return false
	}
	return true
}

// RuleFilter defines filtering options for listing rules.
type RuleFilter struct {
	ActiveOnly bool                    `json:"active_only,omitempty"`
	Category   definition.RuleCategory `json:"category,omitempty"`
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
}

// Match reports whether rule passes the filter.
func (f *RuleFilter) Match(rule *definition.ValidationRule) bool {
	if f == nil {
		return true
	}
	if f.ActiveOnly && !rule.IsActive {
		return false
	}
	if f.Category != "" && rule.Category != f.Category {
		return false
	}
	return true
}

// SortWorkflows orders workflows by creation time, then id, so every backend
// lists in the same order.
func SortWorkflows(wfs []*definition.Workflow) {
	sort.SliceStable(wfs, func(i, j int) bool {
		if !wfs[i].CreatedAt.Equal(wfs[j].CreatedAt) {
			return wfs[i].CreatedAt.Before(wfs[j].CreatedAt)
		}
		return wfs[i].ID < wfs[j].ID
	})
}

// SortRules orders rules by creation time, then id.
func SortRules(rules []*definition.ValidationRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID < rules[j].ID
	})
}

// Page applies limit/offset pagination. A non-positive limit returns
// everything from offset on.
func Page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset > len(items) {
		offset = len(items)
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// NotFoundError indicates that the requested definition was not found. It is
// the same type the engines return so callers can match either with errors.As.
type NotFoundError = definition.NotFoundError

// StorageUnavailableError indicates that the storage backend is unavailable.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Cause)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Cause }

// SerializationError indicates a failure in data serialization/deserialization.
type SerializationError struct {
	Operation string
	Cause     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error during %s: %v", e.Operation, e.Cause)
}

func (e *SerializationError) Unwrap() error { return e.Cause }
