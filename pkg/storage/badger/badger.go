// Package badger provides a Badger-based implementation of the storage interface.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/storage"
)

// Config holds configuration for BadgerStorage.
type Config struct {
	Path              string
	InMemory          bool
	SyncWrites        bool
	ValueLogFileSize  int64
	NumVersionsToKeep int
}

// BadgerStorage implements the Storage interface using Badger.
type BadgerStorage struct {
	db     *badger.DB
	config *Config
}

// NewBadgerStorage opens (or creates) a Badger database.
func NewBadgerStorage(config *Config) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(config.Path)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = config.SyncWrites
	if config.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = config.ValueLogFileSize
	}
	if config.NumVersionsToKeep > 0 {
		opts.NumVersionsToKeep = config.NumVersionsToKeep
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	return &BadgerStorage{
		db:     db,
		config: config,
	}, nil
}

const (
	workflowPrefix = "workflow:"
	rulePrefix     = "rule:"
)

func workflowKey(id string) []byte {
	return []byte(fmt.Sprintf("%s%s", workflowPrefix, id))
}

func ruleKey(id string) []byte {
	return []byte(fmt.Sprintf("%s%s", rulePrefix, id))
}

func serialize(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &storage.SerializationError{Operation: "marshal", Cause: err}
	}
	return data, nil
}

func deserialize(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &storage.SerializationError{Operation: "unmarshal", Cause: err}
	}
	return nil
}

// put writes value under key.
func (b *BadgerStorage) put(key []byte, value any) error {
	data, err := serialize(value)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// get reads key into dst, mapping a missing key to NotFoundError.
func (b *BadgerStorage) get(key []byte, entityType, id string, dst any) error {
	return b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return &storage.NotFoundError{EntityType: entityType, ID: id}
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return deserialize(val, dst)
		})
	})
}

// scan decodes every value under prefix with decode.
func (b *BadgerStorage) scan(prefix string, decode func(val []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(decode); err != nil {
				return err
			}
		}
		return nil
	})
}

// remove deletes key, failing with NotFoundError if it is absent.
func (b *BadgerStorage) remove(key []byte, entityType, id string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return &storage.NotFoundError{EntityType: entityType, ID: id}
			}
			return err
		}
		return txn.Delete(key)
	})
}

// SaveWorkflow saves a workflow to Badger.
func (b *BadgerStorage) SaveWorkflow(ctx context.Context, wf *definition.Workflow) error {
	if wf.CreatedAt.IsZero() {
		wf = wf.Clone()
		wf.CreatedAt = time.Now().UTC()
	}
	return b.put(workflowKey(wf.ID), wf)
}

// GetWorkflow retrieves a workflow by ID.
func (b *BadgerStorage) GetWorkflow(ctx context.Context, id string) (*definition.Workflow, error) {
	var wf definition.Workflow
	if err := b.get(workflowKey(id), "workflow", id, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ListWorkflows lists workflows with optional filtering and pagination.
func (b *BadgerStorage) ListWorkflows(ctx context.Context, filter *storage.WorkflowFilter) ([]*definition.Workflow, int, error) {
	var workflows []*definition.Workflow
	err := b.scan(workflowPrefix, func(val []byte) error {
		var wf definition.Workflow
		if err := deserialize(val, &wf); err != nil {
			return err
		}
		if filter.Match(&wf) {
			workflows = append(workflows, &wf)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	storage.SortWorkflows(workflows)
	total := len(workflows)
	if filter != nil {
		workflows = storage.Page(workflows, filter.Limit, filter.Offset)
	}
	return workflows, total, nil
}

// DeleteWorkflow deletes a workflow.
func (b *BadgerStorage) DeleteWorkflow(ctx context.Context, id string) error {
	return b.remove(workflowKey(id), "workflow", id)
}

// SaveRule saves a rule to Badger.
func (b *BadgerStorage) SaveRule(ctx context.Context, rule *definition.ValidationRule) error {
	if rule.CreatedAt.IsZero() {
		rule = rule.Clone()
		rule.CreatedAt = time.Now().UTC()
	}
	return b.put(ruleKey(rule.ID), rule)
}

// GetRule retrieves a rule by ID.
func (b *BadgerStorage) GetRule(ctx context.Context, id string) (*definition.ValidationRule, error) {
	var rule definition.ValidationRule
	if err := b.get(ruleKey(id), "rule", id, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListRules lists rules with optional filtering and pagination.
func (b *BadgerStorage) ListRules(ctx context.Context, filter *storage.RuleFilter) ([]*definition.ValidationRule, int, error) {
	var rules []*definition.ValidationRule
	err := b.scan(rulePrefix, func(val []byte) error {
		var rule definition.ValidationRule
		if err := deserialize(val, &rule); err != nil {
			return err
		}
		if filter.Match(&rule) {
			rules = append(rules, &rule)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	storage.SortRules(rules)
	total := len(rules)
	if filter != nil {
		rules = storage.Page(rules, filter.Limit, filter.Offset)
	}
	return rules, total, nil
}

// DeleteRule deletes a rule.
func (b *BadgerStorage) DeleteRule(ctx context.Context, id string) error {
	return b.remove(ruleKey(id), "rule", id)
}

// Close closes the Badger database.
func (b *BadgerStorage) Close() error {
	if !b.config.InMemory {
		// ErrNoRewrite just means there was nothing to collect.
		_ = b.db.RunValueLogGC(0.5)
	}
	return b.db.Close()
}
