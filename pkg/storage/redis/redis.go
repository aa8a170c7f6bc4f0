// Package redis provides a Redis-backed implementation of the storage
// interface. Workflows and rules are stored as JSON values in two hashes
// keyed by definition id.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/storage"
)

// Config holds configuration for RedisStorage.
type Config struct {
	// KeyPrefix is prepended to the hash names.
	KeyPrefix string
}

// DefaultConfig returns a Config with the default key prefix.
func DefaultConfig() *Config {
	return &Config{KeyPrefix: "taskflow:"}
}

// RedisStorage implements the Storage interface on top of a redis.Cmdable.
type RedisStorage struct {
	client  redis.Cmdable
	workKey string
	ruleKey string
	closer  func() error
}

// NewRedisStorage creates a storage using client. When client also
// implements io.Closer-style Close, Close releases it.
func NewRedisStorage(ctx context.Context, client redis.Cmdable, config *Config) (*RedisStorage, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	s := &RedisStorage{
		client:  client,
		workKey: config.KeyPrefix + "workflows",
		ruleKey: config.KeyPrefix + "rules",
	}
	if c, ok := client.(interface{ Close() error }); ok {
		s.closer = c.Close
	}
	return s, nil
}

func (s *RedisStorage) put(ctx context.Context, hash, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &storage.SerializationError{Operation: "marshal", Cause: err}
	}
	if err := s.client.HSet(ctx, hash, id, data).Err(); err != nil {
		return &storage.StorageUnavailableError{Cause: err}
	}
	return nil
}

func (s *RedisStorage) get(ctx context.Context, hash, entityType, id string, dst any) error {
	data, err := s.client.HGet(ctx, hash, id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &storage.NotFoundError{EntityType: entityType, ID: id}
		}
		return &storage.StorageUnavailableError{Cause: err}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &storage.SerializationError{Operation: "unmarshal", Cause: err}
	}
	return nil
}

func (s *RedisStorage) all(ctx context.Context, hash string) (map[string]string, error) {
	values, err := s.client.HGetAll(ctx, hash).Result()
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}
	return values, nil
}

func (s *RedisStorage) remove(ctx context.Context, hash, entityType, id string) error {
	n, err := s.client.HDel(ctx, hash, id).Result()
	if err != nil {
		return &storage.StorageUnavailableError{Cause: err}
	}
	if n == 0 {
		return &storage.NotFoundError{EntityType: entityType, ID: id}
	}
	return nil
}

// SaveWorkflow stores wf.
func (s *RedisStorage) SaveWorkflow(ctx context.Context, wf *definition.Workflow) error {
	if wf.CreatedAt.IsZero() {
		wf = wf.Clone()
		wf.CreatedAt = time.Now().UTC()
	}
	return s.put(ctx, s.workKey, wf.ID, wf)
}

// GetWorkflow retrieves a workflow by ID.
func (s *RedisStorage) GetWorkflow(ctx context.Context, id string) (*definition.Workflow, error) {
	var wf definition.Workflow
	if err := s.get(ctx, s.workKey, "workflow", id, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ListWorkflows lists workflows with optional filtering and pagination.
func (s *RedisStorage) ListWorkflows(ctx context.Context, filter *storage.WorkflowFilter) ([]*definition.Workflow, int, error) {
	values, err := s.all(ctx, s.workKey)
	if err != nil {
		return nil, 0, err
	}

	workflows := make([]*definition.Workflow, 0, len(values))
	for _, raw := range values {
		var wf definition.Workflow
		if err := json.Unmarshal([]byte(raw), &wf); err != nil {
			return nil, 0, &storage.SerializationError{Operation: "unmarshal", Cause: err}
		}
		if filter.Match(&wf) {
			workflows = append(workflows, &wf)
		}
	}

	storage.SortWorkflows(workflows)
	total := len(workflows)
	if filter != nil {
		workflows = storage.Page(workflows, filter.Limit, filter.Offset)
	}
	return workflows, total, nil
}

// DeleteWorkflow deletes a workflow.
func (s *RedisStorage) DeleteWorkflow(ctx context.Context, id string) error {
	return s.remove(ctx, s.workKey, "workflow", id)
}

// SaveRule stores rule.
func (s *RedisStorage) SaveRule(ctx context.Context, rule *definition.ValidationRule) error {
	if rule.CreatedAt.IsZero() {
		rule = rule.Clone()
		rule.CreatedAt = time.Now().UTC()
	}
	return s.put(ctx, s.ruleKey, rule.ID, rule)
}

// GetRule retrieves a rule by ID.
func (s *RedisStorage) GetRule(ctx context.Context, id string) (*definition.ValidationRule, error) {
	var rule definition.ValidationRule
	if err := s.get(ctx, s.ruleKey, "rule", id, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListRules lists rules with optional filtering and pagination.
func (s *RedisStorage) ListRules(ctx context.Context, filter *storage.RuleFilter) ([]*definition.ValidationRule, int, error) {
	values, err := s.all(ctx, s.ruleKey)
	if err != nil {
		return nil, 0, err
	}

	rules := make([]*definition.ValidationRule, 0, len(values))
	for _, raw := range values {
		var rule definition.ValidationRule
		if err := json.Unmarshal([]byte(raw), &rule); err != nil {
			return nil, 0, &storage.SerializationError{Operation: "unmarshal", Cause: err}
		}
		if filter.Match(&rule) {
			rules = append(rules, &rule)
		}
	}

	storage.SortRules(rules)
	total := len(rules)
	if filter != nil {
		rules = storage.Page(rules, filter.Limit, filter.Offset)
	}
	return rules, total, nil
}

// DeleteRule deletes a rule.
func (s *RedisStorage) DeleteRule(ctx context.Context, id string) error {
	return s.remove(ctx, s.ruleKey, "rule", id)
}

// Close releases the client when the storage owns a closable one.
func (s *RedisStorage) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
