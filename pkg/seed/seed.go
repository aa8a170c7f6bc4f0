// Package seed loads workflow and rule definitions from YAML files and seeds
// the built-in definitions into empty storage. Everything goes through the
// engines, so files get the same structural validation as API calls.
package seed

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/logger"
	"github.com/goclaw/taskflow/pkg/storage"
	"github.com/goclaw/taskflow/pkg/validation"
	"github.com/goclaw/taskflow/pkg/workflow"
)

// File is the layout of a definitions file.
type File struct {
	Workflows []*definition.Workflow       `yaml:"workflows"`
	Rules     []*definition.ValidationRule `yaml:"rules"`
}

// LoadFile parses one definitions file. A null list entry is an error.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse definitions file %s: %w", path, err)
	}
	for i, wf := range f.Workflows {
		if wf == nil {
			return nil, fmt.Errorf("%s: workflows[%d]: empty entry", path, i)
		}
	}
	for i, rule := range f.Rules {
		if rule == nil {
			return nil, fmt.Errorf("%s: rules[%d]: empty entry", path, i)
		}
	}
	return &f, nil
}

// ResolvePatterns expands glob patterns (with ** support) into a sorted,
// de-duplicated list of files. A pattern that matches nothing is not an error.
func ResolvePatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// WorkflowImporter stores workflows keeping their ids.
type WorkflowImporter interface {
	ImportWorkflow(ctx context.Context, wf *definition.Workflow) (*definition.Workflow, error)
	ListWorkflows(ctx context.Context, filter *storage.WorkflowFilter) ([]*definition.Workflow, int, error)
}

// RuleImporter stores rules keeping their ids.
type RuleImporter interface {
	ImportRule(ctx context.Context, rule *definition.ValidationRule) (*definition.ValidationRule, error)
	ListRules(ctx context.Context, filter *storage.RuleFilter) ([]*definition.ValidationRule, int, error)
}

// Summary counts what a seeding pass stored.
type Summary struct {
	Files     int
	Workflows int
	Rules     int
}

// Seeder imports definitions through the engines.
type Seeder struct {
	workflows WorkflowImporter
	rules     RuleImporter
	logger    logger.Logger
}

// New creates a seeder. log may be nil.
func New(workflows WorkflowImporter, rules RuleImporter, log logger.Logger) *Seeder {
	if log == nil {
		log = logger.Nop()
	}
	return &Seeder{workflows: workflows, rules: rules, logger: log}
}

// LoadDefinitions imports every workflow and rule found in the files the
// patterns match. The first invalid definition stops the load.
func (s *Seeder) LoadDefinitions(ctx context.Context, patterns []string) (Summary, error) {
	var sum Summary
	files, err := ResolvePatterns(patterns)
	if err != nil {
		return sum, err
	}
	for _, path := range files {
		f, err := LoadFile(path)
		if err != nil {
			return sum, err
		}
		for _, wf := range f.Workflows {
			if _, err := s.workflows.ImportWorkflow(ctx, wf); err != nil {
				return sum, fmt.Errorf("%s: workflow %q: %w", path, wf.ID, err)
			}
			sum.Workflows++
		}
		for _, rule := range f.Rules {
			if _, err := s.rules.ImportRule(ctx, rule); err != nil {
				return sum, fmt.Errorf("%s: rule %q: %w", path, rule.ID, err)
			}
			sum.Rules++
		}
		sum.Files++
		s.logger.Info("definitions loaded", "file", path, "workflows", len(f.Workflows), "rules", len(f.Rules))
	}
	return sum, nil
}

// SeedDefaults stores the built-in rules when there are no rules and the
// built-in workflow when there are no workflows.
func (s *Seeder) SeedDefaults(ctx context.Context) (Summary, error) {
	var sum Summary

	_, rules, err := s.rules.ListRules(ctx, &storage.RuleFilter{Limit: 1})
	if err != nil {
		return sum, fmt.Errorf("count rules: %w", err)
	}
	if rules == 0 {
		for _, rule := range validation.DefaultRules() {
			if _, err := s.rules.ImportRule(ctx, rule); err != nil {
				return sum, fmt.Errorf("seed rule %q: %w", rule.ID, err)
			}
			sum.Rules++
		}
	}

	_, workflows, err := s.workflows.ListWorkflows(ctx, &storage.WorkflowFilter{Limit: 1})
	if err != nil {
		return sum, fmt.Errorf("count workflows: %w", err)
	}
	if workflows == 0 {
		if _, err := s.workflows.ImportWorkflow(ctx, workflow.DefaultWorkflow()); err != nil {
			return sum, fmt.Errorf("seed workflow: %w", err)
		}
		sum.Workflows++
	}

	if sum.Rules > 0 || sum.Workflows > 0 {
		s.logger.Info("seeded built-in definitions", "workflows", sum.Workflows, "rules", sum.Rules)
	}
	return sum, nil
}
