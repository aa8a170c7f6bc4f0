package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goclaw/taskflow/pkg/condition"
	"github.com/goclaw/taskflow/pkg/definition"
	"github.com/goclaw/taskflow/pkg/storage/memory"
	"github.com/goclaw/taskflow/pkg/validation"
	"github.com/goclaw/taskflow/pkg/workflow"
)

func newSeeder(t *testing.T) (*Seeder, *workflow.Engine, *validation.Engine) {
	t.Helper()
	store := memory.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })
	wf := workflow.New(store)
	val := validation.New(store)
	return New(wf, val, nil), wf, val
}

func TestResolvePatterns(t *testing.T) {
	files, err := ResolvePatterns([]string{"testdata/**/*.{yaml,yml}", "testdata/workflows.yaml"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "nested", "rules.yml"),
		filepath.Join("testdata", "workflows.yaml"),
	}, files)

	files, err = ResolvePatterns([]string{"testdata/none/*.yaml"})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLoadDefinitions(t *testing.T) {
	s, wfEngine, valEngine := newSeeder(t)
	ctx := context.Background()

	sum, err := s.LoadDefinitions(ctx, []string{"testdata/**/*.y*ml"})
	require.NoError(t, err)
	assert.Equal(t, Summary{Files: 2, Workflows: 1, Rules: 1}, sum)

	bugs, err := wfEngine.GetWorkflow(ctx, "bugs")
	require.NoError(t, err)
	assert.True(t, bugs.IsDefault)
	assert.Equal(t, "bug", bugs.TaskCategory)
	triage, ok := bugs.Transition("triage")
	require.True(t, ok)
	assert.Equal(t, condition.OpIn, triage.Conditions[0].Operator)
	assert.Equal(t, []any{"low", "high"}, triage.Conditions[0].Value)

	res, err := wfEngine.AttemptTransition(ctx, "bugs", "triage", condition.Entity{"status": "new", "severity": "high"}, []string{"triager"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	rule, err := valEngine.GetRule(ctx, "repro-steps")
	require.NoError(t, err)
	assert.Equal(t, definition.SeverityHigh, rule.Severity)
	assert.True(t, rule.IsCustom)
}

func TestLoadDefinitions_Invalid(t *testing.T) {
	s, _, _ := newSeeder(t)
	dir := t.TempDir()
	bad := `workflows:
  - id: broken
    name: Broken
    defaultStatusId: missing
    statuses:
      - {id: todo, name: To Do, category: todo}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(bad), 0o600))

	_, err := s.LoadDefinitions(context.Background(), []string{filepath.Join(dir, "*.yaml")})
	var verr *definition.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workflows: [\n"), 0o600))
	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadDefinitions_NullEntries(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"workflow", "workflows:\n  -\n", "workflows[0]: empty entry"},
		{"rule", "rules:\n  - id: r1\n    name: R1\n  - null\n", "rules[1]: empty entry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, wfEngine, _ := newSeeder(t)
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.yaml"), []byte(tt.content), 0o600))

			var (
				sum Summary
				err error
			)
			require.NotPanics(t, func() {
				sum, err = s.LoadDefinitions(context.Background(), []string{filepath.Join(dir, "*.yaml")})
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, Summary{}, sum)

			_, total, err := wfEngine.ListWorkflows(context.Background(), nil)
			require.NoError(t, err)
			assert.Zero(t, total, "nothing from the file is imported")
		})
	}
}

func TestSeedDefaults(t *testing.T) {
	s, wfEngine, valEngine := newSeeder(t)
	ctx := context.Background()

	sum, err := s.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(validation.DefaultRules()), sum.Rules)
	assert.Equal(t, 1, sum.Workflows)

	wf, err := wfEngine.GetWorkflow(ctx, workflow.DefaultWorkflowID)
	require.NoError(t, err)
	assert.True(t, wf.IsDefault)

	_, total, err := valEngine.ListRules(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, len(validation.DefaultRules()), total)

	again, err := s.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, again)
}
