package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/quill/internal/log"
	quillerrors "github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/model"
)

var fixedNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func newTestRegistry() *Registry {
	n := 0
	return New(
		WithLogger(log.Discard()),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
}

func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }

func TestCreateTemplate(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	created, err := r.CreateTemplate(ctx, &model.Template{
		Name:     "Daily",
		Content:  "# {{title}}",
		Metadata: model.TemplateMetadata{UsageCount: 9, Version: "7.0.0", Author: "sam"},
	})
	require.NoError(t, err)

	assert.Equal(t, "id-1", created.ID)
	assert.Equal(t, model.InitialVersion, created.Metadata.Version)
	assert.Equal(t, 0, created.Metadata.UsageCount)
	assert.Equal(t, "sam", created.Metadata.Author)
	assert.Equal(t, fixedNow, created.Metadata.CreatedAt)

	_, err = r.CreateTemplate(ctx, &model.Template{ID: "id-1", Name: "Dup"})
	assert.ErrorContains(t, err, "template already exists: id-1")
}

func TestCreateTemplate_Invalid(t *testing.T) {
	r := newTestRegistry()

	_, err := r.CreateTemplate(context.Background(), &model.Template{
		Variables: []model.Variable{
			{Name: "a", Type: model.VariableText},
			{Name: "a", Type: model.VariableText},
			{Name: "mood", Type: model.VariableSelect},
		},
	})

	var verr *quillerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Violations, "name is required")
	assert.Contains(t, verr.Violations, "duplicate variable name: a")
	assert.Contains(t, verr.Violations, "variable mood: options are required for select variables")
}

func TestGetTemplate_ReturnsCopy(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	created, err := r.CreateTemplate(ctx, &model.Template{Name: "T", Tags: []string{"a"}})
	require.NoError(t, err)

	got, err := r.GetTemplate(ctx, created.ID)
	require.NoError(t, err)
	got.Tags[0] = "mutated"
	got.Name = "mutated"

	again, err := r.GetTemplate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "T", again.Name)
	assert.Equal(t, []string{"a"}, again.Tags)

	_, err = r.GetTemplate(ctx, "nope")
	assert.True(t, quillerrors.IsNotFound(err))
}

func TestUpdateTemplate(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	created, err := r.CreateTemplate(ctx, &model.Template{Name: "T", Content: "old"})
	require.NoError(t, err)

	updated, err := r.UpdateTemplate(ctx, created.ID, TemplatePatch{Content: strPtr("new"), IsPublic: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Content)
	assert.True(t, updated.Metadata.IsPublic)
	assert.Equal(t, "1.0.1", updated.Metadata.Version)

	updated, err = r.UpdateTemplate(ctx, created.ID, TemplatePatch{Name: strPtr("T2")})
	require.NoError(t, err)
	assert.Equal(t, "1.0.2", updated.Metadata.Version)

	_, err = r.UpdateTemplate(ctx, created.ID, TemplatePatch{Name: strPtr("")})
	assert.True(t, quillerrors.IsValidation(err))

	_, err = r.UpdateTemplate(ctx, "missing", TemplatePatch{})
	assert.True(t, quillerrors.IsNotFound(err))
}

func TestDeleteTemplate(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	created, err := r.CreateTemplate(ctx, &model.Template{Name: "T"})
	require.NoError(t, err)

	assert.True(t, r.DeleteTemplate(ctx, created.ID))
	assert.False(t, r.DeleteTemplate(ctx, created.ID))
}

func TestListTemplates_Filters(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	fixtures := []*model.Template{
		{ID: "journal", Name: "Journal", Category: "personal", Tags: []string{"daily", "reflect"}, Metadata: model.TemplateMetadata{IsPublic: true, Author: "sam"}},
		{ID: "standup", Name: "Standup", Description: "Daily sync notes", Category: "work", Tags: []string{"daily"}},
		{ID: "retro", Name: "Retro", Category: "work", Tags: []string{"sprint"}, Metadata: model.TemplateMetadata{Author: "alex"}},
	}
	for _, f := range fixtures {
		_, err := r.CreateTemplate(ctx, f)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter TemplateFilter
		want   []string
	}{
		{"all sorted by name", TemplateFilter{}, []string{"journal", "retro", "standup"}},
		{"category", TemplateFilter{Category: "work"}, []string{"retro", "standup"}},
		{"tags any-of", TemplateFilter{Tags: []string{"sprint", "reflect"}}, []string{"journal", "retro"}},
		{"public", TemplateFilter{IsPublic: boolPtr(true)}, []string{"journal"}},
		{"private", TemplateFilter{IsPublic: boolPtr(false)}, []string{"retro", "standup"}},
		{"author", TemplateFilter{Author: "alex"}, []string{"retro"}},
		{"query is case-insensitive", TemplateFilter{Query: "DAILY"}, []string{"journal", "standup"}},
		{"combined", TemplateFilter{Category: "work", Query: "sync"}, []string{"standup"}},
		{"no match", TemplateFilter{Category: "none"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ListTemplates(ctx, tt.filter)
			ids := make([]string, len(got))
			for i, tmpl := range got {
				ids[i] = tmpl.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestCreateWorkflow(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	created, err := r.CreateWorkflow(ctx, &model.Workflow{
		Name: "Morning",
		Steps: []model.Step{
			{ID: "s1", Type: model.StepAction, Action: "id.new"},
		},
		Metadata: model.WorkflowMetadata{UsageCount: 4, SuccessRate: 0.1},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, created.Metadata.UsageCount)
	assert.Equal(t, 1.0, created.Metadata.SuccessRate)
	assert.Equal(t, 0.0, created.Metadata.AverageCompletionTime)
	assert.True(t, created.Metadata.IsActive)
}

func TestCreateWorkflow_Invalid(t *testing.T) {
	r := newTestRegistry()

	_, err := r.CreateWorkflow(context.Background(), &model.Workflow{
		Name: "Bad",
		Steps: []model.Step{
			{ID: "a", Type: model.StepAction},
			{ID: "a", Type: "webhook"},
			{ID: "c", Type: model.StepCondition, Condition: "len(x) > 1"},
			{ID: "d", Type: model.StepLoop},
		},
	})

	var verr *quillerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Violations, "step a: action is required")
	assert.Contains(t, verr.Violations, "duplicate step id: a")
	assert.Contains(t, verr.Violations, "step d: loop needs a templateId, action or condition")
	assert.Len(t, verr.Violations, 3)
}

func TestCreateWorkflow_RunTimeProblemsAreWarnings(t *testing.T) {
	r := newTestRegistry()

	wf := &model.Workflow{
		Name: "Risky",
		Steps: []model.Step{
			{ID: "a", Type: model.StepAction, Action: "set"},
			{ID: "b", Type: "webhook", Metadata: model.StepMetadata{IsOptional: true}},
			{ID: "c", Type: model.StepCondition, Condition: "a ==", Metadata: model.StepMetadata{IsOptional: true}},
		},
	}

	created, err := r.CreateWorkflow(context.Background(), wf)
	require.NoError(t, err)
	assert.Len(t, created.Steps, 3)

	warnings := StepWarnings(wf)
	require.Len(t, warnings, 2)
	assert.Equal(t, `step b: unknown step type "webhook"`, warnings[0])
	assert.Contains(t, warnings[1], "step c: ")
	assert.Contains(t, warnings[1], "failed to parse expression")
}

func TestUpdateWorkflow_KeepsStats(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	created, err := r.CreateWorkflow(ctx, &model.Workflow{Name: "W"})
	require.NoError(t, err)
	require.NoError(t, r.MutateWorkflowMetadata(ctx, created.ID, func(m *model.WorkflowMetadata) error {
		m.UsageCount = 3
		return nil
	}))

	updated, err := r.UpdateWorkflow(ctx, created.ID, WorkflowPatch{IsActive: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, updated.Metadata.IsActive)
	assert.Equal(t, 3, updated.Metadata.UsageCount)

	active := r.ListWorkflows(ctx, WorkflowFilter{IsActive: boolPtr(true)})
	assert.Empty(t, active)
}

func TestListWorkflows_Query(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	for _, name := range []string{"Weekly review", "Daily plan", "Inbox zero"} {
		_, err := r.CreateWorkflow(ctx, &model.Workflow{Name: name, Category: "routine"})
		require.NoError(t, err)
	}

	got := r.ListWorkflows(ctx, WorkflowFilter{Query: "review"})
	require.Len(t, got, 1)
	assert.Equal(t, "Weekly review", got[0].Name)

	assert.Len(t, r.ListWorkflows(ctx, WorkflowFilter{Category: "routine"}), 3)
}

func TestCategories(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	c, err := r.CreateCategory(ctx, &model.Category{ID: "work", Name: "Work"})
	require.NoError(t, err)

	_, err = r.CreateCategory(ctx, &model.Category{ID: "work", Name: "Again"})
	assert.Error(t, err)

	_, err = r.CreateCategory(ctx, &model.Category{})
	assert.True(t, quillerrors.IsValidation(err))

	updated, err := r.UpdateCategory(ctx, c.ID, CategoryPatch{Color: strPtr("#ff0000")})
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", updated.Color)

	_, err = r.CreateCategory(ctx, &model.Category{Name: "Home"})
	require.NoError(t, err)

	list := r.ListCategories(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, "Home", list[0].Name)

	assert.True(t, r.DeleteCategory(ctx, "work"))
	assert.False(t, r.DeleteCategory(ctx, "work"))
	_, err = r.GetCategory(ctx, "work")
	assert.True(t, quillerrors.IsNotFound(err))
}

func TestMutateTemplateMetadata_Concurrent(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	created, err := r.CreateTemplate(ctx, &model.Template{Name: "T"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.MutateTemplateMetadata(ctx, created.ID, func(m *model.TemplateMetadata) error {
				m.UsageCount++
				return nil
			}))
		}()
	}
	wg.Wait()

	got, err := r.GetTemplate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Metadata.UsageCount)
	assert.Equal(t, 0, r.locks.size())
}

func TestMutateMetadata_ErrorLeavesRecord(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	created, err := r.CreateWorkflow(ctx, &model.Workflow{Name: "W"})
	require.NoError(t, err)

	err = r.MutateWorkflowMetadata(ctx, created.ID, func(m *model.WorkflowMetadata) error {
		m.UsageCount = 99
		return errors.New("abort")
	})
	assert.EqualError(t, err, "abort")

	got, err := r.GetWorkflow(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Metadata.UsageCount)

	err = r.MutateWorkflowMetadata(ctx, "missing", func(*model.WorkflowMetadata) error { return nil })
	assert.True(t, quillerrors.IsNotFound(err))
}

func TestBumpPatch(t *testing.T) {
	tests := map[string]string{
		"1.0.0":  "1.0.1",
		"2.3.9":  "2.3.10",
		"":       "1.0.1",
		"banana": "1.0.1",
		"1.x.0":  "1.0.1",
	}
	for in, want := range tests {
		assert.Equal(t, want, bumpPatch(in), in)
	}
}
