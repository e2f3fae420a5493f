package registry

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	quillerrors "github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/model"
)

func seed(t *testing.T, r *Registry) {
	t.Helper()
	ctx := context.Background()

	_, err := r.CreateCategory(ctx, &model.Category{ID: "work", Name: "Work"})
	require.NoError(t, err)
	_, err = r.CreateTemplate(ctx, &model.Template{
		ID:       "standup",
		Name:     "Standup",
		Category: "work",
		Content:  "## {{date}}\n{{notes}}",
		Variables: []model.Variable{
			{Name: "date", Type: model.VariableDate, Required: true},
			{Name: "notes", Type: model.VariableText},
		},
	})
	require.NoError(t, err)
	_, err = r.CreateWorkflow(ctx, &model.Workflow{
		ID:   "morning",
		Name: "Morning",
		Steps: []model.Step{
			{ID: "render", Type: model.StepTemplate, TemplateID: "standup", Parameters: map[string]any{"notes": "{{summary}}"}},
		},
	})
	require.NoError(t, err)
}

func TestExportImport_RoundTrip(t *testing.T) {
	src := newTestRegistry()
	seed(t, src)
	ctx := context.Background()

	for name, export := range map[string]func(context.Context) ([]byte, error){
		"json": src.Export,
		"yaml": src.ExportYAML,
	} {
		t.Run(name, func(t *testing.T) {
			data, err := export(ctx)
			require.NoError(t, err)

			dst := newTestRegistry()
			report, err := dst.Import(ctx, data)
			require.NoError(t, err)
			assert.True(t, report.OK(), report.Skipped)
			assert.Equal(t, 1, report.Templates)
			assert.Equal(t, 1, report.Workflows)
			assert.Equal(t, 1, report.Categories)

			tmpl, err := dst.GetTemplate(ctx, "standup")
			require.NoError(t, err)
			assert.Equal(t, "## {{date}}\n{{notes}}", tmpl.Content)
			assert.Len(t, tmpl.Variables, 2)

			wf, err := dst.GetWorkflow(ctx, "morning")
			require.NoError(t, err)
			assert.Equal(t, "{{summary}}", wf.Steps[0].Parameters["notes"])
			assert.True(t, wf.Metadata.IsActive)
			assert.Equal(t, 1.0, wf.Metadata.SuccessRate)
		})
	}
}

func TestExport_Shape(t *testing.T) {
	r := newTestRegistry()
	seed(t, r)

	data, err := r.Export(context.Background())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, SnapshotVersion, doc["version"])
	assert.Contains(t, doc, "exportedAt")
	assert.Len(t, doc["templates"], 1)
	assert.Len(t, doc["workflows"], 1)
	assert.Len(t, doc["categories"], 1)
}

func TestImport_SkipsBadRecords(t *testing.T) {
	r := newTestRegistry()
	payload := `{
  "version": "1",
  "templates": [
    {"id": "ok", "name": "Fine", "content": "x"},
    {"id": "noname", "content": "x"},
    {"id": 42}
  ],
  "workflows": [
    {"id": "w", "name": "W", "steps": [{"id": "s", "type": "action", "action": "set"}, {"id": "s", "type": "action", "action": "set"}]}
  ],
  "categories": []
}`

	report, err := r.Import(context.Background(), []byte(payload))
	require.NoError(t, err)

	assert.False(t, report.OK())
	assert.Equal(t, 1, report.Templates)
	assert.Equal(t, 0, report.Workflows)
	require.Len(t, report.Skipped, 3)
	assert.Equal(t, SkippedRecord{Kind: KindTemplate, Index: 1, ID: "noname", Reason: "validation failed on template: name is required"}, report.Skipped[0])
	assert.Equal(t, KindTemplate, report.Skipped[1].Kind)
	assert.Equal(t, 2, report.Skipped[1].Index)
	assert.Equal(t, KindWorkflow, report.Skipped[2].Kind)

	got, err := r.GetTemplate(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, model.InitialVersion, got.Metadata.Version)
}

func TestImport_SkipsCountersOutOfRange(t *testing.T) {
	r := newTestRegistry()
	payload := `{
  "templates": [
    {"id": "neg", "name": "Negative", "content": "x", "metadata": {"usageCount": -1}},
    {"id": "used", "name": "Used", "content": "x", "metadata": {"usageCount": 4}}
  ],
  "workflows": [
    {"id": "rate", "name": "Rate", "steps": [], "metadata": {"usageCount": 2, "successRate": 1.5}},
    {"id": "slow", "name": "Slow", "steps": [], "metadata": {"usageCount": 1, "successRate": 1, "averageCompletionTime": -3}},
    {"id": "fine", "name": "Fine", "steps": [], "metadata": {"usageCount": 2, "successRate": 0.5, "averageCompletionTime": 40}}
  ]
}`

	report, err := r.Import(context.Background(), []byte(payload))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Templates)
	assert.Equal(t, 1, report.Workflows)
	require.Len(t, report.Skipped, 3)
	assert.Equal(t, "neg", report.Skipped[0].ID)
	assert.Contains(t, report.Skipped[0].Reason, "usageCount must be >= 0")
	assert.Equal(t, "rate", report.Skipped[1].ID)
	assert.Contains(t, report.Skipped[1].Reason, "successRate must be within [0, 1]")
	assert.Equal(t, "slow", report.Skipped[2].ID)

	_, err = r.GetTemplate(context.Background(), "neg")
	assert.True(t, quillerrors.IsNotFound(err))
	wf, err := r.GetWorkflow(context.Background(), "fine")
	require.NoError(t, err)
	assert.Equal(t, 0.5, wf.Metadata.SuccessRate)
}

func TestImport_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"broken json", `{"templates": [`},
		{"yaml scalar", "just words"},
		{"future version", `{"version": "9"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := newTestRegistry().Import(context.Background(), []byte(tt.payload))

			var ierr *quillerrors.ImportError
			assert.ErrorAs(t, err, &ierr)
			require.NotNil(t, report)
			assert.False(t, report.OK())
		})
	}
}

func TestImport_ReplacesExisting(t *testing.T) {
	r := newTestRegistry()
	seed(t, r)
	ctx := context.Background()

	var events []EventType
	r.On(KindTemplate, func(_ context.Context, e Event) error {
		events = append(events, e.Type)
		return nil
	})

	_, err := r.Import(ctx, []byte(`{"templates": [{"id": "standup", "name": "Standup v2", "content": "new"}]}`))
	require.NoError(t, err)

	got, err := r.GetTemplate(ctx, "standup")
	require.NoError(t, err)
	assert.Equal(t, "Standup v2", got.Name)
	assert.Equal(t, []EventType{EventUpdated}, events)
}

func TestUpsert_KeepsCounters(t *testing.T) {
	r := newTestRegistry()
	seed(t, r)
	ctx := context.Background()

	require.NoError(t, r.MutateTemplateMetadata(ctx, "standup", func(m *model.TemplateMetadata) error {
		m.UsageCount = 5
		return nil
	}))
	require.NoError(t, r.MutateWorkflowMetadata(ctx, "morning", func(m *model.WorkflowMetadata) error {
		m.UsageCount = 2
		return nil
	}))

	require.NoError(t, r.UpsertTemplate(ctx, &model.Template{ID: "standup", Name: "Standup", Content: "changed"}))
	require.NoError(t, r.UpsertWorkflow(ctx, &model.Workflow{ID: "morning", Name: "Morning", Metadata: model.WorkflowMetadata{IsActive: true}}))
	require.NoError(t, r.UpsertCategory(ctx, &model.Category{ID: "home", Name: "Home"}))

	tmpl, err := r.GetTemplate(ctx, "standup")
	require.NoError(t, err)
	assert.Equal(t, 5, tmpl.Metadata.UsageCount)
	assert.Equal(t, "1.0.1", tmpl.Metadata.Version)
	assert.Equal(t, "changed", tmpl.Content)

	wf, err := r.GetWorkflow(ctx, "morning")
	require.NoError(t, err)
	assert.Equal(t, 2, wf.Metadata.UsageCount)
	assert.Empty(t, wf.Steps)

	assert.Error(t, r.UpsertTemplate(ctx, &model.Template{ID: "bad"}))
}

func TestUpsert_ConcurrentWithCounterUpdates(t *testing.T) {
	r := newTestRegistry()
	seed(t, r)
	ctx := context.Background()

	const uses = 2000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < uses; i++ {
			assert.NoError(t, r.MutateTemplateMetadata(ctx, "standup", func(m *model.TemplateMetadata) error {
				m.UsageCount++
				return nil
			}))
			assert.NoError(t, r.MutateWorkflowMetadata(ctx, "morning", func(m *model.WorkflowMetadata) error {
				m.UsageCount++
				return nil
			}))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < uses/4; i++ {
			assert.NoError(t, r.UpsertTemplate(ctx, &model.Template{ID: "standup", Name: "Standup", Content: "reloaded"}))
			assert.NoError(t, r.UpsertWorkflow(ctx, &model.Workflow{ID: "morning", Name: "Morning", Metadata: model.WorkflowMetadata{IsActive: true}}))
		}
	}()
	wg.Wait()

	tmpl, err := r.GetTemplate(ctx, "standup")
	require.NoError(t, err)
	assert.Equal(t, uses, tmpl.Metadata.UsageCount)

	wf, err := r.GetWorkflow(ctx, "morning")
	require.NoError(t, err)
	assert.Equal(t, uses, wf.Metadata.UsageCount)
}
