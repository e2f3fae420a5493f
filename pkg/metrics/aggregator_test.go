package metrics

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	quillerrors "github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/model"
)

type memStore struct {
	mu        sync.Mutex
	templates map[string]*model.TemplateMetadata
	workflows map[string]*model.WorkflowMetadata
}

func newMemStore() *memStore {
	return &memStore{
		templates: map[string]*model.TemplateMetadata{"t1": {}},
		workflows: map[string]*model.WorkflowMetadata{"w1": {SuccessRate: 1.0, IsActive: true}},
	}
}

func (s *memStore) MutateTemplateMetadata(_ context.Context, id string, fn func(*model.TemplateMetadata) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.templates[id]
	if !ok {
		return &quillerrors.NotFoundError{Resource: "template", ID: id}
	}
	return fn(m)
}

func (s *memStore) MutateWorkflowMetadata(_ context.Context, id string, fn func(*model.WorkflowMetadata) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.workflows[id]
	if !ok {
		return &quillerrors.NotFoundError{Resource: "workflow", ID: id}
	}
	return fn(m)
}

func TestNextWorkflowStats(t *testing.T) {
	tests := []struct {
		name      string
		durations []int64
		outcomes  []bool
		wantAvg   float64
		wantRate  float64
		wantCount int
	}{
		{"running average", []int64{100, 200, 300}, []bool{true, true, true}, 200, 1.0, 3},
		{"success rate", []int64{0, 0, 0, 0}, []bool{true, false, true, true}, 0, 0.75, 4},
		{"single failure", []int64{50}, []bool{false}, 50, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := model.WorkflowMetadata{SuccessRate: 1.0}
			for i, d := range tt.durations {
				m = NextWorkflowStats(m, d, tt.outcomes[i])
			}
			assert.InDelta(t, tt.wantAvg, m.AverageCompletionTime, 1e-9)
			assert.InDelta(t, tt.wantRate, m.SuccessRate, 1e-9)
			assert.Equal(t, tt.wantCount, m.UsageCount)
		})
	}
}

func TestAggregator_RecordTemplateUse(t *testing.T) {
	store := newMemStore()
	reg := prometheus.NewRegistry()
	agg := New(store, reg)

	require.NoError(t, agg.RecordTemplateUse(context.Background(), "t1"))
	require.NoError(t, agg.RecordTemplateUse(context.Background(), "t1"))

	assert.Equal(t, 2, store.templates["t1"].UsageCount)
	assert.Equal(t, 2.0, testutil.ToFloat64(agg.templateUses.WithLabelValues("t1")))

	err := agg.RecordTemplateUse(context.Background(), "missing")
	assert.True(t, quillerrors.IsNotFound(err))
}

func TestAggregator_RecordWorkflowRun(t *testing.T) {
	store := newMemStore()
	reg := prometheus.NewRegistry()
	agg := New(store, reg)
	ctx := context.Background()

	require.NoError(t, agg.RecordWorkflowRun(ctx, "w1", 100, true))
	require.NoError(t, agg.RecordWorkflowRun(ctx, "w1", 200, false))
	require.NoError(t, agg.RecordWorkflowRun(ctx, "w1", 300, true))
	require.NoError(t, agg.RecordWorkflowRun(ctx, "w1", 200, true))

	m := store.workflows["w1"]
	assert.Equal(t, 4, m.UsageCount)
	assert.InDelta(t, 200, m.AverageCompletionTime, 1e-9)
	assert.InDelta(t, 0.75, m.SuccessRate, 1e-9)

	assert.Equal(t, 3.0, testutil.ToFloat64(agg.workflowRuns.WithLabelValues("w1", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(agg.workflowRuns.WithLabelValues("w1", "failure")))

	expected := `
# HELP quill_workflow_runs_total Total workflow runs by workflow id and outcome
# TYPE quill_workflow_runs_total counter
quill_workflow_runs_total{status="failure",workflow_id="w1"} 1
quill_workflow_runs_total{status="success",workflow_id="w1"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "quill_workflow_runs_total"))
}

func TestAggregator_ConcurrentRecordsAreNotLost(t *testing.T) {
	store := newMemStore()
	agg := New(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, agg.RecordWorkflowRun(context.Background(), "w1", 10, true))
			assert.NoError(t, agg.RecordTemplateUse(context.Background(), "t1"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, store.workflows["w1"].UsageCount)
	assert.Equal(t, 50, store.templates["t1"].UsageCount)
	assert.InDelta(t, 10, store.workflows["w1"].AverageCompletionTime, 1e-9)
}
