// Package metrics maintains usage statistics for templates and workflows.
//
// Counters live on the registry records themselves. The Aggregator only
// computes new values and writes them back through the store's per-id
// exclusive mutation path, so concurrent records for the same entity are
// never lost. Every record is mirrored into Prometheus collectors.
package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tombee/quill/pkg/model"
)

// Store applies a mutation to one entity's metadata while holding that
// entity's exclusive lock.
type Store interface {
	MutateTemplateMetadata(ctx context.Context, id string, fn func(*model.TemplateMetadata) error) error
	MutateWorkflowMetadata(ctx context.Context, id string, fn func(*model.WorkflowMetadata) error) error
}

// Aggregator records template usage and workflow run statistics.
type Aggregator struct {
	store  Store
	logger *slog.Logger

	templateUses     *prometheus.CounterVec
	workflowRuns     *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the aggregator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// New creates an Aggregator writing through store. Collectors are
// registered on reg; a nil reg keeps them unregistered, which suits tests
// and embedded use where nothing scrapes.
func New(store Store, reg prometheus.Registerer, opts ...Option) *Aggregator {
	factory := promauto.With(reg)

	a := &Aggregator{
		store:  store,
		logger: slog.Default(),
		templateUses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_template_uses_total",
				Help: "Total successful template renders by template id",
			},
			[]string{"template_id"},
		),
		workflowRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quill_workflow_runs_total",
				Help: "Total workflow runs by workflow id and outcome",
			},
			[]string{"workflow_id", "status"},
		),
		workflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quill_workflow_duration_seconds",
				Help:    "Workflow run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"workflow_id"},
		),
	}

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RecordTemplateUse increments the template's usage count.
func (a *Aggregator) RecordTemplateUse(ctx context.Context, id string) error {
	err := a.store.MutateTemplateMetadata(ctx, id, func(m *model.TemplateMetadata) error {
		m.UsageCount++
		return nil
	})
	if err != nil {
		return fmt.Errorf("record template use: %w", err)
	}

	a.templateUses.WithLabelValues(id).Inc()
	a.logger.Debug("template use recorded", "template_id", id)
	return nil
}

// RecordWorkflowRun folds one run into the workflow's running statistics.
func (a *Aggregator) RecordWorkflowRun(ctx context.Context, id string, durationMs int64, succeeded bool) error {
	var next model.WorkflowMetadata
	err := a.store.MutateWorkflowMetadata(ctx, id, func(m *model.WorkflowMetadata) error {
		*m = NextWorkflowStats(*m, durationMs, succeeded)
		next = *m
		return nil
	})
	if err != nil {
		return fmt.Errorf("record workflow run: %w", err)
	}

	status := "success"
	if !succeeded {
		status = "failure"
	}
	a.workflowRuns.WithLabelValues(id, status).Inc()
	a.workflowDuration.WithLabelValues(id).Observe(float64(durationMs) / 1000)

	a.logger.Debug("workflow run recorded",
		"workflow_id", id,
		"status", status,
		"usage_count", next.UsageCount,
		"average_ms", next.AverageCompletionTime,
		"success_rate", next.SuccessRate,
	)
	return nil
}

// NextWorkflowStats returns m with one more run folded in. The running
// means use n = usageCount+1 as the new sample count:
//
//	avg  = (avg*(n-1) + durationMs) / n
//	rate = (rate*(n-1) + outcome) / n
func NextWorkflowStats(m model.WorkflowMetadata, durationMs int64, succeeded bool) model.WorkflowMetadata {
	n := float64(m.UsageCount + 1)

	outcome := 0.0
	if succeeded {
		outcome = 1.0
	}

	m.AverageCompletionTime = (m.AverageCompletionTime*(n-1) + float64(durationMs)) / n
	m.SuccessRate = (m.SuccessRate*(n-1) + outcome) / n
	m.UsageCount++
	return m
}
