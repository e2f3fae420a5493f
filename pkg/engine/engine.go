// Package engine is the entry point hosts use to render templates and run
// workflows. It ties the registry, the interpreter and the metrics
// aggregator together.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tombee/quill/internal/log"
	"github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/metrics"
	"github.com/tombee/quill/pkg/model"
	"github.com/tombee/quill/pkg/registry"
	"github.com/tombee/quill/pkg/render"
	"github.com/tombee/quill/pkg/variables"
	"github.com/tombee/quill/pkg/workflow"
)

// Engine renders templates and executes workflows stored in a Registry.
type Engine struct {
	registry    *registry.Registry
	interpreter *workflow.Interpreter
	metrics     *metrics.Aggregator
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	actions    *workflow.ActionRegistry
	configure  []func(*workflow.Interpreter)
}

// WithLogger sets the logger for the engine and the components it builds.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// WithRegisterer registers the engine's Prometheus collectors on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *engineOptions) { o.registerer = reg }
}

// WithActions sets the action registry used by action steps.
func WithActions(actions *workflow.ActionRegistry) Option {
	return func(o *engineOptions) { o.actions = actions }
}

// WithInterpreter applies fn to the interpreter after it is built, for
// settings such as a scheduler or tracer.
func WithInterpreter(fn func(*workflow.Interpreter)) Option {
	return func(o *engineOptions) { o.configure = append(o.configure, fn) }
}

// New creates an Engine over reg.
func New(reg *registry.Registry, opts ...Option) *Engine {
	o := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	interp := workflow.NewInterpreter(reg, o.actions).WithLogger(o.logger)
	for _, fn := range o.configure {
		fn(interp)
	}

	return &Engine{
		registry:    reg,
		interpreter: interp,
		metrics:     metrics.New(reg, o.registerer, metrics.WithLogger(o.logger)),
		logger:      o.logger,
	}
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Interpreter returns the engine's interpreter.
func (e *Engine) Interpreter() *workflow.Interpreter {
	return e.interpreter
}

// UseTemplate validates values against the template's variables, renders it
// and records one use. A validation failure returns an
// *errors.ValidationError listing every violation; nothing is rendered or
// recorded in that case.
func (e *Engine) UseTemplate(ctx context.Context, id string, values map[string]any) (string, error) {
	content, err := e.Preview(ctx, id, values)
	if err != nil {
		return "", err
	}

	if err := e.metrics.RecordTemplateUse(ctx, id); err != nil {
		// Usage recording never fails a render.
		log.WithTemplate(e.logger, id).Warn("failed to record template use", log.Error(err))
	}
	return content, nil
}

// Preview renders a template like UseTemplate without recording usage.
func (e *Engine) Preview(ctx context.Context, id string, values map[string]any) (string, error) {
	tmpl, err := e.registry.GetTemplate(ctx, id)
	if err != nil {
		return "", err
	}

	if res := variables.Validate(tmpl.Variables, values); !res.Valid {
		return "", res.Err()
	}

	return render.Render(tmpl.Content, variables.ApplyDefaults(tmpl.Variables, values)), nil
}

// ExecuteWorkflow runs the workflow with id. Unknown ids, inactive
// workflows and initial values that fail the workflow's variable
// declarations are returned as errors before any step runs. Once steps
// start, failures are reported in the result, and the run is folded into
// the workflow's statistics.
func (e *Engine) ExecuteWorkflow(ctx context.Context, id string, initial map[string]any) (*model.ExecutionResult, error) {
	wf, err := e.registry.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if !wf.Metadata.IsActive {
		return nil, &errors.ValidationError{
			Field:      "workflow",
			Message:    fmt.Sprintf("workflow %s is inactive", id),
			Suggestion: "activate the workflow before running it",
		}
	}

	if len(wf.Variables) > 0 {
		if res := variables.Validate(wf.Variables, initial); !res.Valid {
			return nil, res.Err()
		}
		initial = variables.ApplyDefaults(wf.Variables, initial)
	}

	result := e.interpreter.Run(ctx, wf, initial)

	if err := e.metrics.RecordWorkflowRun(ctx, id, result.Duration, result.Success); err != nil {
		e.logger.Warn("failed to record workflow run", slog.String(log.WorkflowKey, id), log.Error(err))
	}
	return result, nil
}
