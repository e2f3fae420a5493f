package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/quill/internal/log"
	"github.com/tombee/quill/internal/tracing"
	"github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/model"
	"github.com/tombee/quill/pkg/render"
	"github.com/tombee/quill/pkg/variables"
	"github.com/tombee/quill/pkg/workflow/expression"
)

// DefaultMaxLoopItems bounds the number of iterations of a single loop step.
const DefaultMaxLoopItems = 1000

// TemplateSource resolves template ids for template steps.
type TemplateSource interface {
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
}

// Interpreter runs workflow steps against a variable environment.
// An Interpreter holds no per-run state and may be shared between
// concurrent runs.
type Interpreter struct {
	templates    TemplateSource
	actions      *ActionRegistry
	evaluator    *expression.Evaluator
	scheduler    Scheduler
	tracer       trace.Tracer
	logger       *slog.Logger
	maxLoopItems int
	now          func() time.Time
}

// NewInterpreter creates an interpreter. actions may be nil when no action
// steps are expected.
func NewInterpreter(templates TemplateSource, actions *ActionRegistry) *Interpreter {
	if actions == nil {
		actions = NewActionRegistry()
	}
	return &Interpreter{
		templates:    templates,
		actions:      actions,
		evaluator:    expression.New(),
		scheduler:    OrderScheduler{},
		tracer:       tracing.DefaultTracer(),
		logger:       slog.Default(),
		maxLoopItems: DefaultMaxLoopItems,
		now:          time.Now,
	}
}

// WithLogger sets the logger for the interpreter.
func (i *Interpreter) WithLogger(logger *slog.Logger) *Interpreter {
	i.logger = logger
	return i
}

// WithScheduler replaces the default order-based scheduler.
func (i *Interpreter) WithScheduler(s Scheduler) *Interpreter {
	i.scheduler = s
	return i
}

// WithTracer sets the tracer used for run and step spans.
func (i *Interpreter) WithTracer(tracer trace.Tracer) *Interpreter {
	i.tracer = tracer
	return i
}

// WithMaxLoopItems sets the iteration limit for loop steps.
func (i *Interpreter) WithMaxLoopItems(max int) *Interpreter {
	if max > 0 {
		i.maxLoopItems = max
	}
	return i
}

// Actions returns the interpreter's action registry.
func (i *Interpreter) Actions() *ActionRegistry {
	return i.actions
}

// Run executes wf's steps in scheduled order, starting from a copy of
// initial. Step failures never surface as a returned error: each one is
// recorded in the result as "Step <name>: <error>". A failing step halts
// the run unless it is marked optional.
func (i *Interpreter) Run(ctx context.Context, wf *model.Workflow, initial map[string]any) *model.ExecutionResult {
	start := i.now()
	runID := uuid.NewString()

	env := model.CloneMap(initial)
	if env == nil {
		env = map[string]any{}
	}

	result := &model.ExecutionResult{
		RunID:          runID,
		WorkflowID:     wf.ID,
		CompletedSteps: []model.StepOutput{},
		Errors:         []string{},
	}

	logger := log.WithRunContext(i.logger, runID, wf.Name)
	ctx, span := tracing.StartRun(ctx, i.tracer, runID, wf.ID, wf.Name)

	logger.Info("workflow started", log.EventKey, "workflow_started", "steps", len(wf.Steps))

	steps, err := i.scheduler.Schedule(wf.Steps)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		steps = nil
	}

	for idx := range steps {
		step := &steps[idx]
		stepLogger := log.WithStepContext(logger, step.ID, string(step.Type))
		stepStart := i.now()

		output, err := i.executeStep(ctx, step, env, stepLogger)
		elapsed := i.now().Sub(stepStart).Milliseconds()

		if err != nil {
			stepErr := &errors.StepError{StepID: step.ID, StepName: step.DisplayName(), Cause: err}
			result.Errors = append(result.Errors, stepErr.Error())

			if step.Metadata.IsOptional {
				stepLogger.Warn("optional step failed, continuing", log.Error(err), log.Duration(elapsed))
				continue
			}
			stepLogger.Error("step failed, halting workflow", log.Error(err), log.Duration(elapsed))
			break
		}

		for k, v := range output {
			env[k] = v
		}
		result.CompletedSteps = append(result.CompletedSteps, model.StepOutput{StepID: step.ID, Output: output})
		stepLogger.Debug("step completed", log.Duration(elapsed))
	}

	result.Success = len(result.Errors) == 0
	result.Duration = i.now().Sub(start).Milliseconds()
	result.Variables = env

	span.SetInt(tracing.AttrCompletedSteps, len(result.CompletedSteps))
	if result.Success {
		span.Finish(nil)
		logger.Info("workflow completed", log.EventKey, "workflow_completed", log.Duration(result.Duration))
	} else {
		span.Finish(fmt.Errorf("%d step error(s)", len(result.Errors)))
		logger.Warn("workflow finished with errors", log.EventKey, "workflow_failed",
			"errors", len(result.Errors), log.Duration(result.Duration))
	}

	return result
}

// executeStep runs one step and returns the output to merge into env.
func (i *Interpreter) executeStep(ctx context.Context, step *model.Step, env map[string]any, logger *slog.Logger) (map[string]any, error) {
	ctx, span := tracing.StartStep(ctx, i.tracer, step.ID, string(step.Type))
	output, err := i.dispatch(ctx, step, env, logger)
	span.Finish(err)
	if err != nil {
		return nil, err
	}
	return output, nil
}

func (i *Interpreter) dispatch(ctx context.Context, step *model.Step, env map[string]any, logger *slog.Logger) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("execution cancelled: %w", err)
	}

	params := render.ResolveMap(step.Parameters, env)
	log.Trace(logger, "resolved step parameters", slog.Any("parameters", params))

	if len(step.Variables) > 0 {
		if res := variables.Validate(step.Variables, merge(env, params)); !res.Valid {
			return nil, res.Err()
		}
	}

	switch step.Type {
	case model.StepTemplate:
		return i.executeTemplate(ctx, step.TemplateID, params, env, logger)
	case model.StepAction:
		return i.executeAction(ctx, step.Action, params, env)
	case model.StepCondition:
		return i.executeCondition(step.Condition, env)
	case model.StepLoop:
		return i.executeLoop(ctx, step, params, env, logger)
	default:
		return nil, fmt.Errorf("Unknown step type: %s", step.Type)
	}
}

func (i *Interpreter) executeTemplate(ctx context.Context, templateID string, params, env map[string]any, logger *slog.Logger) (map[string]any, error) {
	id := render.Render(templateID, env)
	if id == "" {
		return nil, fmt.Errorf("template step requires a templateId")
	}
	if i.templates == nil {
		return nil, fmt.Errorf("no template source configured")
	}

	ctx, span := tracing.StartTemplate(ctx, i.tracer, id)
	tmpl, err := i.templates.GetTemplate(ctx, id)
	if err != nil {
		span.Finish(err)
		return nil, err
	}

	values := merge(env, params)
	if res := variables.Validate(tmpl.Variables, values); !res.Valid {
		err := res.Err()
		span.Finish(err)
		return nil, err
	}
	span.Finish(nil)

	content := render.Render(tmpl.Content, variables.ApplyDefaults(tmpl.Variables, values))
	log.Trace(logger, "rendered template", slog.String(log.TemplateIDKey, tmpl.ID), slog.String("content", content))

	return map[string]any{
		"content":    content,
		"templateId": tmpl.ID,
	}, nil
}

func (i *Interpreter) executeAction(ctx context.Context, name string, params, env map[string]any) (map[string]any, error) {
	handler, ok := i.actions.Get(name)
	if !ok {
		return nil, fmt.Errorf("Unknown action: %s", name)
	}
	return invoke(ctx, name, handler, params, model.CloneMap(env))
}

func (i *Interpreter) executeCondition(condition string, env map[string]any) (map[string]any, error) {
	if condition == "" {
		return nil, fmt.Errorf("condition step requires a condition expression")
	}
	ok, err := i.evaluator.Evaluate(condition, env)
	if err != nil {
		return nil, err
	}
	return map[string]any{"conditionResult": ok}, nil
}

// merge returns a new map holding base overlaid with over.
func merge(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
