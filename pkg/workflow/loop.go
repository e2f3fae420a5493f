package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/tombee/quill/pkg/model"
	"github.com/tombee/quill/pkg/render"
)

// executeLoop runs the step's body once per item. The body is whichever of
// templateId, action or condition the step sets, checked in that order. Each
// iteration sees a copy of env with item and index bound; iterations do not
// leak variables into each other or into the run.
func (i *Interpreter) executeLoop(ctx context.Context, step *model.Step, params, env map[string]any, logger *slog.Logger) (map[string]any, error) {
	items, err := loopItems(params, env)
	if err != nil {
		return nil, err
	}
	if len(items) > i.maxLoopItems {
		return nil, fmt.Errorf("loop has %d items, limit is %d", len(items), i.maxLoopItems)
	}

	body, err := loopBody(step)
	if err != nil {
		return nil, err
	}

	iterations := make([]any, 0, len(items))
	for idx, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("execution cancelled: %w", err)
		}

		iterEnv := model.CloneMap(env)
		iterEnv["item"] = item
		iterEnv["index"] = idx
		iterParams := render.ResolveMap(step.Parameters, iterEnv)

		var output map[string]any
		switch body {
		case model.StepTemplate:
			output, err = i.executeTemplate(ctx, step.TemplateID, iterParams, iterEnv, logger)
		case model.StepAction:
			output, err = i.executeAction(ctx, step.Action, iterParams, iterEnv)
		case model.StepCondition:
			output, err = i.executeCondition(step.Condition, iterEnv)
		}
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", idx, err)
		}
		iterations = append(iterations, output)
	}

	logger.Debug("loop completed", "count", len(items))

	return map[string]any{
		"iterations": iterations,
		"count":      len(items),
	}, nil
}

// loopItems resolves the sequence a loop iterates over. parameters.items
// may be the sequence itself or the name of an env variable holding it;
// without it the env variable "items" is used.
func loopItems(params, env map[string]any) ([]any, error) {
	source, ok := params["items"]
	name := "items"
	if ok {
		if s, isString := source.(string); isString {
			name = s
			source, ok = env[s]
		}
	} else {
		source, ok = env["items"]
	}

	if !ok || source == nil {
		return nil, fmt.Errorf("loop items not found: %s", name)
	}

	items, isList := toList(source)
	if !isList {
		return nil, fmt.Errorf("loop items must be a list, got %T", source)
	}
	return items, nil
}

func loopBody(step *model.Step) (model.StepType, error) {
	switch {
	case step.TemplateID != "":
		return model.StepTemplate, nil
	case step.Action != "":
		return model.StepAction, nil
	case step.Condition != "":
		return model.StepCondition, nil
	default:
		return "", fmt.Errorf("loop step requires a templateId, action or condition to run per item")
	}
}

// toList converts any slice or array into []any.
func toList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for idx := range out {
		out[idx] = rv.Index(idx).Interface()
	}
	return out, true
}
