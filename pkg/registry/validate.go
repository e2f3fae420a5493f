package registry

import (
	"fmt"

	"github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/model"
	"github.com/tombee/quill/pkg/variables"
	"github.com/tombee/quill/pkg/workflow/expression"
)

// checkTemplate reports every problem with a template definition.
func (r *Registry) checkTemplate(t *model.Template) error {
	var problems []string
	if t.Name == "" {
		problems = append(problems, "name is required")
	}
	problems = append(problems, variables.CheckDefinitions(t.Variables)...)
	return invalid("template", problems)
}

// checkWorkflow reports structural problems with a workflow definition:
// names, step ids and the fields each known step type needs. Unknown step
// types and malformed conditions are left to the interpreter, which records
// them as step errors so an optional step can fail without blocking the run.
func (r *Registry) checkWorkflow(w *model.Workflow) error {
	var problems []string
	if w.Name == "" {
		problems = append(problems, "name is required")
	}
	problems = append(problems, variables.CheckDefinitions(w.Variables)...)

	seen := make(map[string]bool, len(w.Steps))
	for i, s := range w.Steps {
		label := fmt.Sprintf("step #%d", i+1)
		if s.ID == "" {
			problems = append(problems, label+": id is required")
		} else {
			label = "step " + s.ID
			if seen[s.ID] {
				problems = append(problems, "duplicate step id: "+s.ID)
			}
			seen[s.ID] = true
		}

		switch s.Type {
		case model.StepTemplate:
			if s.TemplateID == "" {
				problems = append(problems, label+": templateId is required")
			}
		case model.StepAction:
			if s.Action == "" {
				problems = append(problems, label+": action is required")
			}
		case model.StepCondition:
			if s.Condition == "" {
				problems = append(problems, label+": condition is required")
			}
		case model.StepLoop:
			if s.TemplateID == "" && s.Action == "" && s.Condition == "" {
				problems = append(problems, label+": loop needs a templateId, action or condition")
			}
		}

		for _, msg := range variables.CheckDefinitions(s.Variables) {
			problems = append(problems, label+": "+msg)
		}
	}

	return invalid("workflow", problems)
}

// StepWarnings lists problems that will fail individual steps at run time:
// unknown step types and conditions outside the expression grammar. They do
// not stop a workflow from being stored.
func StepWarnings(w *model.Workflow) []string {
	var warnings []string
	evaluator := expression.New()
	for i, s := range w.Steps {
		label := "step " + s.ID
		if s.ID == "" {
			label = fmt.Sprintf("step #%d", i+1)
		}
		if !s.Type.Valid() {
			warnings = append(warnings, fmt.Sprintf("%s: unknown step type %q", label, s.Type))
		}
		if s.Condition != "" {
			if err := evaluator.Check(s.Condition); err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: %v", label, err))
			}
		}
	}
	return warnings
}

// checkTemplateCounters rejects imported usage counts below zero.
func checkTemplateCounters(m *model.TemplateMetadata) error {
	if m.UsageCount < 0 {
		return invalid("metadata", []string{fmt.Sprintf("usageCount must be >= 0, got %d", m.UsageCount)})
	}
	return nil
}

// checkWorkflowCounters rejects imported run statistics outside their ranges.
func checkWorkflowCounters(m *model.WorkflowMetadata) error {
	var problems []string
	if m.UsageCount < 0 {
		problems = append(problems, fmt.Sprintf("usageCount must be >= 0, got %d", m.UsageCount))
	}
	if m.SuccessRate < 0 || m.SuccessRate > 1 {
		problems = append(problems, fmt.Sprintf("successRate must be within [0, 1], got %v", m.SuccessRate))
	}
	if m.AverageCompletionTime < 0 {
		problems = append(problems, fmt.Sprintf("averageCompletionTime must be >= 0, got %v", m.AverageCompletionTime))
	}
	return invalid("metadata", problems)
}

func checkCategory(c *model.Category) error {
	if c.Name == "" {
		return invalid("category", []string{"name is required"})
	}
	return nil
}

func invalid(field string, problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &errors.ValidationError{Field: field, Violations: problems}
}
