package model

// StepOutput is the output of one completed step, as merged into the
// variable environment.
type StepOutput struct {
	StepID string         `json:"stepId"`
	Output map[string]any `json:"output"`
}

// ExecutionResult is constructed fresh for every workflow invocation and
// returned to the caller. It is never stored on the workflow.
type ExecutionResult struct {
	RunID          string       `json:"runId"`
	WorkflowID     string       `json:"workflowId"`
	CompletedSteps []StepOutput `json:"completedSteps"`
	Errors         []string     `json:"errors"`
	Success        bool         `json:"success"`
	// Duration is wall-clock elapsed time in milliseconds.
	Duration int64 `json:"duration"`
	// Variables is the final environment after the last executed step.
	Variables map[string]any `json:"variables,omitempty"`
}

// CompletedStepIDs lists the ids of completed steps in execution order.
func (r *ExecutionResult) CompletedStepIDs() []string {
	ids := make([]string, len(r.CompletedSteps))
	for i, s := range r.CompletedSteps {
		ids[i] = s.StepID
	}
	return ids
}
