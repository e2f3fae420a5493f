package model

import "time"

// StepType selects how the interpreter executes a step.
type StepType string

const (
	StepTemplate  StepType = "template"
	StepAction    StepType = "action"
	StepCondition StepType = "condition"
	StepLoop      StepType = "loop"
)

// Valid reports whether t is a step type the interpreter knows.
func (t StepType) Valid() bool {
	switch t {
	case StepTemplate, StepAction, StepCondition, StepLoop:
		return true
	}
	return false
}

// StepMetadata carries sequencing and failure policy for a step.
type StepMetadata struct {
	// Order defines execution sequence; ties keep declaration order.
	Order      int  `json:"order" yaml:"order"`
	IsOptional bool `json:"isOptional" yaml:"isOptional"`
	// EstimatedTime is informational, in minutes.
	EstimatedTime int `json:"estimatedTime,omitempty" yaml:"estimatedTime,omitempty"`
}

// Step is a WorkflowStep.
type Step struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Type       StepType       `json:"type" yaml:"type"`
	TemplateID string         `json:"templateId,omitempty" yaml:"templateId,omitempty"`
	Action     string         `json:"action,omitempty" yaml:"action,omitempty"`
	Condition  string         `json:"condition,omitempty" yaml:"condition,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	// Variables declares inputs checked against the environment before dispatch.
	Variables []Variable   `json:"variables,omitempty" yaml:"variables,omitempty"`
	NextSteps []string     `json:"nextSteps,omitempty" yaml:"nextSteps,omitempty"`
	DependsOn []string     `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	Metadata  StepMetadata `json:"metadata" yaml:"metadata"`
}

// DisplayName is the name used in error messages.
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Clone returns a deep copy of s.
func (s Step) Clone() Step {
	out := s
	out.Parameters = CloneMap(s.Parameters)
	out.Variables = CloneVariables(s.Variables)
	if s.NextSteps != nil {
		out.NextSteps = append([]string(nil), s.NextSteps...)
	}
	if s.DependsOn != nil {
		out.DependsOn = append([]string(nil), s.DependsOn...)
	}
	return out
}

// TriggerType names what starts a workflow. Triggers are carried as data for
// the host; the engine never fires them itself.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduled TriggerType = "scheduled"
	TriggerEvent     TriggerType = "event"
	TriggerCondition TriggerType = "condition"
)

// Trigger describes one way a workflow may be started.
type Trigger struct {
	Type   TriggerType    `json:"type" yaml:"type"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// WorkflowMetadata holds running statistics maintained by the aggregator.
type WorkflowMetadata struct {
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" yaml:"updatedAt"`
	UsageCount int       `json:"usageCount" yaml:"usageCount"`
	// AverageCompletionTime is a running mean in milliseconds.
	AverageCompletionTime float64 `json:"averageCompletionTime" yaml:"averageCompletionTime"`
	// SuccessRate is a running mean of binary outcomes in [0, 1].
	SuccessRate float64 `json:"successRate" yaml:"successRate"`
	IsActive    bool    `json:"isActive" yaml:"isActive"`
}

// Workflow is a NoteWorkflow.
type Workflow struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string    `json:"category,omitempty" yaml:"category,omitempty"`
	Steps       []Step    `json:"steps" yaml:"steps"`
	Triggers    []Trigger `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	// Variables declares the initial inputs validated before the first step.
	Variables []Variable       `json:"variables,omitempty" yaml:"variables,omitempty"`
	Metadata  WorkflowMetadata `json:"metadata" yaml:"metadata"`
}

// Clone returns a deep copy of w.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := *w
	if w.Steps != nil {
		out.Steps = make([]Step, len(w.Steps))
		for i, s := range w.Steps {
			out.Steps[i] = s.Clone()
		}
	}
	if w.Triggers != nil {
		out.Triggers = make([]Trigger, len(w.Triggers))
		for i, tr := range w.Triggers {
			out.Triggers[i] = Trigger{Type: tr.Type, Config: CloneMap(tr.Config)}
		}
	}
	out.Variables = CloneVariables(w.Variables)
	return &out
}

// StepByID returns the step with id, or nil.
func (w *Workflow) StepByID(id string) *Step {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i]
		}
	}
	return nil
}
