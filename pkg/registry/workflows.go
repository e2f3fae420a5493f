package registry

import (
	"context"
	"fmt"

	"github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/model"
)

// WorkflowPatch lists workflow fields to change. Nil fields are left alone.
type WorkflowPatch struct {
	Name        *string
	Description *string
	Category    *string
	Steps       *[]model.Step
	Triggers    *[]model.Trigger
	Variables   *[]model.Variable
	IsActive    *bool
}

// CreateWorkflow stores a copy of w with neutral statistics: no runs, a
// success rate of 1 and an average completion time of 0. New workflows are
// always active.
func (r *Registry) CreateWorkflow(ctx context.Context, w *model.Workflow) (*model.Workflow, error) {
	stored := w.Clone()
	if err := r.checkWorkflow(stored); err != nil {
		return nil, err
	}
	if stored.ID == "" {
		stored.ID = r.newID()
	}

	now := r.now()
	stored.Metadata = model.WorkflowMetadata{
		CreatedAt:   now,
		UpdatedAt:   now,
		SuccessRate: 1.0,
		IsActive:    true,
	}

	r.mu.Lock()
	if _, exists := r.workflows[stored.ID]; exists {
		r.mu.Unlock()
		return nil, &errors.ValidationError{
			Field:   "id",
			Message: fmt.Sprintf("workflow already exists: %s", stored.ID),
		}
	}
	r.workflows[stored.ID] = stored
	r.mu.Unlock()

	r.logger.Debug("workflow created", "workflow_id", stored.ID, "name", stored.Name, "steps", len(stored.Steps))
	r.emit(ctx, KindWorkflow, EventCreated, stored.ID, stored.Clone())
	return stored.Clone(), nil
}

// GetWorkflow returns a copy of the workflow with id.
func (r *Registry) GetWorkflow(_ context.Context, id string) (*model.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workflows[id]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "workflow", ID: id}
	}
	return w.Clone(), nil
}

// UpdateWorkflow applies patch and refreshes updatedAt. Run statistics are
// preserved.
func (r *Registry) UpdateWorkflow(ctx context.Context, id string, patch WorkflowPatch) (*model.Workflow, error) {
	unlock := r.locks.Lock(lockKey(KindWorkflow, id))
	defer unlock()

	current, err := r.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}

	applyWorkflowPatch(current, patch)
	if err := r.checkWorkflow(current); err != nil {
		return nil, err
	}
	current.Metadata.UpdatedAt = r.now()

	r.mu.Lock()
	if _, ok := r.workflows[id]; !ok {
		r.mu.Unlock()
		return nil, &errors.NotFoundError{Resource: "workflow", ID: id}
	}
	r.workflows[id] = current
	r.mu.Unlock()

	r.logger.Debug("workflow updated", "workflow_id", id)
	r.emit(ctx, KindWorkflow, EventUpdated, id, current.Clone())
	return current.Clone(), nil
}

// DeleteWorkflow removes the workflow and reports whether it existed.
func (r *Registry) DeleteWorkflow(ctx context.Context, id string) bool {
	unlock := r.locks.Lock(lockKey(KindWorkflow, id))
	defer unlock()

	r.mu.Lock()
	w, ok := r.workflows[id]
	delete(r.workflows, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.logger.Debug("workflow deleted", "workflow_id", id)
	r.emit(ctx, KindWorkflow, EventDeleted, id, w)
	return true
}

// ListWorkflows returns copies of the workflows matching filter, ordered
// by name.
func (r *Registry) ListWorkflows(_ context.Context, filter WorkflowFilter) []*model.Workflow {
	r.mu.RLock()
	out := make([]*model.Workflow, 0, len(r.workflows))
	for _, w := range r.workflows {
		if filter.matches(w) {
			out = append(out, w.Clone())
		}
	}
	r.mu.RUnlock()

	sortByName(out, func(w *model.Workflow) (string, string) { return w.Name, w.ID })
	return out
}

// MutateWorkflowMetadata runs fn on the workflow's metadata while holding
// the workflow's exclusive lock, then stores the result. Metadata mutations
// do not emit events.
func (r *Registry) MutateWorkflowMetadata(ctx context.Context, id string, fn func(*model.WorkflowMetadata) error) error {
	unlock := r.locks.Lock(lockKey(KindWorkflow, id))
	defer unlock()

	current, err := r.GetWorkflow(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(&current.Metadata); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.workflows[id]
	if !ok {
		return &errors.NotFoundError{Resource: "workflow", ID: id}
	}
	stored.Metadata = current.Metadata
	return nil
}

func applyWorkflowPatch(w *model.Workflow, p WorkflowPatch) {
	if p.Name != nil {
		w.Name = *p.Name
	}
	if p.Description != nil {
		w.Description = *p.Description
	}
	if p.Category != nil {
		w.Category = *p.Category
	}
	if p.Steps != nil {
		w.Steps = (&model.Workflow{Steps: *p.Steps}).Clone().Steps
	}
	if p.Triggers != nil {
		w.Triggers = (&model.Workflow{Triggers: *p.Triggers}).Clone().Triggers
	}
	if p.Variables != nil {
		w.Variables = model.CloneVariables(*p.Variables)
	}
	if p.IsActive != nil {
		w.Metadata.IsActive = *p.IsActive
	}
}
