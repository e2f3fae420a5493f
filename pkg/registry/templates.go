package registry

import (
	"context"
	"fmt"

	"github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/model"
)

// TemplatePatch lists template fields to change. Nil fields are left alone.
type TemplatePatch struct {
	Name        *string
	Description *string
	Category    *string
	Tags        *[]string
	Content     *string
	Variables   *[]model.Variable
	IsPublic    *bool
	Author      *string
	Rating      *float64
}

// CreateTemplate stores a copy of t. An empty id is replaced with a
// generated one. Timestamps, usage count and version are set by the
// registry regardless of what t carries.
func (r *Registry) CreateTemplate(ctx context.Context, t *model.Template) (*model.Template, error) {
	stored := t.Clone()
	if err := r.checkTemplate(stored); err != nil {
		return nil, err
	}
	if stored.ID == "" {
		stored.ID = r.newID()
	}

	now := r.now()
	stored.Metadata.CreatedAt = now
	stored.Metadata.UpdatedAt = now
	stored.Metadata.UsageCount = 0
	stored.Metadata.Version = model.InitialVersion

	r.mu.Lock()
	if _, exists := r.templates[stored.ID]; exists {
		r.mu.Unlock()
		return nil, &errors.ValidationError{
			Field:   "id",
			Message: fmt.Sprintf("template already exists: %s", stored.ID),
		}
	}
	r.templates[stored.ID] = stored
	r.mu.Unlock()

	r.logger.Debug("template created", "template_id", stored.ID, "name", stored.Name)
	r.emit(ctx, KindTemplate, EventCreated, stored.ID, stored.Clone())
	return stored.Clone(), nil
}

// GetTemplate returns a copy of the template with id.
func (r *Registry) GetTemplate(_ context.Context, id string) (*model.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "template", ID: id}
	}
	return t.Clone(), nil
}

// UpdateTemplate applies patch, bumps the patch version and refreshes
// updatedAt. The patched template must still be valid.
func (r *Registry) UpdateTemplate(ctx context.Context, id string, patch TemplatePatch) (*model.Template, error) {
	unlock := r.locks.Lock(lockKey(KindTemplate, id))
	defer unlock()

	current, err := r.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	applyTemplatePatch(current, patch)
	if err := r.checkTemplate(current); err != nil {
		return nil, err
	}
	current.Metadata.UpdatedAt = r.now()
	current.Metadata.Version = bumpPatch(current.Metadata.Version)

	r.mu.Lock()
	if _, ok := r.templates[id]; !ok {
		r.mu.Unlock()
		return nil, &errors.NotFoundError{Resource: "template", ID: id}
	}
	r.templates[id] = current
	r.mu.Unlock()

	r.logger.Debug("template updated", "template_id", id, "version", current.Metadata.Version)
	r.emit(ctx, KindTemplate, EventUpdated, id, current.Clone())
	return current.Clone(), nil
}

// DeleteTemplate removes the template and reports whether it existed.
func (r *Registry) DeleteTemplate(ctx context.Context, id string) bool {
	unlock := r.locks.Lock(lockKey(KindTemplate, id))
	defer unlock()

	r.mu.Lock()
	t, ok := r.templates[id]
	delete(r.templates, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.logger.Debug("template deleted", "template_id", id)
	r.emit(ctx, KindTemplate, EventDeleted, id, t)
	return true
}

// ListTemplates returns copies of the templates matching filter, ordered
// by name.
func (r *Registry) ListTemplates(_ context.Context, filter TemplateFilter) []*model.Template {
	r.mu.RLock()
	out := make([]*model.Template, 0, len(r.templates))
	for _, t := range r.templates {
		if filter.matches(t) {
			out = append(out, t.Clone())
		}
	}
	r.mu.RUnlock()

	sortByName(out, func(t *model.Template) (string, string) { return t.Name, t.ID })
	return out
}

// MutateTemplateMetadata runs fn on the template's metadata while holding
// the template's exclusive lock, then stores the result. Metadata mutations
// do not emit events.
func (r *Registry) MutateTemplateMetadata(ctx context.Context, id string, fn func(*model.TemplateMetadata) error) error {
	unlock := r.locks.Lock(lockKey(KindTemplate, id))
	defer unlock()

	current, err := r.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(&current.Metadata); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.templates[id]
	if !ok {
		return &errors.NotFoundError{Resource: "template", ID: id}
	}
	stored.Metadata = current.Metadata
	return nil
}

func applyTemplatePatch(t *model.Template, p TemplatePatch) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Content != nil {
		t.Content = *p.Content
	}
	if p.Variables != nil {
		t.Variables = model.CloneVariables(*p.Variables)
	}
	if p.IsPublic != nil {
		t.Metadata.IsPublic = *p.IsPublic
	}
	if p.Author != nil {
		t.Metadata.Author = *p.Author
	}
	if p.Rating != nil {
		t.Metadata.Rating = *p.Rating
	}
}
