package registry

import (
	"context"
	"fmt"

	"github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/model"
)

// CategoryPatch lists category fields to change. Nil fields are left alone.
type CategoryPatch struct {
	Name        *string
	Description *string
	Color       *string
	Icon        *string
}

// CreateCategory stores a copy of c, assigning an id when it has none.
func (r *Registry) CreateCategory(ctx context.Context, c *model.Category) (*model.Category, error) {
	stored := c.Clone()
	if err := checkCategory(stored); err != nil {
		return nil, err
	}
	if stored.ID == "" {
		stored.ID = r.newID()
	}

	r.mu.Lock()
	if _, exists := r.categories[stored.ID]; exists {
		r.mu.Unlock()
		return nil, &errors.ValidationError{
			Field:   "id",
			Message: fmt.Sprintf("category already exists: %s", stored.ID),
		}
	}
	r.categories[stored.ID] = stored
	r.mu.Unlock()

	r.emit(ctx, KindCategory, EventCreated, stored.ID, stored.Clone())
	return stored.Clone(), nil
}

// GetCategory returns a copy of the category with id.
func (r *Registry) GetCategory(_ context.Context, id string) (*model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.categories[id]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "category", ID: id}
	}
	return c.Clone(), nil
}

// UpdateCategory applies patch to the category with id.
func (r *Registry) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (*model.Category, error) {
	r.mu.Lock()
	stored, ok := r.categories[id]
	if !ok {
		r.mu.Unlock()
		return nil, &errors.NotFoundError{Resource: "category", ID: id}
	}

	next := stored.Clone()
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Color != nil {
		next.Color = *patch.Color
	}
	if patch.Icon != nil {
		next.Icon = *patch.Icon
	}
	if err := checkCategory(next); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.categories[id] = next
	r.mu.Unlock()

	r.emit(ctx, KindCategory, EventUpdated, id, next.Clone())
	return next.Clone(), nil
}

// DeleteCategory removes the category and reports whether it existed.
// Templates and workflows that reference it keep the reference.
func (r *Registry) DeleteCategory(ctx context.Context, id string) bool {
	r.mu.Lock()
	c, ok := r.categories[id]
	delete(r.categories, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.emit(ctx, KindCategory, EventDeleted, id, c)
	return true
}

// ListCategories returns copies of all categories ordered by name.
func (r *Registry) ListCategories(_ context.Context) []*model.Category {
	r.mu.RLock()
	out := make([]*model.Category, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, c.Clone())
	}
	r.mu.RUnlock()

	sortByName(out, func(c *model.Category) (string, string) { return c.Name, c.ID })
	return out
}
