// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package actions

import (
	"context"

	"github.com/tombee/quill/pkg/model"
)

// NoteStore is the host's note store as used by the note actions.
type NoteStore interface {
	CreateNote(ctx context.Context, title, content string, tags []string) (*model.Note, error)
	UpdateNote(ctx context.Context, id string, patch model.NotePatch) (*model.Note, error)
	GetNote(ctx context.Context, id string) (*model.Note, error)
	SelectNote(ctx context.Context, id string) error
}

// Notes binds the note actions to a store.
type Notes struct {
	store NoteStore
}

// NewNotes creates note actions backed by store.
func NewNotes(store NoteStore) *Notes {
	return &Notes{store: store}
}

// Create is the note.create handler. parameters.title is required; content
// falls back to the "content" variable so a template step's output can be
// saved directly. With select: true the new note becomes the selection.
func (n *Notes) Create(ctx context.Context, params, env map[string]any) (map[string]any, error) {
	const action = "note.create"

	title, err := requireString(action, params, "title")
	if err != nil {
		return nil, err
	}
	content, ok, err := stringParam(action, params, "content")
	if err != nil {
		return nil, err
	}
	if !ok {
		content, _ = env["content"].(string)
	}
	tags, _, err := stringsParam(action, params, "tags")
	if err != nil {
		return nil, err
	}

	note, err := n.store.CreateNote(ctx, title, content, tags)
	if err != nil {
		return nil, &OperationError{Action: action, Message: "failed to create note", Cause: err}
	}

	if sel, _ := params["select"].(bool); sel {
		if err := n.store.SelectNote(ctx, note.ID); err != nil {
			return nil, &OperationError{Action: action, Message: "failed to select note", Cause: err}
		}
	}

	return noteOutput(params, note), nil
}

// Update is the note.update handler. The note id comes from parameters.id
// or the "noteId" variable left by an earlier note.create.
func (n *Notes) Update(ctx context.Context, params, env map[string]any) (map[string]any, error) {
	const action = "note.update"

	id, ok, err := stringParam(action, params, "id")
	if err != nil {
		return nil, err
	}
	if !ok {
		id, _ = env["noteId"].(string)
	}
	if id == "" {
		return nil, &OperationError{
			Action:     action,
			Message:    "no note id",
			Suggestion: "set parameters.id or run note.create first",
		}
	}

	var patch model.NotePatch
	if title, ok, err := stringParam(action, params, "title"); err != nil {
		return nil, err
	} else if ok {
		patch.Title = &title
	}
	if content, ok, err := stringParam(action, params, "content"); err != nil {
		return nil, err
	} else if ok {
		patch.Content = &content
	}
	if tags, ok, err := stringsParam(action, params, "tags"); err != nil {
		return nil, err
	} else if ok {
		patch.Tags = &tags
	}

	if appendText, ok, err := stringParam(action, params, "append"); err != nil {
		return nil, err
	} else if ok {
		current, err := n.store.GetNote(ctx, id)
		if err != nil {
			return nil, &OperationError{Action: action, Message: "failed to read note", Cause: err}
		}
		base := current.Content
		if patch.Content != nil {
			base = *patch.Content
		}
		joined := base + appendText
		patch.Content = &joined
	}

	note, err := n.store.UpdateNote(ctx, id, patch)
	if err != nil {
		return nil, &OperationError{Action: action, Message: "failed to update note", Cause: err}
	}
	return noteOutput(params, note), nil
}

func noteOutput(params map[string]any, note *model.Note) map[string]any {
	return map[string]any{
		"noteId":                  note.ID,
		outputKey(params, "note"): note.Fields(),
	}
}
