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

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	qerrors "github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/model"
)

// CreateNote stores a new note with a generated id.
func (s *Store) CreateNote(ctx context.Context, title, content string, tags []string) (*model.Note, error) {
	now := s.now().UTC()
	note := &model.Note{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Tags:      append([]string(nil), tags...),
		CreatedAt: now,
		UpdatedAt: now,
	}

	tagsJSON, err := json.Marshal(note.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notes (id, title, content, tags, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		note.ID, note.Title, note.Content, string(tagsJSON), formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return note, nil
}

// GetNote returns the note with the given id.
func (s *Store) GetNote(ctx context.Context, id string) (*model.Note, error) {
	var (
		note             model.Note
		tags             string
		created, updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, tags, created_at, updated_at FROM notes WHERE id = ?`, id,
	).Scan(&note.ID, &note.Title, &note.Content, &tags, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &qerrors.NotFoundError{Resource: "note", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	if err := json.Unmarshal([]byte(tags), &note.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	note.CreatedAt = parseTime(created)
	note.UpdatedAt = parseTime(updated)
	return &note, nil
}

// UpdateNote applies patch to the note with the given id.
func (s *Store) UpdateNote(ctx context.Context, id string, patch model.NotePatch) (*model.Note, error) {
	note, err := s.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		note.Title = *patch.Title
	}
	if patch.Content != nil {
		note.Content = *patch.Content
	}
	if patch.Tags != nil {
		note.Tags = append([]string(nil), (*patch.Tags)...)
	}
	note.UpdatedAt = s.now().UTC()

	tagsJSON, err := json.Marshal(note.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, tags = ?, updated_at = ? WHERE id = ?`,
		note.Title, note.Content, string(tagsJSON), formatTime(note.UpdatedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	return note, nil
}

// SelectNote marks the note as the current selection.
func (s *Store) SelectNote(ctx context.Context, id string) error {
	if _, err := s.GetNote(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO selection (slot, note_id, selected_at) VALUES (1, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET note_id = excluded.note_id, selected_at = excluded.selected_at`,
		id, formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to select note: %w", err)
	}
	return nil
}

// SelectedNote returns the id of the selected note, or "" when none is.
func (s *Store) SelectedNote(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT note_id FROM selection WHERE slot = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read selection: %w", err)
	}
	return id, nil
}
