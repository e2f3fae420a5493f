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
	"errors"
	"fmt"

	"github.com/tombee/quill/pkg/registry"
)

// SaveSnapshot stores data as the newest registry snapshot and prunes old
// ones beyond the retention limit.
func (s *Store) SaveSnapshot(ctx context.Context, data []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (data, created_at) VALUES (?, ?)`,
		data, formatTime(s.now()),
	); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id NOT IN (SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)`,
		s.retention,
	); err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}

	return tx.Commit()
}

// LoadSnapshot returns the newest snapshot, or nil when none was saved.
func (s *Store) LoadSnapshot(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots ORDER BY id DESC LIMIT 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return data, nil
}

// SnapshotCount returns the number of retained snapshots.
func (s *Store) SnapshotCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}

// Save exports reg and stores it as the newest snapshot.
func (s *Store) Save(ctx context.Context, reg *registry.Registry) error {
	data, err := reg.Export(ctx)
	if err != nil {
		return err
	}
	return s.SaveSnapshot(ctx, data)
}

// Load imports the newest snapshot into reg. It returns a nil report when
// no snapshot exists.
func (s *Store) Load(ctx context.Context, reg *registry.Registry) (*registry.ImportReport, error) {
	data, err := s.LoadSnapshot(ctx)
	if err != nil || data == nil {
		return nil, err
	}
	return reg.Import(ctx, data)
}
