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
	"encoding/json"
	"fmt"

	"github.com/tombee/quill/pkg/model"
)

// RunRecord is one stored workflow run.
type RunRecord struct {
	ID             string   `json:"id"`
	WorkflowID     string   `json:"workflowId"`
	Success        bool     `json:"success"`
	DurationMs     int64    `json:"durationMs"`
	CompletedSteps []string `json:"completedSteps"`
	Errors         []string `json:"errors"`
	CreatedAt      string   `json:"createdAt"`
}

// RecordRun stores the outcome of a workflow run. Step outputs are not
// kept, only which steps completed.
func (s *Store) RecordRun(ctx context.Context, result *model.ExecutionResult) error {
	completed, err := json.Marshal(result.CompletedStepIDs())
	if err != nil {
		return fmt.Errorf("failed to marshal completed steps: %w", err)
	}
	errs, err := json.Marshal(result.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, workflow_id, success, duration_ms, completed_steps, errors, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.WorkflowID, boolToInt(result.Success), result.Duration,
		string(completed), string(errs), formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListRuns returns the newest runs of a workflow, most recent first. An
// empty workflowID lists runs of every workflow.
func (s *Store) ListRuns(ctx context.Context, workflowID string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, workflow_id, success, duration_ms, completed_steps, errors, created_at FROM runs`
	args := []any{}
	if workflowID != "" {
		query += ` WHERE workflow_id = ?`
		args = append(args, workflowID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			r                 RunRecord
			success           int
			completed, errors string
		)
		if err := rows.Scan(&r.ID, &r.WorkflowID, &success, &r.DurationMs, &completed, &errors, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Success = success != 0
		if err := json.Unmarshal([]byte(completed), &r.CompletedSteps); err != nil {
			return nil, fmt.Errorf("failed to decode completed steps: %w", err)
		}
		if err := json.Unmarshal([]byte(errors), &r.Errors); err != nil {
			return nil, fmt.Errorf("failed to decode errors: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
