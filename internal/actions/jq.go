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
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

const (
	// DefaultJQTimeout bounds a single transform.jq evaluation.
	DefaultJQTimeout = 5 * time.Second

	// DefaultMaxInputSize is the largest input transform.jq accepts (10MB).
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// JQ evaluates jq queries with timeout and size limits.
type JQ struct {
	timeout      time.Duration
	maxInputSize int
}

// NewJQ creates a jq evaluator. Zero values select the defaults.
func NewJQ(timeout time.Duration, maxInputSize int) *JQ {
	if timeout <= 0 {
		timeout = DefaultJQTimeout
	}
	if maxInputSize <= 0 {
		maxInputSize = DefaultMaxInputSize
	}
	return &JQ{timeout: timeout, maxInputSize: maxInputSize}
}

// Execute runs query against data. A query yielding one value returns it
// directly, several values are returned as a list and none returns nil.
func (j *JQ) Execute(ctx context.Context, query string, data any) (any, error) {
	if query == "" {
		return data, nil
	}

	input, err := j.normalize(data)
	if err != nil {
		return nil, err
	}

	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		iter := code.RunWithContext(execCtx, input)
		var results []any
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				done <- outcome{err: err}
				return
			}
			results = append(results, v)
		}

		switch len(results) {
		case 0:
			done <- outcome{}
		case 1:
			done <- outcome{value: results[0]}
		default:
			done <- outcome{value: results}
		}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("execution timeout after %v", j.timeout)
	}
}

// Validate reports whether query parses and compiles.
func (j *JQ) Validate(query string) error {
	parsed, err := gojq.Parse(query)
	if err != nil {
		return fmt.Errorf("invalid jq expression: %w", err)
	}
	if _, err := gojq.Compile(parsed); err != nil {
		return fmt.Errorf("jq compilation failed: %w", err)
	}
	return nil
}

// normalize round-trips data through JSON so gojq only sees the value
// shapes it supports, enforcing the size limit on the way.
func (j *JQ) normalize(data any) (any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}
	if len(raw) > j.maxInputSize {
		return nil, fmt.Errorf("data size (%d bytes) exceeds maximum (%d bytes)", len(raw), j.maxInputSize)
	}

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to normalize data: %w", err)
	}
	return out, nil
}

// transform returns the transform.jq handler. parameters.query is the jq
// program; parameters.input is the value it runs on and defaults to the
// whole variable environment.
func (j *JQ) transform(ctx context.Context, params, env map[string]any) (map[string]any, error) {
	const action = "transform.jq"

	query, err := requireString(action, params, "query")
	if err != nil {
		return nil, err
	}

	input, ok := params["input"]
	if !ok {
		input = env
	}

	result, err := j.Execute(ctx, query, input)
	if err != nil {
		return nil, &OperationError{Action: action, Message: "query failed", Cause: err}
	}
	return map[string]any{outputKey(params, "result"): result}, nil
}
