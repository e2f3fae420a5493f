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

package errors

import (
	"fmt"
	"strings"
)

// ValidationError represents rejected input: missing required variables,
// type mismatches, out-of-range values, disallowed options or malformed
// definitions.
type ValidationError struct {
	// Field identifies which input failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string

	// Violations lists every individual problem found in a single pass.
	Violations []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" && len(e.Violations) > 0 {
		msg = strings.Join(e.Violations, "; ")
	}
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, msg)
	}
	return fmt.Sprintf("validation failed: %s", msg)
}

// ErrorType implements ErrorClassifier.
func (e *ValidationError) ErrorType() string { return "validation" }

// IsRetryable implements ErrorClassifier.
func (e *ValidationError) IsRetryable() bool { return false }

// NotFoundError is returned when a template, workflow or category id is unknown.
type NotFoundError struct {
	// Resource is the kind of entity (template, workflow, category)
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrorType implements ErrorClassifier.
func (e *NotFoundError) ErrorType() string { return "not_found" }

// IsRetryable implements ErrorClassifier.
func (e *NotFoundError) IsRetryable() bool { return false }

// StepError wraps a failure raised while executing one workflow step.
// Its message is the form recorded in an execution result.
type StepError struct {
	StepID   string
	StepName string
	Cause    error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	name := e.StepName
	if name == "" {
		name = e.StepID
	}
	return fmt.Sprintf("Step %s: %v", name, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *StepError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *StepError) ErrorType() string { return "step" }

// IsRetryable implements ErrorClassifier.
func (e *StepError) IsRetryable() bool { return false }

// ImportError reports a snapshot payload that could not be read at all.
type ImportError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ImportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("import failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("import failed: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ImportError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ImportError) ErrorType() string { return "import" }

// IsRetryable implements ErrorClassifier.
func (e *ImportError) IsRetryable() bool { return false }

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "storage.path")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config error: %s", e.Reason)
	if e.Key != "" {
		msg = fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ConfigError) ErrorType() string { return "config" }

// IsRetryable implements ErrorClassifier.
func (e *ConfigError) IsRetryable() bool { return false }

var (
	_ ErrorClassifier = (*ValidationError)(nil)
	_ ErrorClassifier = (*NotFoundError)(nil)
	_ ErrorClassifier = (*StepError)(nil)
	_ ErrorClassifier = (*ImportError)(nil)
	_ ErrorClassifier = (*ConfigError)(nil)
)
