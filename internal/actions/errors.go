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

// Package actions provides the builtin action handlers workflows can call:
// note.create and note.update against the host's note store, transform.jq,
// the text case actions, id.new and set.
//
// Handlers read their parameters from the resolved step parameters and
// return a map that the interpreter merges into the run's variables. Most
// handlers accept an "as" parameter naming the output variable.
package actions

import "fmt"

// OperationError is returned by a builtin action when its parameters are
// unusable or the underlying operation fails.
type OperationError struct {
	Action     string
	Message    string
	Cause      error
	Suggestion string
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Action, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// Unwrap returns the underlying cause.
func (e *OperationError) Unwrap() error {
	return e.Cause
}

// ErrorType implements errors.ErrorClassifier.
func (e *OperationError) ErrorType() string { return "action" }

// IsRetryable returns true if the error may succeed on retry.
func (e *OperationError) IsRetryable() bool {
	return false
}

// stringParam returns params[key] as a string. A missing key yields "" and
// false; a present value of another type is an error.
func stringParam(action string, params map[string]any, key string) (string, bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, &OperationError{
			Action:  action,
			Message: fmt.Sprintf("parameter %q must be a string, got %T", key, v),
		}
	}
	return s, true, nil
}

func requireString(action string, params map[string]any, key string) (string, error) {
	s, ok, err := stringParam(action, params, key)
	if err != nil {
		return "", err
	}
	if !ok || s == "" {
		return "", &OperationError{
			Action:     action,
			Message:    fmt.Sprintf("missing required parameter %q", key),
			Suggestion: fmt.Sprintf("set parameters.%s on the step", key),
		}
	}
	return s, nil
}

// stringsParam accepts a list of strings or a single string.
func stringsParam(action string, params map[string]any, key string) ([]string, bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...), true, nil
	case string:
		return []string{t}, true, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false, &OperationError{
					Action:  action,
					Message: fmt.Sprintf("parameter %q must contain only strings, got %T", key, item),
				}
			}
			out = append(out, s)
		}
		return out, true, nil
	default:
		return nil, false, &OperationError{
			Action:  action,
			Message: fmt.Sprintf("parameter %q must be a list of strings, got %T", key, v),
		}
	}
}

// outputKey returns the "as" parameter or fallback.
func outputKey(params map[string]any, fallback string) string {
	if s, ok := params["as"].(string); ok && s != "" {
		return s
	}
	return fallback
}
