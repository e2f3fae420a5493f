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

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tombee/quill/pkg/workflow"
)

// caseAction converts parameters.text with the given caser. The result is
// stored under "text" unless "as" names another variable.
func caseAction(name string, newCaser func() cases.Caser) workflow.ActionHandler {
	return func(_ context.Context, params, _ map[string]any) (map[string]any, error) {
		text, ok, err := stringParam(name, params, "text")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &OperationError{
				Action:     name,
				Message:    `missing required parameter "text"`,
				Suggestion: `set parameters.text, e.g. text: "{{title}}"`,
			}
		}
		// Casers carry state and are not safe for concurrent use.
		return map[string]any{outputKey(params, "text"): newCaser().String(text)}, nil
	}
}

func titleCaser() cases.Caser { return cases.Title(language.Und) }
func upperCaser() cases.Caser { return cases.Upper(language.Und) }
func lowerCaser() cases.Caser { return cases.Lower(language.Und) }

// newID generates a random UUID, stored under "id" unless "as" is set.
func newID(_ context.Context, params, _ map[string]any) (map[string]any, error) {
	return map[string]any{outputKey(params, "id"): uuid.NewString()}, nil
}

// set copies its parameters into the run's variables.
func set(_ context.Context, params, _ map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if k == "" {
			return nil, &OperationError{Action: "set", Message: "empty variable name"}
		}
		out[k] = v
	}
	return out, nil
}
