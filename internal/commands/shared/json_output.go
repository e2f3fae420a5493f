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

package shared

import (
	"encoding/json"
	"io"
)

// JSONResponse is the base envelope for all JSON output
type JSONResponse struct {
	Version string `json:"@version"`
	Command string `json:"command"`
	Success bool   `json:"success"`
}

// Envelope wraps data for JSON output.
type Envelope struct {
	JSONResponse
	Data   any      `json:"data,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// EmitJSON writes v as indented JSON.
func EmitJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// EmitResult writes data in the standard envelope.
func EmitResult(w io.Writer, command string, success bool, data any, errs []string) error {
	return EmitJSON(w, Envelope{
		JSONResponse: JSONResponse{Version: "1.0", Command: command, Success: success},
		Data:         data,
		Errors:       errs,
	})
}
