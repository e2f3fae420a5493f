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
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/tombee/quill/pkg/errors"
)

const (
	ExitSuccess         = 0
	ExitExecutionFailed = 1
	ExitInvalidInput    = 2
	ExitNotFound        = 3
	ExitConfigError     = 4
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewExecutionError reports a workflow run that finished with step errors.
func NewExecutionError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitExecutionFailed, Message: msg, Cause: cause}
}

// NewInvalidInputError reports rejected user input.
func NewInvalidInputError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidInput, Message: msg, Cause: cause}
}

// ExitCodeFor maps an error to an exit code using its classification.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch pkgerrors.TypeOf(err) {
	case "validation", "import":
		return ExitInvalidInput
	case "not_found":
		return ExitNotFound
	case "config":
		return ExitConfigError
	}
	return ExitExecutionFailed
}

// HandleExitError prints err with any suggestion it carries and exits.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	printError(os.Stderr, err)
	os.Exit(ExitCodeFor(err))
}

func printError(w io.Writer, err error) {
	// Commands that already reported their failure return a bare exit code.
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(w, RenderError(msg))
	}

	var v *pkgerrors.ValidationError
	if errors.As(err, &v) {
		if v.Message != "" && len(v.Violations) > 0 {
			for _, violation := range v.Violations {
				fmt.Fprintf(w, "  %s %s\n", SymbolInfo, violation)
			}
		}
		if v.Suggestion != "" {
			fmt.Fprintf(w, "\nSuggestion: %s\n", v.Suggestion)
		}
	}
}
