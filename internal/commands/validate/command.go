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

// Package validate implements the validate command.
package validate

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/quill/internal/commands/shared"
	"github.com/tombee/quill/internal/definitions"
	"github.com/tombee/quill/internal/log"
	"github.com/tombee/quill/pkg/model"
	"github.com/tombee/quill/pkg/registry"
)

// Issue is one problem found in a definition file.
type Issue struct {
	File     string `json:"file"`
	ID       string `json:"id,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Result is the outcome of validating a set of files.
type Result struct {
	Files       int     `json:"files"`
	Definitions int     `json:"definitions"`
	Issues      []Issue `json:"issues,omitempty"`
}

// Valid reports whether no errors were found. Warnings do not count.
func (r *Result) Valid() bool {
	for _, i := range r.Issues {
		if i.Severity == "error" {
			return false
		}
	}
	return true
}

// NewCommand creates the validate command
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate template, workflow and category definition files",
		Long: `Validate decodes each definition file and checks every record the way
the registry would on load: required fields, variable definitions and
step ids.

Unknown step types, condition expressions outside the allowed grammar and
template steps that name a template not defined in the given files are
reported as warnings. Those steps fail when the workflow runs.`,
		Example: `  # Validate a single file
  quill validate templates/daily.yaml

  # Validate a directory's files with JSON output
  quill validate defs/*.yaml --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := Files(cmd.Context(), args)

			if shared.GetJSON() {
				if err := shared.EmitResult(cmd.OutOrStdout(), "validate", result.Valid(), result, nil); err != nil {
					return err
				}
			} else {
				printResult(cmd.OutOrStdout(), result)
			}

			if !result.Valid() {
				return &shared.ExitError{Code: shared.ExitInvalidInput}
			}
			return nil
		},
	}
}

// Files validates paths against a scratch registry.
func Files(ctx context.Context, paths []string) *Result {
	if ctx == nil {
		ctx = context.Background()
	}
	reg := registry.New(registry.WithLogger(log.Discard()))
	result := &Result{}
	var workflows []*definitions.Definition

	for _, path := range paths {
		defs, err := definitions.ParseFile(path)
		if err != nil {
			result.Issues = append(result.Issues, Issue{File: path, Message: err.Error(), Severity: "error"})
			continue
		}
		result.Files++

		for _, def := range defs {
			result.Definitions++
			var err error
			switch def.Kind {
			case definitions.KindTemplate:
				err = reg.UpsertTemplate(ctx, def.Template)
			case definitions.KindWorkflow:
				err = reg.UpsertWorkflow(ctx, def.Workflow)
				workflows = append(workflows, def)
			case definitions.KindCategory:
				err = reg.UpsertCategory(ctx, def.Category)
			}
			if err != nil {
				result.Issues = append(result.Issues, Issue{File: path, ID: def.ID(), Message: err.Error(), Severity: "error"})
			}
		}
	}

	for _, def := range workflows {
		for _, msg := range registry.StepWarnings(def.Workflow) {
			result.Issues = append(result.Issues, Issue{File: def.Source, ID: def.ID(), Message: msg, Severity: "warning"})
		}
		for _, ref := range templateRefs(def.Workflow) {
			if _, err := reg.GetTemplate(ctx, ref); err != nil {
				result.Issues = append(result.Issues, Issue{
					File:     def.Source,
					ID:       def.ID(),
					Message:  fmt.Sprintf("step uses template %q which is not defined in these files", ref),
					Severity: "warning",
				})
			}
		}
	}
	return result
}

// templateRefs lists literal template ids used by template and loop steps.
func templateRefs(wf *model.Workflow) []string {
	var refs []string
	for _, s := range wf.Steps {
		if s.TemplateID == "" || strings.Contains(s.TemplateID, "{{") {
			continue
		}
		if s.Type == model.StepTemplate || s.Type == model.StepLoop {
			refs = append(refs, s.TemplateID)
		}
	}
	return refs
}

func printResult(w io.Writer, result *Result) {
	for _, issue := range result.Issues {
		where := issue.File
		if issue.ID != "" {
			where += " (" + issue.ID + ")"
		}
		line := where + ": " + issue.Message
		if issue.Severity == "warning" {
			fmt.Fprintln(w, shared.RenderWarn(line))
		} else {
			fmt.Fprintln(w, shared.RenderError(line))
		}
	}

	summary := fmt.Sprintf("%d definition(s) in %d file(s)", result.Definitions, result.Files)
	if result.Valid() {
		fmt.Fprintln(w, shared.RenderOK(summary+" valid"))
	} else {
		fmt.Fprintln(w, shared.RenderError(summary+" checked, errors found"))
	}
}
