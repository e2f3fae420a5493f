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

// Package snapshot implements the export and import commands.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/quill/internal/commands/shared"
	"github.com/tombee/quill/pkg/registry"
)

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export templates, workflows and categories",
		Long: `Export writes every template, workflow and category in the registry,
including usage counts and run statistics, as a single JSON or YAML
document that 'quill import' accepts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return shared.NewInvalidInputError(fmt.Sprintf("unsupported format %q, expected json or yaml", format), nil)
			}

			return shared.WithApp(cmd, func(ctx context.Context, app *shared.App) error {
				var (
					data []byte
					err  error
				)
				if format == "yaml" {
					data, err = app.Registry.ExportYAML(ctx)
				} else {
					data, err = app.Registry.Export(ctx)
				}
				if err != nil {
					return err
				}

				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", output, err)
				}
				if !shared.GetQuiet() {
					fmt.Fprintln(cmd.ErrOrStderr(), shared.RenderOK("exported to "+output))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import an exported snapshot",
		Long: `Import reads a JSON or YAML snapshot produced by 'quill export' and
stores its records, replacing any with the same id. Records that fail
validation are skipped and listed; the rest are imported. Use - to read
from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			return shared.WithApp(cmd, func(ctx context.Context, app *shared.App) error {
				report, err := app.Registry.Import(ctx, data)
				if err != nil {
					return err
				}

				if shared.GetJSON() {
					if err := shared.EmitResult(cmd.OutOrStdout(), "import", report.OK(), report, nil); err != nil {
						return err
					}
				} else {
					printReport(cmd.OutOrStdout(), report)
				}

				if !report.OK() {
					return &shared.ExitError{Code: shared.ExitInvalidInput}
				}
				return nil
			})
		},
	}
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, shared.NewInvalidInputError("failed to read snapshot", err)
	}
	return data, nil
}

func printReport(w io.Writer, report *registry.ImportReport) {
	fmt.Fprintln(w, shared.RenderOK(fmt.Sprintf("imported %d template(s), %d workflow(s), %d category(ies)",
		report.Templates, report.Workflows, report.Categories)))
	for _, s := range report.Skipped {
		id := s.ID
		if id == "" {
			id = fmt.Sprintf("#%d", s.Index)
		}
		fmt.Fprintln(w, shared.RenderWarn(fmt.Sprintf("skipped %s %s: %s", s.Kind, id, s.Reason)))
	}
}
