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

// Package initcmd implements the init command.
package initcmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/quill/internal/commands/shared"
	"github.com/tombee/quill/internal/starters"
)

// NewCommand creates the init command.
func NewCommand() *cobra.Command {
	var (
		force bool
		only  []string
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write starter definitions into a definitions directory",
		Long: `Init copies the bundled starter templates and workflows into dir,
or into the configured definitions directory, and loads them.

Existing files are kept unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return shared.WithApp(cmd, func(ctx context.Context, app *shared.App) error {
				dir := app.Config.Definitions.Dir
				if len(args) == 1 {
					dir = args[0]
				}
				if dir == "" {
					return shared.NewInvalidInputError("no definitions directory configured", nil)
				}

				names, err := selected(only)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, name := range names {
					path, written, err := starters.CopyTo(name, dir, force)
					if err != nil {
						return err
					}
					if written {
						fmt.Fprintln(out, shared.RenderOK(path))
					} else {
						fmt.Fprintln(out, shared.RenderWarn(path+" exists, skipped"))
					}
				}

				report, err := app.LoadDefinitions(ctx, dir)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "loaded %d template(s), %d workflow(s), %d category(ies)\n",
					report.Templates, report.Workflows, report.Categories)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().StringSliceVar(&only, "only", nil, "Starters to write (default all)")

	return cmd
}

func selected(only []string) ([]string, error) {
	all, err := starters.List()
	if err != nil {
		return nil, err
	}
	if len(only) == 0 {
		names := make([]string, len(all))
		for i, s := range all {
			names[i] = s.Name
		}
		return names, nil
	}

	known := make(map[string]bool, len(all))
	for _, s := range all {
		known[s.Name] = true
	}
	for _, name := range only {
		if !known[name] {
			return nil, shared.NewInvalidInputError(fmt.Sprintf("unknown starter %q", name), nil)
		}
	}
	return only, nil
}
