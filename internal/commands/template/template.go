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

// Package template implements the template commands.
package template

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tombee/quill/internal/commands/shared"
	"github.com/tombee/quill/pkg/model"
	"github.com/tombee/quill/pkg/registry"
)

// NewCommand creates the template command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "List, inspect and render templates",
	}
	cmd.AddCommand(newListCommand(), newShowCommand(), newRenderCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	var (
		filter     registry.TemplateFilter
		publicOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if publicOnly {
				filter.IsPublic = &publicOnly
			}

			return shared.WithApp(cmd, func(ctx context.Context, app *shared.App) error {
				templates := app.Registry.ListTemplates(ctx, filter)
				if shared.GetJSON() {
					return shared.EmitResult(cmd.OutOrStdout(), "template list", true, templates, nil)
				}
				return printTemplates(cmd.OutOrStdout(), templates)
			})
		},
	}

	cmd.Flags().StringVar(&filter.Category, "category", "", "Only templates in this category")
	cmd.Flags().StringSliceVar(&filter.Tags, "tag", nil, "Only templates with any of these tags")
	cmd.Flags().StringVar(&filter.Author, "author", "", "Only templates by this author")
	cmd.Flags().StringVar(&filter.Query, "query", "", "Search name, description and tags")
	cmd.Flags().BoolVar(&publicOnly, "public", false, "Only public templates")
	return cmd
}

func printTemplates(w io.Writer, templates []*model.Template) error {
	if len(templates) == 0 {
		fmt.Fprintln(w, shared.RenderMuted("No templates found."))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tUSES\tVERSION")
	for _, t := range templates {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", t.ID, t.Name, dash(t.Category), t.Metadata.UsageCount, t.Metadata.Version)
	}
	return tw.Flush()
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a template and its variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return shared.WithApp(cmd, func(ctx context.Context, app *shared.App) error {
				t, err := app.Registry.GetTemplate(ctx, args[0])
				if err != nil {
					return err
				}
				if shared.GetJSON() {
					return shared.EmitResult(cmd.OutOrStdout(), "template show", true, t, nil)
				}
				printTemplate(cmd.OutOrStdout(), t)
				return nil
			})
		},
	}
}

func printTemplate(w io.Writer, t *model.Template) {
	fmt.Fprintf(w, "%s %s\n", shared.RenderHeader(t.Name), shared.RenderMuted("("+t.ID+")"))
	if t.Description != "" {
		fmt.Fprintln(w, t.Description)
	}
	fmt.Fprintf(w, "category: %s  tags: %s  uses: %d  version: %s\n",
		dash(t.Category), dash(strings.Join(t.Tags, ", ")), t.Metadata.UsageCount, t.Metadata.Version)

	if len(t.Variables) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, shared.RenderHeader("Variables"))
		for _, v := range t.Variables {
			fmt.Fprintf(w, "  %s %s (%s)%s\n", shared.SymbolInfo, v.Name, v.Type, describeVariable(v))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, shared.RenderHeader("Content"))
	fmt.Fprintln(w, t.Content)
}

func describeVariable(v model.Variable) string {
	var parts []string
	if v.Required {
		parts = append(parts, "required")
	}
	if v.DefaultValue != nil {
		parts = append(parts, fmt.Sprintf("default %v", v.DefaultValue))
	}
	if len(v.Options) > 0 {
		parts = append(parts, "one of "+strings.Join(v.Options, "|"))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + shared.RenderMuted(strings.Join(parts, ", "))
}

func newRenderCommand() *cobra.Command {
	var (
		valueFlags shared.ValueFlags
		preview    bool
	)

	cmd := &cobra.Command{
		Use:   "render <id>",
		Short: "Render a template with variable values",
		Long: `Render a template, validating the supplied values against its variables.

Values come from --values (a YAML or JSON file) and --set key=value pairs.
Each render counts as a use of the template unless --preview is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return shared.WithApp(cmd, func(ctx context.Context, app *shared.App) error {
				t, err := app.Registry.GetTemplate(ctx, args[0])
				if err != nil {
					return err
				}
				values, err := valueFlags.Parse(t.Variables)
				if err != nil {
					return err
				}

				var content string
				if preview {
					content, err = app.Engine.Preview(ctx, t.ID, values)
				} else {
					content, err = app.Engine.UseTemplate(ctx, t.ID, values)
					app.MarkDirty()
				}
				if err != nil {
					return err
				}

				if shared.GetJSON() {
					return shared.EmitResult(cmd.OutOrStdout(), "template render", true,
						map[string]any{"templateId": t.ID, "content": content}, nil)
				}
				fmt.Fprintln(cmd.OutOrStdout(), content)
				return nil
			})
		},
	}

	shared.AddValueFlags(cmd.Flags(), &valueFlags)
	cmd.Flags().BoolVar(&preview, "preview", false, "Render without recording a use")
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
