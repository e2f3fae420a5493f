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

// Package workflow implements the workflow commands.
package workflow

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tombee/quill/internal/commands/shared"
	"github.com/tombee/quill/internal/storage/sqlite"
	"github.com/tombee/quill/pkg/model"
	"github.com/tombee/quill/pkg/registry"
)

// NewCommand creates the workflow command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "List and run workflows",
	}
	cmd.AddCommand(newListCommand(), newRunCommand(), newRunsCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	var (
		filter     registry.WorkflowFilter
		activeOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows with their run statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if activeOnly {
				filter.IsActive = &activeOnly
			}
			return shared.WithApp(cmd, func(ctx context.Context, app *shared.App) error {
				workflows := app.Registry.ListWorkflows(ctx, filter)
				if shared.GetJSON() {
					return shared.EmitResult(cmd.OutOrStdout(), "workflow list", true, workflows, nil)
				}
				return printWorkflows(cmd.OutOrStdout(), workflows)
			})
		},
	}

	cmd.Flags().StringVar(&filter.Category, "category", "", "Only workflows in this category")
	cmd.Flags().StringVar(&filter.Query, "query", "", "Search name and description")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active workflows")
	return cmd
}

func printWorkflows(w io.Writer, workflows []*model.Workflow) error {
	if len(workflows) == 0 {
		fmt.Fprintln(w, shared.RenderMuted("No workflows found."))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTEPS\tRUNS\tAVG MS\tSUCCESS\tACTIVE")
	for _, wf := range workflows {
		m := wf.Metadata
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.0f\t%.0f%%\t%t\n",
			wf.ID, wf.Name, len(wf.Steps), m.UsageCount, m.AverageCompletionTime, m.SuccessRate*100, m.IsActive)
	}
	return tw.Flush()
}

func newRunCommand() *cobra.Command {
	var values shared.ValueFlags

	cmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Run a workflow",
		Long: `Run a workflow's steps in order.

Initial variables come from --values (a YAML or JSON file) and --set
key=value pairs. The command exits non-zero when any step failed; failed
optional steps are reported but do not stop the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return shared.WithApp(cmd, func(ctx context.Context, app *shared.App) error {
				wf, err := app.Registry.GetWorkflow(ctx, args[0])
				if err != nil {
					return err
				}
				initial, err := values.Parse(wf.Variables)
				if err != nil {
					return err
				}

				result, err := app.Engine.ExecuteWorkflow(ctx, wf.ID, initial)
				if err != nil {
					return err
				}
				app.MarkDirty()

				if err := app.Store.RecordRun(ctx, result); err != nil {
					app.Logger.Warn("failed to record run", "run_id", result.RunID, "error", err)
				}

				if shared.GetJSON() {
					if err := shared.EmitResult(cmd.OutOrStdout(), "workflow run", result.Success, result, result.Errors); err != nil {
						return err
					}
				} else {
					printResult(cmd.OutOrStdout(), wf, result)
				}

				if !result.Success {
					return &shared.ExitError{Code: shared.ExitExecutionFailed}
				}
				return nil
			})
		},
	}

	shared.AddValueFlags(cmd.Flags(), &values)
	return cmd
}

func printResult(w io.Writer, wf *model.Workflow, result *model.ExecutionResult) {
	for _, step := range result.CompletedSteps {
		fmt.Fprintln(w, shared.RenderOK(step.StepID))
		if content, ok := step.Output["content"].(string); ok {
			for _, line := range strings.Split(content, "\n") {
				fmt.Fprintln(w, "    "+line)
			}
		}
	}
	for _, msg := range result.Errors {
		fmt.Fprintln(w, shared.RenderError(msg))
	}

	summary := fmt.Sprintf("%s: %d/%d steps in %dms", wf.Name, len(result.CompletedSteps), len(wf.Steps), result.Duration)
	if result.Success {
		fmt.Fprintln(w, shared.RenderOK(summary))
	} else {
		fmt.Fprintln(w, shared.RenderWarn(summary))
	}
}

func newRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "Show recent workflow runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var workflowID string
			if len(args) == 1 {
				workflowID = args[0]
			}
			return shared.WithApp(cmd, func(ctx context.Context, app *shared.App) error {
				runs, err := app.Store.ListRuns(ctx, workflowID, limit)
				if err != nil {
					return err
				}
				if shared.GetJSON() {
					return shared.EmitResult(cmd.OutOrStdout(), "workflow runs", true, runs, nil)
				}
				return printRuns(cmd.OutOrStdout(), runs)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}

func printRuns(w io.Writer, runs []sqlite.RunRecord) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, shared.RenderMuted("No runs recorded."))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tWORKFLOW\tSTATUS\tSTEPS\tMS\tAT")
	for _, r := range runs {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", r.ID, r.WorkflowID, status, len(r.CompletedSteps), r.DurationMs, r.CreatedAt)
	}
	return tw.Flush()
}
