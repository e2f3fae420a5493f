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

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/quill/internal/commands/initcmd"
	"github.com/tombee/quill/internal/commands/snapshot"
	"github.com/tombee/quill/internal/commands/template"
	"github.com/tombee/quill/internal/commands/validate"
	"github.com/tombee/quill/internal/commands/workflow"
)

const definitionsYAML = `kind: template
id: daily
name: Daily
content: "# {{title}}\n{{body}}"
variables:
  - name: title
    type: text
    required: true
  - name: body
    type: text
---
kind: workflow
id: morning
name: Morning
steps:
  - id: render
    type: template
    templateId: daily
  - id: save
    type: action
    action: note.create
    parameters:
      title: "{{title}}"
  - id: check
    type: condition
    condition: "title != ''"
`

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("NO_COLOR", "1")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("QUILL_STORAGE_PATH", filepath.Join(dir, "data", "quill.db"))
	t.Setenv("QUILL_DEFINITIONS_DIR", filepath.Join(dir, "defs"))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "defs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs", "morning.yaml"), []byte(definitionsYAML), 0o644))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	root.AddCommand(
		initcmd.NewCommand(),
		template.NewCommand(),
		workflow.NewCommand(),
		validate.NewCommand(),
		snapshot.NewExportCommand(),
		snapshot.NewImportCommand(),
	)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

type envelope struct {
	Command string          `json:"command"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, out string, v any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	if v != nil {
		require.NoError(t, json.Unmarshal(env.Data, v))
	}
	return env
}

func TestRootCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"verbose", "quiet", "json", "trace", "config"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.True(t, cmd.SilenceUsage)
	assert.IsType(t, &cobra.Command{}, cmd)
}

func TestTemplateRenderRecordsUse(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "template", "render", "daily", "--set", "title=T", "--set", "body=B")
	require.NoError(t, err)
	assert.Equal(t, "# T\nB\n", out)

	out, err = execute(t, "template", "render", "daily", "--preview", "--set", "title=P")
	require.NoError(t, err)
	assert.Equal(t, "# P\n{{body}}\n", out)

	out, err = execute(t, "template", "list", "--json")
	require.NoError(t, err)
	var templates []struct {
		ID       string `json:"id"`
		Metadata struct {
			UsageCount int `json:"usageCount"`
		} `json:"metadata"`
	}
	decode(t, out, &templates)
	require.Len(t, templates, 1)
	assert.Equal(t, 1, templates[0].Metadata.UsageCount)
}

func TestTemplateRenderValidationFailure(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "template", "render", "daily")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")

	_, err = execute(t, "template", "show", "ghost")
	assert.ErrorContains(t, err, "template not found: ghost")
}

func TestWorkflowRun(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "workflow", "run", "morning", "--set", "title=Standup", "--set", "body=notes")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ render")
	assert.Contains(t, out, "    # Standup")
	assert.Contains(t, out, "Morning: 3/3 steps")

	out, err = execute(t, "workflow", "list", "--json")
	require.NoError(t, err)
	var workflows []struct {
		Metadata struct {
			UsageCount  int     `json:"usageCount"`
			SuccessRate float64 `json:"successRate"`
		} `json:"metadata"`
	}
	decode(t, out, &workflows)
	require.Len(t, workflows, 1)
	assert.Equal(t, 1, workflows[0].Metadata.UsageCount)
	assert.Equal(t, 1.0, workflows[0].Metadata.SuccessRate)

	out, err = execute(t, "workflow", "runs", "morning", "--json")
	require.NoError(t, err)
	var runs []struct {
		Success        bool     `json:"success"`
		CompletedSteps []string `json:"completedSteps"`
	}
	decode(t, out, &runs)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Success)
	assert.Equal(t, []string{"render", "save", "check"}, runs[0].CompletedSteps)
}

func TestWorkflowRunFailure(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "workflow", "run", "morning", "--json")
	require.Error(t, err)

	var result struct {
		Success bool     `json:"success"`
		Errors  []string `json:"errors"`
	}
	env := decode(t, out, &result)
	assert.False(t, env.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Step render:")
}

func TestExportImport(t *testing.T) {
	dir := setupEnv(t)

	_, err := execute(t, "template", "render", "daily", "--set", "title=T")
	require.NoError(t, err)

	exported := filepath.Join(dir, "export.yaml")
	_, err = execute(t, "export", "--format", "yaml", "-o", exported)
	require.NoError(t, err)

	// A fresh database without definitions.
	t.Setenv("QUILL_STORAGE_PATH", filepath.Join(dir, "other.db"))
	t.Setenv("QUILL_DEFINITIONS_DIR", "")

	out, err := execute(t, "import", exported)
	require.NoError(t, err, out)
	assert.Contains(t, out, "imported 1 template(s), 1 workflow(s)")

	out, err = execute(t, "template", "show", "daily", "--json")
	require.NoError(t, err)
	var tmpl struct {
		Metadata struct {
			UsageCount int `json:"usageCount"`
		} `json:"metadata"`
	}
	decode(t, out, &tmpl)
	assert.Equal(t, 1, tmpl.Metadata.UsageCount)

	_, err = execute(t, "export", "--format", "xml")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestInitWritesStarters(t *testing.T) {
	dir := setupEnv(t)

	out, err := execute(t, "init")
	require.NoError(t, err, out)
	assert.FileExists(t, filepath.Join(dir, "defs", "weekly-review.yaml"))
	assert.Contains(t, out, "loaded 4 template(s), 3 workflow(s), 2 category(ies)")

	out, err = execute(t, "init")
	require.NoError(t, err, out)
	assert.Contains(t, out, "exists, skipped")

	out, err = execute(t, "workflow", "run", "weekly-review", "--set", "week=42")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Weekly review: 4/4 steps")

	_, err = execute(t, "init", "--only", "nope")
	assert.Error(t, err)
}
