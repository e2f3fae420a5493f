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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/model"
)

func TestParseValues(t *testing.T) {
	declared := []model.Variable{
		{Name: "count", Type: model.VariableNumber},
		{Name: "done", Type: model.VariableBoolean},
		{Name: "tags", Type: model.VariableMultiSelect},
		{Name: "title", Type: model.VariableText},
	}

	file := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(file, []byte("title: From file\ncount: 2\nextra: [a, b]\n"), 0o644))

	got, err := ParseValues(file, []string{"count=3.5", "done=true", "tags=a, b", "title=x=y", "free=7"}, declared)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"title": "x=y",
		"count": 3.5,
		"done":  true,
		"tags":  []any{"a", "b"},
		"extra": []any{"a", "b"},
		"free":  "7",
	}, got)
}

func TestValueFlags(t *testing.T) {
	var v ValueFlags
	fs := pflag.NewFlagSet("render", pflag.ContinueOnError)
	AddValueFlags(fs, &v)

	require.NoError(t, fs.Parse([]string{"--set", "count=2", "--set", "note=a,b"}))
	assert.Equal(t, []string{"count=2", "note=a,b"}, v.Sets)

	values, err := v.Parse([]model.Variable{{Name: "count", Type: model.VariableNumber}})
	require.NoError(t, err)
	assert.Equal(t, 2.0, values["count"])
	assert.Equal(t, "a,b", values["note"])
}

func TestParseValuesErrors(t *testing.T) {
	declared := []model.Variable{{Name: "count", Type: model.VariableNumber}}

	tests := []struct {
		name  string
		pairs []string
		want  string
	}{
		{name: "no equals", pairs: []string{"count"}, want: `invalid --set "count"`},
		{name: "empty key", pairs: []string{"=1"}, want: "expected key=value"},
		{name: "bad number", pairs: []string{"count=many"}, want: "invalid value for count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseValues("", tt.pairs, declared)
			assert.ErrorContains(t, err, tt.want)
			assert.Equal(t, ExitInvalidInput, ExitCodeFor(err))
		})
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "exit error", err: NewExecutionError("run failed", nil), want: ExitExecutionFailed},
		{name: "validation", err: &pkgerrors.ValidationError{Message: "bad"}, want: ExitInvalidInput},
		{name: "import", err: &pkgerrors.ImportError{Message: "bad"}, want: ExitInvalidInput},
		{name: "not found", err: &pkgerrors.NotFoundError{Resource: "template", ID: "x"}, want: ExitNotFound},
		{name: "config", err: &pkgerrors.ConfigError{Key: "k", Reason: "r"}, want: ExitConfigError},
		{name: "plain", err: errors.New("boom"), want: ExitExecutionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

func TestPrintErrorListsViolations(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	printError(&buf, &pkgerrors.ValidationError{
		Message:    "2 problems",
		Violations: []string{"title is required", "count must be a number"},
		Suggestion: "pass --set title=...",
	})

	out := buf.String()
	assert.Contains(t, out, "✗ validation failed: 2 problems")
	assert.Contains(t, out, "• title is required")
	assert.Contains(t, out, "Suggestion: pass --set title=...")
}

func TestOpenAndPersist(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("QUILL_STORAGE_PATH", filepath.Join(dir, "data", "quill.db"))
	t.Setenv("QUILL_DEFINITIONS_DIR", filepath.Join(dir, "defs"))
	restore := SetFlagsForTest("", false)
	defer restore()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "defs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs", "t.yaml"),
		[]byte("kind: template\nid: hello\nname: Hello\ncontent: \"Hi {{name}}\"\n"), 0o644))

	ctx := context.Background()
	app, err := Open(ctx, nil)
	require.NoError(t, err)

	out, err := app.Engine.UseTemplate(ctx, "hello", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada", out)
	app.MarkDirty()
	require.NoError(t, app.Close(ctx))

	// The usage count survives in the snapshot even without the file.
	require.NoError(t, os.Remove(filepath.Join(dir, "defs", "t.yaml")))
	app, err = Open(ctx, nil)
	require.NoError(t, err)
	defer app.Close(ctx)

	tmpl, err := app.Registry.GetTemplate(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, tmpl.Metadata.UsageCount)
}
