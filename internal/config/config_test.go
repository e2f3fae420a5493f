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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	quillerrors "github.com/tombee/quill/pkg/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"QUILL_STORAGE_PATH", "QUILL_DEFINITIONS_DIR", "QUILL_LOG_LEVEL", "LOG_FORMAT", "QUILL_METRICS_ADDR"} {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_DATA_HOME", t.TempDir())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefault(t *testing.T) {
	clearEnv(t)
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "quill.db", filepath.Base(cfg.Storage.Path))
	assert.Equal(t, []string{"**/*.yaml", "**/*.yml"}, cfg.Definitions.Include)
	assert.Equal(t, "definitions", filepath.Base(cfg.Definitions.Dir))
	assert.Equal(t, 5*time.Second, cfg.Actions.JQTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
log:
  level: debug
  format: json
storage:
  path: /tmp/notes.db
  wal: true
definitions:
  dir: /srv/quill
  exclude: ["drafts/**"]
  debounce: 1s
actions:
  rate_limit: 2.5
  jq_timeout: 2s
metrics:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/tmp/notes.db", cfg.Storage.Path)
	assert.True(t, cfg.Storage.WAL)
	assert.Equal(t, "/srv/quill", cfg.Definitions.Dir)
	assert.Equal(t, []string{"drafts/**"}, cfg.Definitions.Exclude)
	assert.Equal(t, time.Second, cfg.Definitions.Debounce)
	assert.Equal(t, 2.5, cfg.Actions.RateLimit)
	assert.Equal(t, 1, cfg.Actions.Burst)
	assert.Equal(t, 2*time.Second, cfg.Actions.JQTimeout)
	assert.True(t, cfg.Metrics.Enabled)
	assert.NotEmpty(t, cfg.Metrics.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUILL_STORAGE_PATH", "/data/q.db")
	t.Setenv("QUILL_DEFINITIONS_DIR", "/defs")
	t.Setenv("QUILL_LOG_LEVEL", "WARN")

	cfg, err := Load(writeConfig(t, "storage:\n  path: /ignored.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "/data/q.db", cfg.Storage.Path)
	assert.Equal(t, "/defs", cfg.Definitions.Dir)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		path    func(t *testing.T) string
		key     string
		wantMsg string
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") },
			key:     "config_file",
			wantMsg: "failed to read config file",
		},
		{
			name:    "bad yaml",
			path:    func(t *testing.T) string { return writeConfig(t, "log: [") },
			key:     "config_file",
			wantMsg: "failed to parse YAML",
		},
		{
			name:    "invalid values",
			path:    func(t *testing.T) string { return writeConfig(t, "log:\n  level: loud\nactions:\n  rate_limit: -1\n") },
			key:     "validation",
			wantMsg: "log.level must be one of",
		},
		{
			name:    "invalid glob",
			path:    func(t *testing.T) string { return writeConfig(t, "definitions:\n  include: [\"[\"]\n") },
			key:     "validation",
			wantMsg: "invalid glob pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))

			var cerr *quillerrors.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.key, cerr.Key)
			assert.ErrorContains(t, err, tt.wantMsg)
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Log.Format = "xml"
	cfg.Actions.Burst = -1
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")
	assert.Contains(t, err.Error(), "actions.burst")
	assert.Contains(t, err.Error(), "metrics.addr")
}

func TestXDGDirs(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))

	assert.Equal(t, filepath.Join(base, "config", "quill"), ConfigDir())
	assert.Equal(t, filepath.Join(base, "config", "quill", "config.yaml"), ConfigPath())
	assert.Equal(t, filepath.Join(base, "config", "quill", "definitions"), DefinitionsDir())
	assert.Equal(t, filepath.Join(base, "data", "quill"), DataDir())
	assert.NoDirExists(t, ConfigDir())

	t.Setenv("XDG_DATA_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".local", "share", "quill"), DataDir())
}
