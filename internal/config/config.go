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

// Package config loads quill's YAML configuration.
//
// Values are resolved in order: built-in defaults, the config file, then
// environment overrides. The result is validated before it is returned.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	quillerrors "github.com/tombee/quill/pkg/errors"
)

// Config is the root configuration.
type Config struct {
	Log         LogConfig         `yaml:"log"`
	Storage     StorageConfig     `yaml:"storage"`
	Definitions DefinitionsConfig `yaml:"definitions"`
	Actions     ActionsConfig     `yaml:"actions"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or text.
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source,omitempty"`
}

// StorageConfig configures the sqlite database that persists the registry
// and notes.
type StorageConfig struct {
	// Path is the database file. Defaults to $XDG_DATA_HOME/quill/quill.db.
	Path string `yaml:"path"`
	// WAL enables write-ahead logging.
	WAL bool `yaml:"wal"`
}

// DefinitionsConfig configures the directory of YAML definition files.
type DefinitionsConfig struct {
	// Dir is scanned for template, workflow and category definitions.
	// Empty disables definition loading.
	Dir string `yaml:"dir,omitempty"`
	// Include and Exclude are doublestar globs relative to Dir.
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
	// Debounce coalesces bursts of file events while watching.
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// ActionsConfig configures builtin actions.
type ActionsConfig struct {
	// RateLimit caps action calls per second. Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit,omitempty"`
	// Burst is the number of calls allowed at once under RateLimit.
	Burst int `yaml:"burst,omitempty"`
	// JQTimeout bounds a single transform.jq evaluation.
	JQTimeout time.Duration `yaml:"jq_timeout,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint served by quill watch.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from configPath, or only defaults and the
// environment when configPath is empty.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &quillerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &quillerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// LoadDefault loads the config file at the default location when it exists.
func LoadDefault() (*Config, error) {
	path := ConfigPath()
	if _, err := os.Stat(path); err != nil {
		return Load("")
	}
	return Load(path)
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(DataDir(), "quill.db")
	}
	if c.Definitions.Dir == "" {
		c.Definitions.Dir = DefinitionsDir()
	}
	if len(c.Definitions.Include) == 0 {
		c.Definitions.Include = []string{"**/*.yaml", "**/*.yml"}
	}
	if c.Definitions.Debounce == 0 {
		c.Definitions.Debounce = 200 * time.Millisecond
	}
	if c.Actions.RateLimit > 0 && c.Actions.Burst == 0 {
		c.Actions.Burst = 1
	}
	if c.Actions.JQTimeout == 0 {
		c.Actions.JQTimeout = 5 * time.Second
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = "127.0.0.1:9464"
	}
}

func (c *Config) loadFromFile(path string) error {
	path = expandHome(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv applies environment overrides.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("QUILL_STORAGE_PATH"); val != "" {
		c.Storage.Path = expandHome(val)
	}
	if val := os.Getenv("QUILL_DEFINITIONS_DIR"); val != "" {
		c.Definitions.Dir = expandHome(val)
	}
	if val := os.Getenv("QUILL_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("QUILL_METRICS_ADDR"); val != "" {
		c.Metrics.Addr = val
		c.Metrics.Enabled = true
	}
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	for _, pattern := range append(append([]string{}, c.Definitions.Include...), c.Definitions.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			errs = append(errs, fmt.Sprintf("definitions: invalid glob pattern %q", pattern))
		}
	}
	if c.Definitions.Debounce < 0 {
		errs = append(errs, fmt.Sprintf("definitions.debounce must not be negative, got %v", c.Definitions.Debounce))
	}

	if c.Actions.RateLimit < 0 {
		errs = append(errs, fmt.Sprintf("actions.rate_limit must not be negative, got %v", c.Actions.RateLimit))
	}
	if c.Actions.Burst < 0 {
		errs = append(errs, fmt.Sprintf("actions.burst must not be negative, got %d", c.Actions.Burst))
	}
	if c.Actions.JQTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("actions.jq_timeout must be positive, got %v", c.Actions.JQTimeout))
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics.addr is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
