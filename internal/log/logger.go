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

// Package log configures the slog loggers used across quill and defines the
// field keys its records share.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the handler output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// LevelTrace sits below Debug. Rendered template bodies and resolved step
// parameters are logged at this level.
const LevelTrace = slog.Level(-8)

// Field keys shared by engine, interpreter and CLI records.
const (
	RunIDKey      = "run_id"
	StepIDKey     = "step_id"
	StepTypeKey   = "step_type"
	WorkflowKey   = "workflow"
	TemplateIDKey = "template_id"
	DurationKey   = "duration_ms"
	EventKey      = "event"
)

var levels = map[string]slog.Level{
	"trace":   LevelTrace,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// Config holds the logging configuration.
type Config struct {
	// Level is one of trace, debug, info, warn or error.
	Level     string
	Format    Format
	Output    io.Writer
	AddSource bool
}

// DefaultConfig logs text at info level to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: FormatText,
		Output: os.Stderr,
	}
}

// FromEnv builds a Config from the environment:
//
//	QUILL_DEBUG      true or 1: debug level with source locations
//	QUILL_LOG_LEVEL  level, preferred over LOG_LEVEL
//	LOG_LEVEL        level
//	LOG_FORMAT       json or text
//	LOG_SOURCE       1 to add source locations
func FromEnv() *Config {
	cfg := DefaultConfig()

	switch os.Getenv("QUILL_DEBUG") {
	case "true", "1":
		cfg.Level = "debug"
		cfg.AddSource = true
	case "":
		cfg.Level = firstEnv(cfg.Level, "QUILL_LOG_LEVEL", "LOG_LEVEL")
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = Format(strings.ToLower(format))
	}
	cfg.AddSource = cfg.AddSource || os.Getenv("LOG_SOURCE") == "1"

	return cfg
}

func firstEnv(fallback string, keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return strings.ToLower(v)
		}
	}
	return fallback
}

// New builds a logger from cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:       ParseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: levelNames,
	}

	if cfg.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// levelNames prints LevelTrace as TRACE instead of slog's DEBUG-4.
func levelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel maps a level name to a slog.Level; unknown names are info.
func ParseLevel(level string) slog.Level {
	if lvl, ok := levels[strings.ToLower(level)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithRunContext tags records with the run id and workflow name.
func WithRunContext(logger *slog.Logger, runID, workflowName string) *slog.Logger {
	return logger.With(slog.String(RunIDKey, runID), slog.String(WorkflowKey, workflowName))
}

// WithStepContext tags records with the step id and type.
func WithStepContext(logger *slog.Logger, stepID, stepType string) *slog.Logger {
	return logger.With(slog.String(StepIDKey, stepID), slog.String(StepTypeKey, stepType))
}

// WithTemplate tags records with a template id.
func WithTemplate(logger *slog.Logger, templateID string) *slog.Logger {
	return logger.With(slog.String(TemplateIDKey, templateID))
}

func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// Duration is a duration attribute in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(DurationKey, ms)
}

// Trace logs at LevelTrace, skipping attribute work when disabled.
func Trace(logger *slog.Logger, msg string, attrs ...slog.Attr) {
	ctx := context.Background()
	if logger.Enabled(ctx, LevelTrace) {
		logger.LogAttrs(ctx, LevelTrace, msg, attrs...)
	}
}
