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
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/tombee/quill/internal/actions"
	"github.com/tombee/quill/internal/config"
	"github.com/tombee/quill/internal/definitions"
	"github.com/tombee/quill/internal/log"
	"github.com/tombee/quill/internal/storage/sqlite"
	"github.com/tombee/quill/internal/tracing"
	"github.com/tombee/quill/pkg/engine"
	"github.com/tombee/quill/pkg/registry"
	"github.com/tombee/quill/pkg/workflow"
)

// App holds the components a command works with. Open builds it from the
// configuration and the global flags; Close persists the registry and
// releases everything.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *sqlite.Store
	Registry *registry.Registry
	Engine   *engine.Engine
	Loader   *definitions.Loader
	Metrics  *prometheus.Registry

	tracing *tracing.Provider
	dirty   atomic.Bool
}

// Open loads configuration, opens the database, restores the latest
// registry snapshot and loads the definitions directory on top of it.
// Trace spans, when enabled, are written to traceOut.
func Open(ctx context.Context, traceOut io.Writer) (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	if cfg.Storage.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	store, err := sqlite.New(sqlite.Config{Path: cfg.Storage.Path, WAL: cfg.Storage.WAL})
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Metrics: prometheus.NewRegistry(),
	}
	app.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app.Registry = registry.New(registry.WithLogger(log.WithComponent(logger, "registry")))
	if report, err := store.Load(ctx, app.Registry); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to restore registry: %w", err)
	} else if report != nil && !report.OK() {
		logger.Warn("snapshot restored with skipped records", "skipped", len(report.Skipped))
	}

	acts := workflow.NewActionRegistry()
	if err := actions.Register(acts, store, actions.Config{
		RateLimit: cfg.Actions.RateLimit,
		Burst:     cfg.Actions.Burst,
		JQTimeout: cfg.Actions.JQTimeout,
	}); err != nil {
		store.Close()
		return nil, err
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithRegisterer(app.Metrics),
		engine.WithActions(acts),
	}
	if GetTrace() {
		provider, err := tracing.NewConsoleProvider(traceOut, true)
		if err != nil {
			store.Close()
			return nil, err
		}
		app.tracing = provider
		opts = append(opts, engine.WithInterpreter(func(i *workflow.Interpreter) {
			i.WithTracer(provider.Tracer())
		}))
	}
	app.Engine = engine.New(app.Registry, opts...)

	if dir := cfg.Definitions.Dir; dir != "" {
		if _, err := os.Stat(dir); err == nil {
			if _, err := app.LoadDefinitions(ctx, dir); err != nil {
				app.Close(ctx)
				return nil, err
			}
		} else {
			logger.Debug("definitions directory not found", "dir", dir)
		}
	}

	// Any change after this point is saved on Close.
	for _, kind := range []registry.Kind{registry.KindTemplate, registry.KindWorkflow, registry.KindCategory} {
		app.Registry.On(kind, func(context.Context, registry.Event) error {
			app.dirty.Store(true)
			return nil
		})
	}

	return app, nil
}

// LoadDefinitions replaces the App's loader with one reading dir and loads
// it into the registry.
func (a *App) LoadDefinitions(ctx context.Context, dir string) (*definitions.Report, error) {
	a.Loader = definitions.NewLoader(dir, a.Registry,
		definitions.WithLogger(a.Logger),
		definitions.WithPatterns(a.Config.Definitions.Include, a.Config.Definitions.Exclude),
	)
	report, err := a.Loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range report.Errors {
		a.Logger.Warn("definition not loaded", "path", e.Path, "id", e.ID, "error", e.Err)
	}
	return report, nil
}

// MarkDirty forces a snapshot on Close. Counter updates do not emit
// registry events, so commands that render or run call it.
func (a *App) MarkDirty() {
	a.dirty.Store(true)
}

// Persist saves the registry snapshot if anything changed.
func (a *App) Persist(ctx context.Context) error {
	if !a.dirty.Swap(false) {
		return nil
	}
	if err := a.Store.Save(ctx, a.Registry); err != nil {
		a.dirty.Store(true)
		return fmt.Errorf("failed to save registry: %w", err)
	}
	return nil
}

// Close persists the registry and releases resources.
func (a *App) Close(ctx context.Context) error {
	err := a.Persist(ctx)
	if a.tracing != nil {
		if shutdownErr := a.tracing.Shutdown(ctx); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}
	if closeErr := a.Store.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func loadConfig() (*config.Config, error) {
	if path := GetConfigPath(); path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}

func newLogger(cfg *config.Config) *slog.Logger {
	logCfg := log.FromEnv()
	if cfg.Log.Level != "" {
		logCfg.Level = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		logCfg.Format = log.Format(cfg.Log.Format)
	}
	logCfg.AddSource = logCfg.AddSource || cfg.Log.AddSource

	switch {
	case GetVerbose():
		logCfg.Level = "debug"
	case GetQuiet():
		logCfg.Level = "error"
	}
	return log.New(logCfg)
}

// WithApp opens the App for cmd, runs fn and closes the App. A failure to
// persist is reported unless fn already failed.
func WithApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := Open(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(ctx); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(ctx, app)
}
