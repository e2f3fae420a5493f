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

// Package watch implements the watch command.
package watch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tombee/quill/internal/commands/shared"
	"github.com/tombee/quill/internal/definitions"
	"github.com/tombee/quill/internal/log"
)

// NewCommand creates the watch command.
func NewCommand() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Reload definition files as they change",
		Long: `Watch loads the definitions directory and reloads files as they are
created, edited or removed. The registry snapshot is saved after each
reload.

With --metrics-addr, or metrics.enabled in the config file, Prometheus
metrics are served at /metrics while watching.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			return shared.WithApp(cmd, func(ctx context.Context, app *shared.App) error {
				if len(args) == 1 {
					if _, err := app.LoadDefinitions(ctx, args[0]); err != nil {
						return err
					}
				}
				if app.Loader == nil {
					return shared.NewInvalidInputError("no definitions directory", errors.New("pass a directory or set definitions.dir in the config file"))
				}
				if err := app.Persist(ctx); err != nil {
					return err
				}

				addr := metricsAddr
				if addr == "" && app.Config.Metrics.Enabled {
					addr = app.Config.Metrics.Addr
				}
				return run(ctx, cmd, app, addr)
			})
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, app *shared.App, metricsAddr string) error {
	reloads := promauto.With(app.Metrics).NewCounterVec(prometheus.CounterOpts{
		Name: "quill_definition_reloads_total",
		Help: "Definition reloads by outcome.",
	}, []string{"result"})

	out := cmd.OutOrStdout()
	watcher, err := definitions.NewWatcher(app.Loader,
		definitions.WithDebounce(app.Config.Definitions.Debounce),
		definitions.OnReload(func(report *definitions.Report) {
			if report.OK() {
				reloads.WithLabelValues("ok").Inc()
			} else {
				reloads.WithLabelValues("error").Inc()
			}
			if err := app.Persist(ctx); err != nil {
				app.Logger.Error("failed to save registry", log.Error(err))
			}
			if !shared.GetQuiet() {
				printReload(cmd, report)
			}
		}),
	)
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		srv, err := serveMetrics(app, metricsAddr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		fmt.Fprintln(out, shared.RenderOK("metrics at http://"+metricsAddr+"/metrics"))
	}

	fmt.Fprintln(out, shared.RenderOK("watching "+app.Loader.Dir()))
	return watcher.Run(ctx)
}

func serveMetrics(app *shared.App, addr string) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.Metrics, promhttp.HandlerOpts{Registry: app.Metrics}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           log.HTTPMiddleware(log.WithComponent(app.Logger, "metrics"), mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("metrics server failed", log.Error(err))
		}
	}()
	return srv, nil
}

func printReload(cmd *cobra.Command, report *definitions.Report) {
	msg := fmt.Sprintf("reloaded %d file(s): %d template(s), %d workflow(s), %d category(ies), %d removed",
		report.Files, report.Templates, report.Workflows, report.Categories, report.Removed)
	if report.OK() {
		fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(msg))
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), shared.RenderWarn(msg))
	for _, e := range report.Errors {
		fmt.Fprintln(cmd.OutOrStdout(), "  "+shared.RenderError(e.Path+": "+e.Err))
	}
}
