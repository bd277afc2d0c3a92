package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/waver/internal/metrics"
	"github.com/ShayCichocki/waver/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant and its tools over MCP (stdio)",
		Long: `Run an MCP server on stdin/stdout exposing every registered tool plus
waver_ask and waver_metrics.

When metrics.addr (or --metrics-addr) is set, Prometheus metrics are served
on http://<addr>/metrics for as long as the MCP session lasts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.setup(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()
			a.watchConfig(opts.configPath)

			addr := a.cfg.Metrics.Addr
			if cmd.Flags().Changed("metrics-addr") {
				addr = metricsAddr
			}

			s := server.New(a.assistant, a.tools)
			a.logger.Info("serving MCP on stdio", "tools", len(a.tools.Names()), "metrics_addr", addr)

			g, gctx := errgroup.WithContext(ctx)
			stdioDone := make(chan struct{})
			g.Go(func() error {
				defer close(stdioDone)
				return server.ServeStdio(s)
			})
			if addr != "" {
				g.Go(func() error {
					return serveMetrics(gctx, stdioDone, addr, a)
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for /metrics (overrides metrics.addr)")
	return cmd
}

// serveMetrics serves /metrics until ctx is done or the MCP session ends.
func serveMetrics(ctx context.Context, stdioDone <-chan struct{}, addr string, a *app) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HandlerFor(a.registry))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	case <-stdioDone:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}
