package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"triadbalance/adapters/api"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis pipeline over HTTP",
		Long: `Start the HTTP API.

Endpoints:
  GET  /healthz
  POST /api/v1/analyze    {"subject_id": "...", "timeseries": [[...]], "config": {...}}
  POST /api/v1/surrogate  {"timeseries": [[...]], "seed": 7}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			gin.SetMode(gin.ReleaseMode)

			srv := api.NewHTTPServer(cfg.Server.Port, api.NewServer(cfg.Analysis, logger))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting triad server on port %s", cfg.Server.Port)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&port, "port", "8080", "Listen port (overrides PORT)")
	return cmd
}
