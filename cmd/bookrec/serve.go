package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/abdulachik/bookrec/internal/api"
	"github.com/abdulachik/bookrec/internal/config"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Load (or build) the index and serve recommendations over HTTP.

Endpoints:
  GET /api/v1/recommend?q=<title>
  GET /api/v1/autocomplete?q=<partial>&limit=<n>
  GET /api/v1/health   (200 "degraded" when the index could not be saved)
  GET /api/v1/stats`,
	RunE: runServe,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := openApp(ctx, (*config.Config).ValidateForServe, func(cfg *config.Config) {
		if serveAddr != "" {
			cfg.HTTPAddr = serveAddr
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	// Serve degraded (503) rather than exit when the index cannot be loaded.
	if _, err := a.Load(ctx); err != nil {
		slog.Error("index unavailable, serving degraded", "error", err)
	}

	srv := api.NewServer(a.Engine, a.Health, slog.Default())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, a.Config.HTTPAddr, a.Config.ShutdownTimeout)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
		if err := <-errCh; err != nil {
			return err
		}
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	slog.Info("bookrec stopped")
	return nil
}
