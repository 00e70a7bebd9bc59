package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// serveAddr overrides the configured API address.
var serveAddr *string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the identification and corpus HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, logger, err := setup()
		if err != nil {
			return err
		}
		if *serveAddr != "" {
			config.Server.ApiAddr = *serveAddr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx, config, logger)
	},
}

func init() {
	serveAddr = serveCmd.Flags().String("addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newAPIServer builds the HTTP server exposing api.
func newAPIServer(addr string, api *SpeakerAPI) *http.Server {
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// run hosts the API until ctx is cancelled or the listener fails, then shuts
// the server down and closes the database.
func run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store, closeStore, err := openStore(config, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	server := newAPIServer(config.Server.ApiAddr, NewSpeakerAPI(store, config, logger))

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting api server", "address", server.Addr, "version", Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err = <-serveErr:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Api server shutdown failed", "error", err)
		return err
	}
	logger.Info("HTTP server stopped.")
	return nil
}
