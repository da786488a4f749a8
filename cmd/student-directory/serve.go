package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/aanand-mishra/student-directory/internal/directory"
	"github.com/aanand-mishra/student-directory/internal/http/handlers/student"
)

// newServeCmd starts the HTTP API.
//
// STARTUP SEQUENCE:
//  1. Open the record store and asset store, build the directory service
//  2. Load the directory once so the first GET is served from a warm cache
//  3. Register all HTTP routes and start the server in a goroutine
//  4. Block until the command context is cancelled (Ctrl+C / kill)
//  5. Gracefully shut down: finish in-flight requests, then exit
func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the directory over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := opts.log
			// Handlers log through the package-level slog functions.
			slog.SetDefault(log)

			log.Info("starting student-directory",
				slog.String("env", opts.cfg.Env),
				slog.String("version", "1.0.0"),
			)

			dir, closeStore, err := opts.openDirectory(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := dir.Refresh(ctx); err != nil {
				return err
			}

			server := newServer(opts.cfg.Addr, dir)

			// ListenAndServe blocks, so it runs in its own goroutine and
			// reports back through errc.
			errc := make(chan error, 1)
			go func() {
				log.Info("server started", slog.String("address", opts.cfg.Addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				if err != nil {
					log.Error("server encountered an error", slog.String("error", err.Error()))
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("shutdown signal received, stopping server...")

			// Give in-flight requests 5 seconds to finish.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error("failed to shutdown server gracefully", slog.String("error", err.Error()))
				return err
			}

			log.Info("server stopped gracefully")
			return nil
		},
	}
}

// newServer builds the HTTP server for dir. Shutdown does not cancel
// request contexts, so open event streams are told to end through a
// channel closed when shutdown begins; everything else is left to finish.
func newServer(addr string, dir *directory.Service) *http.Server {
	shutdown := make(chan struct{})

	router := http.NewServeMux()
	student.RegisterRoutes(router, dir, shutdown)

	server := &http.Server{
		Addr:    addr,
		Handler: router,

		// Production hardening — timeouts against slow clients.
		// No WriteTimeout: /api/events streams for as long as the
		// client stays connected.
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	server.RegisterOnShutdown(func() { close(shutdown) })
	return server
}
