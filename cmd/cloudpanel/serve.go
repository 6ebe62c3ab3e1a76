package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/cloudpanel/internal/adapter/driving/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API and the sync scheduler",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireConfig(); err != nil {
			return err
		}
		slog.Info("config loaded",
			"listen_addr", cfg.ListenAddr,
			"db_path", cfg.DBPath,
			"sync_interval", cfg.SyncInterval,
			"cipher", cfg.Cipher,
			"vault_enabled", cfg.VaultEnabled(),
		)

		// Setup signal-based context (SIGINT, SIGTERM).
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.orchestrator.ExpireStale(ctx); err != nil {
			slog.Warn("could not expire stale sync runs", "error", err)
		}

		schedulerDone := make(chan struct{})
		go func() {
			defer close(schedulerDone)
			a.scheduler.Start(ctx)
		}()

		h := httphandler.NewHandler(a.registry, a.orchestrator, a.tester, a.resources, a.runs, a.db, slog.Default())

		// A sync request holds its connection until the run is finalized.
		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           httphandler.NewServeMux(h, slog.Default()),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      a.maxSync + 30*time.Second,
			IdleTimeout:       120 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			slog.Info("http server starting", "addr", cfg.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		slog.Info("cloudpanel started", "listen_addr", cfg.ListenAddr)

		// Wait for shutdown signal or a listener failure.
		var listenErr error
		select {
		case <-ctx.Done():
		case listenErr = <-serveErr:
		}
		stop()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}

		// Syncs outlive their requests, so they are drained separately before
		// the database closes.
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), a.maxSync)
		defer cancelDrain()

		if err := a.orchestrator.Drain(drainCtx); err != nil {
			slog.Warn("syncs still running at shutdown; their runs are expired on a later start", "error", err)
		}
		select {
		case <-schedulerDone:
		case <-drainCtx.Done():
		}

		if listenErr != nil {
			return listenErr
		}
		slog.Info("shutdown complete")
		return nil
	},
}
