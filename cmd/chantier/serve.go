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

	"github.com/BakiChantier/chantier-direct-sub000/internal/config"
	"github.com/BakiChantier/chantier-direct-sub000/internal/transport/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Démarre le serveur HTTP et les tâches planifiées",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

// serve runs until ctx is cancelled / Tourne jusqu'à l'annulation du contexte
func (c *cli) serve(ctx context.Context) error {
	logStartupInfo(c.cfg)

	container, err := c.container()
	if err != nil {
		return err
	}
	defer container.Close()
	container.Start()

	handler, stopMiddleware := web.NewMux(web.NewHandler(container), c.cfg, container)
	defer stopMiddleware()

	srv := &http.Server{
		Addr:         ":" + c.cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  c.cfg.Server.ReadTimeout,
		WriteTimeout: c.cfg.Server.WriteTimeout,
		IdleTimeout:  c.cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("shutting down server gracefully")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// logStartupInfo displays startup information / Affiche les informations de démarrage
func logStartupInfo(conf *config.Config) {
	slog.Info("starting chantier-direct",
		"version", web.Version,
		"environment", conf.Environment,
		"port", conf.Server.Port,
		"database", conf.Database.Type,
	)

	if conf.RateLimiter.Enabled {
		slog.Info("rate limiter enabled", "rps", conf.RateLimiter.RPS, "burst", conf.RateLimiter.Burst)
	} else {
		slog.Warn("rate limiter is DISABLED")
	}

	slog.Info("token durations",
		"access_token", conf.Auth.AccessTokenDuration,
		"refresh_token", conf.Auth.RefreshTokenDuration,
	)
	if !conf.Scheduler.Enabled {
		slog.Warn("scheduler disabled, run maintenance with `chantier jobs run`")
	}
}
