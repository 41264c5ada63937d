package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/paneltrack/internal/application"
	"github.com/JonMunkholm/paneltrack/internal/config"
	"github.com/JonMunkholm/paneltrack/internal/core"
	"github.com/JonMunkholm/paneltrack/internal/logging"
	"github.com/JonMunkholm/paneltrack/internal/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"job_max_concurrent", cfg.Jobs.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"snapshot_schedule", cfg.Snapshot.Schedule,
	)
	if len(cfg.Security.AdminKeys) == 0 {
		slog.Warn("ADMIN_KEYS not set; batch delete and log clear are not key-protected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := application.Open(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err, "hint", core.FormatUserError(err))
		os.Exit(1)
	}
	defer app.Close()

	if cfg.Snapshot.Schedule != "" {
		sched := core.NewSnapshotScheduler(app.Service, cfg.Snapshot.Dir)
		if err := sched.Start(ctx, cfg.Snapshot.Schedule); err != nil {
			slog.Error("failed to start snapshot scheduler", "error", err)
			os.Exit(1)
		}
	}

	server := web.NewServer(app.Service, cfg, app.Actor)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := app.Service.Jobs.Active(); active > 0 {
			slog.Info("waiting for background jobs", "active", active)
			if err := app.Service.Jobs.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("background jobs did not finish in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("server stopped")
}
