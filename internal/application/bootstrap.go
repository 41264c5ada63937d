// Package application wires configuration, the database pool and the core
// service together for the paneltrack binaries.
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/paneltrack/internal/config"
	"github.com/JonMunkholm/paneltrack/internal/core"
)

// App is an initialized service and the pool behind it.
type App struct {
	Service *core.Service
	Actor   core.Actor

	close func()
}

// Open creates the database if needed, connects, creates the schema and
// builds the service. Any failure here is fatal for the caller: nothing
// else may run against a database whose schema was not initialized.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := core.EnsureDatabaseExists(ctx, cfg.Database.URL, cfg.Database.AdminDatabase); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse database url: %v", core.ErrConnection, err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping database: %v", core.ErrConnection, err)
	}
	slog.Info("connected to database", "database", poolConfig.ConnConfig.Database)

	actor := core.DefaultActor(cfg.Operator.Name, cfg.Operator.Host)
	svc := core.NewService(pool, core.Options{
		Actor:             actor,
		MaxConcurrentJobs: cfg.Jobs.MaxConcurrent,
		JobWaitTime:       cfg.Jobs.MaxWaitTime,
		JobTimeout:        cfg.Jobs.Timeout,
		MaxImportFileSize: cfg.Jobs.MaxFileSize,
	})

	res, err := svc.Schema.Initialize(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}
	slog.Debug("schema ready", "checked", res.Checked, "migrated", res.Migrated)

	return &App{Service: svc, Actor: actor, close: pool.Close}, nil
}

// Close releases the pool.
func (a *App) Close() {
	if a.close != nil {
		a.close()
	}
}
