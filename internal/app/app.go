// Package app wires configuration into the store, the digest service and
// the stats inserter. Both binaries start from Open.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/labdigest/internal/config"
	"github.com/JonMunkholm/labdigest/internal/core"
	"github.com/JonMunkholm/labdigest/internal/stats"
	"github.com/JonMunkholm/labdigest/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds the long-lived components shared by the CLI and the server.
type App struct {
	Store    store.Store
	Service  *core.Service
	Inserter *stats.Inserter
	Layouts  config.Layouts
}

// Open loads the layouts, opens the configured store and builds the services.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	layouts, err := config.LoadLayouts(cfg.Layout.File)
	if err != nil {
		return nil, err
	}

	s, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	return New(s, cfg, layouts), nil
}

// New builds the services over an already opened store.
func New(s store.Store, cfg *config.Config, layouts config.Layouts) *App {
	svc := core.NewService(s, core.ServiceConfig{
		Layout: layouts.Source,
		Dictionaries: core.DictionaryPaths{
			EID:        cfg.Dictionary.EIDPath,
			Department: cfg.Dictionary.DepartmentPath,
		},
		RunWait: cfg.Pipeline.RunWait,
	})
	inserter := stats.NewInserter(s, s,
		stats.NewParser(layouts.Stats),
		stats.NewLayoutMapper(layouts.Report),
	)
	return &App{Store: s, Service: svc, Inserter: inserter, Layouts: layouts}
}

// InitializeReport writes the month headers of a new reporting year into a
// report artifact.
func (a *App) InitializeReport(ctx context.Context, reportID string, startYear int) error {
	report, err := a.Store.GetArtifact(ctx, reportID)
	if err != nil {
		return err
	}
	if report.Kind != core.KindReport {
		return fmt.Errorf("%w: %s is a %s artifact, not a report", core.ErrArtifactNotFound, reportID, report.Kind)
	}
	return stats.InitializeYear(ctx, a.Store, a.Layouts.Report, reportID, startYear)
}

// Close closes the store. Drain runs first with Service.WaitForRuns.
func (a *App) Close() error {
	return a.Store.Close()
}

// OpenStore opens the backend named by cfg.Backend.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case store.BackendMemory:
		slog.Warn("using in-memory store; data is lost on exit")
		return store.NewMemStore(), nil

	case store.BackendSQLite:
		s, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("opened sqlite store", "path", cfg.SQLitePath)
		return s, nil

	case store.BackendPostgres:
		pool, err := openPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s, err := store.NewPGStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func openPool(ctx context.Context, cfg config.StoreConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.DatabaseURL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
