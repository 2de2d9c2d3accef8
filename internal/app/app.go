// Package app assembles the replicator from its configuration: the local
// document store, the remote backend and change feed, the replication
// session, the HTTP API and the periodic resync job.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-table-replicator/internal/adapter"
	"github.com/MKhiriev/go-table-replicator/internal/config"
	"github.com/MKhiriev/go-table-replicator/internal/handler"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/internal/server"
	"github.com/MKhiriev/go-table-replicator/internal/service"
	"github.com/MKhiriev/go-table-replicator/internal/store"
	"github.com/MKhiriev/go-table-replicator/internal/workers"
	"github.com/MKhiriev/go-table-replicator/migrations"
	"github.com/MKhiriev/go-table-replicator/models"
)

var errUnknownAdapterKind = errors.New("unknown adapter kind")

type App struct {
	storages *store.Storages
	remoteDB *sql.DB
	backend  adapter.Backend

	Services *service.Services
	server   server.Server

	logger *logger.Logger
}

// NewApp opens every resource the configuration asks for. On failure the
// resources opened so far are released.
func NewApp(ctx context.Context, cfg *config.ReplicatorConfig, buildInfo models.AppBuildInfo, log *logger.Logger) (_ *App, err error) {
	app := &App{logger: log}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	app.storages, err = store.NewStorages(ctx, cfg.Storage.DB, cfg.Replication, log)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}

	var feed adapter.ChangeFeed
	app.backend, feed, err = app.newRemote(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Adapter.InstallTriggers {
		if err = app.installTriggers(ctx, cfg); err != nil {
			return nil, err
		}
	}

	if !cfg.Replication.Realtime {
		feed = nil
	}

	replicationLog := log.WithReplication(cfg.Replication.Identifier, cfg.Replication.Table)
	source := service.NewTableSource(app.backend, feed, service.SourceOptions{
		Table: cfg.Replication.Table,
		Codec: service.CodecFromConfig(cfg.Replication),
	}, replicationLog)

	app.Services, err = service.NewServices(source, app.storages.Documents, cfg.Replication, replicationLog)
	if err != nil {
		return nil, fmt.Errorf("create services: %w", err)
	}

	handlers, err := handler.NewHandlers(app.Services, buildInfo, cfg.Server, log)
	switch {
	case handler.IsNoHandlers(err):
		log.Info().Msg("HTTP address is not set, API disabled")
		err = nil
	case err != nil:
		return nil, err
	default:
		app.server, err = server.NewServer(handlers.HTTP.Init(), cfg.Server, log)
		if err != nil {
			return nil, err
		}
	}

	return app, nil
}

// newRemote builds the backend for the configured adapter kind and, when
// possible, a change feed for it.
func (a *App) newRemote(ctx context.Context, cfg *config.ReplicatorConfig) (adapter.Backend, adapter.ChangeFeed, error) {
	var feed adapter.ChangeFeed
	if cfg.Adapter.DSN != "" {
		feed = adapter.NewPgNotifyFeed(cfg.Adapter.DSN, cfg.Adapter.NotifyChannel, a.logger)
	}

	switch cfg.Adapter.Kind {
	case config.AdapterPostgREST:
		backend, err := adapter.NewPostgRESTBackend(cfg.Adapter, a.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create postgrest backend: %w", err)
		}
		return backend, feed, nil

	case config.AdapterPostgres:
		db, err := a.openRemoteDB(ctx, cfg.Adapter.DSN)
		if err != nil {
			return nil, nil, err
		}
		return adapter.NewPostgresBackend(db, a.logger), feed, nil

	case config.AdapterMemory:
		memory := adapter.NewMemoryBackend(cfg.Replication.PrimaryKey, cfg.Replication.ModifiedField)
		return memory, memory, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", errUnknownAdapterKind, cfg.Adapter.Kind)
	}
}

func (a *App) openRemoteDB(ctx context.Context, dsn string) (*sql.DB, error) {
	if a.remoteDB != nil {
		return a.remoteDB, nil
	}

	db, err := store.NewConnectPostgres(ctx, dsn, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect remote database: %w", err)
	}
	a.remoteDB = db
	return db, nil
}

// installTriggers prepares the remote table: the modification timestamp is
// maintained by the database and every change is announced on the notify
// channel.
func (a *App) installTriggers(ctx context.Context, cfg *config.ReplicatorConfig) error {
	if cfg.Adapter.DSN == "" {
		a.logger.Warn().Msg("trigger installation requested without a database DSN, skipping")
		return nil
	}

	db, err := a.openRemoteDB(ctx, cfg.Adapter.DSN)
	if err != nil {
		return err
	}

	if err = migrations.MigrateRemote(db); err != nil {
		return fmt.Errorf("migrate remote database: %w", err)
	}

	err = migrations.EnsureTriggers(ctx, db, migrations.TriggerOptions{
		Table:         cfg.Replication.Table,
		PrimaryKey:    cfg.Replication.PrimaryKey,
		ModifiedField: cfg.Replication.ModifiedField,
		Channel:       cfg.Adapter.NotifyChannel,
	})
	if err != nil {
		return fmt.Errorf("install replication triggers: %w", err)
	}

	a.logger.Info().Str("table", cfg.Replication.Table).Msg("replication triggers installed")
	return nil
}

// Run starts the replication, the resync job and the API server and blocks
// until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	list := []workers.Worker{a.Services.Replication}
	if a.Services.ResyncJob.Enabled() {
		list = append(list, a.Services.ResyncJob)
	}
	if a.server != nil {
		list = append(list, a.server)
	}

	a.logger.Info().Int("workers", len(list)).Msg("starting replicator")
	err := workers.NewWorkers(list...).Run(ctx)
	a.logger.Info().Err(err).Msg("replicator stopped")
	return err
}

// Close releases the databases. It is safe to call on a partially built App.
func (a *App) Close() {
	if a.storages != nil {
		if err := a.storages.Close(); err != nil {
			a.logger.Err(err).Msg("error closing local storage")
		}
	}
	if a.remoteDB != nil {
		if err := a.remoteDB.Close(); err != nil {
			a.logger.Err(err).Msg("error closing remote database")
		}
	}
}
