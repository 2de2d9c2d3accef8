package store

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-table-replicator/internal/config"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
)

type Storages struct {
	DB        *DB
	Documents *DocumentStore
}

// NewStorages opens and migrates the local database and binds the
// document store to the replicated collection.
func NewStorages(ctx context.Context, db config.ReplicatorDB, replication config.ReplicatorReplication, log *logger.Logger) (*Storages, error) {
	conn, err := NewConnectSQLite(ctx, db, log)
	if err != nil {
		return nil, err
	}

	if err = conn.Migrate(); err != nil {
		log.Err(err).Str("func", "NewStorages").Msg("error migrating local database")
		_ = conn.Close()
		return nil, fmt.Errorf("migrate local database: %w", err)
	}

	return &Storages{
		DB:        conn,
		Documents: NewDocumentStore(conn, replication.Collection, replication.PrimaryKey, replication.DeletedField, log),
	}, nil
}

func (s *Storages) Close() error {
	return s.DB.Close()
}
