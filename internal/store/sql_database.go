package store

import (
	"database/sql"

	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/migrations"
)

type DB struct {
	*sql.DB
	logger *logger.Logger
}

// Migrate brings the local document store schema up to date.
func (db *DB) Migrate() error {
	return migrations.MigrateLocal(db.DB)
}
