package service

import (
	"github.com/MKhiriev/go-table-replicator/internal/adapter"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/internal/validators"
)

// SourceOptions configures a table-backed SyncSource.
type SourceOptions struct {
	Table string
	Codec RowCodec

	// UpdateHandler replaces the default precondition update when set.
	UpdateHandler UpdateHandler
}

type tableSource struct {
	*pullEngine
	*pushEngine
	*realtimeBridge
}

// NewTableSource composes the pull, push and realtime engines for one
// remote table into a SyncSource. feed may be nil, in which case
// ChangeStream reports ErrChangeFeedDisabled.
func NewTableSource(backend adapter.Backend, feed adapter.ChangeFeed, opts SourceOptions, log *logger.Logger) SyncSource {
	validator := validators.NewDocumentValidator(validators.DocumentFields{
		PrimaryKey:    opts.Codec.PrimaryKey,
		ModifiedField: opts.Codec.ModifiedField,
		DeletedField:  opts.Codec.DeletedField,
	})

	return &tableSource{
		pullEngine: &pullEngine{
			backend: backend,
			table:   opts.Table,
			codec:   opts.Codec,
			logger:  log,
		},
		pushEngine: &pushEngine{
			backend:       backend,
			table:         opts.Table,
			codec:         opts.Codec,
			updateHandler: opts.UpdateHandler,
			validator:     validator,
			logger:        log,
		},
		realtimeBridge: &realtimeBridge{
			feed:   feed,
			table:  opts.Table,
			codec:  opts.Codec,
			logger: log,
		},
	}
}
