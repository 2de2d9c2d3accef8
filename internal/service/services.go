package service

import (
	"github.com/MKhiriev/go-table-replicator/internal/config"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
)

// Services groups everything the transport and worker layers need.
type Services struct {
	Replication *Replication
	Documents   DocumentService
	ResyncJob   *ResyncJob
}

// DocumentStore is a local store that also serves documents to clients.
type DocumentStore interface {
	LocalStore
	DocumentRepository
}

// NewServices wires a replication of store against source together with
// the document service and the periodic resync job.
func NewServices(source SyncSource, store DocumentStore, cfg config.ReplicatorReplication, logger *logger.Logger) (*Services, error) {
	codec := CodecFromConfig(cfg)

	replication, err := NewReplication(source, store, nil, codec, ReplicationOptions{
		Identifier: cfg.Identifier,
		Table:      cfg.Table,
		BatchSize:  cfg.BatchSize,
		Live:       cfg.Live,
		Realtime:   cfg.Realtime,
		Pull:       cfg.Pull,
		Push:       cfg.Push,
		RetryTime:  cfg.RetryTime,
	}, logger)
	if err != nil {
		return nil, err
	}

	var notifier WriteNotifier
	if cfg.Push {
		notifier = replication
	}
	documents := NewDocumentValidationService(codec).
		Wrap(NewDocumentService(store, notifier, codec, logger))

	return &Services{
		Replication: replication,
		Documents:   documents,
		ResyncJob:   NewResyncJob(replication, cfg.ResyncInterval),
	}, nil
}

// CodecFromConfig builds the row codec for the configured table.
func CodecFromConfig(cfg config.ReplicatorReplication) RowCodec {
	return RowCodec{
		PrimaryKey:    cfg.PrimaryKey,
		ModifiedField: cfg.ModifiedField,
		DeletedField:  cfg.DeletedField,
		KeepModified:  cfg.KeepModifiedField,
	}
}
