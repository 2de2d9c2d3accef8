// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

//go:generate mockgen -source=interfaces.go -destination=../mock/service_mock.go -package=mock

import (
	"context"

	"github.com/MKhiriev/go-table-replicator/models"
)

// SyncSource is the backend side of a replication: everything the
// orchestrator needs to move documents in both directions.
type SyncSource interface {
	// Pull returns the rows following checkpoint in (modified, primary key)
	// order, at most batchSize of them. A nil checkpoint starts from the
	// beginning of the table. An empty result carries the input checkpoint
	// back unchanged.
	Pull(ctx context.Context, checkpoint *models.Checkpoint, batchSize int) (models.PullResult, error)

	// Push writes exactly one row. It returns nothing on success and the
	// current remote document when the write conflicted.
	Push(ctx context.Context, rows []models.WriteRow) ([]models.Document, error)

	// ChangeStream subscribes to remote changes. The channel is closed after
	// ctx is done and the subscription is released. It fails with
	// ErrChangeFeedDisabled when no change feed is configured.
	ChangeStream(ctx context.Context) (<-chan models.PullResult, error)
}

// LocalStore is the local document collection a replication keeps in sync.
type LocalStore interface {
	// ApplyRemote upserts pulled documents by primary key. It must be
	// idempotent: documents at or before the stored position of the same
	// document are ignored, and documents with unpushed local changes are
	// left alone.
	ApplyRemote(ctx context.Context, docs []models.RemoteDocument) error

	// PendingWrites returns up to limit local writes waiting to be pushed,
	// oldest first.
	PendingWrites(ctx context.Context, limit int) ([]models.PendingWrite, error)

	// AckWrite records that write reached the remote side.
	AckWrite(ctx context.Context, write models.PendingWrite) error

	// ResolveConflict stores the outcome of a conflict: master becomes the
	// new assumed remote state, and the resolved document replaces the
	// local one unless the two sides were found equal.
	ResolveConflict(ctx context.Context, write models.PendingWrite, master models.Document, resolution models.ConflictResolution) error

	LoadCheckpoint(ctx context.Context, replicationID string) (*models.Checkpoint, error)
	SaveCheckpoint(ctx context.Context, replicationID string, checkpoint models.Checkpoint) error
}

// ConflictResolver decides which document wins when a push conflicted.
type ConflictResolver interface {
	Resolve(ctx context.Context, input models.ConflictInput) (models.ConflictResolution, error)
}

// DocumentRepository is the host-facing side of the local store.
type DocumentRepository interface {
	Get(ctx context.Context, id string) (models.Document, error)
	List(ctx context.Context) ([]models.Document, error)
	Put(ctx context.Context, doc models.Document) error
	Delete(ctx context.Context, id string) error
}

// DocumentService exposes the local collection to API clients and
// schedules pushes for every write.
type DocumentService interface {
	Get(ctx context.Context, id string) (models.Document, error)
	List(ctx context.Context) ([]models.Document, error)
	Put(ctx context.Context, id string, doc models.Document) (models.Document, error)
	Delete(ctx context.Context, id string) error
}

// ReplicationService is the control surface of a running replication.
type ReplicationService interface {
	Status() models.ReplicationStatus
	ReSync()
	NotifyLocalWrite()
}
