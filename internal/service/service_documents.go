package service

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/models"
)

// WriteNotifier is told about every local write so it can push it.
type WriteNotifier interface {
	NotifyLocalWrite()
}

type documentService struct {
	repository DocumentRepository
	notifier   WriteNotifier
	codec      RowCodec

	logger *logger.Logger
}

// NewDocumentService returns a DocumentService over repository. notifier may
// be nil when push replication is disabled.
func NewDocumentService(repository DocumentRepository, notifier WriteNotifier, codec RowCodec, logger *logger.Logger) DocumentService {
	return &documentService{
		repository: repository,
		notifier:   notifier,
		codec:      codec,
		logger:     logger,
	}
}

func (d *documentService) Get(ctx context.Context, id string) (models.Document, error) {
	return d.repository.Get(ctx, id)
}

func (d *documentService) List(ctx context.Context) ([]models.Document, error) {
	return d.repository.List(ctx)
}

// Put stores doc under id. The primary key is taken from id, the document
// is marked as not deleted and the modification timestamp is left to the
// server.
func (d *documentService) Put(ctx context.Context, id string, doc models.Document) (models.Document, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidDocument)
	}

	stored := d.codec.ToRow(doc)
	if current, ok := stored[d.codec.PrimaryKey]; ok && current != nil && models.FormatScalar(current) != id {
		return nil, fmt.Errorf("%w: primary key %q does not match id %q", ErrInvalidDocument, models.FormatScalar(current), id)
	}
	if _, ok := stored[d.codec.PrimaryKey]; !ok || stored[d.codec.PrimaryKey] == nil {
		stored[d.codec.PrimaryKey] = id
	}
	stored[d.codec.DeletedField] = false

	if err := d.repository.Put(ctx, stored); err != nil {
		return nil, fmt.Errorf("error saving document %s: %w", id, err)
	}
	d.notify()

	d.logger.Debug().
		Str("func", "documentService.Put").
		Str("id", id).
		Msg("document stored")

	return stored, nil
}

// Delete soft-deletes the document. The deletion reaches the remote side as
// an update of the delete flag.
func (d *documentService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDocument)
	}

	if err := d.repository.Delete(ctx, id); err != nil {
		return fmt.Errorf("error deleting document %s: %w", id, err)
	}
	d.notify()

	return nil
}

func (d *documentService) notify() {
	if d.notifier != nil {
		d.notifier.NotifyLocalWrite()
	}
}
