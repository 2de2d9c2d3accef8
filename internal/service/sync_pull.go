package service

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-table-replicator/internal/adapter"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/models"
)

type pullEngine struct {
	backend adapter.Backend
	table   string
	codec   RowCodec

	logger *logger.Logger
}

// Pull implements SyncSource.
func (p *pullEngine) Pull(ctx context.Context, checkpoint *models.Checkpoint, batchSize int) (models.PullResult, error) {
	if batchSize <= 0 {
		return models.PullResult{}, fmt.Errorf("%w: %d", ErrInvalidBatchSize, batchSize)
	}

	rows, err := p.backend.Select(ctx, p.pullQuery(checkpoint, batchSize))
	if err != nil {
		return models.PullResult{}, fmt.Errorf("pull from %s: %w", p.table, err)
	}

	if len(rows) == 0 {
		return models.PullResult{Checkpoint: checkpoint, Documents: []models.RemoteDocument{}}, nil
	}

	docs := make([]models.RemoteDocument, 0, len(rows))
	for _, row := range rows {
		doc, err := p.codec.RemoteDocument(row)
		if err != nil {
			return models.PullResult{}, fmt.Errorf("pull from %s: %w", p.table, err)
		}

		if checkpoint != nil && doc.Checkpoint.Compare(*checkpoint) <= 0 {
			p.logger.Warn().
				Str("func", "pullEngine.Pull").
				Str("table", p.table).
				Str("row_modified", doc.Checkpoint.Modified).
				Str("checkpoint_modified", checkpoint.Modified).
				Msg("backend returned a row at or before the checkpoint")
		}
		docs = append(docs, doc)
	}

	last := docs[len(docs)-1].Checkpoint

	p.logger.Debug().
		Str("func", "pullEngine.Pull").
		Str("table", p.table).
		Int("batch_size", batchSize).
		Int("documents", len(docs)).
		Str("checkpoint_modified", last.Modified).
		Msg("pulled batch")

	return models.PullResult{Checkpoint: &last, Documents: docs}, nil
}

// pullQuery selects the rows strictly after checkpoint:
//
//	modified > m OR (modified = m AND pk > k)
//
// ordered by (modified, pk). A checkpoint without a timestamp counts as
// no checkpoint.
func (p *pullEngine) pullQuery(checkpoint *models.Checkpoint, batchSize int) models.SelectQuery {
	q := models.SelectQuery{
		Table: p.table,
		OrderBy: []models.Order{
			{Field: p.codec.ModifiedField, Direction: models.OrderAsc},
			{Field: p.codec.PrimaryKey, Direction: models.OrderAsc},
		},
		Limit: batchSize,
	}

	if checkpoint != nil && checkpoint.Modified != "" {
		q.Where = models.Filters{
			models.Or(
				models.Gt(p.codec.ModifiedField, checkpoint.Modified),
				models.And(
					models.Eq(p.codec.ModifiedField, checkpoint.Modified),
					models.Gt(p.codec.PrimaryKey, checkpoint.PrimaryKeyValue),
				),
			),
		}
	}

	return q
}
