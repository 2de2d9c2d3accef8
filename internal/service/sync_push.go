package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-table-replicator/internal/adapter"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/internal/validators"
	"github.com/MKhiriev/go-table-replicator/models"
)

// UpdateHandler applies an update for a row that exists remotely. It
// reports true iff the update was applied. false is a write conflict: the
// current row is fetched and handed to the conflict resolver.
type UpdateHandler func(ctx context.Context, row models.WriteRow) (bool, error)

type pushEngine struct {
	backend       adapter.Backend
	table         string
	codec         RowCodec
	updateHandler UpdateHandler
	validator     validators.Validator

	logger *logger.Logger
}

// Push implements SyncSource. Exactly one row per call is supported.
func (p *pushEngine) Push(ctx context.Context, rows []models.WriteRow) ([]models.Document, error) {
	if len(rows) != 1 {
		return nil, fmt.Errorf("%w: push takes exactly one row, got %d", ErrInvalidBatchSize, len(rows))
	}
	row := rows[0]

	if row.IsInsert() {
		return p.insert(ctx, row.NewDocumentState)
	}
	return p.update(ctx, row)
}

func (p *pushEngine) insert(ctx context.Context, doc models.Document) ([]models.Document, error) {
	pk, err := p.codec.PrimaryKeyValue(doc)
	if err != nil {
		return nil, err
	}

	err = p.backend.Insert(ctx, p.table, p.codec.ToRow(doc))
	if err == nil {
		return []models.Document{}, nil
	}
	if !errors.Is(err, adapter.ErrUniqueViolation) {
		return nil, fmt.Errorf("insert into %s: %w", p.table, err)
	}

	p.logger.Info().
		Str("func", "pushEngine.insert").
		Str("table", p.table).
		Str("primary_key", models.FormatScalar(pk)).
		Msg("row already exists, fetching it for conflict resolution")

	return p.conflict(ctx, pk)
}

func (p *pushEngine) update(ctx context.Context, row models.WriteRow) ([]models.Document, error) {
	pk, err := p.codec.PrimaryKeyValue(row.NewDocumentState)
	if err != nil {
		return nil, err
	}

	// The update filter is derived from the assumed state alone, so it must
	// name the same row as the new state.
	if err = p.validator.Validate(ctx, row, validators.FieldAssumedState); err != nil {
		return nil, fmt.Errorf("%w: %s %s=%s: %w", ErrMalformedRow, p.table, p.codec.PrimaryKey, models.FormatScalar(pk), err)
	}

	handler := p.updateHandler
	if handler == nil {
		handler = p.preconditionUpdate
	}

	applied, err := handler(ctx, row)
	if err != nil {
		return nil, err
	}
	if applied {
		return []models.Document{}, nil
	}

	p.logger.Info().
		Str("func", "pushEngine.update").
		Str("table", p.table).
		Str("primary_key", models.FormatScalar(pk)).
		Msg("update precondition failed, fetching current row")

	return p.conflict(ctx, pk)
}

// preconditionUpdate is the default UpdateHandler: the row is updated only
// if every field still equals the assumed master state.
func (p *pushEngine) preconditionUpdate(ctx context.Context, row models.WriteRow) (bool, error) {
	where, err := p.codec.Preconditions(row.AssumedMasterState)
	if err != nil {
		return false, err
	}

	n, err := p.backend.Update(ctx, p.table, p.codec.ToRow(row.NewDocumentState), where)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", p.table, err)
	}
	return n == 1, nil
}

// conflict fetches the current remote row as the conflict result.
func (p *pushEngine) conflict(ctx context.Context, pk any) ([]models.Document, error) {
	current, err := p.fetchByPrimaryKey(ctx, pk)
	if err != nil {
		return nil, err
	}
	return []models.Document{current}, nil
}

func (p *pushEngine) fetchByPrimaryKey(ctx context.Context, pk any) (models.Document, error) {
	rows, err := p.backend.Select(ctx, models.SelectQuery{
		Table: p.table,
		Where: models.Filters{models.Eq(p.codec.PrimaryKey, pk)},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s by primary key: %w", p.table, err)
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("%w: %s %s=%s", ErrConflictRowMissing, p.table, p.codec.PrimaryKey, models.FormatScalar(pk))
	}
	return p.codec.ToDocument(rows[0]), nil
}
