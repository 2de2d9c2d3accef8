package service

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-table-replicator/internal/adapter"
	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/models"
)

const realtimeBufferSize = 64

type realtimeBridge struct {
	feed  adapter.ChangeFeed
	table string
	codec RowCodec

	logger *logger.Logger
}

// ChangeStream implements SyncSource. Every usable change event becomes a
// single-document pull result. DELETE events and events without a new row
// are dropped: deletions travel as the soft-delete flag of an UPDATE.
// Truncated events are dropped too, the next resync pull picks the row up.
func (b *realtimeBridge) ChangeStream(ctx context.Context) (<-chan models.PullResult, error) {
	if b.feed == nil {
		return nil, ErrChangeFeedDisabled
	}

	out := make(chan models.PullResult, realtimeBufferSize)
	handler := func(event models.ChangeEvent) {
		item, ok := b.translate(event)
		if !ok {
			return
		}
		select {
		case out <- item:
		case <-ctx.Done():
		}
	}

	sub, err := b.feed.Subscribe(ctx, b.table, handler)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", b.table, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Warn().Err(err).
				Str("func", "realtimeBridge.ChangeStream").
				Str("table", b.table).
				Msg("unsubscribe failed")
		}
		close(out)
	}()

	return out, nil
}

func (b *realtimeBridge) translate(event models.ChangeEvent) (models.PullResult, bool) {
	if event.Truncated {
		b.logger.Info().
			Str("func", "realtimeBridge.translate").
			Str("table", b.table).
			Str("event_type", event.EventType).
			Str("primary_key", models.FormatScalar(event.Old[b.codec.PrimaryKey])).
			Msg("row too large for a change notification, waiting for resync")
		return models.PullResult{}, false
	}
	if event.EventType == models.EventDelete || event.New == nil {
		b.logger.Debug().
			Str("func", "realtimeBridge.translate").
			Str("table", b.table).
			Str("event_type", event.EventType).
			Msg("dropping change event without new row")
		return models.PullResult{}, false
	}

	doc, err := b.codec.RemoteDocument(event.New)
	if err != nil {
		b.logger.Err(err).
			Str("func", "realtimeBridge.translate").
			Str("table", b.table).
			Msg("dropping malformed change event")
		return models.PullResult{}, false
	}

	cp := doc.Checkpoint
	return models.PullResult{Checkpoint: &cp, Documents: []models.RemoteDocument{doc}}, true
}
