package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/models"
	"github.com/jackc/pgx/v5"
)

type pgNotifyFeed struct {
	dsn     string
	channel string

	logger *logger.Logger
}

// NewPgNotifyFeed constructs a [ChangeFeed] on top of PostgreSQL
// LISTEN/NOTIFY. Every subscription opens its own connection and listens on
// channel; notification payloads must be JSON encoded
// {"table", "eventType", "new", "old"} objects, as produced by the
// replication_notify_change trigger installed by migrations.EnsureTriggers.
func NewPgNotifyFeed(dsn, channel string, log *logger.Logger) ChangeFeed {
	return &pgNotifyFeed{dsn: dsn, channel: channel, logger: log}
}

// Subscribe implements [ChangeFeed].
func (f *pgNotifyFeed) Subscribe(ctx context.Context, table string, handler ChangeHandler) (Subscription, error) {
	conn, err := pgx.Connect(ctx, f.dsn)
	if err != nil {
		return nil, mapPgError(err)
	}

	if _, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		_ = conn.Close(context.WithoutCancel(ctx))
		return nil, mapPgError(err)
	}

	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &pgNotifySubscription{
		conn:   conn,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	f.logger.Info().
		Str("func", "pgNotifyFeed.Subscribe").
		Str("channel", f.channel).
		Str("table", table).
		Msg("listening for table changes")

	go f.listen(listenCtx, sub, table, handler)

	return sub, nil
}

func (f *pgNotifyFeed) listen(ctx context.Context, sub *pgNotifySubscription, table string, handler ChangeHandler) {
	defer close(sub.done)

	for {
		notification, err := sub.conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				f.logger.Err(err).
					Str("func", "pgNotifyFeed.listen").
					Str("channel", f.channel).
					Msg("change feed connection lost")
			}
			return
		}

		event, ok, err := decodeNotification(notification.Payload, table)
		if err != nil {
			f.logger.Warn().Err(err).
				Str("func", "pgNotifyFeed.listen").
				Str("channel", f.channel).
				Msg("skipping undecodable notification")
			continue
		}
		if ok {
			handler(event)
		}
	}
}

// decodeNotification parses a notification payload. ok is false when the
// event belongs to another table.
func decodeNotification(payload, table string) (models.ChangeEvent, bool, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()

	var event models.ChangeEvent
	if err := dec.Decode(&event); err != nil {
		return models.ChangeEvent{}, false, fmt.Errorf("decode change event: %w", err)
	}

	return event, event.Table == table, nil
}

type pgNotifySubscription struct {
	conn   *pgx.Conn
	cancel context.CancelFunc
	done   chan struct{}

	once sync.Once
}

// Unsubscribe implements [Subscription]. It stops the listener, waits for
// it to exit and closes the connection.
func (s *pgNotifySubscription) Unsubscribe() error {
	err := ErrNotSubscribed
	s.once.Do(func() {
		s.cancel()
		<-s.done
		err = s.conn.Close(context.Background())
	})
	return err
}
