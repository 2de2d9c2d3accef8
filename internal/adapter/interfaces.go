// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides the remote side of a replication: backends that
// read and write the rows of a remote table and change feeds that deliver
// row changes as they happen.
//
// Three backends are shipped: a PostgREST / Supabase REST backend
// ([NewPostgRESTBackend]), a direct PostgreSQL backend
// ([NewPostgresBackend]) and an in-process [MemoryBackend]. PostgreSQL
// LISTEN/NOTIFY is exposed as a [ChangeFeed] by [NewPgNotifyFeed].
//
// Backend failures are reported as [*BackendError] values that unwrap to the
// sentinels in errors.go, so callers can use [errors.Is] regardless of the
// transport (e.g. [ErrUniqueViolation] for a duplicate primary key).
package adapter

import (
	"context"

	"github.com/MKhiriev/go-table-replicator/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/adapter_mock.go -package=mock

// Backend executes queries and mutations against a remote table.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Select returns the rows of q.Table matching every filter of q.Where,
	// sorted by q.OrderBy and truncated to q.Limit rows when q.Limit > 0.
	Select(ctx context.Context, q models.SelectQuery) ([]models.Document, error)

	// Insert creates a new row. A primary key collision is reported as an
	// error wrapping [ErrUniqueViolation].
	Insert(ctx context.Context, table string, row models.Document) error

	// Update writes the fields of row to every row of table matching all of
	// where and returns the number of rows updated.
	Update(ctx context.Context, table string, row models.Document, where models.Filters) (int64, error)
}

// ChangeHandler receives change events from a subscription. It is called
// from a single goroutine per subscription.
type ChangeHandler func(event models.ChangeEvent)

// ChangeFeed delivers row changes of a remote table.
type ChangeFeed interface {
	// Subscribe starts delivering changes of table to handler. ctx bounds
	// the setup only; the subscription lives until Unsubscribe is called.
	Subscribe(ctx context.Context, table string, handler ChangeHandler) (Subscription, error)
}

// Subscription is an active change feed subscription.
type Subscription interface {
	// Unsubscribe stops the delivery. The handler is never called after
	// Unsubscribe returns.
	Unsubscribe() error
}
