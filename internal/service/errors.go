package service

import (
	"errors"

	"github.com/MKhiriev/go-table-replicator/internal/adapter"
)

var (
	ErrUnsupportedFieldType = errors.New("unsupported field type in update precondition")
	ErrInvalidBatchSize     = errors.New("invalid batch size")
	ErrMalformedRow         = errors.New("malformed row")
	ErrMissingPrimaryKey    = errors.New("missing primary key")

	// ErrConflictRowMissing is returned when a write conflicted but the row
	// could not be fetched afterwards. The push is retried.
	ErrConflictRowMissing = errors.New("conflicting row not found")

	ErrChangeFeedDisabled = errors.New("change feed disabled")
	ErrAlreadyStarted     = errors.New("replication already started")
	ErrReplicationStopped = errors.New("replication stopped")

	ErrInvalidDocument = errors.New("invalid document")
)

// IsFatal reports whether err is a configuration or schema error that no
// retry can fix. Such errors stop the replication session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnsupportedFieldType) ||
		errors.Is(err, ErrInvalidBatchSize) ||
		errors.Is(err, ErrMalformedRow) ||
		errors.Is(err, ErrMissingPrimaryKey) ||
		errors.Is(err, adapter.ErrUnsupportedFilter)
}
