package store

import "errors"

// Sentinel errors returned by the document store. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrDocumentNotFound is returned when a document does not exist in the
	// collection or has been soft-deleted.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrMissingPrimaryKey is returned when a document without a primary key
	// value is written.
	ErrMissingPrimaryKey = errors.New("document has no primary key")
)

// Low-level database operation errors. These are returned (or wrapped) by
// store methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing an open transaction
	// fails. The transaction is considered rolled back at this point.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to executing statement")

	// ErrScanningRow is returned when scanning column values from a single
	// result row fails.
	ErrScanningRow = errors.New("failed to scan document row")

	// ErrScanningRows is returned when scanning column values during
	// multi-row iteration fails, typically mid-result-set.
	ErrScanningRows = errors.New("failed to scan document rows")

	// ErrEncodingDocument is returned when a document or checkpoint cannot
	// be encoded to or decoded from its stored JSON form.
	ErrEncodingDocument = errors.New("failed to encode document")
)
