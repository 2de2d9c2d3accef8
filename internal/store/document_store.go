package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/models"
)

// DocumentStore keeps one collection of documents in the local SQLite
// database together with the bookkeeping replication needs: the assumed
// master state of every document, a dirty flag and write order for
// unpushed edits, and the per-replication checkpoints.
type DocumentStore struct {
	db         *DB
	collection string
	primaryKey string
	deleted    string

	now    func() time.Time
	logger *logger.Logger
}

func NewDocumentStore(db *DB, collection, primaryKey, deletedField string, log *logger.Logger) *DocumentStore {
	return &DocumentStore{
		db:         db,
		collection: collection,
		primaryKey: primaryKey,
		deleted:    deletedField,
		now:        time.Now,
		logger:     log,
	}
}

// Get returns a live document. Soft-deleted documents are reported as not found.
func (s *DocumentStore) Get(ctx context.Context, id string) (models.Document, error) {
	var (
		data    string
		deleted bool
	)
	err := s.db.QueryRowContext(ctx, getDocument, s.collection, id).Scan(&data, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		s.logger.Err(err).Str("func", "DocumentStore.Get").Str("id", id).Msg("error getting document")
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	if deleted {
		return nil, ErrDocumentNotFound
	}

	return decodeDocument(data)
}

// List returns every live document ordered by id.
func (s *DocumentStore) List(ctx context.Context) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, listDocuments, s.collection)
	if err != nil {
		s.logger.Err(err).Str("func", "DocumentStore.List").Msg("error listing documents")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	docs := make([]models.Document, 0)
	for rows.Next() {
		var data string
		if err = rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		doc, err := decodeDocument(data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return docs, nil
}

// Put records a local edit and queues the document for push.
func (s *DocumentStore) Put(ctx context.Context, doc models.Document) error {
	id, err := s.documentID(doc)
	if err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingDocument, err)
	}

	_, err = s.db.ExecContext(ctx, putLocalDocument,
		s.collection, id, string(data), doc.Bool(s.deleted), s.collection, s.timestamp())
	if err != nil {
		s.logger.Err(err).Str("func", "DocumentStore.Put").Str("id", id).Msg("error writing document")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	s.logger.Debug().Str("func", "DocumentStore.Put").Str("id", id).Msg("document written")
	return nil
}

// Delete soft-deletes a document. The deletion is pushed like any other edit.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	doc[s.deleted] = true
	return s.Put(ctx, doc)
}

// ApplyRemote upserts pulled documents in a single transaction.
func (s *DocumentStore) ApplyRemote(ctx context.Context, docs []models.RemoteDocument) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Err(err).Str("func", "DocumentStore.ApplyRemote").Msg("error beginning transaction")
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	applied := 0
	for _, remote := range docs {
		ok, err := s.applyOne(ctx, tx, remote)
		if err != nil {
			return err
		}
		if ok {
			applied++
		}
	}

	if err = tx.Commit(); err != nil {
		s.logger.Err(err).Str("func", "DocumentStore.ApplyRemote").Msg("error committing transaction")
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}

	s.logger.Debug().
		Str("func", "DocumentStore.ApplyRemote").
		Int("received", len(docs)).
		Int("applied", applied).
		Msg("remote documents applied")
	return nil
}

func (s *DocumentStore) applyOne(ctx context.Context, tx *sql.Tx, remote models.RemoteDocument) (bool, error) {
	id, err := s.documentID(remote.Document)
	if err != nil {
		return false, err
	}

	var (
		dirty      bool
		storedJSON sql.NullString
	)
	err = tx.QueryRowContext(ctx, getDocumentState, s.collection, id).Scan(&dirty, &storedJSON)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return false, fmt.Errorf("%w: %w", ErrScanningRow, err)
	case dirty:
		// local edits win until they are pushed and resolved
		return false, nil
	case storedJSON.Valid:
		stored, err := decodeCheckpoint(storedJSON.String)
		if err != nil {
			return false, err
		}
		if remote.Checkpoint.Compare(*stored) <= 0 {
			return false, nil
		}
	}

	data, err := json.Marshal(remote.Document)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrEncodingDocument, err)
	}
	checkpoint, err := json.Marshal(remote.Checkpoint)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrEncodingDocument, err)
	}

	_, err = tx.ExecContext(ctx, applyRemoteDocument,
		s.collection, id, string(data), remote.Document.Bool(s.deleted), string(data), string(checkpoint), s.timestamp())
	if err != nil {
		s.logger.Err(err).Str("func", "DocumentStore.applyOne").Str("id", id).Msg("error applying remote document")
		return false, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return true, nil
}

// PendingWrites returns unpushed local edits in write order.
func (s *DocumentStore) PendingWrites(ctx context.Context, limit int) ([]models.PendingWrite, error) {
	rows, err := s.db.QueryContext(ctx, getPendingWrites, s.collection, limit)
	if err != nil {
		s.logger.Err(err).Str("func", "DocumentStore.PendingWrites").Msg("error reading pending writes")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	writes := make([]models.PendingWrite, 0)
	for rows.Next() {
		var (
			data     string
			master   sql.NullString
			revision int64
		)
		if err = rows.Scan(&data, &master, &revision); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}

		write := models.PendingWrite{Revision: revision}
		if write.Row.NewDocumentState, err = decodeDocument(data); err != nil {
			return nil, err
		}
		if master.Valid {
			if write.Row.AssumedMasterState, err = decodeDocument(master.String); err != nil {
				return nil, err
			}
		}
		writes = append(writes, write)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return writes, nil
}

// AckWrite makes the pushed state the new assumed master. The dirty flag
// is cleared only if the document was not edited again in the meantime.
func (s *DocumentStore) AckWrite(ctx context.Context, write models.PendingWrite) error {
	id, err := s.documentID(write.Row.NewDocumentState)
	if err != nil {
		return err
	}

	master, err := json.Marshal(write.Row.NewDocumentState)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingDocument, err)
	}

	_, err = s.db.ExecContext(ctx, ackWrite, string(master), write.Revision, s.collection, id)
	if err != nil {
		s.logger.Err(err).Str("func", "DocumentStore.AckWrite").Str("id", id).Msg("error acknowledging write")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

// ResolveConflict stores master as the assumed remote state and applies
// the resolution. A document edited since the write was read keeps its
// newer local state and stays queued.
func (s *DocumentStore) ResolveConflict(ctx context.Context, write models.PendingWrite, master models.Document, resolution models.ConflictResolution) error {
	id, err := s.documentID(write.Row.NewDocumentState)
	if err != nil {
		return err
	}

	masterJSON, err := json.Marshal(master)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingDocument, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	var revision int64
	err = tx.QueryRowContext(ctx, getDocumentRevision, s.collection, id).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	switch {
	case revision != write.Revision:
		_, err = tx.ExecContext(ctx, setMaster, string(masterJSON), s.collection, id)
	case resolution.IsEqual:
		_, err = tx.ExecContext(ctx, resolveEqual, string(masterJSON), s.collection, id)
	default:
		var data []byte
		if data, err = json.Marshal(resolution.Document); err != nil {
			return fmt.Errorf("%w: %w", ErrEncodingDocument, err)
		}
		// a resolution that differs from master still has to be pushed
		dirty := !models.DocumentsEqual(resolution.Document, master)
		_, err = tx.ExecContext(ctx, resolveWithDocument,
			string(data), resolution.Document.Bool(s.deleted), string(masterJSON), dirty, s.timestamp(), s.collection, id)
	}
	if err != nil {
		s.logger.Err(err).Str("func", "DocumentStore.ResolveConflict").Str("id", id).Msg("error storing conflict resolution")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}
	return nil
}

// LoadCheckpoint returns nil when nothing was saved for replicationID yet.
func (s *DocumentStore) LoadCheckpoint(ctx context.Context, replicationID string) (*models.Checkpoint, error) {
	var data string
	err := s.db.QueryRowContext(ctx, getCheckpoint, replicationID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.logger.Err(err).Str("func", "DocumentStore.LoadCheckpoint").Str("replication_id", replicationID).Msg("error loading checkpoint")
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return decodeCheckpoint(data)
}

func (s *DocumentStore) SaveCheckpoint(ctx context.Context, replicationID string, checkpoint models.Checkpoint) error {
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingDocument, err)
	}

	_, err = s.db.ExecContext(ctx, saveCheckpoint, replicationID, string(data), s.timestamp())
	if err != nil {
		s.logger.Err(err).Str("func", "DocumentStore.SaveCheckpoint").Str("replication_id", replicationID).Msg("error saving checkpoint")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func (s *DocumentStore) documentID(doc models.Document) (string, error) {
	pk, ok := doc[s.primaryKey]
	if !ok || pk == nil {
		return "", fmt.Errorf("%w: field %q", ErrMissingPrimaryKey, s.primaryKey)
	}
	id := models.FormatScalar(pk)
	if id == "" {
		return "", fmt.Errorf("%w: field %q is empty", ErrMissingPrimaryKey, s.primaryKey)
	}
	return id, nil
}

func (s *DocumentStore) timestamp() string {
	return models.FormatTimestamp(s.now())
}

func decodeDocument(data string) (models.Document, error) {
	doc, err := models.DecodeDocument([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodingDocument, err)
	}
	return doc, nil
}

func decodeCheckpoint(data string) (*models.Checkpoint, error) {
	var cp models.Checkpoint
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodingDocument, err)
	}
	return &cp, nil
}
