package service

import (
	"fmt"
	"time"

	"github.com/MKhiriev/go-table-replicator/models"
)

// RowCodec translates between remote rows and local documents and derives
// checkpoints from rows.
type RowCodec struct {
	PrimaryKey    string
	ModifiedField string
	DeletedField  string

	// KeepModified retains the modification timestamp in local documents.
	KeepModified bool
}

// Checkpoint returns the position of row in the replication order.
// A row without a modification timestamp or primary key violates the
// table contract and yields a fatal error.
func (c RowCodec) Checkpoint(row models.Document) (models.Checkpoint, error) {
	var modified string
	switch v := row[c.ModifiedField].(type) {
	case string:
		modified = v
	case time.Time:
		modified = models.FormatTimestamp(v)
	}
	if modified == "" {
		return models.Checkpoint{}, fmt.Errorf("%w: field %q is missing or not a timestamp", ErrMalformedRow, c.ModifiedField)
	}

	pk, err := c.PrimaryKeyValue(row)
	if err != nil {
		return models.Checkpoint{}, err
	}

	return models.Checkpoint{Modified: modified, PrimaryKeyValue: pk}, nil
}

// PrimaryKeyValue reads the primary key of row. Only text and numbers are
// valid keys.
func (c RowCodec) PrimaryKeyValue(row models.Document) (any, error) {
	pk, ok := row[c.PrimaryKey]
	if !ok || pk == nil {
		return nil, fmt.Errorf("%w: field %q", ErrMissingPrimaryKey, c.PrimaryKey)
	}

	switch models.KindOf(pk) {
	case models.KindString, models.KindNumber:
		return pk, nil
	default:
		return nil, fmt.Errorf("%w: primary key %q has kind %s", ErrMalformedRow, c.PrimaryKey, models.KindOf(pk))
	}
}

// ToDocument converts a remote row into its local form. The modification
// timestamp is dropped unless KeepModified is set; the delete flag passes
// through untouched.
func (c RowCodec) ToDocument(row models.Document) models.Document {
	if c.KeepModified {
		return row.Clone()
	}
	return row.Without(c.ModifiedField)
}

// ToRow converts a local document into a row body for insert or update.
// The modification timestamp is always assigned by the backend.
func (c RowCodec) ToRow(doc models.Document) models.Document {
	return doc.Without(c.ModifiedField)
}

// RemoteDocument pairs the local form of row with its checkpoint.
func (c RowCodec) RemoteDocument(row models.Document) (models.RemoteDocument, error) {
	cp, err := c.Checkpoint(row)
	if err != nil {
		return models.RemoteDocument{}, err
	}
	return models.RemoteDocument{Document: c.ToDocument(row), Checkpoint: cp}, nil
}

// IsDeleted reports whether doc carries the soft-delete flag.
func (c RowCodec) IsDeleted(doc models.Document) bool {
	return doc.Bool(c.DeletedField)
}
