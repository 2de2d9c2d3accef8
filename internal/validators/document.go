package validators

import (
	"context"
	"fmt"
	"strings"

	"github.com/MKhiriev/go-table-replicator/models"
)

// Field name constants used to restrict validation to a subset of rules.
const (
	// FieldPrimaryKey checks that the primary key is present and scalar.
	FieldPrimaryKey = "primary_key"

	// FieldDeleted checks that the soft-delete flag, when set, is a boolean.
	FieldDeleted = "deleted"

	// FieldModified rejects documents that carry the server-maintained
	// modification timestamp.
	FieldModified = "modified"

	// FieldValues checks every field name and rejects nested values, which
	// cannot be expressed as update preconditions.
	FieldValues = "values"

	// FieldAssumedState checks that a write's assumed master state refers to
	// the same document as its new state.
	FieldAssumedState = "assumed_state"
)

// DocumentFields names the replication columns a DocumentValidator knows about.
type DocumentFields struct {
	PrimaryKey    string
	ModifiedField string
	DeletedField  string
}

// DocumentValidator validates documents and pending writes before they enter
// the local store.
type DocumentValidator struct {
	fields DocumentFields
}

func NewDocumentValidator(fields DocumentFields) Validator {
	return &DocumentValidator{fields: fields}
}

func (v *DocumentValidator) Validate(ctx context.Context, obj any, fields ...string) error {
	switch value := obj.(type) {
	case models.Document:
		return v.validateDocument(ctx, value, fields...)
	case *models.Document:
		return v.validateDocument(ctx, *value, fields...)

	case models.WriteRow:
		return v.validateWriteRow(ctx, value, fields...)
	case *models.WriteRow:
		return v.validateWriteRow(ctx, *value, fields...)

	default:
		return ErrUnsupportedType
	}
}

func (v *DocumentValidator) validateDocument(_ context.Context, doc models.Document, fields ...string) error {
	if len(doc) == 0 {
		return ErrEmptyDocument
	}
	if len(fields) == 0 {
		fields = []string{FieldPrimaryKey, FieldDeleted, FieldModified, FieldValues}
	}

	for _, f := range fields {
		switch f {
		case FieldPrimaryKey:
			if err := v.validatePrimaryKey(doc); err != nil {
				return err
			}
		case FieldDeleted:
			if value, ok := doc[v.fields.DeletedField]; ok && value != nil {
				if _, isBool := value.(bool); !isBool {
					return ErrInvalidDeletedFlag
				}
			}
		case FieldModified:
			if _, ok := doc[v.fields.ModifiedField]; ok {
				return fmt.Errorf("%w: %s", ErrReservedField, v.fields.ModifiedField)
			}
		case FieldValues:
			for name, value := range doc {
				if strings.TrimSpace(name) == "" {
					return ErrInvalidFieldName
				}
				if models.KindOf(value) == models.KindStructured {
					return fmt.Errorf("%w: %s", ErrStructuredValue, name)
				}
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}

func (v *DocumentValidator) validatePrimaryKey(doc models.Document) error {
	value, ok := doc[v.fields.PrimaryKey]
	if !ok || value == nil {
		return ErrMissingPrimaryKey
	}

	switch models.KindOf(value) {
	case models.KindString:
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			return ErrInvalidPrimaryKey
		}
		return nil
	case models.KindNumber:
		return nil
	default:
		return ErrInvalidPrimaryKey
	}
}

func (v *DocumentValidator) validateWriteRow(ctx context.Context, row models.WriteRow, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldPrimaryKey, FieldDeleted, FieldValues, FieldAssumedState}
	}

	if len(row.NewDocumentState) == 0 {
		return ErrMissingNewState
	}

	docFields := make([]string, 0, len(fields))
	checkAssumed := false
	for _, f := range fields {
		if f == FieldAssumedState {
			checkAssumed = true
			continue
		}
		docFields = append(docFields, f)
	}

	if len(docFields) > 0 {
		if err := v.validateDocument(ctx, row.NewDocumentState, docFields...); err != nil {
			return fmt.Errorf("new document state: %w", err)
		}
	}

	if checkAssumed && !row.IsInsert() {
		newKey := row.NewDocumentState[v.fields.PrimaryKey]
		assumedKey, ok := row.AssumedMasterState[v.fields.PrimaryKey]
		if !ok || assumedKey == nil || models.ComparePrimaryKeys(newKey, assumedKey) != 0 {
			return ErrAssumedStateKeyDiff
		}
	}

	return nil
}
