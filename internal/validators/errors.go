package validators

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported type for validation")
	ErrUnknownField    = errors.New("unknown field for validation")

	ErrEmptyDocument       = errors.New("document is empty")
	ErrMissingPrimaryKey   = errors.New("primary key is required")
	ErrInvalidPrimaryKey   = errors.New("primary key must be a non-empty string or a number")
	ErrInvalidDeletedFlag  = errors.New("deleted flag must be a boolean")
	ErrStructuredValue     = errors.New("nested objects and arrays are not replicated")
	ErrInvalidFieldName    = errors.New("invalid field name")
	ErrReservedField       = errors.New("field is maintained by the server")
	ErrMissingNewState     = errors.New("new document state is required")
	ErrAssumedStateKeyDiff = errors.New("assumed master state belongs to another document")
)
