package service

import (
	"fmt"
	"slices"

	"github.com/MKhiriev/go-table-replicator/models"
)

// Preconditions turns the assumed remote state into the filter of an
// optimistic update: every field must still hold the assumed value.
//
// Text and numbers compare with eq. Booleans and null use is, since eq
// never matches NULL. Objects and arrays cannot be compared and fail with
// ErrUnsupportedFieldType.
//
// The primary key comes first, remaining fields follow in name order.
func (c RowCodec) Preconditions(assumed models.Document) (models.Filters, error) {
	fields := make([]string, 0, len(assumed))
	for field := range assumed {
		if field != c.PrimaryKey {
			fields = append(fields, field)
		}
	}
	slices.Sort(fields)
	if _, ok := assumed[c.PrimaryKey]; ok {
		fields = slices.Insert(fields, 0, c.PrimaryKey)
	}

	filters := make(models.Filters, 0, len(fields))
	for _, field := range fields {
		value := assumed[field]

		switch kind := models.KindOf(value); kind {
		case models.KindString, models.KindNumber:
			filters = append(filters, models.Eq(field, value))
		case models.KindNull, models.KindBool:
			filters = append(filters, models.Is(field, value))
		case models.KindStructured:
			return nil, fmt.Errorf("%w: field %q holds a %s value", ErrUnsupportedFieldType, field, kind)
		default:
			return nil, fmt.Errorf("%w: field %q has unknown kind %s", ErrUnsupportedFieldType, field, kind)
		}
	}

	return filters, nil
}
