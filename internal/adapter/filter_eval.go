package adapter

import (
	"fmt"
	"strings"

	"github.com/MKhiriev/go-table-replicator/models"
)

// matchFilters reports whether row satisfies every filter. Comparisons
// follow SQL semantics: eq and gt never match a NULL or missing column.
func matchFilters(row models.Document, filters models.Filters) (bool, error) {
	for _, f := range filters {
		ok, err := matchFilter(row, f)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchFilter(row models.Document, f models.Filter) (bool, error) {
	switch f.Op {
	case models.OpAnd:
		return matchFilters(row, f.Filters)
	case models.OpOr:
		for _, inner := range f.Filters {
			ok, err := matchFilter(row, inner)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}

	if models.KindOf(f.Value) == models.KindStructured {
		return false, fmt.Errorf("%w: structured value for %q", ErrUnsupportedFilter, f.Field)
	}

	actual, present := row[f.Field]

	switch f.Op {
	case models.OpEq:
		if !present || actual == nil || f.Value == nil {
			return false, nil
		}
		return models.ValuesEqual(actual, f.Value), nil
	case models.OpGt:
		if !present || actual == nil || f.Value == nil {
			return false, nil
		}
		return compareValues(actual, f.Value) > 0, nil
	case models.OpIs:
		switch want := f.Value.(type) {
		case nil:
			return actual == nil, nil
		case bool:
			got, ok := actual.(bool)
			return ok && got == want, nil
		}
		return false, fmt.Errorf("%w: is.%v on %q", ErrUnsupportedFilter, f.Value, f.Field)
	default:
		return false, fmt.Errorf("%w: operator %q", ErrUnsupportedFilter, f.Op)
	}
}

// compareValues orders two scalars: numerically when both are numbers,
// otherwise by their text form.
func compareValues(a, b any) int {
	if cmp, ok := models.CompareNumbers(a, b); ok {
		return cmp
	}
	return strings.Compare(models.FormatScalar(a), models.FormatScalar(b))
}
