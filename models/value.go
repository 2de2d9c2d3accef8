package models

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"time"
)

// ValueKind classifies a document field value for the purpose of building
// update preconditions. The set is closed: every value maps to exactly one
// kind.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindString
	KindNumber
	// KindStructured covers JSON objects and arrays.
	KindStructured
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindStructured:
		return "structured"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// KindOf reports the kind of v. Values of unrecognised Go types are treated
// as structured.
func KindOf(v any) ValueKind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case string, time.Time:
		return KindString
	case json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return KindNumber
	default:
		return KindStructured
	}
}

// FormatScalar renders a scalar value the way it appears in a filter:
// strings verbatim, numbers in their shortest decimal form, booleans and
// null as literals.
func FormatScalar(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case time.Time:
		return FormatTimestamp(val)
	default:
		return fmt.Sprint(val)
	}
}

// TimestampLayout is the fixed-width UTC layout used for modification
// timestamps. Fixed width keeps string order equal to time order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTimestamp renders t with [TimestampLayout] in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// asRat converts any numeric value to an exact rational.
func asRat(v any) (*big.Rat, bool) {
	var s string
	switch val := v.(type) {
	case json.Number:
		s = val.String()
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		s = FormatScalar(val)
	default:
		return nil, false
	}

	r, ok := new(big.Rat).SetString(s)
	return r, ok
}

// CompareNumbers compares two numeric values exactly. ok is false when
// either value is not a number.
func CompareNumbers(a, b any) (cmp int, ok bool) {
	ra, okA := asRat(a)
	rb, okB := asRat(b)
	if !okA || !okB {
		return 0, false
	}
	return ra.Cmp(rb), true
}

// ValuesEqual reports whether two JSON-compatible values are equal.
// Numbers compare by value regardless of their Go representation.
func ValuesEqual(a, b any) bool {
	if KindOf(a) == KindNumber && KindOf(b) == KindNumber {
		cmp, ok := CompareNumbers(a, b)
		return ok && cmp == 0
	}

	switch av := a.(type) {
	case map[string]any:
		bv, ok := asMap(b)
		return ok && mapsEqual(av, bv)
	case Document:
		bv, ok := asMap(b)
		return ok && mapsEqual(av, bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !ValuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(a, b)
}

// DocumentsEqual reports whether two documents hold the same fields with
// equal values.
func DocumentsEqual(a, b Document) bool {
	return mapsEqual(a, b)
}

func asMap(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case map[string]any:
		return val, true
	case Document:
		return val, true
	default:
		return nil, false
	}
}

func mapsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !ValuesEqual(av, bv) {
			return false
		}
	}
	return true
}
