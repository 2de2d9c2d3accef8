package models

// Operator is a filter operator understood by every backend.
type Operator string

const (
	OpEq  Operator = "eq"
	OpGt  Operator = "gt"
	OpIs  Operator = "is"
	OpAnd Operator = "and"
	OpOr  Operator = "or"
)

// Filters is a conjunction of filters.
type Filters []Filter

// Filter is a node of a filter tree. Leaf nodes compare Field against Value
// with Op; OpAnd and OpOr nodes combine Filters instead.
type Filter struct {
	Field   string   `json:"field,omitempty"`
	Op      Operator `json:"op"`
	Value   any      `json:"value,omitempty"`
	Filters Filters  `json:"filters,omitempty"`
}

// IsLogical reports whether f combines other filters.
func (f Filter) IsLogical() bool {
	return f.Op == OpAnd || f.Op == OpOr
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

func Gt(field string, value any) Filter {
	return Filter{Field: field, Op: OpGt, Value: value}
}

func Is(field string, value any) Filter {
	return Filter{Field: field, Op: OpIs, Value: value}
}

func And(filters ...Filter) Filter {
	return Filter{Op: OpAnd, Filters: filters}
}

func Or(filters ...Filter) Filter {
	return Filter{Op: OpOr, Filters: filters}
}

// Order is a sort order on one field.
type Order struct {
	Field     string `json:"field"`
	Direction string `json:"direction"` // "asc" or "desc"
}

const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// SelectQuery is a read against one remote table. Where holds top-level
// filters that must all match.
type SelectQuery struct {
	Table   string  `json:"table"`
	Where   Filters `json:"where"`
	OrderBy []Order `json:"orderBy"`
	Limit   int     `json:"limit"`
}
