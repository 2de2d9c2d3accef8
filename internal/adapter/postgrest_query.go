package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/MKhiriev/go-table-replicator/models"
)

// queryParam is one key=value pair of a PostgREST query string. Order
// matters to PostgREST only for readability, but keeping it stable makes
// requests reproducible.
type queryParam struct {
	key   string
	value string
}

// encodeSelect renders q as a PostgREST query string:
//
//	select=*[&<filters>][&order=<field>.<dir>,...][&limit=<n>]
func encodeSelect(q models.SelectQuery) (string, error) {
	params := []queryParam{{key: "select", value: "*"}}

	filters, err := filterParams(q.Where)
	if err != nil {
		return "", err
	}
	params = append(params, filters...)

	if len(q.OrderBy) > 0 {
		orders := make([]string, 0, len(q.OrderBy))
		for _, o := range q.OrderBy {
			dir := o.Direction
			if dir == "" {
				dir = models.OrderAsc
			}
			orders = append(orders, o.Field+"."+dir)
		}
		params = append(params, queryParam{key: "order", value: strings.Join(orders, ",")})
	}

	if q.Limit > 0 {
		params = append(params, queryParam{key: "limit", value: strconv.Itoa(q.Limit)})
	}

	return encodeParams(params), nil
}

// encodeFilters renders a conjunction of filters as a query string, used
// for PATCH preconditions.
func encodeFilters(where models.Filters) (string, error) {
	params, err := filterParams(where)
	if err != nil {
		return "", err
	}
	return encodeParams(params), nil
}

func filterParams(where models.Filters) ([]queryParam, error) {
	params := make([]queryParam, 0, len(where))
	for _, f := range where {
		if f.IsLogical() {
			terms, err := logicalTerms(f.Filters)
			if err != nil {
				return nil, err
			}
			params = append(params, queryParam{key: string(f.Op), value: "(" + terms + ")"})
			continue
		}

		value, err := topLevelValue(f)
		if err != nil {
			return nil, err
		}
		params = append(params, queryParam{key: f.Field, value: string(f.Op) + "." + value})
	}
	return params, nil
}

// topLevelValue renders the value of a field=op.value parameter. Values are
// not quoted at the top level.
func topLevelValue(f models.Filter) (string, error) {
	switch models.KindOf(f.Value) {
	case models.KindNull, models.KindBool:
		if f.Op != models.OpIs && f.Value == nil {
			return "", fmt.Errorf("%w: %s.%s needs a value", ErrUnsupportedFilter, f.Field, f.Op)
		}
		return models.FormatScalar(f.Value), nil
	case models.KindString, models.KindNumber:
		return models.FormatScalar(f.Value), nil
	default:
		return "", fmt.Errorf("%w: structured value for %q", ErrUnsupportedFilter, f.Field)
	}
}

// logicalTerms renders the members of an and()/or() group. Inside a group
// values are JSON encoded, so strings are double quoted and may contain
// commas and parentheses.
func logicalTerms(filters models.Filters) (string, error) {
	terms := make([]string, 0, len(filters))
	for _, f := range filters {
		if f.IsLogical() {
			inner, err := logicalTerms(f.Filters)
			if err != nil {
				return "", err
			}
			terms = append(terms, string(f.Op)+"("+inner+")")
			continue
		}

		var value string
		if f.Op == models.OpIs {
			value = models.FormatScalar(f.Value)
		} else {
			quoted, err := quoteValue(f.Field, f.Value)
			if err != nil {
				return "", err
			}
			value = quoted
		}
		terms = append(terms, f.Field+"."+string(f.Op)+"."+value)
	}
	return strings.Join(terms, ","), nil
}

func quoteValue(field string, v any) (string, error) {
	kind := models.KindOf(v)
	if kind == models.KindStructured {
		return "", fmt.Errorf("%w: structured value for %q", ErrUnsupportedFilter, field)
	}
	if kind == models.KindString {
		v = models.FormatScalar(v)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedFilter, err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func encodeParams(params []queryParam) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, formEscape(p.key)+"="+formEscape(p.value))
	}
	return strings.Join(parts, "&")
}

// formEscape applies application/x-www-form-urlencoded escaping as browsers
// and URLSearchParams do: '*' stays literal and '~' is escaped, the opposite
// of url.QueryEscape.
func formEscape(s string) string {
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "%2A", "*")
	return strings.ReplaceAll(escaped, "~", "%7E")
}
