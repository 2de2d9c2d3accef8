package adapter

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MKhiriev/go-table-replicator/internal/logger"
	"github.com/MKhiriev/go-table-replicator/models"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// postgresBackend is the direct PostgreSQL implementation of [Backend].
// It renders the backend-neutral query model with squirrel and maps driver
// errors through [mapPgError].
type postgresBackend struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewPostgresBackend constructs a [Backend] executing statements on db.
// db must use the pgx driver.
func NewPostgresBackend(db *sql.DB, log *logger.Logger) Backend {
	return &postgresBackend{db: db, logger: log}
}

// Select implements [Backend].
func (b *postgresBackend) Select(ctx context.Context, q models.SelectQuery) ([]models.Document, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildSelectQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "postgresBackend.Select").
			Str("table", q.Table).
			Msg("failed to execute select")
		return nil, mapPgError(err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// Insert implements [Backend].
func (b *postgresBackend) Insert(ctx context.Context, table string, row models.Document) error {
	query, args, err := psql.Insert(quoteIdent(table)).SetMap(columnValues(row)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err = b.db.ExecContext(ctx, query, args...); err != nil {
		return mapPgError(err)
	}
	return nil
}

// Update implements [Backend].
func (b *postgresBackend) Update(ctx context.Context, table string, row models.Document, where models.Filters) (int64, error) {
	query, args, err := buildUpdateQuery(table, row, where)
	if err != nil {
		return 0, err
	}

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapPgError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return n, nil
}

func buildSelectQuery(q models.SelectQuery) (string, []any, error) {
	builder := psql.Select("*").From(quoteIdent(q.Table))

	if len(q.Where) > 0 {
		where, err := sqlizeFilters(q.Where)
		if err != nil {
			return "", nil, err
		}
		builder = builder.Where(where)
	}

	for _, o := range q.OrderBy {
		dir := "ASC"
		if o.Direction == models.OrderDesc {
			dir = "DESC"
		}
		builder = builder.OrderBy(quoteIdent(o.Field) + " " + dir)
	}

	if q.Limit > 0 {
		builder = builder.Limit(uint64(q.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build select: %w", err)
	}
	return query, args, nil
}

func buildUpdateQuery(table string, row models.Document, where models.Filters) (string, []any, error) {
	builder := psql.Update(quoteIdent(table)).SetMap(columnValues(row))

	if len(where) > 0 {
		cond, err := sqlizeFilters(where)
		if err != nil {
			return "", nil, err
		}
		builder = builder.Where(cond)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build update: %w", err)
	}
	return query, args, nil
}

// sqlizeFilters renders a conjunction of filters.
func sqlizeFilters(filters models.Filters) (sq.Sqlizer, error) {
	and := make(sq.And, 0, len(filters))
	for _, f := range filters {
		s, err := sqlizeFilter(f)
		if err != nil {
			return nil, err
		}
		and = append(and, s)
	}
	return and, nil
}

func sqlizeFilter(f models.Filter) (sq.Sqlizer, error) {
	switch f.Op {
	case models.OpAnd, models.OpOr:
		parts := make([]sq.Sqlizer, 0, len(f.Filters))
		for _, inner := range f.Filters {
			s, err := sqlizeFilter(inner)
			if err != nil {
				return nil, err
			}
			parts = append(parts, s)
		}
		if f.Op == models.OpAnd {
			return sq.And(parts), nil
		}
		return sq.Or(parts), nil
	}

	col := quoteIdent(f.Field)
	if models.KindOf(f.Value) == models.KindStructured {
		return nil, fmt.Errorf("%w: structured value for %q", ErrUnsupportedFilter, f.Field)
	}

	switch f.Op {
	case models.OpEq:
		return sq.Eq{col: sqlValue(f.Value)}, nil
	case models.OpGt:
		return sq.Gt{col: sqlValue(f.Value)}, nil
	case models.OpIs:
		switch v := f.Value.(type) {
		case nil:
			return sq.Expr(col + " IS NULL"), nil
		case bool:
			if v {
				return sq.Expr(col + " IS TRUE"), nil
			}
			return sq.Expr(col + " IS FALSE"), nil
		}
		return nil, fmt.Errorf("%w: is.%v on %q", ErrUnsupportedFilter, f.Value, f.Field)
	default:
		return nil, fmt.Errorf("%w: operator %q", ErrUnsupportedFilter, f.Op)
	}
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func columnValues(row models.Document) map[string]any {
	values := make(map[string]any, len(row))
	for k, v := range row {
		values[quoteIdent(k)] = sqlValue(v)
	}
	return values
}

// sqlValue converts a document value into a driver argument. Numbers keep
// integer precision where possible; objects and arrays are sent as JSON.
func sqlValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any, models.Document, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return string(data)
	default:
		return v
	}
}

// scanDocuments reads every row into a document. Timestamps are rendered
// with models.TimestampLayout, numbers become json.Number and JSON columns
// are decoded.
func scanDocuments(rows *sql.Rows) ([]models.Document, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}

	jsonColumns := make([]bool, len(columns))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, t := range types {
			name := strings.ToUpper(t.DatabaseTypeName())
			jsonColumns[i] = name == "JSON" || name == "JSONB"
		}
	}

	docs := make([]models.Document, 0, 64)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err = rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scan row: %w", ErrBadResponse, err)
		}

		doc := make(models.Document, len(columns))
		for i, col := range columns {
			v, err := documentValue(values[i], jsonColumns[i])
			if err != nil {
				return nil, fmt.Errorf("%w: column %q: %w", ErrBadResponse, col, err)
			}
			doc[col] = v
		}
		docs = append(docs, doc)
	}

	if err = rows.Err(); err != nil {
		return nil, mapPgError(err)
	}

	return docs, nil
}

func documentValue(v any, isJSON bool) (any, error) {
	switch val := v.(type) {
	case time.Time:
		return models.FormatTimestamp(val), nil
	case int64:
		return json.Number(strconv.FormatInt(val, 10)), nil
	case int32:
		return json.Number(strconv.FormatInt(int64(val), 10)), nil
	case float64:
		return json.Number(strconv.FormatFloat(val, 'f', -1, 64)), nil
	case []byte:
		if isJSON {
			return decodeJSONValue(val)
		}
		return string(val), nil
	case string:
		if isJSON {
			return decodeJSONValue([]byte(val))
		}
		return val, nil
	default:
		return v, nil
	}
}

func decodeJSONValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
