// Package migrations holds the goose migrations of the local document store
// and the helper functions installed on the remote PostgreSQL database.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql postgres/*.sql
var embedMigrations embed.FS

var ErrNilDB = errors.New("db is nil")

// goose keeps its dialect and file system in package state.
var gooseMu sync.Mutex

// MigrateLocal brings the local SQLite schema up to date.
func MigrateLocal(db *sql.DB) error {
	return migrate(db, "sqlite3", "sqlite")
}

// MigrateRemote installs the trigger functions used by EnsureTriggers on the
// remote PostgreSQL database.
func MigrateRemote(db *sql.DB) error {
	return migrate(db, "postgres", "postgres")
}

func migrate(db *sql.DB, dialect, dir string) error {
	if db == nil {
		return fmt.Errorf("migration error: %w", ErrNilDB)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("migration error setting dialect for db: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	return nil
}

// TriggerOptions names the replicated remote table and its columns.
type TriggerOptions struct {
	Table         string
	PrimaryKey    string
	ModifiedField string
	Channel       string
}

// EnsureTriggers (re)creates the triggers that maintain the modification
// timestamp and publish row changes of a table, plus the index backing the
// pull order. MigrateRemote must have run before.
func EnsureTriggers(ctx context.Context, db *sql.DB, opts TriggerOptions) error {
	if db == nil {
		return ErrNilDB
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ensure triggers: begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range triggerStatements(opts) {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure triggers on %s: %w", opts.Table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ensure triggers: commit: %w", err)
	}
	return nil
}

func triggerStatements(opts TriggerOptions) []string {
	table := pgx.Identifier{opts.Table}.Sanitize()
	touch := pgx.Identifier{opts.Table + "_replication_touch"}.Sanitize()
	notify := pgx.Identifier{opts.Table + "_replication_notify"}.Sanitize()
	index := pgx.Identifier{opts.Table + "_replication_order"}.Sanitize()
	modified := pgx.Identifier{opts.ModifiedField}.Sanitize()
	primaryKey := pgx.Identifier{opts.PrimaryKey}.Sanitize()

	return []string{
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", touch, table),
		fmt.Sprintf("CREATE TRIGGER %s BEFORE INSERT OR UPDATE ON %s FOR EACH ROW EXECUTE FUNCTION replication_touch_modified(%s)",
			touch, table, quoteLiteral(opts.ModifiedField)),
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", notify, table),
		fmt.Sprintf("CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s FOR EACH ROW EXECUTE FUNCTION replication_notify_change(%s, %s, %s)",
			notify, table, quoteLiteral(opts.Channel), quoteLiteral(opts.ModifiedField), quoteLiteral(opts.PrimaryKey)),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s, %s)", index, table, modified, primaryKey),
	}
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
