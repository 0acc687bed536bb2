// Package sqlite stores lineage records in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/lineage/pkg/storage/sqlstore"
)

//go:embed schema.sql
var schemaSQL string

// Dialect is the SQLite flavour of SQL
type Dialect struct{}

// Name implements sqlstore.Dialect
func (Dialect) Name() string { return "sqlite" }

// Rebind implements sqlstore.Dialect. SQLite understands ? natively.
func (Dialect) Rebind(query string) string { return query }

// AnyOf implements sqlstore.Dialect
func (Dialect) AnyOf(column string, values []string) (string, []any) {
	return sqlstore.InList(column, values)
}

// ContainsText implements sqlstore.Dialect. JSON columns are stored as text.
func (Dialect) ContainsText(column string) string {
	return "instr(" + column + ", ?) > 0"
}

// Schema implements sqlstore.Dialect
func (Dialect) Schema() string { return schemaSQL }

// Open creates or opens a SQLite database at path and applies the schema.
// Use ":memory:" for a throwaway database.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func Open(path string) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection also
	// keeps a :memory: database alive for the life of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	store := sqlstore.New(sqlstore.SingleDB{DB: db}, Dialect{})
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}
