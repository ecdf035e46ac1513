package database

import (
	"context"
	"fmt"
	"log/slog"
)

// catalogDDL creates the catalog tables. Nested archives and entries are
// removed with their bundle.
var catalogDDL = []struct {
	table string
	ddl   string
}{
	{"bundles", `CREATE TABLE IF NOT EXISTS bundles (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    size INTEGER NOT NULL,
    zip64 INTEGER NOT NULL,
    catalogued_at TEXT NOT NULL
)`},
	{"nested_archives", `CREATE TABLE IF NOT EXISTS nested_archives (
    id INTEGER PRIMARY KEY,
    bundle_id INTEGER NOT NULL REFERENCES bundles(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    stored INTEGER NOT NULL,
    main_class TEXT,
    entry_count INTEGER NOT NULL,
    skipped_count INTEGER NOT NULL,
    error TEXT,
    UNIQUE(bundle_id, name)
)`},
	{"entries", `CREATE TABLE IF NOT EXISTS entries (
    nested_id INTEGER NOT NULL REFERENCES nested_archives(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    size INTEGER NOT NULL,
    compressed_size INTEGER,
    method INTEGER,
    PRIMARY KEY (nested_id, name)
)`},
	{"entries_name_index", `CREATE INDEX IF NOT EXISTS entries_name ON entries(name)`},
}

// CreateSchema creates the catalog tables in a single transaction
func CreateSchema(ctx context.Context, db *Database) error {
	if db == nil {
		return fmt.Errorf("database cannot be nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range catalogDDL {
		if _, err := tx.ExecContext(ctx, stmt.ddl); err != nil {
			return fmt.Errorf("creating %s: %w", stmt.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema: %w", err)
	}

	slog.Debug("Catalog schema ready", "database", db.Path(), "statements", len(catalogDDL))
	return nil
}
