package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// BundleRecord is one catalogued bundle with its nested archives
type BundleRecord struct {
	Path   string
	Size   int64
	Zip64  bool
	Nested []NestedRecord
}

// NestedRecord is one nested archive of a bundle. Err is set when the
// archive could not be opened; its entries are then empty.
type NestedRecord struct {
	Name      string
	Stored    bool
	MainClass string
	Skipped   int
	Err       error
	Entries   []EntryRecord
}

// EntryRecord is one entry of a nested archive. CompressedSize and Method
// are negative when the archive was preloaded and they are unknown.
type EntryRecord struct {
	Name           string
	Size           int64
	CompressedSize int64
	Method         int
}

// CatalogInserter writes bundle records, replacing earlier records of the
// same bundle path.
type CatalogInserter struct {
	db        *Database
	batchSize int
}

// CatalogInsertOptions configures catalog insertion behavior
type CatalogInsertOptions struct {
	// BatchSize determines how many entry rows go into one INSERT
	BatchSize int
}

// DefaultCatalogInsertOptions keeps each INSERT under SQLite's default
// limit of 999 bound parameters.
func DefaultCatalogInsertOptions() *CatalogInsertOptions {
	return &CatalogInsertOptions{BatchSize: 150}
}

// NewCatalogInserter creates an inserter with the given database and options
func NewCatalogInserter(db *Database, options *CatalogInsertOptions) *CatalogInserter {
	if options == nil || options.BatchSize <= 0 {
		options = DefaultCatalogInsertOptions()
	}
	return &CatalogInserter{db: db, batchSize: options.BatchSize}
}

// InsertBundle writes one bundle and everything below it in a single
// transaction.
func (ci *CatalogInserter) InsertBundle(ctx context.Context, record *BundleRecord) error {
	if record == nil {
		return fmt.Errorf("bundle record cannot be nil")
	}
	if record.Path == "" {
		return fmt.Errorf("bundle path cannot be empty")
	}

	tx, err := ci.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bundles WHERE path = ?`, record.Path); err != nil {
		return fmt.Errorf("removing previous catalog of %s: %w", record.Path, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO bundles (path, size, zip64, catalogued_at) VALUES (?, ?, ?, ?)`,
		record.Path, record.Size, record.Zip64, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting bundle %s: %w", record.Path, err)
	}
	bundleID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading bundle id: %w", err)
	}

	entryCount := 0
	for i := range record.Nested {
		nested := &record.Nested[i]
		if err := ci.insertNested(ctx, tx, bundleID, i, nested); err != nil {
			return fmt.Errorf("inserting %s!/%s: %w", record.Path, nested.Name, err)
		}
		entryCount += len(nested.Entries)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing bundle %s: %w", record.Path, err)
	}

	slog.Debug("Bundle catalogued",
		"path", record.Path,
		"nested", len(record.Nested),
		"entries", entryCount)
	return nil
}

func (ci *CatalogInserter) insertNested(ctx context.Context, tx *sql.Tx, bundleID int64, position int, nested *NestedRecord) error {
	var mainClass, errText any
	if nested.MainClass != "" {
		mainClass = nested.MainClass
	}
	if nested.Err != nil {
		errText = nested.Err.Error()
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO nested_archives
    (bundle_id, position, name, stored, main_class, entry_count, skipped_count, error)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		bundleID, position, nested.Name, nested.Stored, mainClass,
		len(nested.Entries), nested.Skipped, errText)
	if err != nil {
		return err
	}
	nestedID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading nested archive id: %w", err)
	}

	for i := 0; i < len(nested.Entries); i += ci.batchSize {
		end := min(i+ci.batchSize, len(nested.Entries))
		if err := ci.insertEntryBatch(ctx, tx, nestedID, i, nested.Entries[i:end]); err != nil {
			return fmt.Errorf("inserting entries %d-%d: %w", i, end-1, err)
		}
	}
	return nil
}

// insertEntryBatch writes entries with a single multi-row INSERT
func (ci *CatalogInserter) insertEntryBatch(ctx context.Context, tx *sql.Tx, nestedID int64, offset int, batch []EntryRecord) error {
	const columns = 6

	placeholders := make([]string, len(batch))
	args := make([]any, 0, len(batch)*columns)
	for i, entry := range batch {
		placeholders[i] = "(?, ?, ?, ?, ?, ?)"

		var compressed, method any
		if entry.CompressedSize >= 0 {
			compressed = entry.CompressedSize
		}
		if entry.Method >= 0 {
			method = entry.Method
		}
		args = append(args, nestedID, offset+i, entry.Name, entry.Size, compressed, method)
	}

	query := `INSERT INTO entries (nested_id, position, name, size, compressed_size, method) VALUES ` +
		strings.Join(placeholders, ", ")
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// CatalogStats summarises the catalog contents
type CatalogStats struct {
	Bundles int64
	Nested  int64
	Entries int64
	Bytes   int64
}

// Stats counts catalogued rows
func Stats(ctx context.Context, db *Database) (CatalogStats, error) {
	var stats CatalogStats
	row := db.QueryRow(ctx, `SELECT
    (SELECT COUNT(*) FROM bundles),
    (SELECT COUNT(*) FROM nested_archives),
    (SELECT COUNT(*) FROM entries),
    (SELECT COALESCE(SUM(size), 0) FROM entries)`)
	if err := row.Scan(&stats.Bundles, &stats.Nested, &stats.Entries, &stats.Bytes); err != nil {
		return stats, fmt.Errorf("reading catalog stats: %w", err)
	}
	return stats, nil
}
