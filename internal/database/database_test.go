package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openCatalog(t *testing.T) *Database {
	t.Helper()

	db, err := NewDatabase(DefaultDatabaseOptions(filepath.Join(t.TempDir(), "nested", "catalog.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, CreateSchema(context.Background(), db))
	return db
}

func sampleRecord(entries int) *BundleRecord {
	stored := NestedRecord{Name: "lib/a.jar", Stored: true, MainClass: "com.example.Main"}
	for i := 0; i < entries; i++ {
		stored.Entries = append(stored.Entries, EntryRecord{
			Name:           fmt.Sprintf("com/example/C%d.class", i),
			Size:           10,
			CompressedSize: 8,
			Method:         8,
		})
	}
	return &BundleRecord{
		Path: "/opt/app.jar",
		Size: 4096,
		Nested: []NestedRecord{
			stored,
			{Name: "lib/b.jar", Skipped: 1, Entries: []EntryRecord{{Name: "x.txt", Size: 3, CompressedSize: -1, Method: -1}}},
			{Name: "lib/broken.jar", Err: errors.New("corrupt central directory")},
		},
	}
}

func TestNewDatabase(t *testing.T) {
	_, err := NewDatabase(nil)
	assert.Error(t, err)

	_, err = NewDatabase(&DatabaseOptions{})
	assert.Error(t, err)

	db := openCatalog(t)
	tables, err := db.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"bundles", "entries", "nested_archives"}, tables)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close(), "closing twice is harmless")
	_, err = db.Query(context.Background(), "SELECT 1")
	assert.Error(t, err)
}

func TestCatalogInserter(t *testing.T) {
	ctx := context.Background()

	t.Run("InsertsInBatches", func(t *testing.T) {
		db := openCatalog(t)
		inserter := NewCatalogInserter(db, &CatalogInsertOptions{BatchSize: 7})

		require.NoError(t, inserter.InsertBundle(ctx, sampleRecord(50)))

		stats, err := Stats(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, CatalogStats{Bundles: 1, Nested: 3, Entries: 51, Bytes: 503}, stats)

		var compressed, method any
		row := db.QueryRow(ctx, `SELECT compressed_size, method FROM entries WHERE name = 'x.txt'`)
		require.NoError(t, row.Scan(&compressed, &method))
		assert.Nil(t, compressed, "unknown sizes are stored as NULL")
		assert.Nil(t, method)

		var errText string
		row = db.QueryRow(ctx, `SELECT error FROM nested_archives WHERE name = 'lib/broken.jar'`)
		require.NoError(t, row.Scan(&errText))
		assert.Equal(t, "corrupt central directory", errText)

		var position int
		row = db.QueryRow(ctx, `SELECT position FROM entries WHERE name = 'com/example/C49.class'`)
		require.NoError(t, row.Scan(&position))
		assert.Equal(t, 49, position)
	})

	t.Run("ReplacesBundle", func(t *testing.T) {
		db := openCatalog(t)
		inserter := NewCatalogInserter(db, nil)

		require.NoError(t, inserter.InsertBundle(ctx, sampleRecord(20)))
		require.NoError(t, inserter.InsertBundle(ctx, sampleRecord(5)))

		stats, err := Stats(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.Bundles)
		assert.Equal(t, int64(3), stats.Nested)
		assert.Equal(t, int64(6), stats.Entries, "earlier entries cascade away")
	})

	t.Run("RejectsInvalid", func(t *testing.T) {
		db := openCatalog(t)
		inserter := NewCatalogInserter(db, nil)

		assert.Error(t, inserter.InsertBundle(ctx, nil))
		assert.Error(t, inserter.InsertBundle(ctx, &BundleRecord{}))

		dup := sampleRecord(0)
		dup.Nested = append(dup.Nested, dup.Nested[0])
		assert.Error(t, inserter.InsertBundle(ctx, dup))

		stats, err := Stats(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.Bundles, "failed insert rolls back")
	})
}
