package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jchantrell/jarnest/internal/bundle"
	"github.com/jchantrell/jarnest/internal/database"
	"github.com/jchantrell/jarnest/internal/utils"
	"github.com/sourcegraph/conc/stream"
	"github.com/spf13/cobra"
)

type CatalogStats struct {
	StartTime time.Time
	EndTime   time.Time
	Bundles   int
	Failed    int
	Nested    int
	Entries   int64
}

var catalogCmd = &cobra.Command{
	Use:   "catalog [bundles...]",
	Short: "Record bundles, nested archives and entries in the SQLite catalog",
	Long: `Catalog scans each bundle, opens every nested archive it declares and
writes the result into the catalog database. Bundles are read in parallel
and written in argument order; cataloguing a bundle again replaces its
earlier record. Without arguments the classpath configuration key is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stats := &CatalogStats{StartTime: time.Now()}

		var paths []string
		for _, arg := range args {
			paths = append(paths, bundle.SplitClasspath(arg)...)
		}
		if len(args) == 0 {
			for _, elem := range cfg.Classpath {
				paths = append(paths, bundle.SplitClasspath(elem)...)
			}
		}
		if len(paths) == 0 {
			return fmt.Errorf("no bundles given")
		}

		db, err := database.NewDatabase(database.DefaultDatabaseOptions(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		if err := database.CreateSchema(ctx, db); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
		inserter := database.NewCatalogInserter(db, nil)

		slog.Info("Cataloguing bundles", "count", len(paths), "database", cfg.Database)
		progress := utils.NewProgress(len(paths), progressEnabled())

		s := stream.New().WithMaxGoroutines(runtime.GOMAXPROCS(0))
		for _, path := range paths {
			s.Go(func() stream.Callback {
				record, err := catalogBundle(newResolver(), path)
				return func() {
					defer progress.Increment(filepath.Base(path))
					if err != nil {
						slog.Error("Unable to catalog bundle", "path", path, "error", err)
						stats.Failed++
						return
					}
					if err := inserter.InsertBundle(ctx, record); err != nil {
						slog.Error("Failed to insert bundle", "path", path, "error", err)
						stats.Failed++
						return
					}
					stats.Bundles++
					stats.Nested += len(record.Nested)
					for _, nested := range record.Nested {
						stats.Entries += int64(len(nested.Entries))
					}
				}
			})
		}
		s.Wait()

		progress.Finish()
		stats.EndTime = time.Now()

		totals, err := database.Stats(ctx, db)
		if err != nil {
			return err
		}

		fmt.Printf("Bundles catalogued: %d/%d\n", stats.Bundles, len(paths))
		fmt.Printf("Nested archives: %s\n", utils.Number(int64(stats.Nested)))
		fmt.Printf("Entries: %s\n", utils.Number(stats.Entries))
		fmt.Printf("Failures: %d\n", stats.Failed)
		fmt.Printf("Duration: %s\n", utils.Duration(stats.EndTime.Sub(stats.StartTime)))
		fmt.Printf("Catalog now holds %s bundles, %s entries, %s uncompressed\n",
			utils.Number(totals.Bundles), utils.Number(totals.Entries), utils.Bytes(totals.Bytes))
		fmt.Println("Try running: jarnest query --tables")

		if stats.Failed > 0 {
			return fmt.Errorf("%d of %d bundles failed", stats.Failed, len(paths))
		}
		return nil
	},
}

// catalogBundle reads one bundle into a catalog record. A nested archive
// that cannot be opened is recorded with its error rather than failing the
// bundle.
func catalogBundle(r *bundle.Resolver, path string) (*database.BundleRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	idx, err := r.Scan(path)
	if err != nil {
		return nil, err
	}

	record := &database.BundleRecord{
		Path:  filepath.Clean(path),
		Size:  info.Size(),
		Zip64: idx.Zip64(),
	}

	for _, nested := range idx.Declared() {
		nr := database.NestedRecord{Name: nested.Name, Stored: nested.Stored}

		view, err := r.Archive(path, nested.Name)
		if err != nil {
			slog.Warn("Unable to open nested archive", "bundle", path, "nested", nested.Name, "error", err)
			nr.Err = err
			record.Nested = append(record.Nested, nr)
			continue
		}

		if m, err := view.Manifest(); err == nil {
			nr.MainClass, _ = m.MainClass()
		}

		if entries, ok := idx.Stored(nested.Name); ok {
			for _, name := range entries.Names() {
				d, _ := entries.Lookup(name)
				nr.Entries = append(nr.Entries, database.EntryRecord{
					Name:           name,
					Size:           int64(d.UncompressedSize),
					CompressedSize: int64(d.CompressedSize),
					Method:         int(d.Method),
				})
			}
		} else {
			for _, name := range view.List() {
				size, err := view.Size(name)
				if err != nil {
					return nil, err
				}
				nr.Entries = append(nr.Entries, database.EntryRecord{
					Name:           name,
					Size:           size,
					CompressedSize: -1,
					Method:         -1,
				})
			}
			if preloaded, ok := view.(*bundle.PreloadedArchive); ok {
				nr.Skipped = len(preloaded.Skipped())
			}
		}

		record.Nested = append(record.Nested, nr)
	}

	return record, nil
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
