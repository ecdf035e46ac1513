package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jchantrell/jarnest/internal/bundle"
	"github.com/jchantrell/jarnest/internal/database"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Query the catalog database",
	Long: `Query executes SQL against the catalog written by the catalog command,
lists its tables, shows a table schema, or finds which nested archives
contain an entry.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		listTables, err := cmd.Flags().GetBool("tables")
		if err != nil {
			return fmt.Errorf("failed to get tables flag: %w", err)
		}
		schemaTable, err := cmd.Flags().GetString("schema")
		if err != nil {
			return fmt.Errorf("failed to get schema flag: %w", err)
		}
		findEntry, err := cmd.Flags().GetString("find")
		if err != nil {
			return fmt.Errorf("failed to get find flag: %w", err)
		}

		slog.Debug("Query parameters",
			"database", cfg.Database,
			"list-tables", listTables,
			"schema", schemaTable,
			"find", findEntry)

		db, err := database.NewDatabase(database.DefaultDatabaseOptions(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		w := cmd.OutOrStdout()
		switch {
		case listTables:
			tables, err := db.Tables(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "Available tables:")
			for _, name := range tables {
				fmt.Fprintf(w, "  %s\n", name)
			}
			return nil
		case schemaTable != "":
			return printSchema(ctx, w, db, schemaTable)
		case findEntry != "":
			return findEntries(ctx, w, db, findEntry)
		case len(args) > 0:
			return printQuery(ctx, w, db, args[0])
		}

		return fmt.Errorf("no query provided, use --tables to list tables, --schema <table> to show a schema or --find <entry> to locate an entry")
	},
}

func printSchema(ctx context.Context, w io.Writer, db *database.Database, table string) error {
	rows, err := db.Query(ctx, `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("getting schema for table %s: %w", table, err)
	}
	defer rows.Close()

	fmt.Fprintf(w, "Schema for table '%s':\n", table)
	fmt.Fprintf(w, "%-20s %-10s %-8s %-10s %-8s\n", "Column", "Type", "NotNull", "Default", "Primary")
	fmt.Fprintln(w, strings.Repeat("-", 60))

	found := false
	for rows.Next() {
		var name, dataType string
		var notNull, primaryKey int
		var defaultValue any
		if err := rows.Scan(&name, &dataType, &notNull, &defaultValue, &primaryKey); err != nil {
			return fmt.Errorf("scanning schema row: %w", err)
		}
		found = true

		defaultStr := "NULL"
		if defaultValue != nil {
			defaultStr = fmt.Sprintf("%v", defaultValue)
		}
		fmt.Fprintf(w, "%-20s %-10s %-8s %-10s %-8s\n", name, dataType, yesNo(notNull != 0), defaultStr, yesNo(primaryKey != 0))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating schema: %w", err)
	}
	if !found {
		return fmt.Errorf("no such table: %s", table)
	}
	return nil
}

func findEntries(ctx context.Context, w io.Writer, db *database.Database, entry string) error {
	rows, err := db.Query(ctx, `SELECT b.path, n.name, e.name, e.size
FROM entries e
JOIN nested_archives n ON n.id = e.nested_id
JOIN bundles b ON b.id = n.bundle_id
WHERE e.name = ? OR e.name LIKE ?
ORDER BY b.path, n.position, e.position`, entry, "%/"+entry)
	if err != nil {
		return fmt.Errorf("finding %s: %w", entry, err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var bundlePath, nested, name string
		var size sql.NullInt64
		if err := rows.Scan(&bundlePath, &nested, &name, &size); err != nil {
			return fmt.Errorf("scanning entry row: %w", err)
		}
		sizeStr := "-"
		if size.Valid {
			sizeStr = fmt.Sprint(size.Int64)
		}
		fmt.Fprintf(w, "%s\t%s\n", bundle.NewAddress(bundlePath, nested).WithEntry(name), sizeStr)
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating entries: %w", err)
	}
	if count == 0 {
		fmt.Fprintf(w, "No catalogued entry named %s\n", entry)
	}
	return nil
}

func printQuery(ctx context.Context, w io.Writer, db *database.Database, query string) error {
	slog.Debug("Executing SQL query", "query", query)

	rows, err := db.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("getting column names: %w", err)
	}

	fmt.Fprintln(w, strings.Join(columns, "\t"))
	rules := make([]string, len(columns))
	for i, col := range columns {
		rules[i] = strings.Repeat("-", len(col))
	}
	fmt.Fprintln(w, strings.Join(rules, "\t"))

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	cells := make([]string, len(columns))

	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return fmt.Errorf("scanning row: %w", err)
		}
		for i, val := range values {
			switch v := val.(type) {
			case nil:
				cells[i] = "NULL"
			case []byte:
				cells[i] = string(v)
			default:
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rows: %w", err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().Bool("tables", false, "List available tables")
	queryCmd.Flags().String("schema", "", "Show schema for specified table")
	queryCmd.Flags().String("find", "", "Find nested archives containing an entry by name or base name")
}
