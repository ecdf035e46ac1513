package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jchantrell/jarnest/internal/export"
	"github.com/jchantrell/jarnest/internal/utils"
	"github.com/spf13/cobra"
)

var outputDir string

var extractCmd = &cobra.Command{
	Use:   "extract <bundle>!/<nested>!/[prefix]",
	Short: "Write the entries of a nested archive to disk",
	Long: `Extract writes every entry of a nested archive whose name starts with
the address entry part into the output directory, recreating its
directory structure.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()

		conn, err := newResolver().Resolve(args[0])
		if err != nil {
			return err
		}

		exporter := export.NewExporter(conn.Archive(), outputDir)
		names := exporter.Select(conn.Address().Entry)
		if len(names) == 0 {
			slog.Info("No entries to extract", "address", conn.Address())
			return nil
		}

		slog.Info("Extracting entries", "count", len(names), "output", outputDir)
		progress := utils.NewProgress(len(names), progressEnabled())
		result, err := exporter.ExportEntries(names, func(current, total int, description string) {
			progress.Increment(description)
		})
		progress.Finish()
		if err != nil {
			return fmt.Errorf("extracting %s: %w", conn.Address(), err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Extracted %s files (%s) and %s directories in %s\n",
			utils.Number(int64(result.Files)), utils.Bytes(result.Bytes),
			utils.Number(int64(result.Dirs)), utils.Duration(time.Since(start)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "directory to write entries into")
}
