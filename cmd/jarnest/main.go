package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jchantrell/jarnest/internal/bundle"
	"github.com/jchantrell/jarnest/internal/config"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	cfgFile string

	dbPath       string
	suffix       string
	maxEntrySize int64
	logLevel     string
	logFormat    string
	noProgress   bool
)

var rootCmd = &cobra.Command{
	Use:   "jarnest",
	Short: "Inspect and resolve archives nested inside bundle archives",
	Long: `jarnest reads bundles: ZIP archives that carry further archives as
entries. Nested archives stored uncompressed are served straight from the
mapped bundle; compressed ones are preloaded into memory.

Entries are addressed as <bundle>!/<nested>!/<entry>, optionally prefixed
with jar:file:.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if cmd.Flags().Changed("database") {
			cfg.Database = dbPath
		}
		if cmd.Flags().Changed("suffix") {
			cfg.Suffix = suffix
		}
		if cmd.Flags().Changed("max-entry-size") {
			cfg.MaxEntrySize = maxEntrySize
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		var level slog.Level
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		var handler slog.Handler
		if cfg.LogFormat == "json" {
			handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})
		} else {
			handler = tint.NewHandler(os.Stderr, &tint.Options{
				Level: level,
			})
		}

		slog.SetDefault(slog.New(handler))

		slog.Debug("Configuration",
			"database", cfg.Database,
			"suffix", cfg.Suffix,
			"max_entry_size", cfg.MaxEntrySize,
			"classpath", cfg.Classpath,
			"log_level", cfg.LogLevel,
			"log_format", cfg.LogFormat)

		return nil
	},
}

// newResolver builds a resolver from the loaded configuration
func newResolver() *bundle.Resolver {
	return bundle.NewResolver(&bundle.ResolverOptions{
		Suffix:       cfg.Suffix,
		MaxEntrySize: cfg.MaxEntrySize,
	})
}

// progressEnabled reports whether a progress bar would not interleave
// with log output.
func progressEnabled() bool {
	return !(noProgress || cfg.LogFormat == "json" || cfg.LogLevel == "debug")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is jarnest.yaml in home or pwd)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "database", "d", "", "catalog database file path")
	rootCmd.PersistentFlags().StringVar(&suffix, "suffix", "", "suffix identifying nested archives (default .jar)")
	rootCmd.PersistentFlags().Int64Var(&maxEntrySize, "max-entry-size", 0, "largest entry kept when preloading a compressed nested archive")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable progress bar")
}
