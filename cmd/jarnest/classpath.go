package main

import (
	"fmt"
	"log/slog"

	"github.com/jchantrell/jarnest/internal/bundle"
	"github.com/spf13/cobra"
)

var classpathCmd = &cobra.Command{
	Use:   "classpath [classpath...]",
	Short: "Expand bundles into the units a loader would search",
	Long: `Classpath splits each argument on the OS path list separator (falling
back to the classpath configuration key), then expands every bundle into
itself followed by each nested archive it declares, in directory order.
Bundles that cannot be scanned are reported and skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var candidates []string
		for _, arg := range args {
			candidates = append(candidates, bundle.SplitClasspath(arg)...)
		}
		if len(args) == 0 {
			for _, elem := range cfg.Classpath {
				candidates = append(candidates, bundle.SplitClasspath(elem)...)
			}
		}
		if len(candidates) == 0 {
			return fmt.Errorf("no classpath given")
		}

		r := newResolver()
		units := bundle.Assemble(r, candidates)

		out := cmd.OutOrStdout()
		for _, unit := range units {
			if unit.Kind == bundle.UnitNested && !unit.Stored {
				fmt.Fprintf(out, "%-7s %s (compressed)\n", unit.Kind, unit)
				continue
			}
			fmt.Fprintf(out, "%-7s %s\n", unit.Kind, unit)
		}

		stats := r.Stats()
		slog.Info("Classpath assembled",
			"candidates", len(candidates),
			"units", len(units),
			"scans", stats.Scans)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classpathCmd)
}
