package main

import (
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/jchantrell/jarnest/internal/bundle"
	"github.com/jchantrell/jarnest/internal/utils"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <bundle>",
	Short: "List the nested archives of a bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := newResolver()

		idx, err := r.Scan(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (zip64: %t)\n", args[0], idx.Zip64())
		for _, nested := range idx.Declared() {
			if entries, ok := idx.Stored(nested.Name); ok {
				fmt.Fprintf(out, "  %-40s stored      %s entries\n", nested.Name, utils.Number(int64(entries.Len())))
				continue
			}
			fmt.Fprintf(out, "  %-40s compressed\n", nested.Name)
		}
		fmt.Fprintf(out, "%d nested archives, %d stored\n", len(idx.Declared()), idx.StoredCount())
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls <bundle>!/<nested>!/[prefix]",
	Short: "List entries of a nested archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := newResolver().Resolve(args[0])
		if err != nil {
			return err
		}

		archive := conn.Archive()
		prefix := conn.Address().Entry
		out := cmd.OutOrStdout()

		var total int64
		count := 0
		for _, name := range archive.List() {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			size, err := archive.Size(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%12s  %s\n", utils.Bytes(size), name)
			total += size
			count++
		}
		fmt.Fprintf(out, "%s entries, %s\n", utils.Number(int64(count)), utils.Bytes(total))

		if preloaded, ok := archive.(*bundle.PreloadedArchive); ok {
			if skipped := preloaded.Skipped(); len(skipped) > 0 {
				fmt.Fprintf(out, "%d entries above the preload ceiling were dropped\n", len(skipped))
			}
		}
		return nil
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <bundle>!/<nested>!/<entry>",
	Short: "Write one entry to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := newResolver().Resolve(args[0])
		if err != nil {
			return err
		}

		rc, err := conn.Open()
		if err != nil {
			return err
		}
		defer rc.Close()

		if _, err := io.Copy(cmd.OutOrStdout(), rc); err != nil {
			return fmt.Errorf("writing %s: %w", conn.Address(), err)
		}
		return nil
	},
}

var manifestCmd = &cobra.Command{
	Use:   "manifest <bundle>!/<nested>!/",
	Short: "Print the manifest of a nested archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := newResolver().Resolve(args[0])
		if err != nil {
			return err
		}

		m, err := conn.Manifest()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if m.Len() == 0 {
			fmt.Fprintln(out, "No manifest")
			return nil
		}
		for _, attr := range m.Attributes() {
			fmt.Fprintf(out, "%s: %s\n", attr.Key, attr.Value)
		}
		for _, name := range m.SectionNames() {
			attrs, _ := m.Section(name)
			fmt.Fprintf(out, "\nName: %s\n", name)
			for _, attr := range attrs {
				fmt.Fprintf(out, "%s: %s\n", attr.Key, attr.Value)
			}
		}

		if main, ok := m.MainClass(); ok {
			fmt.Fprintf(out, "\nApplication main class: %s\n", main)
		}
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree <bundle>!/<nested>!/",
	Short: "Print the directory tree of a nested archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := newResolver().Resolve(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fsys := bundle.NewFS(conn.Archive())
		return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == "." {
				fmt.Fprintln(out, conn.Address().ArchiveKey())
				return nil
			}
			depth := strings.Count(path, "/")
			name := d.Name()
			if d.IsDir() {
				name += "/"
			}
			fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", depth+1), name)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(scanCmd, lsCmd, catCmd, manifestCmd, treeCmd)
}
