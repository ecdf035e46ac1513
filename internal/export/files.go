package export

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jchantrell/jarnest/internal/bundle"
)

// Exporter writes entries of a nested archive to disk
type Exporter struct {
	view      bundle.ArchiveView
	outputDir string
}

// NewExporter creates a new entry exporter
func NewExporter(view bundle.ArchiveView, outputDir string) *Exporter {
	return &Exporter{
		view:      view,
		outputDir: outputDir,
	}
}

// ProgressCallback is called after each entry is written
type ProgressCallback func(current int, total int, description string)

// ExportResult counts what an export wrote
type ExportResult struct {
	Files int
	Dirs  int
	Bytes int64
}

// Select returns the entries whose names start with prefix, in archive order
func (e *Exporter) Select(prefix string) []string {
	var names []string
	for _, name := range e.view.List() {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names
}

// ExportEntries writes the named entries below the output directory,
// recreating their directory structure. Names that would escape the output
// directory are rejected before anything is written.
func (e *Exporter) ExportEntries(names []string, progressCallback ProgressCallback) (ExportResult, error) {
	var result ExportResult
	if len(names) == 0 {
		return result, nil
	}

	for _, name := range names {
		if !fs.ValidPath(strings.TrimSuffix(name, "/")) {
			return result, fmt.Errorf("entry %q: unsafe path", name)
		}
	}

	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return result, fmt.Errorf("creating output directory: %w", err)
	}

	for i, name := range names {
		outputPath := filepath.Join(e.outputDir, filepath.FromSlash(strings.TrimSuffix(name, "/")))

		if strings.HasSuffix(name, "/") {
			if err := os.MkdirAll(outputPath, 0755); err != nil {
				return result, fmt.Errorf("creating directory %s: %w", outputPath, err)
			}
			result.Dirs++
		} else {
			n, err := e.exportFile(name, outputPath)
			if err != nil {
				return result, err
			}
			result.Files++
			result.Bytes += n
			slog.Debug("Exported entry", "entry", name, "output", outputPath, "size", n)
		}

		if progressCallback != nil {
			progressCallback(i+1, len(names), name)
		}
	}

	return result, nil
}

func (e *Exporter) exportFile(name, outputPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return 0, fmt.Errorf("creating directory for %s: %w", outputPath, err)
	}

	rc, err := e.view.Open(name)
	if err != nil {
		return 0, fmt.Errorf("loading entry %s: %w", name, err)
	}
	defer rc.Close()

	f, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("creating file %s: %w", outputPath, err)
	}

	n, err := io.Copy(f, rc)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("writing file %s: %w", outputPath, err)
	}
	return n, nil
}
