package bundle

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/jchantrell/jarnest/internal/cache"
)

// OnDemandArchive serves a nested archive stored uncompressed in its
// bundle. Entries are decoded straight from the mapped bundle the first
// time they are read and cached from then on.
type OnDemandArchive struct {
	name     string
	index    *EntryIndex
	contents cache.Once[string, []byte]

	manifest cache.Once[string, *Manifest]

	inflations atomic.Int64
}

// NewOnDemandArchive binds a view to an entry index from a bundle scan
func NewOnDemandArchive(name string, index *EntryIndex) *OnDemandArchive {
	return &OnDemandArchive{
		name:  name,
		index: index,
	}
}

func (a *OnDemandArchive) Name() string {
	return a.name
}

func (a *OnDemandArchive) List() []string {
	return a.index.Names()
}

func (a *OnDemandArchive) Len() int {
	return a.index.Len()
}

func (a *OnDemandArchive) Size(name string) (int64, error) {
	desc, ok := a.index.Lookup(name)
	if !ok {
		return 0, &EntryNotFoundError{Archive: a.name, Name: name}
	}
	return int64(desc.UncompressedSize), nil
}

// Open returns a reader over the cached contents of an entry
func (a *OnDemandArchive) Open(name string) (io.ReadCloser, error) {
	data, err := a.ReadEntry(name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ReadEntry decodes an entry on first use. Concurrent readers of the same
// entry share one decode; readers of other entries proceed independently.
// A failed decode is not cached.
func (a *OnDemandArchive) ReadEntry(name string) ([]byte, error) {
	desc, ok := a.index.Lookup(name)
	if !ok {
		return nil, &EntryNotFoundError{Archive: a.name, Name: name}
	}

	return a.contents.Get(name, func() ([]byte, error) {
		a.inflations.Add(1)
		data, err := inflateEntry(desc)
		if err != nil {
			return nil, fmt.Errorf("reading %s!/%s: %w", a.name, name, err)
		}
		slog.Debug("Entry inflated", "archive", a.name, "entry", name, "size", len(data))
		return data, nil
	})
}

// Manifest parses the manifest entry on first request
func (a *OnDemandArchive) Manifest() (*Manifest, error) {
	return a.manifest.Get(ManifestName, func() (*Manifest, error) {
		data, err := a.ReadEntry(ManifestName)
		if IsNotFound(err) {
			return EmptyManifest(), nil
		}
		if err != nil {
			return nil, err
		}
		return ParseManifest(data)
	})
}

// Inflations returns how many entry decodes have run
func (a *OnDemandArchive) Inflations() int64 {
	return a.inflations.Load()
}
