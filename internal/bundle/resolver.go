package bundle

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/jchantrell/jarnest/internal/cache"
	"github.com/klauspost/compress/zip"
)

// Resolver turns virtual addresses into connections. It keeps three
// process-lifetime caches, each computing a key at most once and never
// caching a failure: bundle scans by path, archive views by bundle and
// nested name, and connections by canonical address.
type Resolver struct {
	suffix       string
	maxEntrySize int64

	scans       cache.Once[string, *ScanIndex]
	archives    cache.Once[string, ArchiveView]
	connections cache.Once[string, *Connection]

	scanCount    atomic.Int64
	preloadCount atomic.Int64
}

// ResolverOptions configures a Resolver
type ResolverOptions struct {
	// Suffix identifies nested archives, DefaultSuffix when empty
	Suffix string

	// MaxEntrySize bounds entries of preloaded archives,
	// DefaultMaxEntrySize when zero
	MaxEntrySize int64
}

// NewResolver creates a resolver with empty caches
func NewResolver(options *ResolverOptions) *Resolver {
	r := &Resolver{
		suffix:       DefaultSuffix,
		maxEntrySize: DefaultMaxEntrySize,
	}
	if options != nil {
		if options.Suffix != "" {
			r.suffix = options.Suffix
		}
		if options.MaxEntrySize > 0 {
			r.maxEntrySize = options.MaxEntrySize
		}
	}
	return r
}

// Suffix returns the nested archive suffix
func (r *Resolver) Suffix() string {
	return r.suffix
}

// Resolve parses an address string and resolves it
func (r *Resolver) Resolve(address string) (*Connection, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return r.ResolveAddress(addr)
}

// ResolveAddress returns the cached connection for addr, creating it on
// first use. The bundle and nested archive must exist; the entry is only
// looked up when the connection is read, so an absent entry surfaces as a
// not-found error from Open or ReadAll.
func (r *Resolver) ResolveAddress(addr Address) (*Connection, error) {
	return r.connections.Get(addr.String(), func() (*Connection, error) {
		archive, err := r.Archive(addr.Bundle, addr.Nested)
		if err != nil {
			return nil, err
		}
		slog.Debug("Connection resolved", "address", addr.String())
		return &Connection{address: addr, archive: archive}, nil
	})
}

// Scan returns the cached scan of a bundle
func (r *Resolver) Scan(path string) (*ScanIndex, error) {
	path = filepath.Clean(path)
	return r.scans.Get(path, func() (*ScanIndex, error) {
		r.scanCount.Add(1)
		return Scan(path, r.suffix)
	})
}

// Archive returns the cached view of a nested archive. Archives stored
// uncompressed are served on demand from the bundle scan; any other
// nested archive is re-read from the bundle and preloaded.
func (r *Resolver) Archive(bundlePath, nested string) (ArchiveView, error) {
	bundlePath = filepath.Clean(bundlePath)
	key := NewAddress(bundlePath, nested).ArchiveKey()
	return r.archives.Get(key, func() (ArchiveView, error) {
		idx, err := r.Scan(bundlePath)
		if err != nil {
			return nil, err
		}
		if entries, ok := idx.Stored(nested); ok {
			return NewOnDemandArchive(key, entries), nil
		}
		return r.preload(bundlePath, nested)
	})
}

func (r *Resolver) preload(bundlePath, nested string) (ArchiveView, error) {
	r.preloadCount.Add(1)

	zr, err := zip.OpenReader(bundlePath)
	if err != nil {
		return nil, &FormatError{Path: bundlePath, Err: err}
	}
	defer zr.Close()

	var embedded *zip.File
	for _, f := range zr.File {
		if f.Name == nested {
			embedded = f
			break
		}
	}
	if embedded == nil {
		return nil, &EntryNotFoundError{Archive: bundlePath, Name: nested}
	}

	rc, err := embedded.Open()
	if err != nil {
		return nil, &FormatError{Path: bundlePath, Nested: nested, Err: err}
	}
	defer rc.Close()

	archive, err := NewPreloadedArchive(bundlePath+Separator+nested, rc, r.maxEntrySize)
	if err != nil {
		return nil, &FormatError{Path: bundlePath, Nested: nested, Err: err}
	}
	return archive, nil
}

// ResolverStats counts expensive operations performed by a resolver
type ResolverStats struct {
	Scans       int64
	Preloads    int64
	Connections int
}

// Stats returns operation counters
func (r *Resolver) Stats() ResolverStats {
	return ResolverStats{
		Scans:       r.scanCount.Load(),
		Preloads:    r.preloadCount.Load(),
		Connections: r.connections.Len(),
	}
}

// Connection binds a resolved nested archive to one entry name
type Connection struct {
	address Address
	archive ArchiveView
}

// Address returns the address the connection was resolved from
func (c *Connection) Address() Address {
	return c.address
}

// Archive returns the nested archive view
func (c *Connection) Archive() ArchiveView {
	return c.archive
}

// Open returns a stream over the addressed entry
func (c *Connection) Open() (io.ReadCloser, error) {
	if c.address.Entry == "" {
		return nil, fmt.Errorf("%s names a nested archive, not an entry", c.address)
	}
	return c.archive.Open(c.address.Entry)
}

// ReadAll returns the contents of the addressed entry
func (c *Connection) ReadAll() ([]byte, error) {
	if c.address.Entry == "" {
		return nil, fmt.Errorf("%s names a nested archive, not an entry", c.address)
	}
	return c.archive.ReadEntry(c.address.Entry)
}

// Manifest returns the nested archive manifest
func (c *Connection) Manifest() (*Manifest, error) {
	return c.archive.Manifest()
}
