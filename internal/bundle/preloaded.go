package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

const preloadChunkSize = 16 * 1024

// PreloadedArchive serves a nested archive that is compressed inside its
// bundle. Such an archive cannot be indexed in place, so its entries are
// all decompressed into memory when the view is built.
//
// Entries larger than the size ceiling are dropped while preloading and
// are reported as missing afterwards. The manifest is exempt from the
// ceiling and is listed like any other entry.
type PreloadedArchive struct {
	name     string
	names    []string
	contents map[string][]byte
	manifest *Manifest
	skipped  []string
}

// NewPreloadedArchive reads the archive in r to the end. maxEntrySize
// bounds each entry; zero or less selects DefaultMaxEntrySize.
func NewPreloadedArchive(name string, r io.Reader, maxEntrySize int64) (*PreloadedArchive, error) {
	if maxEntrySize <= 0 {
		maxEntrySize = DefaultMaxEntrySize
	}

	a := &PreloadedArchive{
		name:     name,
		contents: make(map[string][]byte),
	}

	stream := newEntryStream(r)
	var buf []byte
	for {
		hdr, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("preloading %s: %w", name, err)
		}

		var data []byte
		switch {
		case hdr.Name == ManifestName && a.manifest == nil:
			// The manifest is kept whatever the ceiling; it is read to its
			// actual end rather than trusting the declared size.
			data, err = io.ReadAll(stream)
			if err != nil {
				return nil, fmt.Errorf("preloading %s!/%s: %w", name, hdr.Name, err)
			}
			if hdr.Size >= 0 && int64(len(data)) != hdr.Size {
				return nil, fmt.Errorf("preloading %s!/%s: %w: have %d of %d bytes",
					name, hdr.Name, ErrTruncatedEntry, len(data), hdr.Size)
			}
			m, err := ParseManifest(data)
			if err != nil {
				return nil, fmt.Errorf("preloading %s: %w", name, err)
			}
			a.manifest = m
		case hdr.Size >= 0:
			if hdr.Size > maxEntrySize {
				a.skip(hdr.Name, hdr.Size, maxEntrySize)
				continue
			}
			data = make([]byte, hdr.Size)
			if _, err := io.ReadFull(stream, data); err != nil {
				return nil, fmt.Errorf("preloading %s!/%s: %w: %v", name, hdr.Name, ErrTruncatedEntry, err)
			}
		default:
			if buf == nil {
				buf = make([]byte, 2*preloadChunkSize)
			}
			size, oversize, err := readGrowing(stream, &buf, maxEntrySize)
			if err != nil {
				return nil, fmt.Errorf("preloading %s!/%s: %w", name, hdr.Name, err)
			}
			if oversize {
				a.skip(hdr.Name, size, maxEntrySize)
				continue
			}
			data = bytes.Clone(buf[:size])
		}

		if _, exists := a.contents[hdr.Name]; !exists {
			a.names = append(a.names, hdr.Name)
		}
		a.contents[hdr.Name] = data
	}

	if a.manifest == nil {
		a.manifest = EmptyManifest()
	}

	slog.Debug("Archive preloaded",
		"archive", name,
		"entries", len(a.names),
		"skipped", len(a.skipped))

	return a, nil
}

// readGrowing reads an entry of unknown length into *buf, doubling it as
// needed. Reading stops early once more than limit bytes have been seen.
func readGrowing(r io.Reader, buf *[]byte, limit int64) (int64, bool, error) {
	var size int64
	for {
		if size+preloadChunkSize > int64(len(*buf)) {
			grown := make([]byte, 2*len(*buf))
			copy(grown, (*buf)[:size])
			*buf = grown
		}
		n, err := r.Read((*buf)[size : size+preloadChunkSize])
		size += int64(n)
		if size > limit {
			return size, true, nil
		}
		if errors.Is(err, io.EOF) {
			return size, false, nil
		}
		if err != nil {
			return size, false, err
		}
	}
}

func (a *PreloadedArchive) skip(entry string, size, limit int64) {
	a.skipped = append(a.skipped, entry)
	slog.Debug("Entry exceeds preload ceiling, skipping",
		"archive", a.name,
		"entry", entry,
		"size", size,
		"limit", limit)
}

func (a *PreloadedArchive) Name() string {
	return a.name
}

func (a *PreloadedArchive) List() []string {
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

func (a *PreloadedArchive) Len() int {
	return len(a.names)
}

// lookup resolves name, falling back to its directory form
func (a *PreloadedArchive) lookup(name string) ([]byte, bool) {
	if data, ok := a.contents[name]; ok {
		return data, true
	}
	data, ok := a.contents[name+"/"]
	return data, ok
}

func (a *PreloadedArchive) Size(name string) (int64, error) {
	data, err := a.ReadEntry(name)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (a *PreloadedArchive) Open(name string) (io.ReadCloser, error) {
	data, err := a.ReadEntry(name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (a *PreloadedArchive) ReadEntry(name string) ([]byte, error) {
	data, ok := a.lookup(name)
	if !ok {
		return nil, &EntryNotFoundError{Archive: a.name, Name: name}
	}
	return data, nil
}

func (a *PreloadedArchive) Manifest() (*Manifest, error) {
	return a.manifest, nil
}

// Skipped returns entries dropped for exceeding the size ceiling
func (a *PreloadedArchive) Skipped() []string {
	out := make([]string, len(a.skipped))
	copy(out, a.skipped)
	return out
}
