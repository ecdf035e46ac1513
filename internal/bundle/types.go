package bundle

import "io"

const (
	// DefaultSuffix identifies entries that are themselves nested archives
	DefaultSuffix = ".jar"

	// ManifestName is the conventional location of an archive's manifest
	ManifestName = "META-INF/MANIFEST.MF"

	// DefaultMaxEntrySize bounds a single entry held by a preloaded archive
	DefaultMaxEntrySize = 128 << 20
)

// Manifest keys consulted by bootstrap dispatchers. The generic main class
// key is reserved for the dispatcher itself, so the application's entry
// point lives under a loader-specific key.
const (
	MainClassKey        = "Main-Class"
	LoaderMainClassKey  = "EmJar-Main-Class"
	SystemPropertiesKey = "EmJar-System-Properties"
)

// ArchiveView is a read-only view of one nested archive. It is implemented
// by OnDemandArchive (nested archive stored uncompressed in its bundle) and
// PreloadedArchive (nested archive compressed in its bundle).
//
// A preloaded archive drops entries larger than its size ceiling, so they
// are reported as missing, while an on-demand archive serves every entry
// regardless of size. A preloaded archive also answers a directory name
// given without its trailing slash.
type ArchiveView interface {
	// Name returns the bundle-qualified name of the archive
	Name() string
	// List returns entry names in archive order
	List() []string
	// Len returns the number of listed entries
	Len() int
	// Size returns the uncompressed size of an entry without reading it
	Size(name string) (int64, error)
	// Open returns a reader over the decompressed contents of an entry
	Open(name string) (io.ReadCloser, error)
	// ReadEntry returns the decompressed contents of an entry. The returned
	// slice is shared and must not be modified.
	ReadEntry(name string) ([]byte, error)
	// Manifest returns the archive manifest, empty if the archive has none
	Manifest() (*Manifest, error)
}
