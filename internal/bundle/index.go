package bundle

// ScanIndex is the result of scanning one archive: the nested archives it
// declares, and for those stored uncompressed, an index of their entries.
// It is built once and then only read.
type ScanIndex struct {
	declared []NestedArchive
	stored   map[string]*EntryIndex
	zip64    bool
}

// NestedArchive names an entry that is itself an archive
type NestedArchive struct {
	Name   string
	Stored bool
}

// EntryIndex maps entry names of one stored nested archive to descriptors,
// keeping central directory order.
type EntryIndex struct {
	names   []string
	entries map[string]Descriptor
	nested  *ScanIndex
	zip64   bool
}

func newScanIndex() *ScanIndex {
	return &ScanIndex{stored: make(map[string]*EntryIndex)}
}

func newEntryIndex() *EntryIndex {
	return &EntryIndex{entries: make(map[string]Descriptor, 16)}
}

func (s *ScanIndex) declare(name string, stored bool) bool {
	for _, n := range s.declared {
		if n.Name == name {
			return false
		}
	}
	s.declared = append(s.declared, NestedArchive{Name: name, Stored: stored})
	return true
}

// Declared returns every nested archive in directory order, stored or not
func (s *ScanIndex) Declared() []NestedArchive {
	out := make([]NestedArchive, len(s.declared))
	copy(out, s.declared)
	return out
}

// Stored returns the entry index of a nested archive stored uncompressed.
// Compressed nested archives are not indexed.
func (s *ScanIndex) Stored(name string) (*EntryIndex, bool) {
	idx, ok := s.stored[name]
	return idx, ok
}

// StoredCount returns the number of indexed nested archives
func (s *ScanIndex) StoredCount() int {
	return len(s.stored)
}

// Zip64 reports whether the archive directory was located through the
// ZIP64 end record.
func (s *ScanIndex) Zip64() bool {
	return s.zip64
}

func (e *EntryIndex) add(d Descriptor) {
	if _, exists := e.entries[d.Name]; exists {
		return
	}
	e.names = append(e.names, d.Name)
	e.entries[d.Name] = d
}

// Lookup returns the descriptor of an entry
func (e *EntryIndex) Lookup(name string) (Descriptor, bool) {
	d, ok := e.entries[name]
	return d, ok
}

// Names returns all entry names in directory order
func (e *EntryIndex) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Len returns the number of indexed entries
func (e *EntryIndex) Len() int {
	return len(e.names)
}

// Nested returns the index of archives stored inside this one
func (e *EntryIndex) Nested() *ScanIndex {
	return e.nested
}

// Zip64 reports whether this archive's directory used the ZIP64 end record
func (e *EntryIndex) Zip64() bool {
	return e.zip64
}
