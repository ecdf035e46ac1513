package bundle

import (
	"path/filepath"
	"strings"
)

const (
	// Separator splits the parts of a virtual address
	Separator = "!/"

	// Scheme prefixes the canonical form of a virtual address
	Scheme = "jar:file:"
)

// Address names an entry three levels deep: a bundle file on disk, a
// nested archive inside it, and an entry inside that. An empty Entry
// denotes the nested archive itself.
type Address struct {
	Bundle string
	Nested string
	Entry  string
}

// ParseAddress parses "[jar:][file:]<bundle>!/<nested>!/<entry>". Exactly
// two separators are required; bundle and nested parts must be non-empty.
func ParseAddress(s string) (Address, error) {
	rest := strings.TrimPrefix(s, "jar:")
	rest = strings.TrimPrefix(rest, "file:")

	if n := strings.Count(rest, Separator); n != 2 {
		return Address{}, &AddressError{Address: s, Reason: "expected 2 separators"}
	}

	bundle, rest, _ := strings.Cut(rest, Separator)
	nested, entry, _ := strings.Cut(rest, Separator)

	if bundle == "" {
		return Address{}, &AddressError{Address: s, Reason: "empty bundle path"}
	}
	if nested == "" {
		return Address{}, &AddressError{Address: s, Reason: "empty nested archive name"}
	}

	return Address{
		Bundle: filepath.Clean(bundle),
		Nested: nested,
		Entry:  entry,
	}, nil
}

// NewAddress builds the address of the root of a nested archive
func NewAddress(bundle, nested string) Address {
	return Address{Bundle: filepath.Clean(bundle), Nested: nested}
}

// WithEntry returns the address of an entry in the same nested archive
func (a Address) WithEntry(entry string) Address {
	a.Entry = entry
	return a
}

// ArchiveKey identifies the nested archive regardless of entry
func (a Address) ArchiveKey() string {
	return a.Bundle + Separator + a.Nested
}

// String returns the canonical form used as a cache key
func (a Address) String() string {
	return Scheme + a.Bundle + Separator + a.Nested + Separator + a.Entry
}
