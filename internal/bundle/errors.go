package bundle

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	ErrSignatureNotFound = errors.New("directory signature not found")
	ErrSplitArchive      = errors.New("split archives not supported")
	ErrTooLarge          = errors.New("archive too large to map")
	ErrCorruptDirectory  = errors.New("corrupt central directory")
	ErrTruncatedEntry    = errors.New("truncated entry")
	ErrUnsupportedMethod = errors.New("unsupported compression method")
	ErrChecksum          = errors.New("checksum mismatch")
	ErrBadAddress        = errors.New("unable to parse address")
	ErrNotArchive        = errors.New("not a zip archive")
)

// FormatError reports a bundle, or a nested archive inside it, that could
// not be parsed. Callers use it to tell a broken bundle apart from a
// resource that is simply absent.
type FormatError struct {
	Path   string
	Nested string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Nested != "" {
		return fmt.Sprintf("bundle %s!/%s: %v", e.Path, e.Nested, e.Err)
	}
	return fmt.Sprintf("bundle %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// EntryNotFoundError reports a lookup of a name that an archive does not
// contain. It matches fs.ErrNotExist.
type EntryNotFoundError struct {
	Archive string
	Name    string
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("no such entry %q in %s", e.Name, e.Archive)
}

func (e *EntryNotFoundError) Is(target error) bool {
	return target == fs.ErrNotExist
}

// AddressError reports a malformed virtual address
type AddressError struct {
	Address string
	Reason  string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("%v %q: %s", ErrBadAddress, e.Address, e.Reason)
}

func (e *AddressError) Unwrap() error {
	return ErrBadAddress
}

// IsNotFound reports whether err means a legitimately absent entry or
// nested archive, as opposed to a broken bundle or bad address.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
