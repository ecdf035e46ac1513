package bundle

import (
	"bytes"
	"fmt"
	"io"
)

// Descriptor locates one entry's raw record, local file header included,
// inside a larger read-only buffer. Descriptors are small values; many of
// them share the same source buffer, which lives as long as any of them.
type Descriptor struct {
	Name             string
	Method           uint16
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64

	source []byte
	offset uint64
	length uint64
}

// NewDescriptor builds a descriptor over source[offset:offset+length]. A
// range outside source is a programming error and panics; the scanner
// validates ranges before constructing descriptors.
func NewDescriptor(name string, source []byte, offset, length uint64) Descriptor {
	if offset > uint64(len(source)) || length > uint64(len(source))-offset {
		panic(fmt.Sprintf("descriptor %q: range [%d, %d) outside source of %d bytes",
			name, offset, offset+length, len(source)))
	}
	return Descriptor{
		Name:   name,
		source: source,
		offset: offset,
		length: length,
	}
}

// Offset returns the start of the range within its source
func (d Descriptor) Offset() uint64 {
	return d.offset
}

// Length returns the size of the range
func (d Descriptor) Length() uint64 {
	return d.length
}

// Bytes returns the described range. The slice aliases the shared source
// and must not be modified; its capacity is clipped to the range.
func (d Descriptor) Bytes() []byte {
	end := d.offset + d.length
	return d.source[d.offset:end:end]
}

// Reader returns an independent section reader over the described range
func (d Descriptor) Reader() *io.SectionReader {
	return io.NewSectionReader(bytes.NewReader(d.Bytes()), 0, int64(d.length))
}

func (d Descriptor) String() string {
	return fmt.Sprintf("{name:%s, offset:%d, length:%d, method:%d, size:%d}",
		d.Name, d.offset, d.length, d.Method, d.UncompressedSize)
}
