package bundle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
)

// maxInflateRatio bounds how far deflate can expand its input
const maxInflateRatio = 1032

// inflateEntry decodes the record described by d: a local file header
// followed by the entry data. The compression method comes from the local
// header; sizes come from the central directory, since streamed entries
// leave them zero in the local header.
func inflateEntry(d Descriptor) ([]byte, error) {
	rec := d.Bytes()
	if len(rec) < localLen || binary.LittleEndian.Uint32(rec) != localSig {
		return nil, fmt.Errorf("%w: missing local header", ErrCorruptDirectory)
	}
	method := binary.LittleEndian.Uint16(rec[8:])
	nameLen := int(binary.LittleEndian.Uint16(rec[26:]))
	extraLen := int(binary.LittleEndian.Uint16(rec[28:]))
	start := localLen + nameLen + extraLen
	if start > len(rec) {
		return nil, fmt.Errorf("%w: local header overruns record", ErrCorruptDirectory)
	}
	raw := rec[start:]

	// Sizes come from the directory and are checked against the record
	// before anything is allocated.
	var out []byte
	switch method {
	case methodStored:
		if uint64(len(raw)) < d.UncompressedSize {
			return nil, fmt.Errorf("%w: have %d of %d bytes", ErrTruncatedEntry, len(raw), d.UncompressedSize)
		}
		out = make([]byte, d.UncompressedSize)
		copy(out, raw)
	case methodDeflated:
		if d.UncompressedSize/maxInflateRatio > uint64(len(raw)) {
			return nil, fmt.Errorf("%w: %d compressed bytes cannot inflate to %d",
				ErrCorruptDirectory, len(raw), d.UncompressedSize)
		}
		out = make([]byte, d.UncompressedSize)
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		if n, err := io.ReadFull(fr, out); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: inflated %d of %d bytes", ErrTruncatedEntry, n, d.UncompressedSize)
			}
			return nil, fmt.Errorf("inflating: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMethod, method)
	}

	if sum := crc32.ChecksumIEEE(out); sum != d.CRC32 {
		return nil, fmt.Errorf("%w: got %08x, want %08x", ErrChecksum, sum, d.CRC32)
	}
	return out, nil
}
