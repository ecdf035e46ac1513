package bundle

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// entryStream walks an archive front to back through its local file
// headers, for archives that can only be read sequentially.
type entryStream struct {
	r       *bufio.Reader
	current io.Reader
	closer  io.Closer
	header  *streamHeader
	started bool
	done    bool
}

type streamHeader struct {
	Name string
	// Size is the uncompressed size, or -1 when the entry is followed by a
	// data descriptor and its size is not known up front.
	Size   int64
	Method uint16

	descriptor bool
	zip64      bool
}

func newEntryStream(r io.Reader) *entryStream {
	return &entryStream{r: bufio.NewReaderSize(r, 32*1024)}
}

// Next skips whatever remains of the current entry and advances to the
// next local header. It returns io.EOF at the central directory or at the
// end of input. Input that opens with neither a local header nor the end
// record of an empty archive fails with ErrNotArchive.
func (s *entryStream) Next() (*streamHeader, error) {
	if s.done {
		return nil, io.EOF
	}
	if s.current != nil {
		if err := s.finishEntry(); err != nil {
			return nil, err
		}
	}

	var fixed [localLen]byte
	if _, err := io.ReadFull(s.r, fixed[:4]); err != nil {
		if !s.started && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
			return nil, fmt.Errorf("%w: no records", ErrNotArchive)
		}
		if errors.Is(err, io.EOF) {
			s.done = true
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: reading header signature: %v", ErrTruncatedEntry, err)
	}
	sig := binary.LittleEndian.Uint32(fixed[:])
	if sig != localSig {
		if !s.started && sig != eocdSig && sig != eocd64Sig {
			return nil, fmt.Errorf("%w: leading signature %08x", ErrNotArchive, sig)
		}
		s.done = true
		return nil, io.EOF
	}
	s.started = true
	if _, err := io.ReadFull(s.r, fixed[4:]); err != nil {
		return nil, fmt.Errorf("%w: reading local header: %v", ErrTruncatedEntry, err)
	}

	flags := binary.LittleEndian.Uint16(fixed[6:])
	method := binary.LittleEndian.Uint16(fixed[8:])
	compressed := uint64(binary.LittleEndian.Uint32(fixed[18:]))
	size := uint64(binary.LittleEndian.Uint32(fixed[22:]))
	nameLen := int(binary.LittleEndian.Uint16(fixed[26:]))
	extraLen := int(binary.LittleEndian.Uint16(fixed[28:]))

	variable := make([]byte, nameLen+extraLen)
	if _, err := io.ReadFull(s.r, variable); err != nil {
		return nil, fmt.Errorf("%w: reading local header name: %v", ErrTruncatedEntry, err)
	}

	h := &streamHeader{
		Name:       string(variable[:nameLen]),
		Method:     method,
		descriptor: flags&flagDataDescriptor != 0,
	}
	if size == uint32max || compressed == uint32max {
		h.zip64 = true
		size, compressed = localZip64Sizes(variable[nameLen:], size, compressed)
	}

	switch {
	case method == methodStored && h.descriptor:
		return nil, fmt.Errorf("%w: stored entry %s has no size", ErrUnsupportedMethod, h.Name)
	case method == methodStored:
		s.current = io.LimitReader(s.r, int64(compressed))
	case method == methodDeflated:
		fr := flate.NewReader(s.r)
		s.current = fr
		s.closer = fr
	default:
		return nil, fmt.Errorf("%w: %d in entry %s", ErrUnsupportedMethod, method, h.Name)
	}

	h.Size = int64(size)
	if h.descriptor {
		h.Size = -1
	}
	s.header = h
	return h, nil
}

// Read reads decompressed data of the current entry
func (s *entryStream) Read(p []byte) (int, error) {
	if s.current == nil {
		return 0, io.EOF
	}
	return s.current.Read(p)
}

// finishEntry drains the current entry and consumes its data descriptor
func (s *entryStream) finishEntry() error {
	if _, err := io.Copy(io.Discard, s.current); err != nil {
		return fmt.Errorf("skipping entry %s: %w", s.header.Name, err)
	}
	if s.closer != nil {
		s.closer.Close()
	}
	s.current, s.closer = nil, nil

	if !s.header.descriptor {
		return nil
	}

	// Optional signature, CRC, then compressed and uncompressed sizes
	var sig [4]byte
	if _, err := io.ReadFull(s.r, sig[:]); err != nil {
		return fmt.Errorf("%w: reading data descriptor: %v", ErrTruncatedEntry, err)
	}
	rest := 8
	if s.header.zip64 {
		rest = 16
	}
	if binary.LittleEndian.Uint32(sig[:]) == ddSig {
		rest += 4
	}
	if _, err := s.r.Discard(rest); err != nil {
		return fmt.Errorf("%w: reading data descriptor: %v", ErrTruncatedEntry, err)
	}
	return nil
}

func localZip64Sizes(extra []byte, size, compressed uint64) (uint64, uint64) {
	for len(extra) >= 4 {
		id := binary.LittleEndian.Uint16(extra)
		n := int(binary.LittleEndian.Uint16(extra[2:]))
		extra = extra[4:]
		if n > len(extra) {
			break
		}
		field := extra[:n]
		extra = extra[n:]
		if id != zip64ExtraID {
			continue
		}
		if size == uint32max && len(field) >= 8 {
			size = binary.LittleEndian.Uint64(field)
			field = field[8:]
		}
		if compressed == uint32max && len(field) >= 8 {
			compressed = binary.LittleEndian.Uint64(field)
		}
		break
	}
	return size, compressed
}
