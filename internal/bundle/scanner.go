package bundle

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// ZIP record layout
const (
	methodStored   = 0
	methodDeflated = 8

	localSig   = 0x04034b50 // "PK\003\004"
	centralSig = 0x02014b50 // "PK\001\002"
	eocdSig    = 0x06054b50 // "PK\005\006"
	eocd64Sig  = 0x06064b50 // "PK\006\006"
	loc64Sig   = 0x07064b50 // "PK\006\007"
	ddSig      = 0x08074b50 // "PK\007\010"

	localLen   = 30
	centralLen = 46
	eocdLen    = 22
	eocd64Len  = 56
	loc64Len   = 20

	maxCommentLen = math.MaxUint16
	zip64ExtraID  = 0x0001

	flagDataDescriptor = 0x8

	uint16max = math.MaxUint16
	uint32max = math.MaxUint32
)

// maxMappedSize is the largest bundle the scanner maps
var maxMappedSize int64 = math.MaxInt32

// Scan maps the bundle at path and indexes every nested archive stored
// uncompressed inside it, recursively.
func Scan(path string, suffix string) (*ScanIndex, error) {
	data, err := mapFile(path)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}

	idx, err := ScanBytes(data, suffix)
	if err != nil {
		unmapFile(data)
		return nil, &FormatError{Path: path, Err: err}
	}

	slog.Debug("Bundle scanned",
		"path", path,
		"size", len(data),
		"nested", len(idx.declared),
		"stored", len(idx.stored),
		"zip64", idx.zip64)

	return idx, nil
}

// ScanBytes indexes an archive held in memory. Descriptors in the result
// alias data.
func ScanBytes(data []byte, suffix string) (*ScanIndex, error) {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return scanDirectory(data, nil, suffix)
}

// scanDirectory parses the central directory of the archive in window.
// When into is non-nil every entry is also recorded there. Nested archives
// stored uncompressed are scanned with the same routine into fresh indexes.
func scanDirectory(window []byte, into *EntryIndex, suffix string) (*ScanIndex, error) {
	eocd := findRecord(window, eocdSig, eocdLen)
	if eocd < 0 {
		return nil, ErrSignatureNotFound
	}

	dir, err := locateDirectory(window, eocd)
	if err != nil {
		return nil, err
	}

	idx := newScanIndex()
	idx.zip64 = dir.zip64
	if into != nil {
		into.zip64 = dir.zip64
	}

	pos := dir.offset
	end := dir.offset + dir.size
	var count uint64
	for pos < end {
		if end-pos < centralLen {
			return nil, fmt.Errorf("%w: truncated header at %d", ErrCorruptDirectory, pos)
		}
		hdr := window[pos:end]
		if binary.LittleEndian.Uint32(hdr) != centralSig {
			return nil, fmt.Errorf("%w: bad header signature at %d", ErrCorruptDirectory, pos)
		}

		ent := centralEntry{
			method:         binary.LittleEndian.Uint16(hdr[10:]),
			crc:            binary.LittleEndian.Uint32(hdr[16:]),
			compressedSize: uint64(binary.LittleEndian.Uint32(hdr[20:])),
			size:           uint64(binary.LittleEndian.Uint32(hdr[24:])),
			disk:           uint32(binary.LittleEndian.Uint16(hdr[34:])),
			headerOffset:   uint64(binary.LittleEndian.Uint32(hdr[42:])),
		}
		nameLen := uint64(binary.LittleEndian.Uint16(hdr[28:]))
		extraLen := uint64(binary.LittleEndian.Uint16(hdr[30:]))
		commentLen := uint64(binary.LittleEndian.Uint16(hdr[32:]))

		recLen := centralLen + nameLen + extraLen + commentLen
		if uint64(len(hdr)) < recLen {
			return nil, fmt.Errorf("%w: truncated entry at %d", ErrCorruptDirectory, pos)
		}
		ent.name = string(hdr[centralLen : centralLen+nameLen])
		if err := ent.applyZip64(hdr[centralLen+nameLen : centralLen+nameLen+extraLen]); err != nil {
			return nil, err
		}
		pos += recLen
		count++

		if ent.disk != 0 {
			continue
		}

		dataStart, err := localDataStart(window, ent.headerOffset)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", ent.name, err)
		}
		if ent.compressedSize > uint64(len(window))-dataStart {
			return nil, fmt.Errorf("%w: entry %s data runs past end of archive", ErrCorruptDirectory, ent.name)
		}
		dataEnd := dataStart + ent.compressedSize

		if into != nil {
			d := NewDescriptor(ent.name, window, ent.headerOffset, dataEnd-ent.headerOffset)
			d.Method = ent.method
			d.CRC32 = ent.crc
			d.CompressedSize = ent.compressedSize
			d.UncompressedSize = ent.size
			into.add(d)
		}

		if !strings.HasSuffix(ent.name, suffix) {
			continue
		}
		stored := ent.method == methodStored
		if !idx.declare(ent.name, stored) || !stored {
			continue
		}

		child := newEntryIndex()
		nested, err := scanDirectory(window[dataStart:dataEnd:dataEnd], child, suffix)
		if err != nil {
			return nil, fmt.Errorf("nested archive %s: %w", ent.name, err)
		}
		child.nested = nested
		idx.stored[ent.name] = child
	}

	if count != dir.entries {
		return nil, fmt.Errorf("%w: directory declares %d entries, found %d",
			ErrCorruptDirectory, dir.entries, count)
	}

	return idx, nil
}

type centralEntry struct {
	name           string
	method         uint16
	crc            uint32
	compressedSize uint64
	size           uint64
	disk           uint32
	headerOffset   uint64
}

// applyZip64 replaces saturated 32-bit fields with their values from the
// ZIP64 extended information extra field.
func (e *centralEntry) applyZip64(extra []byte) error {
	needSize := e.size == uint32max
	needCompressed := e.compressedSize == uint32max
	needOffset := e.headerOffset == uint32max
	needDisk := e.disk == uint16max
	if !needSize && !needCompressed && !needOffset && !needDisk {
		return nil
	}

	for len(extra) >= 4 {
		id := binary.LittleEndian.Uint16(extra)
		size := int(binary.LittleEndian.Uint16(extra[2:]))
		extra = extra[4:]
		if size > len(extra) {
			break
		}
		field := extra[:size]
		extra = extra[size:]
		if id != zip64ExtraID {
			continue
		}

		read64 := func(dst *uint64) error {
			if len(field) < 8 {
				return fmt.Errorf("%w: short zip64 field in %s", ErrCorruptDirectory, e.name)
			}
			*dst = binary.LittleEndian.Uint64(field)
			field = field[8:]
			return nil
		}
		if needSize {
			if err := read64(&e.size); err != nil {
				return err
			}
		}
		if needCompressed {
			if err := read64(&e.compressedSize); err != nil {
				return err
			}
		}
		if needOffset {
			if err := read64(&e.headerOffset); err != nil {
				return err
			}
		}
		if needDisk {
			if len(field) < 4 {
				return fmt.Errorf("%w: short zip64 field in %s", ErrCorruptDirectory, e.name)
			}
			e.disk = binary.LittleEndian.Uint32(field)
		}
		return nil
	}

	return fmt.Errorf("%w: missing zip64 field in %s", ErrCorruptDirectory, e.name)
}

type directoryLocation struct {
	offset  uint64
	size    uint64
	entries uint64
	zip64   bool
}

// locateDirectory reads the end records preceding eocd and returns the
// bounds of the central directory.
func locateDirectory(window []byte, eocd int) (directoryLocation, error) {
	var dir directoryLocation
	limit := uint64(eocd)

	if eocd >= loc64Len && binary.LittleEndian.Uint32(window[eocd-loc64Len:]) == loc64Sig {
		loc := window[eocd-loc64Len : eocd]
		locDisk := binary.LittleEndian.Uint32(loc[4:])
		locOffset := binary.LittleEndian.Uint64(loc[8:])
		locDisks := binary.LittleEndian.Uint32(loc[16:])
		if locDisk != 0 || locDisks != 1 {
			return dir, ErrSplitArchive
		}

		limit = uint64(eocd - loc64Len)
		if locOffset > limit || limit-locOffset < eocd64Len {
			return dir, fmt.Errorf("%w: zip64 end record offset %d out of range", ErrCorruptDirectory, locOffset)
		}
		end := window[locOffset:limit]
		if binary.LittleEndian.Uint32(end) != eocd64Sig {
			return dir, fmt.Errorf("%w: zip64 locator did not point to end record", ErrCorruptDirectory)
		}

		thisDisk := binary.LittleEndian.Uint32(end[16:])
		dirDisk := binary.LittleEndian.Uint32(end[20:])
		entriesHere := binary.LittleEndian.Uint64(end[24:])
		dir.entries = binary.LittleEndian.Uint64(end[32:])
		dir.size = binary.LittleEndian.Uint64(end[40:])
		dir.offset = binary.LittleEndian.Uint64(end[48:])
		if thisDisk != 0 || dirDisk != 0 || entriesHere != dir.entries {
			return dir, ErrSplitArchive
		}
		dir.zip64 = true
		limit = locOffset
	} else {
		rec := window[eocd:]
		thisDisk := binary.LittleEndian.Uint16(rec[4:])
		dirDisk := binary.LittleEndian.Uint16(rec[6:])
		entriesHere := binary.LittleEndian.Uint16(rec[8:])
		entriesTotal := binary.LittleEndian.Uint16(rec[10:])
		if thisDisk != 0 || dirDisk != 0 || entriesHere != entriesTotal {
			return dir, ErrSplitArchive
		}
		dir.entries = uint64(entriesTotal)
		dir.size = uint64(binary.LittleEndian.Uint32(rec[12:]))
		dir.offset = uint64(binary.LittleEndian.Uint32(rec[16:]))
	}

	if dir.offset > limit || dir.size > limit-dir.offset {
		return dir, fmt.Errorf("%w: directory [%d, +%d) outside archive", ErrCorruptDirectory, dir.offset, dir.size)
	}
	return dir, nil
}

// findRecord scans backward from the end of window for a fixed-size
// trailing record, bounded by the longest possible archive comment.
func findRecord(window []byte, sig uint32, recLen int) int {
	last := len(window) - recLen
	if last < 0 {
		return -1
	}
	first := last - maxCommentLen
	if first < 0 {
		first = 0
	}
	for pos := last; pos >= first; pos-- {
		if binary.LittleEndian.Uint32(window[pos:]) != sig {
			continue
		}
		if recLen == eocdLen {
			commentLen := int(binary.LittleEndian.Uint16(window[pos+20:]))
			if pos+eocdLen+commentLen > len(window) {
				continue
			}
		}
		return pos
	}
	return -1
}

// localDataStart returns the offset at which the data of the entry whose
// local header sits at headerOffset begins.
func localDataStart(window []byte, headerOffset uint64) (uint64, error) {
	if headerOffset > uint64(len(window)) || uint64(len(window))-headerOffset < localLen {
		return 0, fmt.Errorf("%w: local header offset %d out of range", ErrCorruptDirectory, headerOffset)
	}
	hdr := window[headerOffset:]
	if binary.LittleEndian.Uint32(hdr) != localSig {
		return 0, fmt.Errorf("%w: bad local header signature at %d", ErrCorruptDirectory, headerOffset)
	}
	nameLen := uint64(binary.LittleEndian.Uint16(hdr[26:]))
	extraLen := uint64(binary.LittleEndian.Uint16(hdr[28:]))
	start := headerOffset + localLen + nameLen + extraLen
	if start > uint64(len(window)) {
		return 0, fmt.Errorf("%w: local header at %d runs past end of archive", ErrCorruptDirectory, headerOffset)
	}
	return start, nil
}
