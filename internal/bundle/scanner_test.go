package bundle

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"StoredNestedIndexed", testScanStoredNestedIndexed},
		{"StreamedStoredNestedIndexed", testScanStreamedStoredNestedIndexed},
		{"CompressedNestedNotIndexed", testScanCompressedNestedNotIndexed},
		{"DeclarationOrder", testScanDeclarationOrder},
		{"Zip64", testScanZip64},
		{"NestedInNested", testScanNestedInNested},
		{"EmptyArchive", testScanEmptyArchive},
		{"ZeroByteFile", testScanZeroByteFile},
		{"MissingSignature", testScanMissingSignature},
		{"SplitArchive", testScanSplitArchive},
		{"CorruptDirectory", testScanCorruptDirectory},
		{"CorruptStoredNestedFailsScan", testScanCorruptStoredNested},
		{"TooLarge", testScanTooLarge},
		{"MissingFile", testScanMissingFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testScanStoredNestedIndexed(t *testing.T) {
	entries := sampleEntries()
	path := writeBundle(t, t.TempDir(), "bundle.jar", entries, bundleOptions{})

	idx, err := Scan(path, DefaultSuffix)
	require.NoError(t, err)
	assert.False(t, idx.Zip64())
	assert.Equal(t, 1, idx.StoredCount())

	lib, ok := idx.Stored("lib.jar")
	require.True(t, ok, "lib.jar should be indexed")
	assert.Equal(t, len(entries), lib.Len())

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	assert.Equal(t, names, lib.Names(), "entries should keep directory order")

	d, ok := lib.Lookup("hello.txt")
	require.True(t, ok)
	assert.Equal(t, uint64(2), d.UncompressedSize)
	assert.Equal(t, uint16(methodStored), d.Method)
	assert.Equal(t, "hello.txt", d.Name)
}

func testScanStreamedStoredNestedIndexed(t *testing.T) {
	path := writeBundle(t, t.TempDir(), "bundle.jar", sampleEntries(), bundleOptions{Streamed: true})

	idx, err := Scan(path, DefaultSuffix)
	require.NoError(t, err)

	lib, ok := idx.Stored("lib.jar")
	require.True(t, ok)
	_, ok = lib.Lookup("dir/b.txt")
	assert.True(t, ok)
}

func testScanCompressedNestedNotIndexed(t *testing.T) {
	path := writeBundle(t, t.TempDir(), "bundle.jar", sampleEntries(), bundleOptions{Compressed: true})

	idx, err := Scan(path, DefaultSuffix)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.StoredCount(), "compressed nested archives are not indexed")
	assert.Equal(t, []NestedArchive{{Name: "lib.jar", Stored: false}}, idx.Declared())
}

func testScanDeclarationOrder(t *testing.T) {
	inner := writeZip(t, []fixtureEntry{{Name: "x.txt", Data: []byte("x")}})
	data := writeZip(t, []fixtureEntry{
		{Name: "lib/zeta.jar", Data: inner},
		{Name: "main/app.jar", Data: inner, Deflate: true},
		{Name: "README", Data: []byte("readme")},
		{Name: "lib/alpha.jar", Data: inner},
	})

	idx, err := ScanBytes(data, "")
	require.NoError(t, err)
	assert.Equal(t, []NestedArchive{
		{Name: "lib/zeta.jar", Stored: true},
		{Name: "main/app.jar", Stored: false},
		{Name: "lib/alpha.jar", Stored: true},
	}, idx.Declared())
}

func testScanZip64(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a bundle with more than 65535 entries")
	}
	path := writeBundle(t, t.TempDir(), "large.jar", sampleEntries(), bundleOptions{Fillers: 65540})

	idx, err := Scan(path, DefaultSuffix)
	require.NoError(t, err)
	assert.True(t, idx.Zip64(), "directory should be located through the ZIP64 end record")

	lib, ok := idx.Stored("lib.jar")
	require.True(t, ok)
	assert.False(t, lib.Zip64(), "small nested archive uses the standard end record")
	_, ok = lib.Lookup("hello.txt")
	assert.True(t, ok)
}

func testScanNestedInNested(t *testing.T) {
	deepest := writeZip(t, []fixtureEntry{{Name: "deep.txt", Data: []byte("deep")}})
	middle := writeZip(t, []fixtureEntry{
		{Name: "inner.jar", Data: deepest},
		{Name: "mid.txt", Data: []byte("mid")},
	})
	data := writeZip(t, []fixtureEntry{{Name: "outer.jar", Data: middle}})

	idx, err := ScanBytes(data, DefaultSuffix)
	require.NoError(t, err)

	outer, ok := idx.Stored("outer.jar")
	require.True(t, ok)
	_, ok = outer.Lookup("inner.jar")
	assert.True(t, ok, "nested archive is also an entry of its parent")

	inner, ok := outer.Nested().Stored("inner.jar")
	require.True(t, ok)
	_, ok = inner.Lookup("deep.txt")
	assert.True(t, ok)
}

func testScanEmptyArchive(t *testing.T) {
	data := writeZip(t, nil)
	require.Len(t, data, eocdLen)

	idx, err := ScanBytes(data, DefaultSuffix)
	require.NoError(t, err)
	assert.Empty(t, idx.Declared())
	assert.Equal(t, 0, idx.StoredCount())
}

func testScanZeroByteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jar")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := Scan(path, DefaultSuffix)
	require.ErrorIs(t, err, ErrSignatureNotFound)

	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, path, formatErr.Path)
}

func testScanMissingSignature(t *testing.T) {
	data := writeZip(t, []fixtureEntry{{Name: "a.txt", Data: []byte("a")}})
	data = data[:len(data)-eocdLen]

	_, err := ScanBytes(data, DefaultSuffix)
	assert.ErrorIs(t, err, ErrSignatureNotFound)
}

func testScanSplitArchive(t *testing.T) {
	data := writeZip(t, []fixtureEntry{{Name: "a.txt", Data: []byte("a")}})
	eocd := len(data) - eocdLen
	binary.LittleEndian.PutUint16(data[eocd+4:], 1)

	_, err := ScanBytes(data, DefaultSuffix)
	assert.ErrorIs(t, err, ErrSplitArchive)

	data = writeZip(t, []fixtureEntry{{Name: "a.txt", Data: []byte("a")}})
	binary.LittleEndian.PutUint16(data[eocd+8:], 0)

	_, err = ScanBytes(data, DefaultSuffix)
	assert.ErrorIs(t, err, ErrSplitArchive)
}

func testScanCorruptDirectory(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(data []byte)
	}{
		{"OffsetPastEnd", func(data []byte) {
			eocd := len(data) - eocdLen
			binary.LittleEndian.PutUint32(data[eocd+16:], uint32(len(data)))
		}},
		{"BadHeaderSignature", func(data []byte) {
			eocd := len(data) - eocdLen
			off := binary.LittleEndian.Uint32(data[eocd+16:])
			data[off] = 'X'
		}},
		{"EntryCountMismatch", func(data []byte) {
			eocd := len(data) - eocdLen
			binary.LittleEndian.PutUint16(data[eocd+8:], 5)
			binary.LittleEndian.PutUint16(data[eocd+10:], 5)
		}},
		{"LocalHeaderOffsetPastEnd", func(data []byte) {
			eocd := len(data) - eocdLen
			off := binary.LittleEndian.Uint32(data[eocd+16:])
			binary.LittleEndian.PutUint32(data[off+42:], uint32(len(data)))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := writeZip(t, []fixtureEntry{{Name: "a.txt", Data: []byte("a")}})
			tt.mutate(data)

			_, err := ScanBytes(data, DefaultSuffix)
			assert.ErrorIs(t, err, ErrCorruptDirectory)
		})
	}
}

func testScanCorruptStoredNested(t *testing.T) {
	data := writeZip(t, []fixtureEntry{
		{Name: "good.jar", Data: writeZip(t, []fixtureEntry{{Name: "a", Data: []byte("a")}})},
		{Name: "bad.jar", Data: []byte("not an archive at all")},
	})

	idx, err := ScanBytes(data, DefaultSuffix)
	assert.Nil(t, idx, "no partial results")
	require.ErrorIs(t, err, ErrSignatureNotFound)
	assert.Contains(t, err.Error(), "bad.jar")
}

func testScanTooLarge(t *testing.T) {
	saved := maxMappedSize
	maxMappedSize = 64
	t.Cleanup(func() { maxMappedSize = saved })

	path := writeBundle(t, t.TempDir(), "bundle.jar", sampleEntries(), bundleOptions{})
	_, err := Scan(path, DefaultSuffix)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func testScanMissingFile(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "absent.jar"), DefaultSuffix)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	var formatErr *FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestDescriptor(t *testing.T) {
	source := []byte("0123456789")

	d := NewDescriptor("x", source, 2, 5)
	assert.Equal(t, []byte("23456"), d.Bytes())
	assert.Equal(t, 5, cap(d.Bytes()), "capacity is clipped to the range")
	assert.Equal(t, uint64(2), d.Offset())
	assert.Equal(t, uint64(5), d.Length())

	sibling := NewDescriptor("y", source, 0, 10)
	assert.Equal(t, source, sibling.Bytes())

	r := d.Reader()
	assert.Equal(t, int64(5), r.Size())
	buf := make([]byte, 10)
	n, _ := r.Read(buf)
	assert.Equal(t, "23456", string(buf[:n]))
	n, _ = r.ReadAt(buf[:3], 2)
	assert.Equal(t, "456", string(buf[:n]))

	assert.NotPanics(t, func() { NewDescriptor("edge", source, 10, 0) })
	assert.Panics(t, func() { NewDescriptor("bad", source, 8, 5) })
	assert.Panics(t, func() { NewDescriptor("bad", source, 11, 0) })
}
