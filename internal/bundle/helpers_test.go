package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/require"
)

// fixtureEntry describes one member of a synthesised archive
type fixtureEntry struct {
	Name     string
	Data     []byte
	Deflate  bool
	Streamed bool // written with a trailing data descriptor
}

const testManifest = "Manifest-Version: 1.0\r\n" +
	"EmJar-Main-Class: com.example.Main\r\n" +
	"Implementation-Title: a long title that is continued on\r\n" +
	"  the next line\r\n" +
	"\r\n"

// writeZip builds an archive in memory
func writeZip(t testing.TB, entries []fixtureEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		method := zip.Store
		if e.Deflate {
			method = zip.Deflate
		}

		if e.Streamed {
			fw, err := w.CreateHeader(&zip.FileHeader{Name: e.Name, Method: method})
			require.NoError(t, err)
			_, err = fw.Write(e.Data)
			require.NoError(t, err)
			continue
		}

		raw := e.Data
		if e.Deflate {
			raw = deflate(t, e.Data)
		}
		fw, err := w.CreateRaw(&zip.FileHeader{
			Name:               e.Name,
			Method:             method,
			CRC32:              crc32.ChecksumIEEE(e.Data),
			CompressedSize64:   uint64(len(raw)),
			UncompressedSize64: uint64(len(e.Data)),
		})
		require.NoError(t, err)
		_, err = fw.Write(raw)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func deflate(t testing.TB, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	return buf.Bytes()
}

// bundleOptions shapes a synthesised bundle
type bundleOptions struct {
	// NestedName defaults to lib.jar
	NestedName string
	// Compressed stores the nested archive deflated in the bundle
	Compressed bool
	// Streamed writes the nested archive with a data descriptor
	Streamed bool
	// Fillers adds that many empty top-level entries before the nested
	// archive; more than 65534 forces the ZIP64 end record.
	Fillers int
}

// writeBundle writes a bundle holding one nested archive with the given
// entries and returns its path.
func writeBundle(t testing.TB, dir, name string, inner []fixtureEntry, opts bundleOptions) string {
	t.Helper()

	nested := opts.NestedName
	if nested == "" {
		nested = "lib.jar"
	}

	outer := []fixtureEntry{
		{Name: ManifestName, Data: []byte("Manifest-Version: 1.0\r\nMain-Class: com.example.Boot\r\n\r\n"), Deflate: true},
		{Name: "com/example/Boot.class", Data: []byte("boot"), Deflate: true},
	}
	for i := 0; i < opts.Fillers; i++ {
		outer = append(outer, fixtureEntry{Name: fmt.Sprintf("f/%d", i)})
	}
	outer = append(outer, fixtureEntry{
		Name:     nested,
		Data:     writeZip(t, inner),
		Deflate:  opts.Compressed,
		Streamed: opts.Streamed,
	})

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, writeZip(t, outer), 0o644))
	return path
}

// sampleEntries is a nested archive exercising every entry shape the
// stream walker supports.
func sampleEntries() []fixtureEntry {
	return []fixtureEntry{
		{Name: "META-INF/", Data: nil},
		{Name: ManifestName, Data: []byte(testManifest), Deflate: true},
		{Name: "hello.txt", Data: []byte("hi")},
		{Name: "dir/", Data: nil},
		{Name: "dir/a.txt", Data: bytes.Repeat([]byte("a"), 5000), Deflate: true},
		{Name: "dir/b.txt", Data: []byte("streamed entry"), Deflate: true, Streamed: true},
		{Name: "empty.txt", Data: []byte{}},
	}
}

func entryData(entries []fixtureEntry) map[string][]byte {
	out := make(map[string][]byte, len(entries))
	for _, e := range entries {
		out[e.Name] = e.Data
	}
	return out
}
