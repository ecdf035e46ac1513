package bundle

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// archiveFS exposes an ArchiveView as a read-only fs.FS. Directories are
// derived from entry names.
type archiveFS struct {
	view  ArchiveView
	files []string // sorted file names, directory entries excluded
}

// NewFS returns a filesystem over the entries of view
func NewFS(view ArchiveView) fs.FS {
	var files []string
	for _, name := range view.List() {
		if strings.HasSuffix(name, "/") {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return &archiveFS{view: view, files: files}
}

func (afs *archiveFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	if name == "." {
		return &archiveDir{fs: afs, prefix: "", offset: 0}, nil
	}

	files := afs.files
	idx := sort.SearchStrings(files, name)
	if idx < len(files) && files[idx] == name {
		data, err := afs.view.ReadEntry(name)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return &archiveFile{name: name, Reader: bytes.NewReader(data), size: int64(len(data))}, nil
	}

	// check for a directory separately
	dirName := name + "/"
	idx += sort.Search(len(files)-idx, func(i int) bool {
		return files[idx+i] >= dirName
	})
	if idx < len(files) && strings.HasPrefix(files[idx], dirName) {
		return &archiveDir{fs: afs, prefix: dirName, offset: idx}, nil
	}

	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// archiveFile implements fs.File over cached entry contents
type archiveFile struct {
	*bytes.Reader
	name string
	size int64
}

func (f *archiveFile) Close() error {
	return nil
}

func (f *archiveFile) Stat() (fs.FileInfo, error) {
	return fileInfo{name: path.Base(f.name), size: f.size}, nil
}

// archiveDir implements fs.ReadDirFile for directories
type archiveDir struct {
	fs     *archiveFS
	prefix string
	offset int
}

func (d *archiveDir) Read(p []byte) (int, error) {
	return 0, fmt.Errorf("is a directory")
}

func (d *archiveDir) Close() error {
	return nil
}

func (d *archiveDir) Stat() (fs.FileInfo, error) {
	name := path.Base(strings.TrimSuffix(d.prefix, "/"))
	if d.prefix == "" {
		name = "."
	}
	return fileInfo{name: name, dir: true}, nil
}

func (d *archiveDir) ReadDir(n int) ([]fs.DirEntry, error) {
	files := d.fs.files
	prefixLen := len(d.prefix)

	dirents := []fs.DirEntry{}
	for d.offset < len(files) {
		name := files[d.offset]
		if !strings.HasPrefix(name, d.prefix) {
			break
		}

		slashIdx := strings.Index(name[prefixLen:], "/")
		if slashIdx != -1 {
			dir := name[:prefixLen+slashIdx]
			dirents = append(dirents, fs.FileInfoToDirEntry(fileInfo{name: path.Base(dir), dir: true}))
			d.offset += sort.Search(len(files)-d.offset, func(i int) bool {
				return files[d.offset+i] >= dir+"/\xff"
			})
		} else {
			size, _ := d.fs.view.Size(name)
			dirents = append(dirents, fs.FileInfoToDirEntry(fileInfo{name: path.Base(name), size: size}))
			d.offset++
		}

		if n > 0 && len(dirents) >= n {
			return dirents, nil
		}
	}

	if n > 0 && len(dirents) == 0 {
		return dirents, io.EOF
	}
	return dirents, nil
}

// fileInfo implements fs.FileInfo for archive members
type fileInfo struct {
	name string
	size int64
	dir  bool
}

func (fi fileInfo) Name() string {
	return fi.name
}

func (fi fileInfo) Size() int64 {
	return fi.size
}

func (fi fileInfo) Mode() fs.FileMode {
	if fi.dir {
		return 0o555 | fs.ModeDir
	}
	return 0o444
}

func (fi fileInfo) ModTime() time.Time {
	return time.Unix(0, 0)
}

func (fi fileInfo) IsDir() bool {
	return fi.dir
}

func (fi fileInfo) Sys() any {
	return nil
}
