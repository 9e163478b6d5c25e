// Package resfs abstracts the file tree a course is imported from and
// exported to.
//
// All paths are slash-separated and relative to the course root, e.g.
// "html/toc.html" or "policies/2024/policy.json". Import reads through
// Exists and Open; export writes through Create, which makes parent
// directories as needed. Backing stores are billy filesystems, so a real
// directory, an in-memory tree, and anything else billy can wrap all
// behave identically.
package resfs

import (
	"io"
	"os"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/edforge/olx/core/errors"
)

// FS is the file surface course import and export run against.
type FS interface {
	// Exists reports whether the path names a readable file or directory.
	Exists(path string) bool
	// Open opens the file for reading.
	Open(path string) (io.ReadCloser, error)
	// Create opens the file for writing, truncating it and creating
	// parent directories as needed.
	Create(path string) (io.WriteCloser, error)
	// MkdirAll creates the directory and any missing parents.
	MkdirAll(path string) error
	// ReadDir lists the directory in name order.
	ReadDir(path string) ([]os.FileInfo, error)
}

type billyFS struct {
	fs billy.Filesystem
}

// FromBilly wraps an arbitrary billy filesystem.
func FromBilly(bfs billy.Filesystem) FS {
	return &billyFS{fs: bfs}
}

// Dir returns an FS rooted at an on-disk directory. Paths outside the
// root are not reachable.
func Dir(root string) FS {
	return &billyFS{fs: osfs.New(root)}
}

// Mem returns an empty in-memory FS. Used by tests and by round-trip
// checks that should not touch disk.
func Mem() FS {
	return &billyFS{fs: memfs.New()}
}

func (b *billyFS) Exists(path string) bool {
	_, err := b.fs.Stat(path)
	return err == nil
}

func (b *billyFS) Open(path string) (io.ReadCloser, error) {
	f, err := b.fs.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	return f, nil
}

func (b *billyFS) Create(path string) (io.WriteCloser, error) {
	f, err := b.fs.Create(path)
	if err != nil {
		return nil, errors.NewIO("create", path, err)
	}
	return f, nil
}

func (b *billyFS) MkdirAll(path string) error {
	if err := b.fs.MkdirAll(path, 0o755); err != nil {
		return errors.NewIO("mkdir", path, err)
	}
	return nil
}

func (b *billyFS) ReadDir(path string) ([]os.FileInfo, error) {
	infos, err := b.fs.ReadDir(path)
	if err != nil {
		return nil, errors.NewIO("read dir", path, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	return infos, nil
}

// ReadFile reads the whole file at path.
func ReadFile(fsys FS, path string) ([]byte, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	return data, nil
}

// WriteFile writes data to path, creating parent directories as needed.
func WriteFile(fsys FS, path string, data []byte) error {
	f, err := fsys.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.NewIO("write", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.NewIO("close", path, err)
	}
	return nil
}
