package fs

import (
	iofs "io/fs"
	"path"
	"path/filepath"
	"strings"
)

// IOFileSystem adapts an io/fs.FS, typically an embed.FS holding the client
// build, to FileSystem. Paths are slash-separated and relative to the root of
// the wrapped FS.
type IOFileSystem struct {
	fsys iofs.FS
}

func NewIOFileSystem(fsys iofs.FS) *IOFileSystem {
	return &IOFileSystem{fsys: fsys}
}

func (fs *IOFileSystem) ReadFile(name string) ([]byte, error) {
	return iofs.ReadFile(fs.fsys, clean(name))
}

func (fs *IOFileSystem) Stat(name string) (iofs.FileInfo, error) {
	return iofs.Stat(fs.fsys, clean(name))
}

func (fs *IOFileSystem) Open(name string) (iofs.File, error) {
	return fs.fsys.Open(clean(name))
}

func clean(name string) string {
	name = path.Clean(filepath.ToSlash(name))
	name = strings.TrimPrefix(name, "/")
	name = strings.TrimPrefix(name, "./")
	if name == "" {
		return "."
	}
	return name
}
