package fs

import (
	iofs "io/fs"
	"os"
)

type OSFileSystem struct{}

func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

func (fs *OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (fs *OSFileSystem) Stat(path string) (iofs.FileInfo, error) {
	return os.Stat(path)
}

func (fs *OSFileSystem) Open(path string) (iofs.File, error) {
	return os.Open(path)
}
