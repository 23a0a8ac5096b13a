package fs

import (
	iofs "io/fs"
)

// FileSystem is the read side the server needs for templates, manifests and
// static assets.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	Stat(path string) (iofs.FileInfo, error)
	Open(path string) (iofs.File, error)
}

// IsFile reports whether path exists and is a regular file.
func IsFile(fsys FileSystem, path string) bool {
	info, err := fsys.Stat(path)
	return err == nil && !info.IsDir()
}
