// Package watch stops a development server when its binary is rebuilt.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// File calls onChange once, the first time path is written, removed or its
// mode changes. Remove is included because build tools usually replace a
// binary (write a new file, rename it over the old one) rather than rewrite
// it in place, which the watch on the old inode only sees as a removal. The
// watcher goroutine exits when ctx is done or after onChange.
func File(ctx context.Context, path string, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) || event.Has(fsnotify.Remove) {
					onChange()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching file", "path", path, "err", err)
			}
		}
	}()
	return nil
}

// Executable watches the running binary and calls stop when it changes.
func Executable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	return File(ctx, exe, func() {
		slog.InfoContext(ctx, "Executable modified, initiating shutdown", "path", exe)
		stop()
	})
}
