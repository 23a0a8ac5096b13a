package http

import (
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/3-lines-studio/ssrserve/internal/adapters/fs"
	"github.com/3-lines-studio/ssrserve/internal/core"
)

// StaticHandler serves the production client build. Anything that is not a
// regular file under dir goes to next, so directories never resolve to an
// index.html and page routes reach the renderer.
type StaticHandler struct {
	fs   fs.FileSystem
	dir  string
	base string
	next http.Handler
}

func NewStaticHandler(fsys fs.FileSystem, dir, base string, next http.Handler) http.Handler {
	return &StaticHandler{
		fs:   fsys,
		dir:  dir,
		base: base,
		next: next,
	}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		h.next.ServeHTTP(w, req)
		return
	}
	if !core.WithinBase(req.URL.Path, h.base) {
		h.next.ServeHTTP(w, req)
		return
	}

	rel := strings.TrimPrefix(path.Clean(core.StripBase(req.URL.Path, h.base)), "/")
	if rel == "" {
		h.next.ServeHTTP(w, req)
		return
	}

	name := filepath.Join(h.dir, filepath.FromSlash(rel))
	info, err := h.fs.Stat(name)
	if err != nil || info.IsDir() {
		h.next.ServeHTTP(w, req)
		return
	}

	file, err := h.fs.Open(name)
	if err != nil {
		h.next.ServeHTTP(w, req)
		return
	}
	defer func() { _ = file.Close() }()

	w.Header().Set("Content-Type", core.GetContentType(name))
	if strings.HasPrefix(rel, "assets/") {
		// Vite fingerprints everything it emits under assets/.
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}

	if rs, ok := file.(io.ReadSeeker); ok {
		http.ServeContent(w, req, info.Name(), info.ModTime(), rs)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}
