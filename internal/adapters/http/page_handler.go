package http

import (
	"log/slog"
	"net/http"

	"github.com/3-lines-studio/ssrserve/internal/core"
	"github.com/3-lines-studio/ssrserve/internal/usecase"
)

type PageHandler struct {
	service *usecase.PageService
	base    string
	logger  *slog.Logger
}

// NewPageHandler serves every request it sees by rendering a page. base must
// already be normalized.
func NewPageHandler(service *usecase.PageService, base string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageHandler{
		service: service,
		base:    base,
		logger:  logger,
	}
}

func (h *PageHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	url := core.StripBase(req.URL.RequestURI(), h.base)

	output := h.service.ServePage(req.Context(), usecase.ServePageInput{URL: url})
	if output.Error != nil {
		h.logger.ErrorContext(req.Context(), "Render failed", "url", url, "err", output.Error)
		h.serveError(w, output.Diagnostic)
		return
	}

	h.serveHTML(w, output.HTML)
}

func (h *PageHandler) serveHTML(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func (h *PageHandler) serveError(w http.ResponseWriter, diagnostic string) {
	if diagnostic == "" {
		diagnostic = http.StatusText(http.StatusInternalServerError)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(diagnostic))
}
