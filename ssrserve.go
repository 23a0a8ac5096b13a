// Package ssrserve serves server-side rendered pages for a Vite project.
// Every request is answered by reading the HTML template, rendering the
// requested URL and substituting the result into the template.
package ssrserve

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/sync/errgroup"

	"github.com/3-lines-studio/ssrserve/internal/adapters/fs"
	adapterhttp "github.com/3-lines-studio/ssrserve/internal/adapters/http"
	"github.com/3-lines-studio/ssrserve/internal/adapters/process"
	"github.com/3-lines-studio/ssrserve/internal/config"
	"github.com/3-lines-studio/ssrserve/internal/core"
	"github.com/3-lines-studio/ssrserve/internal/metrics"
	"github.com/3-lines-studio/ssrserve/internal/usecase"
	"github.com/3-lines-studio/ssrserve/internal/watch"
)

const shutdownTimeout = 10 * time.Second

type (
	Config       = config.Config
	Mode         = core.Mode
	Manifest     = core.Manifest
	RenderResult = core.RenderResult
	RenderFunc   = core.RenderFunc
	RenderError  = core.RenderError
)

const (
	ModeDev  = core.ModeDev
	ModeProd = core.ModeProd
)

var ErrSidecarUnavailable = core.ErrSidecarUnavailable

// LoadConfig reads the server settings from the environment.
func LoadConfig() (Config, error) {
	return config.Load()
}

type App struct {
	cfg     Config
	logger  *slog.Logger
	fs      fs.FileSystem
	render  RenderFunc
	metrics *metrics.RenderMetrics

	sidecar *process.Sidecar
	source  usecase.Source
	service *usecase.PageService
}

type Option func(*App)

// WithRenderFunc renders pages in Go instead of through the JavaScript
// entry. In production no sidecar is started.
func WithRenderFunc(fn RenderFunc) Option {
	return func(a *App) {
		a.render = fn
	}
}

// WithAssetsFS reads the template, manifest and client build from fsys
// instead of the project root on disk, typically an embed.FS.
func WithAssetsFS(fsys iofs.FS) Option {
	return func(a *App) {
		a.fs = fs.NewIOFileSystem(fsys)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New loads everything the configured mode needs. In production that is
// the template, the SSR manifest and the render entry; any of them missing
// is an error and nothing is served.
func New(ctx context.Context, cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		logger: slog.Default(),
		fs:     fs.NewOSFileSystem(),
	}
	for _, opt := range opts {
		opt(a)
	}

	m, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	a.metrics = m

	source, err := a.newSource(ctx)
	if err != nil {
		_ = a.Stop()
		return nil, err
	}
	a.source = source
	a.service = usecase.NewPageService(source,
		usecase.WithMetrics(a.metrics),
		usecase.WithRenderTimeout(cfg.RenderTimeout),
	)

	return a, nil
}

func (a *App) Mode() Mode {
	return a.source.Mode()
}

// Handler returns the page router. Any method on any path ends in the
// renderer unless a static asset (production) or Vite (development)
// answers first.
func (a *App) Handler() http.Handler {
	page := adapterhttp.NewPageHandler(a.service, a.cfg.Base, a.logger)

	var h http.Handler
	if a.source.Mode() == core.ModeProd {
		h = adapterhttp.NewStaticHandler(a.fs, a.cfg.Path(a.cfg.ClientDir), a.cfg.Base, page)
		h = gzhttp.GzipHandler(h)
	} else if a.sidecar != nil {
		h = a.sidecar.AssetHandler(page)
	} else {
		h = page
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(adapterhttp.RequestLogger(a.logger))
	r.Handle("/*", h)
	// chi answers 405 for methods it does not know; those are pages too.
	r.MethodNotAllowed(h.ServeHTTP)
	return r
}

// MetricsHandler exposes the render metrics in the Prometheus text format.
func (a *App) MetricsHandler() http.Handler {
	return a.metrics.Handler()
}

// Run listens on the configured address and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener. It closes ln.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	servers := []*http.Server{{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	listeners := []net.Listener{ln}

	if a.cfg.MetricsAddr != "" {
		mln, err := net.Listen("tcp", a.cfg.MetricsAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to listen for metrics: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", a.MetricsHandler())
		servers = append(servers, &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second})
		listeners = append(listeners, mln)
		a.logger.InfoContext(ctx, "Metrics enabled", "url", "http://"+mln.Addr().String()+"/metrics")
	}

	if a.source.Mode() == core.ModeDev && a.cfg.WatchExecutable {
		if err := watch.Executable(ctx, stop); err != nil {
			a.logger.WarnContext(ctx, "Could not watch executable", "err", err)
		}
	}

	a.logger.InfoContext(ctx, "Server started",
		"url", "http://"+ln.Addr().String()+a.cfg.Base,
		"mode", a.source.Mode().String(),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, srv := range servers {
		l := listeners[i]
		g.Go(func() error {
			if err := srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	a.logger.InfoContext(context.WithoutCancel(ctx), "Server stopped")
	return err
}

// Stop terminates the render sidecar. It is safe to call more than once.
func (a *App) Stop() error {
	if a.sidecar != nil {
		return a.sidecar.Stop()
	}
	return nil
}
