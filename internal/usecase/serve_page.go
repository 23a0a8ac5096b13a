package usecase

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/3-lines-studio/ssrserve/internal/core"
)

type ServePageInput struct {
	// URL is the request target with the base path already stripped.
	URL string
}

type ServePageOutput struct {
	HTML       string
	Error      error
	Diagnostic string
}

type PageService struct {
	source        Source
	metrics       Metrics
	renderTimeout time.Duration
}

type PageServiceOption func(*PageService)

func WithMetrics(m Metrics) PageServiceOption {
	return func(s *PageService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithRenderTimeout bounds the render call. Zero means no bound.
func WithRenderTimeout(d time.Duration) PageServiceOption {
	return func(s *PageService) {
		s.renderTimeout = d
	}
}

func NewPageService(source Source, opts ...PageServiceOption) *PageService {
	s := &PageService{
		source:  source,
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServePage runs read → transform → resolve → render → substitute. Any
// failure stops the pipeline; the output then carries the error and the
// text meant for the client.
func (s *PageService) ServePage(ctx context.Context, input ServePageInput) ServePageOutput {
	start := time.Now()
	html, err := s.render(ctx, input.URL)
	s.metrics.ObserveRender(s.source.Mode().String(), time.Since(start), err)

	if err != nil {
		err = s.source.Diagnose(ctx, err)
		return ServePageOutput{
			Error:      err,
			Diagnostic: core.Diagnostic(err),
		}
	}
	return ServePageOutput{HTML: html}
}

func (s *PageService) render(ctx context.Context, url string) (string, error) {
	template, err := s.source.Template(ctx, url)
	if err != nil {
		return "", err
	}

	render, err := s.source.Renderer(ctx)
	if err != nil {
		return "", fmt.Errorf("load render entry: %w", err)
	}

	renderCtx := ctx
	if s.renderTimeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, s.renderTimeout)
		defer cancel()
	}

	result, err := callRender(renderCtx, render, url, s.source.Manifest())
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}

	return core.Hydrate(template, result), nil
}

// callRender turns a panic in a Go render func into a RenderError so the
// client still gets the stack.
func callRender(ctx context.Context, render core.RenderFunc, url string, manifest core.Manifest) (result core.RenderResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &core.RenderError{
				Message: fmt.Sprint(r),
				Stack:   fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack()),
			}
		}
	}()
	return render(ctx, url, manifest)
}
