package usecase

import (
	"context"
	"time"

	"github.com/3-lines-studio/ssrserve/internal/adapters/fs"
	"github.com/3-lines-studio/ssrserve/internal/core"
)

// Sidecar is the JavaScript toolchain seen from the page pipeline.
type Sidecar interface {
	Render(ctx context.Context, url string, manifest core.Manifest) (core.RenderResult, error)
	TransformHTML(ctx context.Context, url, html string) (string, error)
	FixStacktrace(ctx context.Context, err error) error
	Load(ctx context.Context) error
}

type Metrics interface {
	ObserveRender(mode string, d time.Duration, err error)
	TemplateRead(mode string)
}

type FileSystem = fs.FileSystem

type noopMetrics struct{}

func (noopMetrics) ObserveRender(string, time.Duration, error) {}
func (noopMetrics) TemplateRead(string)                        {}
