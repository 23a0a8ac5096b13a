package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/3-lines-studio/ssrserve/internal/core"
)

// Source decides where the template and the render function come from. One
// Source is picked at startup from the runtime mode and used for every
// request.
type Source interface {
	Mode() core.Mode
	Template(ctx context.Context, url string) (string, error)
	Renderer(ctx context.Context) (core.RenderFunc, error)
	Manifest() core.Manifest
	Diagnose(ctx context.Context, err error) error
}

// DevSource re-reads the template on every request and lets the sidecar
// load the entry module from source, so edits show up without a restart.
type DevSource struct {
	FS           FileSystem
	TemplatePath string
	Sidecar      Sidecar
	Metrics      Metrics
	// Render replaces the sidecar's render when the entry is written in Go.
	Render core.RenderFunc
}

func (s *DevSource) Mode() core.Mode {
	return core.ModeDev
}

func (s *DevSource) Template(ctx context.Context, url string) (string, error) {
	if s.Sidecar == nil {
		return "", core.ErrSidecarUnavailable
	}
	data, err := s.FS.ReadFile(s.TemplatePath)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	if s.Metrics != nil {
		s.Metrics.TemplateRead(core.ModeDev.String())
	}

	html, err := s.Sidecar.TransformHTML(ctx, url, string(data))
	if err != nil {
		return "", fmt.Errorf("transform template: %w", err)
	}
	return html, nil
}

func (s *DevSource) Renderer(ctx context.Context) (core.RenderFunc, error) {
	if s.Render != nil {
		return s.Render, nil
	}
	if s.Sidecar == nil {
		return nil, core.ErrSidecarUnavailable
	}
	return s.Sidecar.Render, nil
}

func (s *DevSource) Manifest() core.Manifest {
	return nil
}

func (s *DevSource) Diagnose(ctx context.Context, err error) error {
	if s.Sidecar == nil {
		return err
	}
	return s.Sidecar.FixStacktrace(ctx, err)
}

// ProdSource holds what was loaded at startup. Nothing is read from disk
// after LoadProdSource returns.
type ProdSource struct {
	template string
	manifest core.Manifest
	render   core.RenderFunc
}

type ProdAssets struct {
	FS           FileSystem
	TemplatePath string
	ManifestPath string
	// Render is the compiled entry. When nil, Sidecar must be set and its
	// entry is loaded once here.
	Render  core.RenderFunc
	Sidecar Sidecar
	Metrics Metrics
}

func LoadProdSource(ctx context.Context, assets ProdAssets) (*ProdSource, error) {
	data, err := assets.FS.ReadFile(assets.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", assets.TemplatePath, err)
	}
	if assets.Metrics != nil {
		assets.Metrics.TemplateRead(core.ModeProd.String())
	}

	raw, err := assets.FS.ReadFile(assets.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("read ssr manifest %s: %w", assets.ManifestPath, err)
	}
	manifest, err := core.ParseManifest(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", assets.ManifestPath, err)
	}

	render := assets.Render
	if render == nil {
		if assets.Sidecar == nil {
			return nil, errors.New("production mode needs a render function or a sidecar")
		}
		if err := assets.Sidecar.Load(ctx); err != nil {
			return nil, fmt.Errorf("load render entry: %w", err)
		}
		render = assets.Sidecar.Render
	}

	return &ProdSource{
		template: string(data),
		manifest: manifest,
		render:   render,
	}, nil
}

func (s *ProdSource) Mode() core.Mode {
	return core.ModeProd
}

func (s *ProdSource) Template(context.Context, string) (string, error) {
	return s.template, nil
}

func (s *ProdSource) Renderer(context.Context) (core.RenderFunc, error) {
	return s.render, nil
}

func (s *ProdSource) Manifest() core.Manifest {
	return s.manifest
}

func (s *ProdSource) Diagnose(_ context.Context, err error) error {
	return err
}
