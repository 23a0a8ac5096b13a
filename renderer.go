package ssrserve

import (
	"context"
	"fmt"

	"github.com/3-lines-studio/ssrserve/internal/adapters/process"
	"github.com/3-lines-studio/ssrserve/internal/core"
	"github.com/3-lines-studio/ssrserve/internal/usecase"
)

func (a *App) newSource(ctx context.Context) (usecase.Source, error) {
	switch a.cfg.Mode() {
	case core.ModeProd:
		return a.initProdMode(ctx)
	default:
		return a.initDevMode()
	}
}

// initDevMode starts Vite in the sidecar. The template and entry are read
// per request, so nothing is loaded here.
func (a *App) initDevMode() (usecase.Source, error) {
	sidecar, err := process.Start(process.Options{
		Mode:    core.ModeDev,
		Runtime: a.cfg.Runtime,
		Root:    a.cfg.Root,
		Base:    a.cfg.Base,
		Entry:   a.cfg.DevEntry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start vite: %w", err)
	}
	a.sidecar = sidecar

	return &usecase.DevSource{
		FS:           a.fs,
		TemplatePath: a.cfg.Path(a.cfg.Template),
		Sidecar:      sidecar,
		Metrics:      a.metrics,
		Render:       a.render,
	}, nil
}

// initProdMode reads the built template and manifest once. The compiled
// entry is loaded into a sidecar unless a Go render func was given.
func (a *App) initProdMode(ctx context.Context) (usecase.Source, error) {
	assets := usecase.ProdAssets{
		FS:           a.fs,
		TemplatePath: a.cfg.ClientTemplatePath(),
		ManifestPath: a.cfg.ManifestPath(),
		Render:       a.render,
		Metrics:      a.metrics,
	}

	if a.render == nil {
		sidecar, err := process.Start(process.Options{
			Mode:    core.ModeProd,
			Runtime: a.cfg.Runtime,
			Root:    a.cfg.Root,
			Base:    a.cfg.Base,
			Entry:   a.cfg.ServerEntry,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to start render runtime: %w", err)
		}
		a.sidecar = sidecar
		assets.Sidecar = sidecar
	}

	source, err := usecase.LoadProdSource(ctx, assets)
	if err != nil {
		return nil, fmt.Errorf("failed to load production build: %w", err)
	}
	return source, nil
}
