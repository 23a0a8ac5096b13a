package ssrserve

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// TemplPage returns the components for a URL. Either may be nil.
type TemplPage func(url string, manifest Manifest) (head, body templ.Component)

// TemplRender adapts templ components to a RenderFunc, for projects whose
// pages are written in Go.
func TemplRender(page TemplPage) RenderFunc {
	return func(ctx context.Context, url string, manifest Manifest) (RenderResult, error) {
		head, body := page(url, manifest)

		var result RenderResult
		var err error
		if result.Head, err = renderComponent(ctx, head); err != nil {
			return RenderResult{}, fmt.Errorf("render head: %w", err)
		}
		if result.HTML, err = renderComponent(ctx, body); err != nil {
			return RenderResult{}, fmt.Errorf("render body: %w", err)
		}
		return result, nil
	}
}

func renderComponent(ctx context.Context, c templ.Component) (string, error) {
	if c == nil {
		return "", nil
	}
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// PreloadLinks renders modulepreload and stylesheet links for the assets of
// modules, for use in a head component.
func PreloadLinks(manifest Manifest, modules ...string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, asset := range manifest.Preload(modules...) {
			var err error
			switch {
			case strings.HasSuffix(asset, ".css"):
				_, err = fmt.Fprintf(w, `<link rel="stylesheet" href="%s">`, templ.EscapeString(asset))
			case strings.HasSuffix(asset, ".js"):
				_, err = fmt.Fprintf(w, `<link rel="modulepreload" crossorigin href="%s">`, templ.EscapeString(asset))
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
