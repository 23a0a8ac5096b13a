package core

import "context"

type RenderResult struct {
	Head string `json:"head,omitempty"`
	HTML string `json:"html,omitempty"`
}

// RenderFunc produces the markup for url. manifest is nil in development.
type RenderFunc func(ctx context.Context, url string, manifest Manifest) (RenderResult, error)
