package core

import (
	"encoding/json"
	"fmt"
)

// Manifest maps a module id to the asset chunks it pulls in, in build order.
type Manifest map[string][]string

func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid ssr manifest: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("invalid ssr manifest: expected a JSON object")
	}
	return m, nil
}

func (m Manifest) Assets(module string) []string {
	if m == nil {
		return nil
	}
	return m[module]
}

// Preload collects the assets of modules without duplicates, keeping the
// order in which they are first seen.
func (m Manifest) Preload(modules ...string) []string {
	if m == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var files []string
	for _, module := range modules {
		for _, file := range m[module] {
			if _, ok := seen[file]; ok {
				continue
			}
			seen[file] = struct{}{}
			files = append(files, file)
		}
	}
	return files
}
