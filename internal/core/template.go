package core

import "strings"

const (
	HeadMarker = "<!--app-head-->"
	HTMLMarker = "<!--app-html-->"
)

// Hydrate replaces the first occurrence of each marker. Repeated markers are
// left in place and a missing marker is not an error.
func Hydrate(template string, result RenderResult) string {
	html := strings.Replace(template, HeadMarker, result.Head, 1)
	return strings.Replace(html, HTMLMarker, result.HTML, 1)
}

type MarkerReport struct {
	Head int
	HTML int
}

func CountMarkers(template string) MarkerReport {
	return MarkerReport{
		Head: strings.Count(template, HeadMarker),
		HTML: strings.Count(template, HTMLMarker),
	}
}
