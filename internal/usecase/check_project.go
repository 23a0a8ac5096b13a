package usecase

import (
	"fmt"

	"github.com/3-lines-studio/ssrserve/internal/adapters/fs"
	"github.com/3-lines-studio/ssrserve/internal/core"
)

type CheckLevel int

const (
	CheckOK CheckLevel = iota
	CheckWarning
	CheckError
)

type CheckFinding struct {
	Level   CheckLevel
	Message string
}

type CheckReport struct {
	Findings []CheckFinding
}

func (r *CheckReport) add(level CheckLevel, format string, args ...any) {
	r.Findings = append(r.Findings, CheckFinding{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Failed reports whether a production start would fail or serve broken
// pages.
func (r CheckReport) Failed() bool {
	for _, f := range r.Findings {
		if f.Level == CheckError {
			return true
		}
	}
	return false
}

type CheckInput struct {
	FS           FileSystem
	TemplatePath string
	ManifestPath string
	ServerEntry  string
}

// CheckProject inspects the files a production start reads, without
// starting anything.
func CheckProject(input CheckInput) CheckReport {
	var report CheckReport

	data, err := input.FS.ReadFile(input.TemplatePath)
	if err != nil {
		report.add(CheckError, "Template %s: %v", input.TemplatePath, err)
	} else {
		markers := core.CountMarkers(string(data))
		switch {
		case markers.Head == 0:
			report.add(CheckWarning, "Template %s has no %s, head output will be dropped", input.TemplatePath, core.HeadMarker)
		case markers.Head > 1:
			report.add(CheckWarning, "Template %s has %d %s markers, only the first is replaced", input.TemplatePath, markers.Head, core.HeadMarker)
		}
		switch {
		case markers.HTML == 0:
			report.add(CheckError, "Template %s has no %s, pages would render empty", input.TemplatePath, core.HTMLMarker)
		case markers.HTML > 1:
			report.add(CheckWarning, "Template %s has %d %s markers, only the first is replaced", input.TemplatePath, markers.HTML, core.HTMLMarker)
		}
		if markers.Head == 1 && markers.HTML == 1 {
			report.add(CheckOK, "Template %s", input.TemplatePath)
		}
	}

	raw, err := input.FS.ReadFile(input.ManifestPath)
	if err != nil {
		report.add(CheckError, "SSR manifest %s: %v", input.ManifestPath, err)
	} else if manifest, err := core.ParseManifest(raw); err != nil {
		report.add(CheckError, "SSR manifest %s: %v", input.ManifestPath, err)
	} else {
		report.add(CheckOK, "SSR manifest %s (%d modules)", input.ManifestPath, len(manifest))
	}

	if input.ServerEntry != "" {
		if fs.IsFile(input.FS, input.ServerEntry) {
			report.add(CheckOK, "Server entry %s", input.ServerEntry)
		} else {
			report.add(CheckError, "Server entry %s not found", input.ServerEntry)
		}
	}

	return report
}
