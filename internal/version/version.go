// Package version reports which commit chrubuntu was built from.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

type parts struct {
	revision string
	modified bool
	module   string // module version when installed via go install
}

func readParts() (parts, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return parts{}, false
	}
	settings := make(map[string]string)
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	p := parts{module: info.Main.Version}
	// When built from a local VCS directory, we can use vcs.revision directly.
	if rev, ok := settings["vcs.revision"]; ok {
		p.revision = rev
		p.modified = settings["vcs.modified"] == "true"
		return p, true
	}
	// When built as a Go module (not from a local VCS directory),
	// info.Main.Version is something like v0.0.0-20230107144322-7a5757f46310.
	if idx := strings.LastIndexByte(p.module, '-'); idx > -1 {
		p.revision = p.module[idx+1:]
		return p, true
	}
	return p, p.module != "" && p.module != "(devel)"
}

// Read returns a link to the commit chrubuntu was built from.
func Read() string {
	p, ok := readParts()
	if !ok {
		return "<not okay>"
	}
	if p.revision == "" {
		return p.module
	}
	modifiedSuffix := ""
	if p.modified {
		modifiedSuffix = " (modified)"
	}
	return "https://github.com/chrubuntu/chrubuntu/commit/" + p.revision + modifiedSuffix
}

// ReadBrief returns a short identifier like g7a5757+ for logs.
func ReadBrief() string {
	p, ok := readParts()
	if !ok {
		return "<not okay>"
	}
	if p.revision == "" {
		return p.module
	}
	modifiedSuffix := ""
	if p.modified {
		modifiedSuffix = "+"
	}
	revision := p.revision
	if len(revision) > 6 {
		revision = revision[:6]
	}
	return "g" + revision + modifiedSuffix
}

// Verbose is printed by chrubuntu version.
func Verbose() string {
	return fmt.Sprintf("chrubuntu %s\nbuilt with %s for %s/%s", Read(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
