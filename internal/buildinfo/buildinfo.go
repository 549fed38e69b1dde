// Package buildinfo exposes the build metadata served by the version
// endpoint and printed in the startup banner. Values come from ldflags when
// the release pipeline sets them, falling back to the module's embedded VCS
// stamp for plain `go build`.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via ldflags:
//
//	go build -ldflags "-X chassis/internal/buildinfo.Version=1.4.0 \
//	    -X chassis/internal/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	    -X chassis/internal/buildinfo.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	Version   = "0.1.0-dev"
	Commit    = ""
	BuildTime = ""
)

// Info is the static build metadata snapshot, frozen at startup.
type Info struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Commit       string `json:"commit"`
	GoVersion    string `json:"go_version"`
	BuildTime    string `json:"build_time"`
	OS           string `json:"os"`
	Architecture string `json:"arch"`
	Env          string `json:"env"`
}

// Collect assembles the snapshot for a service. Name and env come from
// configuration; everything else from the binary itself.
func Collect(name, env string) Info {
	info := Info{
		Name:         name,
		Version:      Version,
		Commit:       Commit,
		GoVersion:    runtime.Version(),
		BuildTime:    BuildTime,
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		Env:          env,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Commit == "" {
			info.Commit = vcsSetting(bi, "vcs.revision")
		}
		if info.BuildTime == "" {
			info.BuildTime = vcsSetting(bi, "vcs.time")
		}
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.BuildTime == "" {
		info.BuildTime = "unknown"
	}
	return info
}

func vcsSetting(bi *debug.BuildInfo, key string) string {
	for _, s := range bi.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// ShortCommit returns the first 12 characters of the commit hash.
func (i Info) ShortCommit() string {
	if len(i.Commit) > 12 {
		return i.Commit[:12]
	}
	return i.Commit
}

// String renders a single-line summary for logs and the banner.
func (i Info) String() string {
	return fmt.Sprintf("%s v%s (%s, built %s, %s, %s/%s)",
		i.Name, i.Version, i.ShortCommit(), i.BuildTime, i.GoVersion, i.OS, i.Architecture)
}
