// Package version provides information about the build of the pipeline binaries.
package version

import "runtime/debug"

// BuildInfo holds version information about a binary build.
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info returns the build information for the named binary. The version, commit
// and date variables are set at build time using -ldflags; when commit is not
// set the VCS revision recorded by the go toolchain is used instead.
func Info(service string) BuildInfo {
	// Set via -ldflags "-X 'hntrends/internal/core/version.version=v0.1.0'
	// -X 'hntrends/internal/core/version.commit=abcd' -X 'hntrends/internal/core/version.date=2026-10-01'"
	c := commit
	if c == "none" {
		c = vcsShortSHA()
	}
	return BuildInfo{
		Service: service,
		Version: version,
		Commit:  c,
		Date:    date,
	}
}

// Version returns the bare version string
func Version() string { return version }

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func vcsShortSHA() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
	}
	return "none"
}
