// Package version holds build metadata injected via ldflags:
//
//	-X github.com/kailas-cloud/prestadores/internal/version.Version=v1.2.0
package version

import (
	"fmt"
	"runtime/debug"
)

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the build as "version (commit, date)". When ldflags were not
// set, the VCS revision recorded by the Go toolchain fills in the commit.
func String() string {
	return format(Version, resolveCommit(Commit), Date)
}

func format(version, commit, date string) string {
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

func resolveCommit(commit string) string {
	if commit != "unknown" && commit != "" {
		return commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value
		}
	}
	return "unknown"
}
