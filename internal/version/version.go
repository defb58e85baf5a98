package version

import (
	"runtime/debug"
	"strings"
)

// Set by the release build via -ldflags.
var (
	Version = "0.3.0"
	Commit  = ""
)

// Resolve returns Version, suffixed with the VCS revision for builds that
// did not stamp a release commit.
func Resolve() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return resolveVersion(Version, Commit, nil)
	}
	return resolveVersion(Version, Commit, info.Settings)
}

func resolveVersion(base, commit string, settings []debug.BuildSetting) string {
	base = strings.TrimPrefix(strings.TrimSpace(base), "v")
	if base == "" {
		base = "0.0.0"
	}
	if strings.TrimSpace(commit) != "" {
		return base
	}

	var revision string
	var modified bool
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	if revision == "" {
		return base
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}

	suffix := "g" + revision
	if modified {
		suffix += "-dirty"
	}
	return base + "-" + suffix
}
